// Package signer produces and checks enveloped XMLDSig signatures
// over fiscal documents and events. The signed target is addressed by
// its Id attribute and passed in by name, since documents sign infNFe
// and events sign infEvento.
package signer

import (
	"fmt"

	"github.com/beevik/etree"
	dsig "github.com/russellhaering/goxmldsig"

	"github.com/rezonia/nfe-engine/internal/certificate"
	"github.com/rezonia/nfe-engine/internal/model"
)

// IDAttribute is the reference attribute used by the authority schema
const IDAttribute = "Id"

// Signer signs document trees with one credential
type Signer struct {
	cred *certificate.Credential
}

// New creates a signer bound to a credential
func New(cred *certificate.Credential) *Signer {
	return &Signer{cred: cred}
}

// Sign computes an enveloped signature over the child element of the
// document root with the given tag, referencing it by Id, and embeds
// the signature block immediately after it. Returns the serialized
// signed document. Deterministic for a fixed input and key.
func (s *Signer) Sign(doc *etree.Document, targetTag string) ([]byte, error) {
	root := doc.Root()
	if root == nil {
		return nil, model.NewValidationError("document", nil, "empty document tree")
	}
	target := root.SelectElement(targetTag)
	if target == nil {
		return nil, model.NewValidationError("document", targetTag, "signing target element not found")
	}
	if target.SelectAttrValue(IDAttribute, "") == "" {
		return nil, model.NewValidationError("document", targetTag, "signing target has no Id attribute")
	}

	ctx := dsig.NewDefaultSigningContext(s.cred)
	ctx.IdAttribute = IDAttribute
	ctx.Canonicalizer = dsig.MakeC14N10RecCanonicalizer()
	if err := ctx.SetSignatureMethod(dsig.RSASHA1SignatureMethod); err != nil {
		return nil, model.NewCertificateError("unsupported signature method", err)
	}

	sig, err := ctx.ConstructSignature(target, true)
	if err != nil {
		return nil, fmt.Errorf("construct signature: %w", err)
	}
	root.AddChild(sig)

	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("serialize signed document: %w", err)
	}
	return out, nil
}
