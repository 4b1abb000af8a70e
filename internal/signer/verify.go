package signer

import (
	"crypto/x509"
	"fmt"
	"strings"

	"github.com/beevik/etree"
	dsig "github.com/russellhaering/goxmldsig"
)

// Verify checks the enveloped signature in data against the given
// certificate. The signature sits next to the signed element and
// addresses it by Id, so the signature is re-attached to its target
// before validation. Any mutation of the signed payload after signing
// makes this fail.
func Verify(data []byte, cert *x509.Certificate) error {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return fmt.Errorf("parse signed document: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return fmt.Errorf("empty signed document")
	}

	sig := root.SelectElement("Signature")
	if sig == nil {
		return fmt.Errorf("document carries no signature")
	}
	target, err := referencedElement(root, sig)
	if err != nil {
		return err
	}

	// The digest was computed over the target alone; validation wants
	// the signature inside the element it references.
	root.RemoveChild(sig)
	target.AddChild(sig)

	ctx := dsig.NewDefaultValidationContext(&dsig.MemoryX509CertificateStore{
		Roots: []*x509.Certificate{cert},
	})
	ctx.IdAttribute = IDAttribute

	if _, err := ctx.Validate(target); err != nil {
		return fmt.Errorf("signature validation failed: %w", err)
	}
	return nil
}

// referencedElement resolves the signature's Reference URI to the
// signed sibling element
func referencedElement(root, sig *etree.Element) (*etree.Element, error) {
	ref := sig.FindElement("//Reference")
	if ref == nil {
		return nil, fmt.Errorf("signature has no reference")
	}
	id := strings.TrimPrefix(ref.SelectAttrValue("URI", ""), "#")
	if id == "" {
		return nil, fmt.Errorf("signature reference has no target URI")
	}
	for _, el := range root.ChildElements() {
		if el.SelectAttrValue(IDAttribute, "") == id {
			return el, nil
		}
	}
	return nil, fmt.Errorf("signed element %q not found", id)
}
