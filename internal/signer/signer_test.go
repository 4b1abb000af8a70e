package signer_test

import (
	"bytes"
	"os"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/nfe-engine/internal/accesskey"
	"github.com/rezonia/nfe-engine/internal/assembler"
	"github.com/rezonia/nfe-engine/internal/certificate"
	"github.com/rezonia/nfe-engine/internal/events"
	"github.com/rezonia/nfe-engine/internal/model"
	"github.com/rezonia/nfe-engine/internal/signer"
	"github.com/rezonia/nfe-engine/internal/tax"
)

func loadCredential(t *testing.T) *certificate.Credential {
	t.Helper()
	bundle, err := os.ReadFile("../certificate/testdata/merchant.pfx")
	require.NoError(t, err)
	cred, err := certificate.Load(bundle, "test123")
	require.NoError(t, err)
	return cred
}

func assembledDocument(t *testing.T) *etree.Document {
	t.Helper()
	emitter := model.Party{
		TaxID:     "12345678000195",
		LegalName: "ACME COMERCIO LTDA",
		Address: model.Address{
			Street: "Rua A", Number: "1", District: "Centro",
			City: "Sao Luis", CityCode: "2111300", UF: "MA", ZIP: "65000000",
		},
	}
	recipient := emitter
	items := []model.LineItem{{
		Number: 1, ProductCode: "SKU-1", Description: "Widget", NCM: "84839090", Unit: "UN",
		Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(100),
	}}

	doc := model.NewDocument(emitter, recipient, items, 1, model.EnvironmentTest)
	doc.Number = 7

	issuedAt := time.Date(2026, 8, 14, 9, 0, 0, 0, time.FixedZone("BRT", -3*3600))
	key, err := accesskey.Generate(accesskey.Params{
		UFCode: 21, IssuedAt: issuedAt, TaxID: emitter.TaxID,
		Series: 1, Number: 7, RandomCode: 42,
	})
	require.NoError(t, err)
	doc.AccessKey = key

	res := tax.Resolve(emitter, recipient, items, nil)
	tree, err := assembler.New().Build(assembler.Input{Document: doc, Resolution: res, IssuedAt: issuedAt})
	require.NoError(t, err)
	return tree
}

func TestSign_EmbedsSignatureAfterTarget(t *testing.T) {
	cred := loadCredential(t)
	signed, err := signer.New(cred).Sign(assembledDocument(t), "infNFe")
	require.NoError(t, err)

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(signed))

	root := doc.Root()
	children := root.ChildElements()
	require.Len(t, children, 2)
	assert.Equal(t, "infNFe", children[0].Tag)
	assert.Equal(t, "Signature", children[1].Tag, "signature sits immediately after the signed element")
}

func TestSign_ReferencesTargetByID(t *testing.T) {
	cred := loadCredential(t)
	signed, err := signer.New(cred).Sign(assembledDocument(t), "infNFe")
	require.NoError(t, err)

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(signed))

	ref := doc.FindElement("//Reference")
	require.NotNil(t, ref)
	id := doc.FindElement("//infNFe").SelectAttrValue("Id", "")
	assert.Equal(t, "#"+id, ref.SelectAttrValue("URI", ""))
}

func TestSign_Deterministic(t *testing.T) {
	cred := loadCredential(t)

	first, err := signer.New(cred).Sign(assembledDocument(t), "infNFe")
	require.NoError(t, err)
	second, err := signer.New(cred).Sign(assembledDocument(t), "infNFe")
	require.NoError(t, err)

	assert.True(t, bytes.Equal(first, second), "same input and key must produce the same signature")
}

func TestSign_MissingTarget(t *testing.T) {
	cred := loadCredential(t)
	_, err := signer.New(cred).Sign(assembledDocument(t), "infEvento")
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestVerify_RoundTrip(t *testing.T) {
	cred := loadCredential(t)
	signed, err := signer.New(cred).Sign(assembledDocument(t), "infNFe")
	require.NoError(t, err)

	assert.NoError(t, signer.Verify(signed, cred.Cert))
}

func TestVerify_EventTarget(t *testing.T) {
	cred := loadCredential(t)

	at := time.Date(2026, 8, 14, 9, 0, 0, 0, time.FixedZone("BRT", -3*3600))
	doc := &model.FiscalDocument{
		Emitter:     model.Party{TaxID: "12345678000195", Address: model.Address{UF: "MA"}},
		Environment: model.EnvironmentTest,
		AccessKey:   "21260812345678000195550010000001231000000427",
		Status:      model.StatusIssued,
		Protocol:    "135210000000001",
		IssuedAt:    &at,
	}
	tree, _, err := events.NewBuilder().BuildCancellation(doc, "pedido emitido com dados incorretos", at.Add(time.Hour))
	require.NoError(t, err)

	signed, err := signer.New(cred).Sign(tree, "infEvento")
	require.NoError(t, err)
	assert.NoError(t, signer.Verify(signed, cred.Cert))
}

func TestVerify_UnsignedDocument(t *testing.T) {
	cred := loadCredential(t)
	unsigned, err := assembledDocument(t).WriteToBytes()
	require.NoError(t, err)

	assert.Error(t, signer.Verify(unsigned, cred.Cert))
}

func TestVerify_FailsOnSingleByteMutation(t *testing.T) {
	cred := loadCredential(t)
	signed, err := signer.New(cred).Sign(assembledDocument(t), "infNFe")
	require.NoError(t, err)

	mutated := bytes.Replace(signed, []byte("ACME"), []byte("ACMF"), 1)
	require.False(t, bytes.Equal(signed, mutated), "mutation must have applied")

	assert.Error(t, signer.Verify(mutated, cred.Cert))
}
