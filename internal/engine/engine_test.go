package engine_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/nfe-engine/internal/accesskey"
	"github.com/rezonia/nfe-engine/internal/engine"
	"github.com/rezonia/nfe-engine/internal/lifecycle"
	"github.com/rezonia/nfe-engine/internal/model"
	"github.com/rezonia/nfe-engine/internal/sefaz"
)

var startedAt = time.Date(2026, 8, 14, 10, 30, 0, 0, time.FixedZone("BRT", -3*3600))

func testCredentials(t *testing.T) engine.Credentials {
	t.Helper()
	bundle, err := os.ReadFile("../certificate/testdata/merchant.pfx")
	require.NoError(t, err)
	return engine.Credentials{Bundle: bundle, Passphrase: "test123"}
}

func draftDocument() *model.FiscalDocument {
	emitter := model.Party{
		TaxID:     "12345678000195",
		LegalName: "ACME COMERCIO LTDA",
		Address: model.Address{
			Street: "Rua das Flores", Number: "100", District: "Centro",
			City: "Sao Luis", CityCode: "2111300", UF: "MA", ZIP: "65000000",
		},
	}
	recipient := model.Party{
		TaxID:     "98765432000198",
		LegalName: "CLIENTE SA",
		Address: model.Address{
			Street: "Av Paulista", Number: "1000", District: "Bela Vista",
			City: "Sao Paulo", CityCode: "3550308", UF: "SP", ZIP: "01310100",
		},
	}
	items := []model.LineItem{{
		Number: 1, ProductCode: "SKU-1", Description: "Widget", NCM: "84839090", Unit: "UN",
		Quantity: decimal.NewFromInt(2), UnitPrice: decimal.RequireFromString("49.90"),
	}}
	return model.NewDocument(emitter, recipient, items, 1, model.EnvironmentTest)
}

type fixture struct {
	engine *engine.Engine
	store  *lifecycle.MemoryStore
	stub   *sefaz.StubAuthority
	clock  *clockwork.FakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := lifecycle.NewMemoryStore()
	stub := sefaz.NewStubAuthority()
	clock := clockwork.NewFakeClockAt(startedAt)
	eng := engine.New(store, stub, testCredentials(t), engine.WithClock(clock))
	return &fixture{engine: eng, store: store, stub: stub, clock: clock}
}

func (f *fixture) issue(t *testing.T) *model.FiscalDocument {
	t.Helper()
	doc := draftDocument()
	_, err := f.engine.Issue(context.Background(), doc)
	require.NoError(t, err)
	return doc
}

func TestIssue_EndToEnd(t *testing.T) {
	f := newFixture(t)
	doc := draftDocument()

	result, err := f.engine.Issue(context.Background(), doc)
	require.NoError(t, err)

	assert.Equal(t, model.StatusIssued, result.Status)
	assert.True(t, accesskey.Valid(result.AccessKey), "access key %s fails check digit", result.AccessKey)
	assert.NotEmpty(t, result.Protocol)
	assert.Contains(t, string(result.SignedXML), "<ds:Signature")

	stored, err := f.store.GetDocument(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusIssued, stored.Status)
	assert.Equal(t, int64(1), stored.Number, "first number allocated from the series")
	require.NotNil(t, stored.IssuedAt)
	assert.Equal(t, 1, f.stub.IssueCalls())
}

func TestIssue_PreservesExplicitNumber(t *testing.T) {
	f := newFixture(t)
	doc := draftDocument()
	doc.Number = 777

	result, err := f.engine.Issue(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, "000000777", result.AccessKey[25:34], "explicit number carried into the key")
}

func TestIssue_RejectionEndsInError(t *testing.T) {
	f := newFixture(t)
	f.stub.IssueReceipt = &sefaz.Receipt{Code: 302, Reason: "Uso Denegado: Irregularidade fiscal do destinatario"}

	doc := draftDocument()
	_, err := f.engine.Issue(context.Background(), doc)

	var rejection *model.ProtocolRejection
	require.ErrorAs(t, err, &rejection)
	assert.Equal(t, 302, rejection.Code)

	stored, err := f.store.GetDocument(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusError, stored.Status)
	assert.Contains(t, stored.LastError, "302")
	assert.Contains(t, stored.LastError, "Uso Denegado")
}

func TestIssue_BadPassphraseAbortsBeforeSubmission(t *testing.T) {
	store := lifecycle.NewMemoryStore()
	stub := sefaz.NewStubAuthority()
	bundle, err := os.ReadFile("../certificate/testdata/merchant.pfx")
	require.NoError(t, err)
	eng := engine.New(store, stub, engine.Credentials{Bundle: bundle, Passphrase: "wrong"})

	doc := draftDocument()
	_, err = eng.Issue(context.Background(), doc)

	var cerr *model.CertificateError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, model.StatusDraft, doc.Status, "failure before submission keeps the draft")
	assert.NotEmpty(t, doc.LastError)
	assert.Equal(t, 0, stub.IssueCalls(), "nothing reached the authority")
}

func TestIssue_ExpiredCertificateAbortsBeforeSubmission(t *testing.T) {
	store := lifecycle.NewMemoryStore()
	stub := sefaz.NewStubAuthority()
	// well past the fixture certificate's validity window
	clock := clockwork.NewFakeClockAt(time.Date(2060, 1, 1, 0, 0, 0, 0, time.UTC))
	eng := engine.New(store, stub, testCredentials(t), engine.WithClock(clock))

	doc := draftDocument()
	_, err := eng.Issue(context.Background(), doc)

	var cerr *model.CertificateError
	require.ErrorAs(t, err, &cerr)
	assert.Contains(t, err.Error(), "validity window")
	assert.Equal(t, model.StatusDraft, doc.Status)
	assert.Equal(t, 0, stub.IssueCalls())
}

func TestIssue_OnlyDraftsAreIssuable(t *testing.T) {
	f := newFixture(t)
	doc := f.issue(t)

	_, err := f.engine.Issue(context.Background(), doc)
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestCancel_WithinWindow(t *testing.T) {
	f := newFixture(t)
	doc := f.issue(t)

	f.clock.Advance(2 * time.Hour)
	result, err := f.engine.Cancel(context.Background(), doc.ID, "pedido cancelado pelo cliente")
	require.NoError(t, err)
	assert.NotEmpty(t, result.Protocol)

	stored, err := f.store.GetDocument(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, stored.Status)
	require.NotNil(t, stored.CancelledAt)

	listed, err := f.engine.ListEvents(context.Background(), stored.AccessKey)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, model.EventCancellation, listed[0].Type)
	assert.Equal(t, result.Protocol, listed[0].Protocol)
}

func TestCancel_WindowClosed(t *testing.T) {
	f := newFixture(t)
	doc := f.issue(t)

	f.clock.Advance(24*time.Hour + time.Minute)
	_, err := f.engine.Cancel(context.Background(), doc.ID, "pedido cancelado pelo cliente")

	var werr *model.TimeWindowError
	require.ErrorAs(t, err, &werr)

	stored, storeErr := f.store.GetDocument(context.Background(), doc.ID)
	require.NoError(t, storeErr)
	assert.Equal(t, model.StatusIssued, stored.Status, "the document stays issued")
	assert.Contains(t, stored.LastError, "reversal document")
	assert.Equal(t, 0, f.stub.EventCalls(), "a closed window never reaches the authority")
}

func TestCorrect_SequencesAdvance(t *testing.T) {
	f := newFixture(t)
	doc := f.issue(t)
	ctx := context.Background()

	first, err := f.engine.Correct(ctx, doc.ID, "endereco do destinatario corrigido")
	require.NoError(t, err)
	assert.Equal(t, 1, first.Sequence)

	second, err := f.engine.Correct(ctx, doc.ID, "descricao do item corrigida")
	require.NoError(t, err)
	assert.Equal(t, 2, second.Sequence)

	stored, err := f.store.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.CorrectionSeq)
	assert.Equal(t, model.StatusIssued, stored.Status, "correction never changes the status")

	listed, err := f.engine.ListEvents(ctx, stored.AccessKey)
	require.NoError(t, err)
	assert.Len(t, listed, 2)
}

func TestCorrect_RejectedEventKeepsSequence(t *testing.T) {
	f := newFixture(t)
	doc := f.issue(t)
	f.stub.EventReceipt = &sefaz.Receipt{Code: 573, Reason: "Rejeicao: Duplicidade de Evento"}

	_, err := f.engine.Correct(context.Background(), doc.ID, "correcao rejeitada")
	var rejection *model.ProtocolRejection
	require.ErrorAs(t, err, &rejection)

	stored, storeErr := f.store.GetDocument(context.Background(), doc.ID)
	require.NoError(t, storeErr)
	assert.Equal(t, 0, stored.CorrectionSeq, "rejected corrections do not consume a sequence")
}

func TestEvents_ConcurrentSubmissionRejected(t *testing.T) {
	f := newFixture(t)
	doc := f.issue(t)

	stored, err := f.store.GetDocument(context.Background(), doc.ID)
	require.NoError(t, err)

	release, err := f.store.AcquireEventLock(stored.AccessKey)
	require.NoError(t, err)
	defer release()

	_, err = f.engine.Cancel(context.Background(), doc.ID, "tentativa concorrente de evento")
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, 0, f.stub.EventCalls())
}

func TestGetDocument(t *testing.T) {
	f := newFixture(t)
	doc := f.issue(t)

	got, err := f.engine.GetDocument(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, got.ID)
	assert.Equal(t, model.StatusIssued, got.Status)
}
