// Package engine orchestrates the emission pipeline: tax resolution,
// identifier generation, assembly, signing, submission, and lifecycle
// transitions. It is the only writer of document state.
package engine

import (
	"context"

	"github.com/beevik/etree"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/rezonia/nfe-engine/internal/accesskey"
	"github.com/rezonia/nfe-engine/internal/assembler"
	"github.com/rezonia/nfe-engine/internal/certificate"
	"github.com/rezonia/nfe-engine/internal/events"
	"github.com/rezonia/nfe-engine/internal/lifecycle"
	"github.com/rezonia/nfe-engine/internal/model"
	"github.com/rezonia/nfe-engine/internal/sefaz"
	"github.com/rezonia/nfe-engine/internal/signer"
	"github.com/rezonia/nfe-engine/internal/tax"
)

// DocumentSigningTarget is the element a document signature covers
const DocumentSigningTarget = "infNFe"

// Credentials carry the merchant's signing bundle. The bundle is
// decoded per operation unless a cache is configured.
type Credentials struct {
	Bundle     []byte
	Passphrase string
}

// Engine runs the emission pipeline
type Engine struct {
	store     lifecycle.Store
	authority sefaz.Authority
	creds     Credentials

	assembler *assembler.Assembler
	events    *events.Builder
	rules     []model.TaxRule
	certCache *certificate.Cache
	clock     clockwork.Clock
	log       *zap.Logger
}

// Option configures the engine
type Option func(*Engine)

// WithRules sets the active tax rule set
func WithRules(rules []model.TaxRule) Option {
	return func(e *Engine) {
		e.rules = rules
	}
}

// WithCertCache opts into the short-lived credential cache
func WithCertCache(cache *certificate.Cache) Option {
	return func(e *Engine) {
		e.certCache = cache
	}
}

// WithClock injects the clock
func WithClock(clock clockwork.Clock) Option {
	return func(e *Engine) {
		e.clock = clock
	}
}

// WithLogger injects the logger
func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) {
		e.log = log
	}
}

// New creates an engine. The authority variant is chosen by the
// caller's configuration; the engine never falls back between
// implementations.
func New(store lifecycle.Store, authority sefaz.Authority, creds Credentials, opts ...Option) *Engine {
	e := &Engine{
		store:     store,
		authority: authority,
		creds:     creds,
		assembler: assembler.New(),
		events:    events.NewBuilder(),
		clock:     clockwork.NewRealClock(),
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// IssueResult is the outcome of a successful issuance
type IssueResult struct {
	AccessKey string
	Protocol  string
	SignedXML []byte
	Status    model.DocumentStatus
}

// Issue runs the full pipeline on a DRAFT document. Validation and
// certificate failures abort before any network work and leave the
// document in DRAFT; a failure after signing leaves it in ERROR with
// the reason recorded, never silently ISSUED.
func (e *Engine) Issue(ctx context.Context, doc *model.FiscalDocument) (*IssueResult, error) {
	if doc.Status != model.StatusDraft {
		return nil, model.NewValidationError("status", doc.Status, "only a DRAFT document can be issued")
	}

	res := tax.Resolve(doc.Emitter, doc.Recipient, doc.Items, e.rules)
	if res.UsedFallback {
		e.log.Warn("no tax rule configured for classification, using built-in default",
			zap.String("operation", string(res.Operation)),
			zap.String("document", doc.ID.String()))
	}

	if doc.Number == 0 {
		number, err := e.store.NextNumber(ctx, doc.Series)
		if err != nil {
			return nil, e.recordFailure(ctx, doc, err)
		}
		doc.Number = number
	}

	now := e.clock.Now()
	ufCode, ok := model.UFCode(doc.Emitter.Address.UF)
	if !ok {
		return nil, e.recordFailure(ctx, doc, model.NewValidationError("emitter.uf", doc.Emitter.Address.UF, "unresolved jurisdiction numeric code"))
	}
	key, err := accesskey.Generate(accesskey.Params{
		UFCode:     ufCode,
		IssuedAt:   now,
		TaxID:      doc.Emitter.TaxID,
		Series:     doc.Series,
		Number:     doc.Number,
		RandomCode: -1,
	})
	if err != nil {
		return nil, e.recordFailure(ctx, doc, model.NewValidationError("accessKey", nil, err.Error()))
	}
	doc.AccessKey = key

	tree, err := e.assembler.Build(assembler.Input{
		Document:   doc,
		Resolution: res,
		IssuedAt:   now,
	})
	if err != nil {
		return nil, e.recordFailure(ctx, doc, err)
	}

	cred, err := e.loadCredential()
	if err != nil {
		return nil, e.recordFailure(ctx, doc, err)
	}
	signed, err := signer.New(cred).Sign(tree, DocumentSigningTarget)
	if err != nil {
		return nil, e.recordFailure(ctx, doc, err)
	}
	doc.SignedXML = signed

	// Identifier, assembly, and signature are in hand; the submission
	// attempt begins now.
	if err := lifecycle.Transition(doc, model.StatusProcessing); err != nil {
		return nil, e.recordFailure(ctx, doc, err)
	}
	if err := e.store.SaveDocument(ctx, doc); err != nil {
		return nil, e.recordFailure(ctx, doc, err)
	}

	receipt, err := e.authority.Issue(ctx, doc.Emitter.Address.UF, doc.Environment, signed)
	if err != nil {
		lifecycle.MarkError(doc, err)
		if saveErr := e.store.SaveDocument(ctx, doc); saveErr != nil {
			e.log.Error("persisting failed document", zap.Error(saveErr))
		}
		return nil, err
	}

	doc.Protocol = receipt.Protocol
	issuedAt := now
	doc.IssuedAt = &issuedAt
	if err := lifecycle.Transition(doc, model.StatusIssued); err != nil {
		lifecycle.MarkError(doc, err)
		_ = e.store.SaveDocument(ctx, doc)
		return nil, err
	}
	if err := e.store.SaveDocument(ctx, doc); err != nil {
		return nil, err
	}

	e.log.Info("document issued",
		zap.String("accessKey", doc.AccessKey),
		zap.String("protocol", doc.Protocol))

	return &IssueResult{
		AccessKey: doc.AccessKey,
		Protocol:  doc.Protocol,
		SignedXML: doc.SignedXML,
		Status:    doc.Status,
	}, nil
}

// CancelResult is the outcome of a successful cancellation
type CancelResult struct {
	Protocol string
}

// Cancel submits a cancellation event against an issued document and
// transitions it to CANCELLED. Concurrent events on the same document
// are rejected by the store's event lock.
func (e *Engine) Cancel(ctx context.Context, docID uuid.UUID, justification string) (*CancelResult, error) {
	doc, err := e.store.GetDocument(ctx, docID)
	if err != nil {
		return nil, err
	}
	release, err := e.store.AcquireEventLock(doc.AccessKey)
	if err != nil {
		return nil, model.NewValidationError("event", doc.AccessKey, err.Error())
	}
	defer release()

	now := e.clock.Now()
	tree, event, err := e.events.BuildCancellation(doc, justification, now)
	if err != nil {
		return nil, e.recordFailure(ctx, doc, err)
	}

	receipt, err := e.submitEvent(ctx, doc, tree)
	if err != nil {
		return nil, e.recordFailure(ctx, doc, err)
	}

	event.Protocol = receipt.Protocol
	cancelledAt := now
	doc.CancelledAt = &cancelledAt
	if err := lifecycle.Transition(doc, model.StatusCancelled); err != nil {
		return nil, e.recordFailure(ctx, doc, err)
	}
	if err := e.store.SaveDocument(ctx, doc); err != nil {
		return nil, err
	}
	if err := e.store.SaveEvent(ctx, event); err != nil {
		return nil, err
	}

	e.log.Info("document cancelled",
		zap.String("accessKey", doc.AccessKey),
		zap.String("protocol", event.Protocol))

	return &CancelResult{Protocol: event.Protocol}, nil
}

// CorrectResult is the outcome of a successful correction
type CorrectResult struct {
	Protocol string
	Sequence int
}

// Correct submits a correction event with the next sequence number.
// The document status never changes on correction.
func (e *Engine) Correct(ctx context.Context, docID uuid.UUID, text string) (*CorrectResult, error) {
	doc, err := e.store.GetDocument(ctx, docID)
	if err != nil {
		return nil, err
	}
	release, err := e.store.AcquireEventLock(doc.AccessKey)
	if err != nil {
		return nil, model.NewValidationError("event", doc.AccessKey, err.Error())
	}
	defer release()

	now := e.clock.Now()
	seq := doc.CorrectionSeq + 1
	tree, event, err := e.events.BuildCorrection(doc, text, seq, now)
	if err != nil {
		return nil, e.recordFailure(ctx, doc, err)
	}

	receipt, err := e.submitEvent(ctx, doc, tree)
	if err != nil {
		return nil, e.recordFailure(ctx, doc, err)
	}

	event.Protocol = receipt.Protocol
	doc.CorrectionSeq = seq
	if err := e.store.SaveDocument(ctx, doc); err != nil {
		return nil, err
	}
	if err := e.store.SaveEvent(ctx, event); err != nil {
		return nil, err
	}

	e.log.Info("correction registered",
		zap.String("accessKey", doc.AccessKey),
		zap.Int("sequence", seq),
		zap.String("protocol", event.Protocol))

	return &CorrectResult{Protocol: event.Protocol, Sequence: seq}, nil
}

// GetDocument exposes persisted records to downstream consumers such
// as the printable-summary renderer
func (e *Engine) GetDocument(ctx context.Context, docID uuid.UUID) (*model.FiscalDocument, error) {
	return e.store.GetDocument(ctx, docID)
}

// ListEvents returns the event history of a document
func (e *Engine) ListEvents(ctx context.Context, accessKey string) ([]*model.Event, error) {
	return e.store.ListEvents(ctx, accessKey)
}

func (e *Engine) submitEvent(ctx context.Context, doc *model.FiscalDocument, tree *etree.Document) (*sefaz.Receipt, error) {
	cred, err := e.loadCredential()
	if err != nil {
		return nil, err
	}
	signed, err := signer.New(cred).Sign(tree, events.SigningTarget)
	if err != nil {
		return nil, err
	}
	return e.authority.Event(ctx, doc.Emitter.Address.UF, doc.Environment, signed)
}

func (e *Engine) loadCredential() (*certificate.Credential, error) {
	var (
		cred *certificate.Credential
		err  error
	)
	if e.certCache != nil {
		cred, err = e.certCache.Load(e.creds.Bundle, e.creds.Passphrase)
	} else {
		cred, err = certificate.Load(e.creds.Bundle, e.creds.Passphrase)
	}
	if err != nil {
		return nil, err
	}
	if cred.Expired(e.clock.Now()) {
		return nil, model.NewCertificateError("certificate is outside its validity window", nil)
	}
	return cred, nil
}

func (e *Engine) recordFailure(ctx context.Context, doc *model.FiscalDocument, err error) error {
	lifecycle.MarkError(doc, err)
	if saveErr := e.store.SaveDocument(ctx, doc); saveErr != nil {
		e.log.Error("persisting failed document", zap.Error(saveErr))
	}
	return err
}
