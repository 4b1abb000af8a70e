// Package events builds post-issuance event documents (cancellation
// and correction) referencing an issued fiscal document. Events run
// through the same signing and submission pipeline as documents, with
// infEvento as the signing target.
package events

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/beevik/etree"
	"github.com/google/uuid"

	"github.com/rezonia/nfe-engine/internal/assembler"
	"github.com/rezonia/nfe-engine/internal/model"
)

// EventVersion is the event layout version
const EventVersion = "1.00"

// SigningTarget is the element an event signature covers
const SigningTarget = "infEvento"

// Builder builds event document trees
type Builder struct{}

// NewBuilder creates an event builder
func NewBuilder() *Builder {
	return &Builder{}
}

// BuildCancellation validates the cancellation preconditions and
// builds the event tree. Preconditions: the document is ISSUED with a
// protocol number, no more than 24h have passed since issuance, and the
// justification is 15 to 255 characters.
func (b *Builder) BuildCancellation(doc *model.FiscalDocument, justification string, now time.Time) (*etree.Document, *model.Event, error) {
	if doc.Status != model.StatusIssued {
		return nil, nil, model.NewValidationError("status", doc.Status, "only an ISSUED document can be cancelled")
	}
	if doc.Protocol == "" {
		return nil, nil, model.NewValidationError("protocol", nil, "document has no authorization protocol")
	}
	if doc.IssuedAt == nil {
		return nil, nil, model.NewValidationError("issuedAt", nil, "document has no issuance timestamp")
	}
	if n := utf8.RuneCountInString(justification); n < model.MinJustificationLen || n > model.MaxJustificationLen {
		return nil, nil, model.NewValidationError("justification", n,
			fmt.Sprintf("justification must be %d to %d characters", model.MinJustificationLen, model.MaxJustificationLen))
	}
	if now.Sub(*doc.IssuedAt) > model.CancellationWindow {
		return nil, nil, model.NewTimeWindowError(*doc.IssuedAt)
	}

	event := &model.Event{
		ID:        uuid.New(),
		Type:      model.EventCancellation,
		AccessKey: doc.AccessKey,
		Sequence:  1,
		Payload:   justification,
		CreatedAt: now,
	}

	tree, err := b.buildTree(doc, event, now, func(det *etree.Element) {
		det.CreateElement("descEvento").SetText("Cancelamento")
		det.CreateElement("nProt").SetText(doc.Protocol)
		det.CreateElement("xJust").SetText(justification)
	})
	if err != nil {
		return nil, nil, err
	}
	return tree, event, nil
}

// BuildCorrection validates the correction preconditions and builds
// the event tree. The sequence must be exactly one above the highest
// accepted correction for the document, starting at 1; anything else
// is a SequenceConflictError. The legal disclaimer text is fixed and
// appended alongside the caller's correction text.
func (b *Builder) BuildCorrection(doc *model.FiscalDocument, text string, seq int, now time.Time) (*etree.Document, *model.Event, error) {
	if doc.Status != model.StatusIssued {
		return nil, nil, model.NewValidationError("status", doc.Status, "only an ISSUED document can be corrected")
	}
	if text == "" {
		return nil, nil, model.NewValidationError("text", nil, "correction text is required")
	}
	if seq != doc.CorrectionSeq+1 {
		return nil, nil, model.NewSequenceConflictError(doc.AccessKey, seq, doc.CorrectionSeq+1)
	}

	event := &model.Event{
		ID:        uuid.New(),
		Type:      model.EventCorrection,
		AccessKey: doc.AccessKey,
		Sequence:  seq,
		Payload:   text,
		CreatedAt: now,
	}

	tree, err := b.buildTree(doc, event, now, func(det *etree.Element) {
		det.CreateElement("descEvento").SetText("Carta de Correcao")
		det.CreateElement("xCorrecao").SetText(text)
		det.CreateElement("xCondUso").SetText(model.CorrectionDisclaimer)
	})
	if err != nil {
		return nil, nil, err
	}
	return tree, event, nil
}

func (b *Builder) buildTree(doc *model.FiscalDocument, event *model.Event, now time.Time, detail func(*etree.Element)) (*etree.Document, error) {
	ufCode, ok := model.UFCode(doc.Emitter.Address.UF)
	if !ok {
		return nil, model.NewValidationError("emitter.uf", doc.Emitter.Address.UF, "unresolved jurisdiction numeric code")
	}
	stamp, err := assembler.FormatTimestamp(now)
	if err != nil {
		return nil, err
	}

	tree := etree.NewDocument()
	evento := tree.CreateElement("evento")
	evento.CreateAttr("xmlns", assembler.NFeNamespace)
	evento.CreateAttr("versao", EventVersion)

	inf := evento.CreateElement("infEvento")
	inf.CreateAttr("Id", fmt.Sprintf("ID%s%s%02d", event.Type.Code(), doc.AccessKey, event.Sequence))
	inf.CreateElement("cOrgao").SetText(fmt.Sprintf("%02d", ufCode))
	inf.CreateElement("tpAmb").SetText(fmt.Sprintf("%d", doc.Environment))
	inf.CreateElement("CNPJ").SetText(doc.Emitter.TaxID)
	inf.CreateElement("chNFe").SetText(doc.AccessKey)
	inf.CreateElement("dhEvento").SetText(stamp)
	inf.CreateElement("tpEvento").SetText(event.Type.Code())
	inf.CreateElement("nSeqEvento").SetText(fmt.Sprintf("%d", event.Sequence))
	inf.CreateElement("verEvento").SetText(EventVersion)

	det := inf.CreateElement("detEvento")
	det.CreateAttr("versao", EventVersion)
	detail(det)

	return tree, nil
}
