package model

import (
	"time"

	"github.com/google/uuid"
)

// EventType identifies a post-issuance event
type EventType string

const (
	EventCancellation EventType = "CANCELLATION"
	EventCorrection   EventType = "CORRECTION"
)

// Authority event-type codes used on the wire
const (
	EventCodeCancellation = "110111"
	EventCodeCorrection   = "110110"
)

// Code returns the authority's numeric code for the event type
func (t EventType) Code() string {
	if t == EventCancellation {
		return EventCodeCancellation
	}
	return EventCodeCorrection
}

// Justification length bounds for cancellation events
const (
	MinJustificationLen = 15
	MaxJustificationLen = 255
)

// CancellationWindow is how long after issuance a cancellation event
// is accepted by the authority
const CancellationWindow = 24 * time.Hour

// CorrectionDisclaimer is the legal text the authority requires on
// every correction event. Content is fixed and must not be edited.
const CorrectionDisclaimer = "A Carta de Correcao e disciplinada pelo paragrafo 1o-A do art. 7o do Convenio S/N, de 15 de dezembro de 1970 e pode ser utilizada para regularizacao de erro ocorrido na emissao de documento fiscal, desde que o erro nao esteja relacionado com: I - as variaveis que determinam o valor do imposto tais como: base de calculo, aliquota, diferenca de preco, quantidade, valor da operacao ou da prestacao; II - a correcao de dados cadastrais que implique mudanca do remetente ou do destinatario; III - a data de emissao ou de saida."

// Event is a post-issuance amendment or cancellation notice
// referencing an issued document by access key
type Event struct {
	ID        uuid.UUID
	Type      EventType
	AccessKey string
	Sequence  int    // correction sequence; 1 for cancellations
	Payload   string // justification or correction text
	Protocol  string
	CreatedAt time.Time
}
