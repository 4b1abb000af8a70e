package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DocumentStatus is the lifecycle state of a fiscal document
type DocumentStatus string

const (
	StatusDraft      DocumentStatus = "DRAFT"
	StatusProcessing DocumentStatus = "PROCESSING"
	StatusIssued     DocumentStatus = "ISSUED"
	StatusError      DocumentStatus = "ERROR"
	StatusCancelled  DocumentStatus = "CANCELLED"
)

// Environment selects the authority environment
type Environment int

const (
	EnvironmentLive Environment = 1
	EnvironmentTest Environment = 2
)

// ForeignUF is the sentinel jurisdiction for export recipients
const ForeignUF = "EX"

// Party identifies the emitter or recipient of a fiscal document
type Party struct {
	TaxID     string // CNPJ (14 digits) or CPF (11 digits)
	LegalName string
	Address   Address
}

// Address is the party's fiscal address
type Address struct {
	Street      string
	Number      string
	District    string
	City        string
	CityCode    string // IBGE municipality code (7 digits)
	UF          string // jurisdiction code, ForeignUF for abroad
	ZIP         string
	CountryCode string
	CountryName string
}

// IsForeign reports whether the party is outside the national territory
func (p Party) IsForeign() bool {
	return p.Address.UF == "" || p.Address.UF == ForeignUF
}

// LineItem is one product line of a fiscal document.
// Tax fields are optional overrides; nil means the value resolved from
// the applicable tax rule applies. Explicit values always win.
type LineItem struct {
	Number      int
	ProductCode string
	Description string
	NCM         string
	Unit        string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal

	Origin            *string
	CFOP              *string
	ICMSCode          *string
	ICMSRate          *decimal.Decimal
	ICMSBaseReduction *decimal.Decimal
	PISCode           *string
	PISRate           *decimal.Decimal
	COFINSCode        *string
	COFINSRate        *decimal.Decimal
}

// GrossTotal is quantity * unit price rounded to cents
func (li LineItem) GrossTotal() decimal.Decimal {
	return li.Quantity.Mul(li.UnitPrice).Round(2)
}

// FiscalDocument is the electronic invoice record submitted to the
// tax authority. It is created in DRAFT and mutated only through the
// lifecycle state machine; once ISSUED only status-transition fields
// change.
type FiscalDocument struct {
	ID          uuid.UUID
	Emitter     Party
	Recipient   Party
	Items       []LineItem
	Series      int
	Number      int64
	Environment Environment

	AccessKey   string
	Status      DocumentStatus
	SignedXML   []byte
	Protocol    string
	IssuedAt    *time.Time
	CancelledAt *time.Time
	LastError   string
	CreatedAt   time.Time

	// CorrectionSeq is the highest accepted correction sequence, 0 if none
	CorrectionSeq int
}

// NewDocument creates a DRAFT document for the given order data
func NewDocument(emitter, recipient Party, items []LineItem, series int, env Environment) *FiscalDocument {
	return &FiscalDocument{
		ID:          uuid.New(),
		Emitter:     emitter,
		Recipient:   recipient,
		Items:       items,
		Series:      series,
		Environment: env,
		Status:      StatusDraft,
		CreatedAt:   time.Now().UTC(),
	}
}

// CanIssue reports whether the document holds everything an ISSUED
// record must carry
func (d *FiscalDocument) CanIssue() bool {
	return d.AccessKey != "" && d.Protocol != "" && len(d.SignedXML) > 0
}
