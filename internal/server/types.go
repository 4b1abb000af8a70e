package server

import (
	"github.com/shopspring/decimal"

	"github.com/rezonia/nfe-engine/internal/model"
)

// IssueRequest is the order data to fiscalize
type IssueRequest struct {
	Emitter   PartyRequest      `json:"emitter" binding:"required"`
	Recipient PartyRequest      `json:"recipient" binding:"required"`
	Items     []LineItemRequest `json:"items" binding:"required,min=1"`
	Series    int               `json:"series" binding:"required"`
	Live      bool              `json:"live"`
}

// PartyRequest carries one party of the operation
type PartyRequest struct {
	TaxID     string `json:"tax_id" binding:"required"`
	LegalName string `json:"legal_name" binding:"required"`
	Street    string `json:"street"`
	Number    string `json:"number"`
	District  string `json:"district"`
	City      string `json:"city"`
	CityCode  string `json:"city_code"`
	UF        string `json:"uf"`
	ZIP       string `json:"zip"`
}

// LineItemRequest carries one product line. Tax fields are optional
// per-item overrides.
type LineItemRequest struct {
	ProductCode string `json:"product_code" binding:"required"`
	Description string `json:"description" binding:"required"`
	NCM         string `json:"ncm"`
	Unit        string `json:"unit"`
	Quantity    string `json:"quantity" binding:"required"`
	UnitPrice   string `json:"unit_price" binding:"required"`

	Origin            *string `json:"origin,omitempty"`
	CFOP              *string `json:"cfop,omitempty"`
	ICMSCode          *string `json:"icms_code,omitempty"`
	ICMSRate          *string `json:"icms_rate,omitempty"`
	ICMSBaseReduction *string `json:"icms_base_reduction,omitempty"`
	PISCode           *string `json:"pis_code,omitempty"`
	PISRate           *string `json:"pis_rate,omitempty"`
	COFINSCode        *string `json:"cofins_code,omitempty"`
	COFINSRate        *string `json:"cofins_rate,omitempty"`
}

// CancelRequest carries the cancellation justification
type CancelRequest struct {
	Justification string `json:"justification" binding:"required"`
}

// CorrectRequest carries the free-form correction text
type CorrectRequest struct {
	Text string `json:"text" binding:"required"`
}

// IssueResponse is returned on successful issuance
type IssueResponse struct {
	ID        string `json:"id"`
	AccessKey string `json:"access_key"`
	Protocol  string `json:"protocol"`
	Status    string `json:"status"`
	SignedXML string `json:"signed_xml"`
}

// EventResponse is returned on successful cancellation or correction
type EventResponse struct {
	Protocol string `json:"protocol"`
	Sequence int    `json:"sequence,omitempty"`
}

// DocumentResponse exposes a persisted document record
type DocumentResponse struct {
	ID        string `json:"id"`
	AccessKey string `json:"access_key"`
	Status    string `json:"status"`
	Protocol  string `json:"protocol"`
	SignedXML string `json:"signed_xml"`
	LastError string `json:"last_error,omitempty"`
}

// ErrorResponse carries the taxonomy kind alongside the message
type ErrorResponse struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"status_code,omitempty"`
}

// ToDocument converts the request into a DRAFT document
func (r IssueRequest) ToDocument() (*model.FiscalDocument, error) {
	env := model.EnvironmentTest
	if r.Live {
		env = model.EnvironmentLive
	}

	items := make([]model.LineItem, 0, len(r.Items))
	for i, it := range r.Items {
		qty, err := decimal.NewFromString(it.Quantity)
		if err != nil {
			return nil, model.NewValidationError("items.quantity", it.Quantity, "not a decimal")
		}
		price, err := decimal.NewFromString(it.UnitPrice)
		if err != nil {
			return nil, model.NewValidationError("items.unit_price", it.UnitPrice, "not a decimal")
		}
		item := model.LineItem{
			Number:      i + 1,
			ProductCode: it.ProductCode,
			Description: it.Description,
			NCM:         it.NCM,
			Unit:        it.Unit,
			Quantity:    qty,
			UnitPrice:   price,
			Origin:      it.Origin,
			CFOP:        it.CFOP,
			ICMSCode:    it.ICMSCode,
			PISCode:     it.PISCode,
			COFINSCode:  it.COFINSCode,
		}
		if item.ICMSRate, err = parseRate("items.icms_rate", it.ICMSRate); err != nil {
			return nil, err
		}
		if item.ICMSBaseReduction, err = parseRate("items.icms_base_reduction", it.ICMSBaseReduction); err != nil {
			return nil, err
		}
		if item.PISRate, err = parseRate("items.pis_rate", it.PISRate); err != nil {
			return nil, err
		}
		if item.COFINSRate, err = parseRate("items.cofins_rate", it.COFINSRate); err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	return model.NewDocument(r.Emitter.toParty(), r.Recipient.toParty(), items, r.Series, env), nil
}

func parseRate(field string, s *string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	rate, err := decimal.NewFromString(*s)
	if err != nil {
		return nil, model.NewValidationError(field, *s, "not a decimal")
	}
	return &rate, nil
}

func (p PartyRequest) toParty() model.Party {
	return model.Party{
		TaxID:     p.TaxID,
		LegalName: p.LegalName,
		Address: model.Address{
			Street:   p.Street,
			Number:   p.Number,
			District: p.District,
			City:     p.City,
			CityCode: p.CityCode,
			UF:       p.UF,
			ZIP:      p.ZIP,
		},
	}
}
