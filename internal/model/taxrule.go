package model

import "github.com/shopspring/decimal"

// OperationType classifies a fiscal operation by destination
type OperationType string

const (
	OperationInternal   OperationType = "internal"
	OperationInterstate OperationType = "interstate"
	OperationExport     OperationType = "export"
)

// TaxRule configures the tax treatment applied to an operation type.
// A rule with an empty DestinationUF is a wildcard for its operation
// type; a concrete DestinationUF makes it destination-specific.
type TaxRule struct {
	Name          string
	Operation     OperationType
	DestinationUF string

	Origin string // product origin code (0 national, 1..8 imported variants)
	CFOP   string // operation classification code

	ICMSCode          string
	ICMSRate          decimal.Decimal
	ICMSBaseReduction decimal.Decimal

	PISCode string
	PISRate decimal.Decimal

	COFINSCode string
	COFINSRate decimal.Decimal

	Active bool
}

// ICMS regime codes that carry no ICMS value (exempt, not taxed,
// suspended, previously charged by substitution)
var icmsExempt = map[string]bool{
	"40": true, "41": true, "50": true, "60": true,
}

// Simples Nacional CSOSN codes that carry no ICMS value
var csosnExempt = map[string]bool{
	"102": true, "103": true, "300": true, "400": true, "500": true,
}

// PIS/COFINS codes in the not-taxed band
var pisCofinsExempt = map[string]bool{
	"04": true, "05": true, "06": true, "07": true, "08": true, "09": true,
}

// ICMSCarriesValue reports whether the given ICMS/CSOSN code
// contributes to the ICMS total
func ICMSCarriesValue(code string) bool {
	return !icmsExempt[code] && !csosnExempt[code]
}

// PISCOFINSCarriesValue reports whether the given PIS/COFINS code
// contributes to that tax's total
func PISCOFINSCarriesValue(code string) bool {
	return !pisCofinsExempt[code]
}

// IsSimplesCode reports whether the code belongs to the CSOSN space
// used by the simplified small-business regime (3 digits) rather than
// the regular CST space (2 digits)
func IsSimplesCode(code string) bool {
	return len(code) == 3
}
