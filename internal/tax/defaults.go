package tax

import (
	"github.com/shopspring/decimal"

	"github.com/rezonia/nfe-engine/internal/model"
)

// Built-in fallback rules per operation type, used when no active rule
// of the classification exists. This table is authoritative for
// fallback defaults; resolutions built from it carry UsedFallback so
// the operator can be warned about a misconfigured rule set.
var defaultRules = map[model.OperationType]model.TaxRule{
	model.OperationInternal: {
		Name:       "default-internal",
		Operation:  model.OperationInternal,
		Origin:     "0",
		CFOP:       "5102",
		ICMSCode:   "00",
		ICMSRate:   decimal.NewFromInt(18),
		PISCode:    "01",
		PISRate:    decimal.RequireFromString("1.65"),
		COFINSCode: "01",
		COFINSRate: decimal.RequireFromString("7.6"),
		Active:     true,
	},
	model.OperationInterstate: {
		Name:       "default-interstate",
		Operation:  model.OperationInterstate,
		Origin:     "0",
		CFOP:       "6102",
		ICMSCode:   "00",
		ICMSRate:   decimal.NewFromInt(12),
		PISCode:    "01",
		PISRate:    decimal.RequireFromString("1.65"),
		COFINSCode: "01",
		COFINSRate: decimal.RequireFromString("7.6"),
		Active:     true,
	},
	model.OperationExport: {
		Name:       "default-export",
		Operation:  model.OperationExport,
		Origin:     "0",
		CFOP:       "7102",
		ICMSCode:   "41",
		ICMSRate:   decimal.Zero,
		PISCode:    "08",
		PISRate:    decimal.Zero,
		COFINSCode: "08",
		COFINSRate: decimal.Zero,
		Active:     true,
	},
}

// DefaultRule returns the built-in fallback rule for an operation type
func DefaultRule(op model.OperationType) model.TaxRule {
	return defaultRules[op]
}
