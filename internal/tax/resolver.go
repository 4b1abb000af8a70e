// Package tax classifies fiscal operations and resolves the tax rule
// and effective per-item tax figures for a document.
package tax

import (
	"github.com/shopspring/decimal"

	"github.com/rezonia/nfe-engine/internal/fiscalmath"
	"github.com/rezonia/nfe-engine/internal/model"
)

// ResolvedItem is a line item with every tax field made concrete and
// its tax values computed
type ResolvedItem struct {
	Item model.LineItem

	Origin            string
	CFOP              string
	ICMSCode          string
	ICMSRate          decimal.Decimal
	ICMSBaseReduction decimal.Decimal
	PISCode           string
	PISRate           decimal.Decimal
	COFINSCode        string
	COFINSRate        decimal.Decimal

	Total       decimal.Decimal
	ICMSBase    decimal.Decimal
	ICMSValue   decimal.Decimal
	PISValue    decimal.Decimal
	COFINSValue decimal.Decimal
}

// Totals aggregates the document-level figures
type Totals struct {
	Goods    decimal.Decimal
	ICMSBase decimal.Decimal
	ICMS     decimal.Decimal
	PIS      decimal.Decimal
	COFINS   decimal.Decimal
	Document decimal.Decimal
}

// Resolution is the outcome of classifying an operation and applying
// the selected rule to each line item
type Resolution struct {
	Operation    model.OperationType
	Rule         model.TaxRule
	UsedFallback bool
	Items        []ResolvedItem
	Totals       Totals
}

// Classify determines the operation type from the two jurisdictions.
// Pure and deterministic: same UF is internal, a foreign sentinel or
// absent recipient UF is export, anything else is interstate.
func Classify(emitterUF, recipientUF string) model.OperationType {
	switch {
	case recipientUF == "" || recipientUF == model.ForeignUF:
		return model.OperationExport
	case emitterUF == recipientUF:
		return model.OperationInternal
	default:
		return model.OperationInterstate
	}
}

// SelectRule picks the applicable active rule for the classification:
// a destination-specific rule wins over a wildcard; when no rule of
// the classification exists the built-in default applies and the
// second return is true.
func SelectRule(op model.OperationType, recipientUF string, rules []model.TaxRule) (model.TaxRule, bool) {
	var wildcard *model.TaxRule
	for i := range rules {
		r := rules[i]
		if !r.Active || r.Operation != op {
			continue
		}
		if r.DestinationUF == recipientUF && recipientUF != "" {
			return r, false
		}
		if r.DestinationUF == "" && wildcard == nil {
			wildcard = &rules[i]
		}
	}
	if wildcard != nil {
		return *wildcard, false
	}
	return DefaultRule(op), true
}

// Resolve classifies the operation, selects a rule, and computes the
// effective tax fields and values for every line item plus the
// document totals. Exempt regime codes contribute zero to their tax
// total, never a negative value.
func Resolve(emitter, recipient model.Party, items []model.LineItem, rules []model.TaxRule) *Resolution {
	op := Classify(emitter.Address.UF, recipient.Address.UF)
	rule, fallback := SelectRule(op, recipient.Address.UF, rules)
	def := DefaultRule(op)

	res := &Resolution{
		Operation:    op,
		Rule:         rule,
		UsedFallback: fallback,
	}

	for _, item := range items {
		ri := resolveItem(item, rule, def)
		res.Totals.Goods = res.Totals.Goods.Add(ri.Total)
		res.Totals.ICMSBase = res.Totals.ICMSBase.Add(ri.ICMSBase)
		res.Totals.ICMS = res.Totals.ICMS.Add(ri.ICMSValue)
		res.Totals.PIS = res.Totals.PIS.Add(ri.PISValue)
		res.Totals.COFINS = res.Totals.COFINS.Add(ri.COFINSValue)
		res.Items = append(res.Items, ri)
	}
	res.Totals.Document = res.Totals.Goods
	return res
}

// resolveItem merges the three value sources independently per field:
// explicit item override, then rule, then hardcoded default.
func resolveItem(item model.LineItem, rule, def model.TaxRule) ResolvedItem {
	ri := ResolvedItem{
		Item:              item,
		Origin:            pickString(item.Origin, rule.Origin, def.Origin),
		CFOP:              pickString(item.CFOP, rule.CFOP, def.CFOP),
		ICMSCode:          pickString(item.ICMSCode, rule.ICMSCode, def.ICMSCode),
		ICMSRate:          pickDecimal(item.ICMSRate, rule.ICMSRate, def.ICMSRate),
		ICMSBaseReduction: pickDecimal(item.ICMSBaseReduction, rule.ICMSBaseReduction, def.ICMSBaseReduction),
		PISCode:           pickString(item.PISCode, rule.PISCode, def.PISCode),
		PISRate:           pickDecimal(item.PISRate, rule.PISRate, def.PISRate),
		COFINSCode:        pickString(item.COFINSCode, rule.COFINSCode, def.COFINSCode),
		COFINSRate:        pickDecimal(item.COFINSRate, rule.COFINSRate, def.COFINSRate),
	}

	ri.Total = item.GrossTotal()

	if model.ICMSCarriesValue(ri.ICMSCode) {
		base := ri.Total
		if ri.ICMSBaseReduction.IsPositive() {
			base = fiscalmath.ReduceBase(base, ri.ICMSBaseReduction)
		}
		ri.ICMSBase = base
		ri.ICMSValue = fiscalmath.ApplyRate(base, ri.ICMSRate)
	}
	if model.PISCOFINSCarriesValue(ri.PISCode) {
		ri.PISValue = fiscalmath.ApplyRate(ri.Total, ri.PISRate)
	}
	if model.PISCOFINSCarriesValue(ri.COFINSCode) {
		ri.COFINSValue = fiscalmath.ApplyRate(ri.Total, ri.COFINSRate)
	}
	return ri
}

func pickString(override *string, ruleVal, defVal string) string {
	if override != nil && *override != "" {
		return *override
	}
	if ruleVal != "" {
		return ruleVal
	}
	return defVal
}

func pickDecimal(override *decimal.Decimal, ruleVal, defVal decimal.Decimal) decimal.Decimal {
	if override != nil {
		return *override
	}
	if !ruleVal.IsZero() {
		return ruleVal
	}
	return defVal
}
