package tax_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/nfe-engine/internal/model"
	"github.com/rezonia/nfe-engine/internal/tax"
)

func party(uf string) model.Party {
	return model.Party{
		TaxID:     "12345678000195",
		LegalName: "ACME LTDA",
		Address:   model.Address{UF: uf, CityCode: "2111300"},
	}
}

func item(qty, price string) model.LineItem {
	return model.LineItem{
		Number:    1,
		Quantity:  decimal.RequireFromString(qty),
		UnitPrice: decimal.RequireFromString(price),
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		emitter  string
		receiver string
		want     model.OperationType
	}{
		{"same jurisdiction", "MA", "MA", model.OperationInternal},
		{"different jurisdictions", "MA", "SP", model.OperationInterstate},
		{"foreign sentinel", "MA", "EX", model.OperationExport},
		{"absent recipient", "MA", "", model.OperationExport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tax.Classify(tt.emitter, tt.receiver))
		})
	}
}

func TestSelectRule_DestinationBeatsWildcard(t *testing.T) {
	rules := []model.TaxRule{
		{Name: "wildcard", Operation: model.OperationInterstate, Active: true},
		{Name: "to-sp", Operation: model.OperationInterstate, DestinationUF: "SP", Active: true},
	}
	rule, fallback := tax.SelectRule(model.OperationInterstate, "SP", rules)
	assert.Equal(t, "to-sp", rule.Name)
	assert.False(t, fallback)
}

func TestSelectRule_WildcardWhenNoSpecificMatch(t *testing.T) {
	rules := []model.TaxRule{
		{Name: "wildcard-internal", Operation: model.OperationInternal, Active: true},
		{Name: "to-sp", Operation: model.OperationInternal, DestinationUF: "SP", Active: true},
	}
	rule, fallback := tax.SelectRule(model.OperationInternal, "MA", rules)
	assert.Equal(t, "wildcard-internal", rule.Name)
	assert.False(t, fallback)
}

func TestSelectRule_IgnoresInactiveAndOtherOperations(t *testing.T) {
	rules := []model.TaxRule{
		{Name: "inactive", Operation: model.OperationInternal, Active: false},
		{Name: "interstate", Operation: model.OperationInterstate, Active: true},
	}
	rule, fallback := tax.SelectRule(model.OperationInternal, "MA", rules)
	assert.True(t, fallback)
	assert.Equal(t, tax.DefaultRule(model.OperationInternal).Name, rule.Name)
}

func TestResolve_FallbackIsFlagged(t *testing.T) {
	res := tax.Resolve(party("MA"), party("MA"), []model.LineItem{item("1", "100")}, nil)
	assert.Equal(t, model.OperationInternal, res.Operation)
	assert.True(t, res.UsedFallback)
}

func TestResolve_ItemOverrideWinsPerField(t *testing.T) {
	rules := []model.TaxRule{{
		Name:       "internal",
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
	}}

	override := decimal.NewFromInt(12)
	li := item("2", "50")
	li.ICMSRate = &override // rate overridden, regime code inherited

	res := tax.Resolve(party("MA"), party("MA"), []model.LineItem{li}, rules)
	require.Len(t, res.Items, 1)
	ri := res.Items[0]

	assert.Equal(t, "00", ri.ICMSCode, "code inherited from rule")
	assert.True(t, ri.ICMSRate.Equal(override), "rate overridden by item")
	assert.True(t, ri.ICMSValue.Equal(decimal.NewFromInt(12)), "100 * 12%% = 12, got %s", ri.ICMSValue)
}

func TestResolve_ExemptRegimeContributesZero(t *testing.T) {
	rules := []model.TaxRule{{
		Name:       "export",
		Operation:  model.OperationExport,
		ICMSCode:   "41",
		ICMSRate:   decimal.NewFromInt(18),
		PISCode:    "08",
		COFINSCode: "08",
		Active:     true,
	}}

	res := tax.Resolve(party("MA"), party("EX"), []model.LineItem{item("10", "100")}, rules)
	assert.Equal(t, model.OperationExport, res.Operation)
	assert.True(t, res.Totals.ICMS.IsZero(), "exempt ICMS total must be zero, got %s", res.Totals.ICMS)
	assert.True(t, res.Totals.PIS.IsZero())
	assert.True(t, res.Totals.COFINS.IsZero())
	assert.False(t, res.Totals.ICMS.IsNegative())
	assert.True(t, res.Totals.Goods.Equal(decimal.NewFromInt(1000)))
}

func TestResolve_ReducedBase(t *testing.T) {
	rules := []model.TaxRule{{
		Name:              "reduced",
		Operation:         model.OperationInternal,
		ICMSCode:          "20",
		ICMSRate:          decimal.NewFromInt(18),
		ICMSBaseReduction: decimal.NewFromInt(50),
		PISCode:           "01",
		PISRate:           decimal.RequireFromString("1.65"),
		COFINSCode:        "01",
		COFINSRate:        decimal.RequireFromString("7.6"),
		Active:            true,
	}}

	res := tax.Resolve(party("MA"), party("MA"), []model.LineItem{item("1", "200")}, rules)
	ri := res.Items[0]
	assert.True(t, ri.ICMSBase.Equal(decimal.NewFromInt(100)), "base reduced 50%%: got %s", ri.ICMSBase)
	assert.True(t, ri.ICMSValue.Equal(decimal.NewFromInt(18)), "18%% of 100: got %s", ri.ICMSValue)
}

func TestResolve_TotalsEqualLineSums(t *testing.T) {
	items := []model.LineItem{
		item("3", "19.90"),
		item("1.5", "7.333"),
		item("12", "0.99"),
	}
	res := tax.Resolve(party("MA"), party("SP"), items, nil)

	sum := decimal.Zero
	for _, ri := range res.Items {
		sum = sum.Add(ri.Total)
	}
	diff := res.Totals.Document.Sub(sum).Abs()
	assert.True(t, diff.LessThanOrEqual(decimal.RequireFromString("0.01")),
		"document total %s differs from line sum %s", res.Totals.Document, sum)
}
