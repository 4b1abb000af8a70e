package assembler

import (
	"github.com/beevik/etree"
	"github.com/shopspring/decimal"

	"github.com/rezonia/nfe-engine/internal/fiscalmath"
	"github.com/rezonia/nfe-engine/internal/model"
	"github.com/rezonia/nfe-engine/internal/tax"
)

// The ICMS block takes exactly one of several mutually exclusive
// sub-shapes keyed by the regime code. Regular-regime CST codes and
// Simples Nacional CSOSN codes live in different code spaces with
// different shapes; an unknown code is a validation failure, never a
// best-effort guess.

func buildICMS(imposto *etree.Element, ri tax.ResolvedItem) error {
	icms := imposto.CreateElement("ICMS")
	if model.IsSimplesCode(ri.ICMSCode) {
		return buildICMSSimples(icms, ri)
	}
	return buildICMSRegular(icms, ri)
}

func buildICMSRegular(icms *etree.Element, ri tax.ResolvedItem) error {
	switch ri.ICMSCode {
	case "00": // fully taxed
		g := icms.CreateElement("ICMS00")
		g.CreateElement("orig").SetText(ri.Origin)
		g.CreateElement("CST").SetText(ri.ICMSCode)
		g.CreateElement("modBC").SetText("3")
		g.CreateElement("vBC").SetText(fiscalmath.FormatAmount(ri.ICMSBase))
		g.CreateElement("pICMS").SetText(fiscalmath.FormatRate(ri.ICMSRate))
		g.CreateElement("vICMS").SetText(fiscalmath.FormatAmount(ri.ICMSValue))
	case "20": // taxed with reduced base
		g := icms.CreateElement("ICMS20")
		g.CreateElement("orig").SetText(ri.Origin)
		g.CreateElement("CST").SetText(ri.ICMSCode)
		g.CreateElement("modBC").SetText("3")
		g.CreateElement("pRedBC").SetText(fiscalmath.FormatRate(ri.ICMSBaseReduction))
		g.CreateElement("vBC").SetText(fiscalmath.FormatAmount(ri.ICMSBase))
		g.CreateElement("pICMS").SetText(fiscalmath.FormatRate(ri.ICMSRate))
		g.CreateElement("vICMS").SetText(fiscalmath.FormatAmount(ri.ICMSValue))
	case "40", "41", "50": // exempt / not taxed / suspended
		g := icms.CreateElement("ICMS40")
		g.CreateElement("orig").SetText(ri.Origin)
		g.CreateElement("CST").SetText(ri.ICMSCode)
	case "51": // deferred
		g := icms.CreateElement("ICMS51")
		g.CreateElement("orig").SetText(ri.Origin)
		g.CreateElement("CST").SetText(ri.ICMSCode)
		g.CreateElement("vICMSOp").SetText(fiscalmath.FormatAmount(ri.ICMSValue))
		g.CreateElement("pDif").SetText("100.0000")
		g.CreateElement("vICMSDif").SetText(fiscalmath.FormatAmount(ri.ICMSValue))
		g.CreateElement("vICMS").SetText("0.00")
	case "60": // charged earlier by substitution
		g := icms.CreateElement("ICMS60")
		g.CreateElement("orig").SetText(ri.Origin)
		g.CreateElement("CST").SetText(ri.ICMSCode)
	default:
		return model.NewValidationError("icms.cst", ri.ICMSCode, "unsupported ICMS regime code")
	}
	return nil
}

func buildICMSSimples(icms *etree.Element, ri tax.ResolvedItem) error {
	switch ri.ICMSCode {
	case "101": // with credit allowance
		g := icms.CreateElement("ICMSSN101")
		g.CreateElement("orig").SetText(ri.Origin)
		g.CreateElement("CSOSN").SetText(ri.ICMSCode)
		g.CreateElement("pCredSN").SetText(fiscalmath.FormatRate(ri.ICMSRate))
		g.CreateElement("vCredICMSSN").SetText(fiscalmath.FormatAmount(ri.ICMSValue))
	case "102", "103", "300", "400": // no credit
		g := icms.CreateElement("ICMSSN102")
		g.CreateElement("orig").SetText(ri.Origin)
		g.CreateElement("CSOSN").SetText(ri.ICMSCode)
	case "500": // substitution charged earlier
		g := icms.CreateElement("ICMSSN500")
		g.CreateElement("orig").SetText(ri.Origin)
		g.CreateElement("CSOSN").SetText(ri.ICMSCode)
	case "900": // other
		g := icms.CreateElement("ICMSSN900")
		g.CreateElement("orig").SetText(ri.Origin)
		g.CreateElement("CSOSN").SetText(ri.ICMSCode)
		g.CreateElement("modBC").SetText("3")
		g.CreateElement("vBC").SetText(fiscalmath.FormatAmount(ri.ICMSBase))
		g.CreateElement("pICMS").SetText(fiscalmath.FormatRate(ri.ICMSRate))
		g.CreateElement("vICMS").SetText(fiscalmath.FormatAmount(ri.ICMSValue))
	default:
		return model.NewValidationError("icms.csosn", ri.ICMSCode, "unsupported CSOSN regime code")
	}
	return nil
}

func buildPIS(imposto *etree.Element, ri tax.ResolvedItem) error {
	pis := imposto.CreateElement("PIS")
	return buildPISCOFINSGroup(pis, "PIS", ri.PISCode, ri, ri.PISRate, ri.PISValue)
}

func buildCOFINS(imposto *etree.Element, ri tax.ResolvedItem) error {
	cofins := imposto.CreateElement("COFINS")
	return buildPISCOFINSGroup(cofins, "COFINS", ri.COFINSCode, ri, ri.COFINSRate, ri.COFINSValue)
}

func buildPISCOFINSGroup(parent *etree.Element, name, code string, ri tax.ResolvedItem, rate, value decimal.Decimal) error {
	switch code {
	case "01", "02": // taxed on value
		g := parent.CreateElement(name + "Aliq")
		g.CreateElement("CST").SetText(code)
		g.CreateElement("vBC").SetText(fiscalmath.FormatAmount(ri.Total))
		g.CreateElement("p" + name).SetText(fiscalmath.FormatRate(rate))
		g.CreateElement("v" + name).SetText(fiscalmath.FormatAmount(value))
	case "04", "05", "06", "07", "08", "09": // not taxed
		g := parent.CreateElement(name + "NT")
		g.CreateElement("CST").SetText(code)
	case "49", "99": // other operations
		g := parent.CreateElement(name + "Outr")
		g.CreateElement("CST").SetText(code)
		g.CreateElement("vBC").SetText(fiscalmath.FormatAmount(ri.Total))
		g.CreateElement("p" + name).SetText(fiscalmath.FormatRate(rate))
		g.CreateElement("v" + name).SetText(fiscalmath.FormatAmount(value))
	default:
		return model.NewValidationError(name+".cst", code, "unsupported "+name+" regime code")
	}
	return nil
}
