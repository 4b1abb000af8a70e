// Package assembler builds the canonical NF-e layout 4.00 document
// tree from order data and a tax resolution. Assembly is pure: it
// performs no I/O and no cryptographic work, and fails with a
// ValidationError before anything downstream runs.
package assembler

import (
	"fmt"
	"strings"
	"time"

	"github.com/beevik/etree"

	"github.com/rezonia/nfe-engine/internal/fiscalmath"
	"github.com/rezonia/nfe-engine/internal/model"
	"github.com/rezonia/nfe-engine/internal/tax"
)

// NFeNamespace is the authority's document namespace
const NFeNamespace = "http://www.portalfiscal.inf.br/nfe"

// SchemaVersion is the document layout version
const SchemaVersion = "4.00"

// TimestampLayout is the authority's timestamp format: ISO-8601 with a
// fixed UTC offset and no fractional seconds
const TimestampLayout = "2006-01-02T15:04:05-07:00"

// Assembler builds fiscal document trees
type Assembler struct{}

// New creates a new assembler
func New() *Assembler {
	return &Assembler{}
}

// Input carries everything the assembler needs
type Input struct {
	Document   *model.FiscalDocument
	Resolution *tax.Resolution
	IssuedAt   time.Time
}

// Build assembles the document tree. The returned document's root is
// <NFe> with a single <infNFe> child carrying the access key as its
// Id attribute.
func (a *Assembler) Build(in Input) (*etree.Document, error) {
	doc := in.Document
	if doc.AccessKey == "" || len(doc.AccessKey) != 44 {
		return nil, model.NewValidationError("accessKey", doc.AccessKey, "access key must be 44 digits before assembly")
	}
	if len(in.Resolution.Items) == 0 {
		return nil, model.NewValidationError("items", nil, "document has no line items")
	}
	ufCode, ok := model.UFCode(doc.Emitter.Address.UF)
	if !ok {
		return nil, model.NewValidationError("emitter.uf", doc.Emitter.Address.UF, "unresolved jurisdiction numeric code")
	}
	if doc.Emitter.Address.CityCode == "" {
		return nil, model.NewValidationError("emitter.cityCode", nil, "missing municipality code")
	}
	stamp, err := FormatTimestamp(in.IssuedAt)
	if err != nil {
		return nil, err
	}

	tree := etree.NewDocument()
	nfe := tree.CreateElement("NFe")
	nfe.CreateAttr("xmlns", NFeNamespace)

	inf := nfe.CreateElement("infNFe")
	inf.CreateAttr("versao", SchemaVersion)
	inf.CreateAttr("Id", "NFe"+doc.AccessKey)

	a.buildIde(inf, doc, in.Resolution, ufCode, stamp)
	a.buildEmit(inf, doc.Emitter)
	a.buildDest(inf, doc.Recipient)
	for i, item := range in.Resolution.Items {
		if err := a.buildDet(inf, i+1, item); err != nil {
			return nil, err
		}
	}
	a.buildTotal(inf, in.Resolution.Totals)

	transp := inf.CreateElement("transp")
	transp.CreateElement("modFrete").SetText("9")

	pag := inf.CreateElement("pag")
	detPag := pag.CreateElement("detPag")
	detPag.CreateElement("tPag").SetText("90")
	detPag.CreateElement("vPag").SetText(fiscalmath.FormatAmount(in.Resolution.Totals.Document))

	return tree, nil
}

func (a *Assembler) buildIde(inf *etree.Element, doc *model.FiscalDocument, res *tax.Resolution, ufCode int, stamp string) {
	ide := inf.CreateElement("ide")
	ide.CreateElement("cUF").SetText(fmt.Sprintf("%02d", ufCode))
	ide.CreateElement("cNF").SetText(doc.AccessKey[35:43])
	ide.CreateElement("natOp").SetText(res.Rule.Name)
	ide.CreateElement("mod").SetText("55")
	ide.CreateElement("serie").SetText(fmt.Sprintf("%d", doc.Series))
	ide.CreateElement("nNF").SetText(fmt.Sprintf("%d", doc.Number))
	ide.CreateElement("dhEmi").SetText(stamp)
	ide.CreateElement("tpNF").SetText("1")
	ide.CreateElement("idDest").SetText(idDest(res.Operation))
	ide.CreateElement("cMunFG").SetText(doc.Emitter.Address.CityCode)
	ide.CreateElement("tpImp").SetText("1")
	ide.CreateElement("tpEmis").SetText(doc.AccessKey[34:35])
	ide.CreateElement("cDV").SetText(doc.AccessKey[43:])
	ide.CreateElement("tpAmb").SetText(fmt.Sprintf("%d", doc.Environment))
	ide.CreateElement("finNFe").SetText("1")
	ide.CreateElement("indFinal").SetText("1")
	ide.CreateElement("indPres").SetText("2")
	ide.CreateElement("procEmi").SetText("0")
	ide.CreateElement("verProc").SetText("nfe-engine")
}

func (a *Assembler) buildEmit(inf *etree.Element, p model.Party) {
	emit := inf.CreateElement("emit")
	emit.CreateElement("CNPJ").SetText(p.TaxID)
	emit.CreateElement("xNome").SetText(p.LegalName)
	buildAddress(emit, "enderEmit", p.Address)
	emit.CreateElement("IE").SetText("ISENTO")
	emit.CreateElement("CRT").SetText("3")
}

func (a *Assembler) buildDest(inf *etree.Element, p model.Party) {
	dest := inf.CreateElement("dest")
	switch {
	case p.IsForeign():
		dest.CreateElement("idEstrangeiro").SetText(p.TaxID)
	case len(p.TaxID) == 11:
		dest.CreateElement("CPF").SetText(p.TaxID)
	default:
		dest.CreateElement("CNPJ").SetText(p.TaxID)
	}
	dest.CreateElement("xNome").SetText(p.LegalName)
	if !p.IsForeign() {
		buildAddress(dest, "enderDest", p.Address)
	}
	dest.CreateElement("indIEDest").SetText("9")
}

func (a *Assembler) buildDet(inf *etree.Element, n int, ri tax.ResolvedItem) error {
	det := inf.CreateElement("det")
	det.CreateAttr("nItem", fmt.Sprintf("%d", n))

	prod := det.CreateElement("prod")
	prod.CreateElement("cProd").SetText(ri.Item.ProductCode)
	prod.CreateElement("cEAN").SetText("SEM GTIN")
	prod.CreateElement("xProd").SetText(ri.Item.Description)
	prod.CreateElement("NCM").SetText(ri.Item.NCM)
	prod.CreateElement("CFOP").SetText(ri.CFOP)
	prod.CreateElement("uCom").SetText(ri.Item.Unit)
	prod.CreateElement("qCom").SetText(fiscalmath.FormatQuantity(ri.Item.Quantity))
	prod.CreateElement("vUnCom").SetText(fiscalmath.FormatUnitPrice(ri.Item.UnitPrice))
	prod.CreateElement("vProd").SetText(fiscalmath.FormatAmount(ri.Total))
	prod.CreateElement("cEANTrib").SetText("SEM GTIN")
	prod.CreateElement("uTrib").SetText(ri.Item.Unit)
	prod.CreateElement("qTrib").SetText(fiscalmath.FormatQuantity(ri.Item.Quantity))
	prod.CreateElement("vUnTrib").SetText(fiscalmath.FormatUnitPrice(ri.Item.UnitPrice))
	prod.CreateElement("indTot").SetText("1")

	imposto := det.CreateElement("imposto")
	if err := buildICMS(imposto, ri); err != nil {
		return err
	}
	if err := buildPIS(imposto, ri); err != nil {
		return err
	}
	if err := buildCOFINS(imposto, ri); err != nil {
		return err
	}
	return nil
}

func (a *Assembler) buildTotal(inf *etree.Element, t tax.Totals) {
	total := inf.CreateElement("total")
	icmsTot := total.CreateElement("ICMSTot")
	icmsTot.CreateElement("vBC").SetText(fiscalmath.FormatAmount(t.ICMSBase))
	icmsTot.CreateElement("vICMS").SetText(fiscalmath.FormatAmount(t.ICMS))
	icmsTot.CreateElement("vICMSDeson").SetText("0.00")
	icmsTot.CreateElement("vFCP").SetText("0.00")
	icmsTot.CreateElement("vBCST").SetText("0.00")
	icmsTot.CreateElement("vST").SetText("0.00")
	icmsTot.CreateElement("vProd").SetText(fiscalmath.FormatAmount(t.Goods))
	icmsTot.CreateElement("vFrete").SetText("0.00")
	icmsTot.CreateElement("vSeg").SetText("0.00")
	icmsTot.CreateElement("vDesc").SetText("0.00")
	icmsTot.CreateElement("vII").SetText("0.00")
	icmsTot.CreateElement("vIPI").SetText("0.00")
	icmsTot.CreateElement("vPIS").SetText(fiscalmath.FormatAmount(t.PIS))
	icmsTot.CreateElement("vCOFINS").SetText(fiscalmath.FormatAmount(t.COFINS))
	icmsTot.CreateElement("vOutro").SetText("0.00")
	icmsTot.CreateElement("vNF").SetText(fiscalmath.FormatAmount(t.Document))
}

func buildAddress(parent *etree.Element, tag string, addr model.Address) {
	el := parent.CreateElement(tag)
	el.CreateElement("xLgr").SetText(addr.Street)
	el.CreateElement("nro").SetText(addr.Number)
	el.CreateElement("xBairro").SetText(addr.District)
	el.CreateElement("cMun").SetText(addr.CityCode)
	el.CreateElement("xMun").SetText(addr.City)
	el.CreateElement("UF").SetText(addr.UF)
	el.CreateElement("CEP").SetText(addr.ZIP)
}

func idDest(op model.OperationType) string {
	switch op {
	case model.OperationInternal:
		return "1"
	case model.OperationInterstate:
		return "2"
	default:
		return "3"
	}
}

// FormatTimestamp renders t in the authority's layout and rejects any
// value that would carry fractional seconds
func FormatTimestamp(t time.Time) (string, error) {
	if t.IsZero() {
		return "", model.NewValidationError("timestamp", nil, "missing emission timestamp")
	}
	stamp := t.Format(TimestampLayout)
	if err := ValidateTimestamp(stamp); err != nil {
		return "", err
	}
	return stamp, nil
}

// ValidateTimestamp checks an already-rendered timestamp. A decimal
// point in the seconds field is a hard validation failure: the
// authority rejects fractional seconds and the document must not reach
// the signer in that shape.
func ValidateTimestamp(stamp string) error {
	if strings.Contains(stamp, ".") {
		return model.NewValidationError("timestamp", stamp, "fractional seconds are not allowed")
	}
	if _, err := time.Parse(TimestampLayout, stamp); err != nil {
		return model.NewValidationError("timestamp", stamp, "not a valid offset timestamp")
	}
	return nil
}
