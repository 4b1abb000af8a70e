package sefaz

import (
	"fmt"
	"strconv"

	"github.com/beevik/etree"
)

const (
	soapNamespace = "http://www.w3.org/2003/05/soap-envelope"
	wsNamespace   = "http://www.portalfiscal.inf.br/nfe/wsdl/NFeAutorizacao4"
)

// WrapEnvelope wraps a signed payload in the authority's SOAP 1.2
// transport envelope
func WrapEnvelope(payload []byte) ([]byte, error) {
	inner := etree.NewDocument()
	if err := inner.ReadFromBytes(payload); err != nil {
		return nil, fmt.Errorf("parse payload for envelope: %w", err)
	}
	if inner.Root() == nil {
		return nil, fmt.Errorf("payload has no document element")
	}

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	env := doc.CreateElement("soap12:Envelope")
	env.CreateAttr("xmlns:soap12", soapNamespace)
	body := env.CreateElement("soap12:Body")
	msg := body.CreateElement("nfeDadosMsg")
	msg.CreateAttr("xmlns", wsNamespace)
	msg.AddChild(inner.Root().Copy())

	return doc.WriteToBytes()
}

// Receipt is the authority's parsed verdict on a submission
type Receipt struct {
	Code     int
	Reason   string
	Protocol string
}

// ParseResponse extracts status code, reason, and protocol number from
// a response envelope. Both the authorization response (infProt) and
// the event response (infEvento) shapes are handled.
func ParseResponse(body []byte) (*Receipt, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(body); err != nil {
		return nil, fmt.Errorf("parse response envelope: %w", err)
	}

	info := doc.FindElement("//infProt")
	if info == nil {
		info = doc.FindElement("//infEvento")
	}
	if info == nil {
		// No protocol block: the batch-level status carries the verdict
		info = doc.FindElement("//retEnviNFe")
	}
	if info == nil {
		return nil, fmt.Errorf("response has no protocol or status block")
	}

	statusEl := info.FindElement("cStat")
	if statusEl == nil {
		return nil, fmt.Errorf("response has no status code")
	}
	code, err := strconv.Atoi(statusEl.Text())
	if err != nil {
		return nil, fmt.Errorf("malformed status code %q", statusEl.Text())
	}

	reason := ""
	if el := info.FindElement("xMotivo"); el != nil {
		reason = el.Text()
	}
	if reason == "" {
		if canonical, ok := ReasonFor(code); ok {
			reason = canonical
		}
	}

	protocol := ""
	if el := info.FindElement("nProt"); el != nil {
		protocol = el.Text()
	}

	return &Receipt{Code: code, Reason: reason, Protocol: protocol}, nil
}
