package events_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/nfe-engine/internal/events"
	"github.com/rezonia/nfe-engine/internal/model"
)

var issuedAt = time.Date(2026, 8, 14, 10, 30, 0, 0, time.FixedZone("BRT", -3*3600))

const accessKey = "21260812345678000195550010000001231000000427"

func issuedDocument() *model.FiscalDocument {
	at := issuedAt
	return &model.FiscalDocument{
		Emitter: model.Party{
			TaxID:   "12345678000195",
			Address: model.Address{UF: "MA", CityCode: "2111300"},
		},
		Environment: model.EnvironmentTest,
		AccessKey:   accessKey,
		Status:      model.StatusIssued,
		Protocol:    "135210000000001",
		IssuedAt:    &at,
		SignedXML:   []byte("<NFe/>"),
	}
}

const validJustification = "pedido emitido com dados incorretos"

func TestBuildCancellation(t *testing.T) {
	doc := issuedDocument()
	tree, event, err := events.NewBuilder().BuildCancellation(doc, validJustification, issuedAt.Add(time.Hour))
	require.NoError(t, err)

	assert.Equal(t, model.EventCancellation, event.Type)
	assert.Equal(t, 1, event.Sequence)
	assert.Equal(t, accessKey, event.AccessKey)

	inf := tree.FindElement("//infEvento")
	require.NotNil(t, inf)
	assert.Equal(t, "ID110111"+accessKey+"01", inf.SelectAttrValue("Id", ""))
	assert.Equal(t, "110111", inf.SelectElement("tpEvento").Text())
	assert.Equal(t, "21", inf.SelectElement("cOrgao").Text())
	assert.Equal(t, accessKey, inf.SelectElement("chNFe").Text())

	det := inf.SelectElement("detEvento")
	require.NotNil(t, det)
	assert.Equal(t, "Cancelamento", det.SelectElement("descEvento").Text())
	assert.Equal(t, doc.Protocol, det.SelectElement("nProt").Text())
	assert.Equal(t, validJustification, det.SelectElement("xJust").Text())
}

func TestBuildCancellation_WindowBoundary(t *testing.T) {
	doc := issuedDocument()
	b := events.NewBuilder()

	// one second before the window closes
	_, _, err := b.BuildCancellation(doc, validJustification, issuedAt.Add(24*time.Hour-time.Second))
	assert.NoError(t, err)

	// exactly at the boundary still passes; strictly after does not
	_, _, err = b.BuildCancellation(doc, validJustification, issuedAt.Add(24*time.Hour))
	assert.NoError(t, err)

	_, _, err = b.BuildCancellation(doc, validJustification, issuedAt.Add(24*time.Hour+time.Second))
	var werr *model.TimeWindowError
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, issuedAt.Add(24*time.Hour), werr.Deadline)
}

func TestBuildCancellation_JustificationBounds(t *testing.T) {
	doc := issuedDocument()
	b := events.NewBuilder()
	now := issuedAt.Add(time.Hour)

	_, _, err := b.BuildCancellation(doc, strings.Repeat("x", 14), now)
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr, "14 characters is too short")

	_, _, err = b.BuildCancellation(doc, strings.Repeat("x", 15), now)
	assert.NoError(t, err)

	_, _, err = b.BuildCancellation(doc, strings.Repeat("x", 255), now)
	assert.NoError(t, err)

	_, _, err = b.BuildCancellation(doc, strings.Repeat("x", 256), now)
	require.ErrorAs(t, err, &verr, "256 characters is too long")

	// bounds are characters, not bytes: 255 accented characters fit
	_, _, err = b.BuildCancellation(doc, strings.Repeat("ç", 255), now)
	assert.NoError(t, err)

	_, _, err = b.BuildCancellation(doc, strings.Repeat("ç", 256), now)
	require.ErrorAs(t, err, &verr)
}

func TestBuildCancellation_RequiresIssuedWithProtocol(t *testing.T) {
	b := events.NewBuilder()
	now := issuedAt.Add(time.Hour)
	var verr *model.ValidationError

	doc := issuedDocument()
	doc.Status = model.StatusDraft
	_, _, err := b.BuildCancellation(doc, validJustification, now)
	require.ErrorAs(t, err, &verr)

	doc = issuedDocument()
	doc.Protocol = ""
	_, _, err = b.BuildCancellation(doc, validJustification, now)
	require.ErrorAs(t, err, &verr)
}

func TestBuildCorrection(t *testing.T) {
	doc := issuedDocument()
	tree, event, err := events.NewBuilder().BuildCorrection(doc, "endereco do destinatario corrigido", 1, issuedAt.Add(time.Hour))
	require.NoError(t, err)

	assert.Equal(t, model.EventCorrection, event.Type)
	assert.Equal(t, 1, event.Sequence)

	inf := tree.FindElement("//infEvento")
	require.NotNil(t, inf)
	assert.Equal(t, "ID110110"+accessKey+"01", inf.SelectAttrValue("Id", ""))
	assert.Equal(t, "110110", inf.SelectElement("tpEvento").Text())

	det := inf.SelectElement("detEvento")
	require.NotNil(t, det)
	assert.Equal(t, "Carta de Correcao", det.SelectElement("descEvento").Text())
	assert.Equal(t, model.CorrectionDisclaimer, det.SelectElement("xCondUso").Text())
}

func TestBuildCorrection_SequenceMustAdvanceByOne(t *testing.T) {
	b := events.NewBuilder()
	now := issuedAt.Add(time.Hour)

	doc := issuedDocument()
	_, _, err := b.BuildCorrection(doc, "primeira correcao", 1, now)
	require.NoError(t, err)

	// the authority accepted sequence 1
	doc.CorrectionSeq = 1

	_, _, err = b.BuildCorrection(doc, "segunda correcao", 2, now)
	require.NoError(t, err)

	// reusing an accepted sequence conflicts
	_, _, err = b.BuildCorrection(doc, "repetida", 1, now)
	var serr *model.SequenceConflictError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, 1, serr.Got)
	assert.Equal(t, 2, serr.Want)

	// so does skipping ahead
	_, _, err = b.BuildCorrection(doc, "pulada", 3, now)
	require.ErrorAs(t, err, &serr)
}

func TestBuildCorrection_RequiresText(t *testing.T) {
	doc := issuedDocument()
	_, _, err := events.NewBuilder().BuildCorrection(doc, "", 1, issuedAt.Add(time.Hour))
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestBuildTree_TimestampHasNoFractionalSeconds(t *testing.T) {
	doc := issuedDocument()
	now := issuedAt.Add(time.Hour).Add(500 * time.Millisecond)

	tree, _, err := events.NewBuilder().BuildCancellation(doc, validJustification, now)
	require.NoError(t, err)

	stamp := tree.FindElement("//dhEvento").Text()
	assert.NotContains(t, stamp, ".")
	assert.Equal(t, "2026-08-14T11:30:00-03:00", stamp)
}
