package sefaz

// The authority's status taxonomy is a closed set. Acceptance is
// table-driven: exactly two codes mean accepted (batch authorized,
// event registered and linked); every other code is a rejection whose
// code and reason surface verbatim.

// Accepted status codes
const (
	StatusAuthorized      = 100 // Autorizado o uso da NF-e
	StatusEventRegistered = 135 // Evento registrado e vinculado a NF-e
)

var acceptedCodes = map[int]bool{
	StatusAuthorized:      true,
	StatusEventRegistered: true,
}

// Known status codes and their canonical reasons
var statusReasons = map[int]string{
	100: "Autorizado o uso da NF-e",
	101: "Cancelamento de NF-e homologado",
	102: "Inutilizacao de numero homologado",
	103: "Lote recebido com sucesso",
	104: "Lote processado",
	105: "Lote em processamento",
	110: "Uso Denegado",
	135: "Evento registrado e vinculado a NF-e",
	136: "Evento registrado mas nao vinculado a NF-e",
	204: "Rejeicao: Duplicidade de NF-e",
	217: "Rejeicao: NF-e nao consta na base de dados da SEFAZ",
	225: "Rejeicao: Falha no Schema XML da NF-e",
	301: "Uso Denegado: Irregularidade fiscal do emitente",
	302: "Uso Denegado: Irregularidade fiscal do destinatario",
	539: "Rejeicao: Duplicidade de NF-e com diferenca na Chave de Acesso",
	573: "Rejeicao: Duplicidade de Evento",
	613: "Rejeicao: Chave de Acesso difere da existente em BD",
	678: "Rejeicao: NF-e difere da consultada",
}

// Accepted reports whether a status code means the request was
// accepted by the authority
func Accepted(code int) bool {
	return acceptedCodes[code]
}

// ReasonFor returns the canonical reason for a known status code
func ReasonFor(code int) (string, bool) {
	reason, ok := statusReasons[code]
	return reason, ok
}
