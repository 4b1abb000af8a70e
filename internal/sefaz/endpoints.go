package sefaz

import "github.com/rezonia/nfe-engine/internal/model"

// Endpoint holds the per-service URLs of one regional authority
type Endpoint struct {
	Authorization string // NFeAutorizacao4
	Event         string // NFeRecepcaoEvento4
}

// Regional web-service endpoints by jurisdiction and environment.
// Jurisdictions that run their own infrastructure are listed;
// everyone else is served by the shared virtual endpoint (SVRS).
var endpoints = map[string]map[model.Environment]Endpoint{
	"SP": {
		model.EnvironmentLive: {
			Authorization: "https://nfe.fazenda.sp.gov.br/ws/nfeautorizacao4.asmx",
			Event:         "https://nfe.fazenda.sp.gov.br/ws/nferecepcaoevento4.asmx",
		},
		model.EnvironmentTest: {
			Authorization: "https://homologacao.nfe.fazenda.sp.gov.br/ws/nfeautorizacao4.asmx",
			Event:         "https://homologacao.nfe.fazenda.sp.gov.br/ws/nferecepcaoevento4.asmx",
		},
	},
	"MG": {
		model.EnvironmentLive: {
			Authorization: "https://nfe.fazenda.mg.gov.br/nfe2/services/NFeAutorizacao4",
			Event:         "https://nfe.fazenda.mg.gov.br/nfe2/services/NFeRecepcaoEvento4",
		},
		model.EnvironmentTest: {
			Authorization: "https://hnfe.fazenda.mg.gov.br/nfe2/services/NFeAutorizacao4",
			Event:         "https://hnfe.fazenda.mg.gov.br/nfe2/services/NFeRecepcaoEvento4",
		},
	},
	"PR": {
		model.EnvironmentLive: {
			Authorization: "https://nfe.sefa.pr.gov.br/nfe/NFeAutorizacao4",
			Event:         "https://nfe.sefa.pr.gov.br/nfe/NFeRecepcaoEvento4",
		},
		model.EnvironmentTest: {
			Authorization: "https://homologacao.nfe.sefa.pr.gov.br/nfe/NFeAutorizacao4",
			Event:         "https://homologacao.nfe.sefa.pr.gov.br/nfe/NFeRecepcaoEvento4",
		},
	},
	"RS": {
		model.EnvironmentLive: {
			Authorization: "https://nfe.sefazrs.rs.gov.br/ws/NfeAutorizacao/NFeAutorizacao4.asmx",
			Event:         "https://nfe.sefazrs.rs.gov.br/ws/recepcaoevento/recepcaoevento4.asmx",
		},
		model.EnvironmentTest: {
			Authorization: "https://nfe-homologacao.sefazrs.rs.gov.br/ws/NfeAutorizacao/NFeAutorizacao4.asmx",
			Event:         "https://nfe-homologacao.sefazrs.rs.gov.br/ws/recepcaoevento/recepcaoevento4.asmx",
		},
	},
}

// Shared virtual endpoint serving jurisdictions without dedicated
// infrastructure
var virtualEndpoint = map[model.Environment]Endpoint{
	model.EnvironmentLive: {
		Authorization: "https://nfe.svrs.rs.gov.br/ws/NfeAutorizacao/NFeAutorizacao4.asmx",
		Event:         "https://nfe.svrs.rs.gov.br/ws/recepcaoevento/recepcaoevento4.asmx",
	},
	model.EnvironmentTest: {
		Authorization: "https://nfe-homologacao.svrs.rs.gov.br/ws/NfeAutorizacao/NFeAutorizacao4.asmx",
		Event:         "https://nfe-homologacao.svrs.rs.gov.br/ws/recepcaoevento/recepcaoevento4.asmx",
	},
}

// ResolveEndpoint returns the endpoint for a jurisdiction and
// environment, falling back to the shared virtual endpoint
func ResolveEndpoint(uf string, env model.Environment) Endpoint {
	if byEnv, ok := endpoints[uf]; ok {
		if ep, ok := byEnv[env]; ok {
			return ep
		}
	}
	return virtualEndpoint[env]
}
