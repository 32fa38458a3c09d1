package wizard

import "strings"

// Chaves canônicas dos campos do formulário. Campos multi-valor (grupos de
// checkbox) usam o sufixo "[]" na camada de entrada; a canonicalização remove
// o sufixo e o emissor de aliases o reintroduz para consumidores legados.
const (
	// Passo 0 — Identificação do Ente
	ChaveUF           = "UF"
	ChaveEnte         = "ENTE"
	ChaveCNPJEnte     = "CNPJ_ENTE"
	ChaveEmailEnte    = "EMAIL_ENTE"
	ChaveTelefoneEnte = "TELEFONE_ENTE"
	ChaveEsfera       = "ESFERA"

	// Checkboxes mutuamente exclusivos de esfera (entrada bruta)
	ChaveEsferaMunicipal = "ESFERA_MUNICIPAL"
	ChaveEsferaEstadual  = "ESFERA_ESTADUAL"

	// Flag interna: consulta Gescon bem-sucedida libera o passo 0
	ChaveGesconOK        = "GESCON_OK"
	ChaveGesconProtocolo = "GESCON_PROTOCOLO"

	// Passo 1 — Representante Legal
	ChaveNomeRep     = "NOME_REP"
	ChaveCPFRep      = "CPF_REP"
	ChaveCargoRep    = "CARGO_REP"
	ChaveEmailRep    = "EMAIL_REP"
	ChaveTelefoneRep = "TELEFONE_REP"

	// Passo 2 — Fase do Programa de Regularidade
	ChaveFasePrograma = "FASE_PROGRAMA"
	// Modelo legado multi-seleção; resolvido para o maior código no payload
	ChaveFasesLegado = "FASES"

	// Fase 4.1
	ChaveF41Opcao = "F41_OPCAO"
	// Fase 4.2
	ChaveF42Criterios = "F42_CRITERIOS"
	// Fase 4.3
	ChaveF43Criterios       = "F43_CRITERIOS"
	ChaveF43Plano           = "F43_PLANO"
	ChaveF43PlanoSecundario = "F43_PLANO_SECUNDARIO"
	ChaveF43DescPlano       = "F43_DESC_PLANO"
	ChaveF43Incluir         = "F43_INCLUIR"
	ChaveF43Justificativa   = "F43_JUSTIFICATIVA"
	ChaveF43Lista           = "F43_LISTA"
	// Fase 4.4
	ChaveF44Finalidade = "F44_FINALIDADE"
	ChaveF44Criterios  = "F44_CRITERIOS"
	// Fase 4.5
	ChaveF45Confirmacao   = "F45_CONFIRMACAO"
	ChaveF45Documentos    = "F45_DOCUMENTOS"
	ChaveF45Justificativa = "F45_JUSTIFICATIVA"
	ChaveF45Resultado     = "F45_RESULTADO"
	// Fase 4.6
	ChaveF46Criterios = "F46_CRITERIOS"
	ChaveF46Programa  = "F46_PROGRAMA"
	ChaveF46Porte     = "F46_PORTE"

	// Passo 3 — Declarações e Conclusão
	ChaveDeclaracaoVeracidade = "DECLARACAO_VERACIDADE"
	ChaveObservacoes          = "OBSERVACOES"

	// Campos derivados/carimbados no payload final
	ChaveDataGeracao  = "DATA_GERACAO"
	ChaveHoraGeracao  = "HORA_GERACAO"
	ChaveAnoGeracao   = "ANO_GERACAO"
	ChaveMesGeracao   = "MES_GERACAO"
	ChaveIdempotencia = "CHAVE_IDEMPOTENCIA"
)

// SufixoLista marca semântica multi-valor em chaves de entrada ("F42_CRITERIOS[]").
const SufixoLista = "[]"

// aliasesLegados mapeia chaves históricas para a chave canônica. Quando mais
// de uma chave de origem resolve para a mesma canônica, os valores são
// mesclados (listas concatenadas, escalares promovidos a lista em conflito).
var aliasesLegados = map[string]string{
	"CNPJ":           ChaveCNPJEnte,
	"NOME_ENTE":      ChaveEnte,
	"EMAIL":          ChaveEmailEnte,
	"TELEFONE":       ChaveTelefoneEnte,
	"FASE":           ChaveFasePrograma,
	"FASES_MARCADAS": ChaveFasesLegado,
	"CRITERIOS_42":   ChaveF42Criterios,
	"CRITERIOS_44":   ChaveF44Criterios,
	"CRITERIOS_46":   ChaveF46Criterios,
	"JUSTIFICATIVA":  ChaveF43Justificativa,
}

// CanonicalKey resolve uma chave de entrada (possivelmente legada e/ou com o
// sufixo de lista) para sua forma canônica.
func CanonicalKey(chave string) string {
	chave = strings.TrimSpace(chave)
	chave = strings.TrimSuffix(chave, SufixoLista)
	if canonica, ok := aliasesLegados[chave]; ok {
		return canonica
	}
	return chave
}

// camposMulti declara os campos cuja semântica canônica é lista de valores.
var camposMulti = map[string]bool{
	ChaveFasesLegado:  true,
	ChaveF42Criterios: true,
	ChaveF43Criterios: true,
	ChaveF43Incluir:   true,
	ChaveF44Criterios: true,
	ChaveF46Criterios: true,
}

// CampoMulti informa se a chave canônica tem semântica multi-valor.
func CampoMulti(chave string) bool {
	return camposMulti[CanonicalKey(chave)]
}
