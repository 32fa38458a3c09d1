// Package fases implementa o conjunto de regras de campos obrigatórios de
// cada fase do Programa de Regularidade (4.1 a 4.6).
//
// Exatamente uma fase está ativa por solicitação e somente o conjunto de
// regras dela é avaliado. O gate interativo do wizard usa Validar (curto-
// circuito na primeira violação); a checagem autoritativa do servidor usa
// ValidarTudo (enumera todas as violações). Ambos leem a mesma tabela, então
// cliente e servidor não podem divergir.
package fases

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/Dukorsa/CRP_EMERGENCIAL_GO/internal/core"
	"github.com/Dukorsa/CRP_EMERGENCIAL_GO/internal/wizard"
)

// Códigos das fases do Programa de Regularidade.
const (
	Fase41 = "4.1"
	Fase42 = "4.2"
	Fase43 = "4.3"
	Fase44 = "4.4"
	Fase45 = "4.5"
	Fase46 = "4.6"
)

// Conhecida informa se o código corresponde a uma fase do programa.
func Conhecida(fase string) bool {
	_, ok := tabelaRegras[fase]
	return ok
}

// ResolverFase determina a fase ativa da solicitação: a seleção escalar
// FASE_PROGRAMA quando presente; senão, o maior código do modelo legado
// multi-seleção FASES. Retorna "" quando nenhuma fase foi selecionada.
func ResolverFase(vs wizard.Valores) string {
	if v := vs.Obter(wizard.ChaveFasePrograma); !v.Vazio() {
		return strings.TrimSpace(v.ComoTexto())
	}
	marcadas := vs.Obter(wizard.ChaveFasesLegado).ComoLista()
	maior := ""
	for _, fase := range marcadas {
		fase = strings.TrimSpace(fase)
		if Conhecida(fase) && fase > maior {
			maior = fase
		}
	}
	return maior
}

// regra é um predicado de obrigatoriedade de uma fase, com o campo apontado
// na violação e a mensagem legível exibida ao usuário.
type regra struct {
	campo    string
	mensagem string
	violada  func(vs wizard.Valores) bool
}

func campoVazio(chave string) func(vs wizard.Valores) bool {
	return func(vs wizard.Valores) bool { return vs.Obter(chave).Vazio() }
}

// todosVazios retorna true quando nenhum dos campos alternativos foi preenchido.
func todosVazios(chaves ...string) func(vs wizard.Valores) bool {
	return func(vs wizard.Valores) bool {
		for _, chave := range chaves {
			if !vs.Obter(chave).Vazio() {
				return false
			}
		}
		return true
	}
}

// removedorAcentos decompõe em NFD, descarta marcas combinantes e recompõe.
var removedorAcentos = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// dobrar normaliza para comparação insensível a caixa e acentos.
func dobrar(s string) string {
	saida, _, err := transform.String(removedorAcentos, s)
	if err != nil {
		saida = s
	}
	return strings.ToLower(saida)
}

// FinalidadeOrganizacaoRPPS reconhece a opção de finalidade "critério de
// organização/estruturação do RPPS" da fase 4.4, tolerando variações de
// caixa e acentuação vindas de planilhas e versões antigas do formulário.
func FinalidadeOrganizacaoRPPS(finalidade string) bool {
	dobrada := dobrar(finalidade)
	if !strings.Contains(dobrada, "rpps") {
		return false
	}
	return strings.Contains(dobrada, "organizac") || strings.Contains(dobrada, "estrutur")
}

var tabelaRegras = map[string][]regra{
	Fase41: {
		{
			campo:    wizard.ChaveF41Opcao,
			mensagem: "Selecione a opção da fase 4.1.",
			violada:  campoVazio(wizard.ChaveF41Opcao),
		},
	},
	Fase42: {
		{
			campo:    wizard.ChaveF42Criterios,
			mensagem: "Marque ao menos um critério da fase 4.2.",
			violada:  campoVazio(wizard.ChaveF42Criterios),
		},
	},
	Fase43: {
		{
			campo:    wizard.ChaveF43Criterios,
			mensagem: "Preencha ao menos um dos campos da fase 4.3 (critérios, plano, descrição, inclusões ou justificativa).",
			violada: todosVazios(
				wizard.ChaveF43Criterios,
				wizard.ChaveF43Plano,
				wizard.ChaveF43PlanoSecundario,
				wizard.ChaveF43DescPlano,
				wizard.ChaveF43Incluir,
				wizard.ChaveF43Justificativa,
			),
		},
	},
	Fase44: {
		{
			campo:    wizard.ChaveF44Criterios,
			mensagem: "A finalidade de organização do RPPS exige ao menos um critério marcado.",
			violada: func(vs wizard.Valores) bool {
				if !FinalidadeOrganizacaoRPPS(vs.Obter(wizard.ChaveF44Finalidade).ComoTexto()) {
					return false
				}
				return vs.Obter(wizard.ChaveF44Criterios).Vazio()
			},
		},
	},
	Fase45: {
		{
			campo:    wizard.ChaveF45Confirmacao,
			mensagem: "Preencha ao menos um dos campos da fase 4.5 (confirmação, documentos, justificativa ou resultado da execução).",
			violada: todosVazios(
				wizard.ChaveF45Confirmacao,
				wizard.ChaveF45Documentos,
				wizard.ChaveF45Justificativa,
				wizard.ChaveF45Resultado,
			),
		},
	},
	Fase46: {
		{
			campo:    wizard.ChaveF46Criterios,
			mensagem: "Marque ao menos um critério da fase 4.6.",
			violada:  campoVazio(wizard.ChaveF46Criterios),
		},
		{
			campo:    wizard.ChaveF46Programa,
			mensagem: "Informe o programa da fase 4.6.",
			violada:  campoVazio(wizard.ChaveF46Programa),
		},
		{
			campo:    wizard.ChaveF46Porte,
			mensagem: "Informe o porte/faixa da fase 4.6.",
			violada:  campoVazio(wizard.ChaveF46Porte),
		},
	},
}

// Validar avalia as regras da fase com curto-circuito: a primeira regra
// violada interrompe e vira a mensagem do erro. Usado pelo gate interativo.
func Validar(fase string, vs wizard.Valores) error {
	regras, ok := tabelaRegras[fase]
	if !ok {
		return core.NewValidationError(
			"Selecione a fase do Programa de Regularidade.",
			map[string]string{wizard.ChaveFasePrograma: "Fase do programa não selecionada ou desconhecida."})
	}
	for _, r := range regras {
		if r.violada(vs) {
			return core.NewValidationError(r.mensagem, map[string]string{r.campo: r.mensagem})
		}
	}
	return nil
}

// ValidarTudo avalia todas as regras da fase em uma passada e retorna o mapa
// campo -> mensagem de todas as violações. Usado pela checagem autoritativa
// do servidor; mapa vazio significa aceita.
func ValidarTudo(fase string, vs wizard.Valores) map[string]string {
	violacoes := make(map[string]string)
	regras, ok := tabelaRegras[fase]
	if !ok {
		violacoes[wizard.ChaveFasePrograma] = "Fase do programa não selecionada ou desconhecida."
		return violacoes
	}
	for _, r := range regras {
		if r.violada(vs) {
			violacoes[r.campo] = r.mensagem
		}
	}
	return violacoes
}

// PortaDaFase é a porta do passo "Fase do Programa": resolve a fase ativa do
// estado e aplica as regras dela com curto-circuito.
func PortaDaFase(e *wizard.Estado) error {
	return Validar(ResolverFase(e.Valores), e.Valores)
}

// Fases retorna os códigos conhecidos em ordem crescente.
func Fases() []string {
	codigos := make([]string, 0, len(tabelaRegras))
	for codigo := range tabelaRegras {
		codigos = append(codigos, codigo)
	}
	sort.Strings(codigos)
	return codigos
}
