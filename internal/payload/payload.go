// Package payload monta o objeto plano canônico enviado ao backend de
// validação e ao renderizador de documento.
//
// A montagem é um pipeline de transformações componíveis (base -> derivados ->
// aliases -> coerções -> carimbos) em vez de remendos em tempo de execução:
// cada estágio lê os valores vivos do formulário e escreve chaves no payload,
// sem efeitos colaterais fora dele.
package payload

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Dukorsa/CRP_EMERGENCIAL_GO/internal/codec"
	"github.com/Dukorsa/CRP_EMERGENCIAL_GO/internal/fases"
	"github.com/Dukorsa/CRP_EMERGENCIAL_GO/internal/wizard"
)

// Payload é o objeto plano final. Valores são string, []string ou bool.
type Payload map[string]interface{}

// Transformador é um estágio do pipeline: lê os valores do formulário e
// escreve/ajusta chaves do payload.
type Transformador func(p Payload, vs wizard.Valores)

// Construtor monta o payload canônico a partir dos valores vivos do
// formulário. O relógio e o gerador de token são injetáveis para teste.
type Construtor struct {
	agora           func() time.Time
	novoToken       func() string
	transformadores []Transformador
}

// Opcao configura o Construtor.
type Opcao func(c *Construtor)

// ComRelogio substitui a fonte de tempo dos carimbos de geração.
func ComRelogio(agora func() time.Time) Opcao {
	return func(c *Construtor) { c.agora = agora }
}

// ComGeradorDeToken substitui o gerador de chave de idempotência.
func ComGeradorDeToken(gerar func() string) Opcao {
	return func(c *Construtor) { c.novoToken = gerar }
}

// ComTransformadorExtra anexa um estágio ao final do pipeline padrão.
func ComTransformadorExtra(t Transformador) Opcao {
	return func(c *Construtor) { c.transformadores = append(c.transformadores, t) }
}

// NovoConstrutor cria o construtor com o pipeline padrão.
func NovoConstrutor(opcoes ...Opcao) *Construtor {
	c := &Construtor{
		agora:     time.Now,
		novoToken: uuid.NewString,
	}
	c.transformadores = []Transformador{
		transformarBase,
		transformarDerivados,
		transformarAliases,
		transformarCoercoes,
	}
	for _, op := range opcoes {
		op(c)
	}
	return c
}

// NovoToken gera uma nova chave de idempotência com o gerador do construtor.
func (c *Construtor) NovoToken() string {
	return c.novoToken()
}

// Construir executa o pipeline e carimba os campos gerados. token é a chave
// de idempotência pendente da sessão; quando vazia, uma nova é gerada.
// Retorna o payload e o token efetivamente anexado.
func (c *Construtor) Construir(vs wizard.Valores, token string) (Payload, string) {
	p := make(Payload, len(vs)+8)
	for _, t := range c.transformadores {
		t(p, vs)
	}

	if token == "" {
		token = c.novoToken()
	}
	p[wizard.ChaveIdempotencia] = token
	carimbarGeracao(p, c.agora())

	return p, token
}

// --- Estágios do pipeline ---

// transformarBase copia todos os campos canônicos na sua forma natural.
func transformarBase(p Payload, vs wizard.Valores) {
	for chave, v := range vs {
		switch {
		case wizard.CampoMulti(chave):
			p[chave] = v.ComoLista()
		case v.Tipo() == wizard.TipoBool:
			p[chave] = v.ComoBool()
		case v.Tipo() == wizard.TipoLista:
			p[chave] = v.ComoLista()
		default:
			p[chave] = v.ComoTexto()
		}
	}
}

// transformarDerivados calcula os campos computados: documentos em dígitos
// canônicos, esfera resolvida e fase ativa.
func transformarDerivados(p Payload, vs wizard.Valores) {
	if cnpj := vs.Obter(wizard.ChaveCNPJEnte); !cnpj.Vazio() {
		p[wizard.ChaveCNPJEnte] = codec.DigitsOnly(cnpj.ComoTexto())
	}
	if cpf := vs.Obter(wizard.ChaveCPFRep); !cpf.Vazio() {
		p[wizard.ChaveCPFRep] = codec.DigitsOnly(cpf.ComoTexto())
	}
	if tel := vs.Obter(wizard.ChaveTelefoneEnte); !tel.Vazio() {
		p[wizard.ChaveTelefoneEnte] = codec.MaskTelefone(tel.ComoTexto())
	}
	if tel := vs.Obter(wizard.ChaveTelefoneRep); !tel.Vazio() {
		p[wizard.ChaveTelefoneRep] = codec.MaskTelefone(tel.ComoTexto())
	}

	if esfera := resolverEsfera(vs); esfera != "" {
		p[wizard.ChaveEsfera] = esfera
	}

	if fase := fases.ResolverFase(vs); fase != "" {
		p[wizard.ChaveFasePrograma] = fase
	}
}

// resolverEsfera reduz os dois checkboxes mutuamente exclusivos a um único
// enum. Uma seleção escalar explícita de ESFERA tem precedência.
func resolverEsfera(vs wizard.Valores) string {
	if v := vs.Obter(wizard.ChaveEsfera); !v.Vazio() && v.Tipo() == wizard.TipoTexto {
		return v.ComoTexto()
	}
	municipal := vs.Obter(wizard.ChaveEsferaMunicipal).ComoBool()
	estadual := vs.Obter(wizard.ChaveEsferaEstadual).ComoBool()
	switch {
	case municipal && !estadual:
		return "Municipal"
	case estadual && !municipal:
		return "Estadual"
	default:
		return ""
	}
}

// aliasesEmissao declara as chaves históricas sob as quais um campo canônico
// também é emitido. A duplicação é compatibilidade intencional com
// consumidores antigos do payload, não redundância a eliminar.
var aliasesEmissao = map[string][]string{
	wizard.ChaveCNPJEnte:     {"CNPJ"},
	wizard.ChaveEnte:         {"NOME_ENTE"},
	wizard.ChaveEmailEnte:    {"EMAIL"},
	wizard.ChaveTelefoneEnte: {"TELEFONE"},
	wizard.ChaveFasePrograma: {"FASE"},
}

// transformarAliases emite cada campo multi-valor sob a chave canônica, a
// variante com sufixo "[]" e a variante "_TEXTO" juntada, e replica os campos
// escalares sob seus nomes históricos.
func transformarAliases(p Payload, vs wizard.Valores) {
	// As chaves multi-valor são coletadas antes de emitir: inserir durante o
	// range sobre p faria as variantes recém-criadas ("K[]") serem revisitadas
	// e gerarem variantes de variantes ("K[][]").
	multi := make([]string, 0, len(p))
	for chave, valor := range p {
		if _, ok := valor.([]string); ok && wizard.CampoMulti(chave) {
			multi = append(multi, chave)
		}
	}
	for _, chave := range multi {
		lista := p[chave].([]string)
		p[chave+wizard.SufixoLista] = lista
		p[chave+"_TEXTO"] = strings.Join(lista, "; ")
	}
	for canonica, legadas := range aliasesEmissao {
		valor, ok := p[canonica]
		if !ok {
			continue
		}
		for _, legada := range legadas {
			p[legada] = valor
		}
	}
}

// camposSomenteTexto declara campos que endpoints de esquema estreito exigem
// como string: listas são juntadas com "; ".
var camposSomenteTexto = map[string]bool{
	wizard.ChaveObservacoes:   true,
	wizard.ChaveF45Documentos: true,
	wizard.ChaveF43DescPlano:  true,
}

// camposListaProvavel declara campos que os mesmos endpoints exigem como
// array: escalares são divididos por vírgula (string vazia vira array vazio).
var camposListaProvavel = map[string]bool{
	wizard.ChaveF43Lista:     true,
	wizard.ChaveF42Criterios: true,
	wizard.ChaveF43Criterios: true,
	wizard.ChaveF43Incluir:   true,
	wizard.ChaveF44Criterios: true,
	wizard.ChaveF46Criterios: true,
}

// transformarCoercoes aplica o passo de coerção para endpoints com esquema
// mais estreito que o payload canônico.
func transformarCoercoes(p Payload, vs wizard.Valores) {
	for chave := range camposSomenteTexto {
		if lista, ok := p[chave].([]string); ok {
			p[chave] = strings.Join(lista, "; ")
		}
	}
	for chave := range camposListaProvavel {
		valor, ok := p[chave]
		if !ok {
			continue
		}
		if texto, ok := valor.(string); ok {
			p[chave] = dividirLista(texto)
		}
	}
}

// dividirLista converte um escalar em lista: vazio vira lista vazia; itens
// separados por vírgula são aparados.
func dividirLista(texto string) []string {
	if strings.TrimSpace(texto) == "" {
		return []string{}
	}
	partes := strings.Split(texto, ",")
	itens := make([]string, 0, len(partes))
	for _, parte := range partes {
		if parte = strings.TrimSpace(parte); parte != "" {
			itens = append(itens, parte)
		}
	}
	return itens
}

// fusoGeracao é o fuso fixo dos carimbos de geração do documento.
var fusoGeracao = carregarFuso()

func carregarFuso() *time.Location {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		// Sem tzdata no ambiente: usa o offset fixo de Brasília.
		return time.FixedZone("-03", -3*60*60)
	}
	return loc
}

// carimbarGeracao grava os campos de data/hora de geração no fuso fixo.
func carimbarGeracao(p Payload, agora time.Time) {
	local := agora.In(fusoGeracao)
	p[wizard.ChaveDataGeracao] = local.Format("02/01/2006")
	p[wizard.ChaveHoraGeracao] = local.Format("15:04:05")
	p[wizard.ChaveAnoGeracao] = local.Format("2006")
	p[wizard.ChaveMesGeracao] = local.Format("01")
}
