package wizard

import (
	"encoding/json"
	"fmt"
	"strings"
)

// TipoValor identifica a forma canônica de um valor de campo.
type TipoValor int

const (
	TipoVazio TipoValor = iota
	TipoTexto
	TipoLista
	TipoBool
)

// Valor é o valor de um campo do formulário: escalar, lista de seleções ou
// booleano. A forma é fixada na criação; os acessores Como* fazem as coerções
// de leitura usuais (lista de um item <-> escalar).
type Valor struct {
	tipo     TipoValor
	texto    string
	lista    []string
	booleano bool
}

// NovoTexto cria um valor escalar.
func NovoTexto(s string) Valor {
	return Valor{tipo: TipoTexto, texto: s}
}

// NovaLista cria um valor de lista (grupo de checkboxes).
func NovaLista(itens ...string) Valor {
	copia := make([]string, len(itens))
	copy(copia, itens)
	return Valor{tipo: TipoLista, lista: copia}
}

// NovoBool cria um valor booleano (checkbox de confirmação isolado).
func NovoBool(b bool) Valor {
	return Valor{tipo: TipoBool, booleano: b}
}

// Tipo retorna a forma canônica do valor.
func (v Valor) Tipo() TipoValor { return v.tipo }

// Vazio informa se o valor conta como "não preenchido" para validação:
// texto em branco, lista sem itens não vazios, booleano falso.
func (v Valor) Vazio() bool {
	switch v.tipo {
	case TipoTexto:
		return strings.TrimSpace(v.texto) == ""
	case TipoLista:
		for _, item := range v.lista {
			if strings.TrimSpace(item) != "" {
				return false
			}
		}
		return true
	case TipoBool:
		return !v.booleano
	default:
		return true
	}
}

// ComoTexto retorna a representação escalar do valor. Listas são juntadas
// com "; " (a mesma regra do coersor de payload para campos string-only).
func (v Valor) ComoTexto() string {
	switch v.tipo {
	case TipoTexto:
		return v.texto
	case TipoLista:
		return strings.Join(v.lista, "; ")
	case TipoBool:
		if v.booleano {
			return "true"
		}
		return "false"
	default:
		return ""
	}
}

// ComoLista retorna a representação em lista do valor. Escalares não vazios
// viram lista de um item; vazios viram lista vazia.
func (v Valor) ComoLista() []string {
	switch v.tipo {
	case TipoLista:
		copia := make([]string, len(v.lista))
		copy(copia, v.lista)
		return copia
	case TipoTexto:
		if strings.TrimSpace(v.texto) == "" {
			return []string{}
		}
		return []string{v.texto}
	case TipoBool:
		if v.booleano {
			return []string{"true"}
		}
		return []string{}
	default:
		return []string{}
	}
}

// ComoBool retorna a leitura booleana do valor.
func (v Valor) ComoBool() bool {
	switch v.tipo {
	case TipoBool:
		return v.booleano
	case TipoTexto:
		s := strings.ToLower(strings.TrimSpace(v.texto))
		return s == "true" || s == "sim" || s == "1" || s == "on"
	case TipoLista:
		return !v.Vazio()
	default:
		return false
	}
}

// MarshalJSON serializa o valor na sua forma subjacente (string, array ou bool),
// que é o formato que o snapshot persistido e o payload esperam.
func (v Valor) MarshalJSON() ([]byte, error) {
	switch v.tipo {
	case TipoLista:
		return json.Marshal(v.lista)
	case TipoBool:
		return json.Marshal(v.booleano)
	default:
		return json.Marshal(v.texto)
	}
}

// UnmarshalJSON reconstrói o valor detectando a forma do JSON de origem.
// Números são aceitos e normalizados para texto (seriais de planilha chegam
// assim de alguns consumidores). Formas desconhecidas degradam para vazio,
// nunca para erro: o load do rascunho não pode falhar por dado corrompido.
func (v *Valor) UnmarshalJSON(data []byte) error {
	var bruto interface{}
	if err := json.Unmarshal(data, &bruto); err != nil {
		*v = Valor{}
		return nil
	}
	*v = ValorDeInterface(bruto)
	return nil
}

// ValorDeInterface converte um valor JSON genérico (string, []interface{},
// bool, float64, nil) para Valor. Entradas de forma desconhecida degradam
// para vazio.
func ValorDeInterface(bruto interface{}) Valor {
	switch t := bruto.(type) {
	case nil:
		return Valor{}
	case string:
		return NovoTexto(t)
	case bool:
		return NovoBool(t)
	case float64:
		// json.Unmarshal entrega números como float64; seriais e códigos
		// numéricos são tratados como texto.
		if t == float64(int64(t)) {
			return NovoTexto(fmt.Sprintf("%d", int64(t)))
		}
		return NovoTexto(fmt.Sprintf("%v", t))
	case []interface{}:
		itens := make([]string, 0, len(t))
		for _, item := range t {
			itens = append(itens, ValorDeInterface(item).ComoTexto())
		}
		return NovaLista(itens...)
	case []string:
		return NovaLista(t...)
	default:
		return Valor{}
	}
}

// Valores é o mapa de campo canônico -> valor do formulário.
type Valores map[string]Valor

// Obter retorna o valor da chave (após canonicalização). Chave ausente
// retorna o valor vazio.
func (vs Valores) Obter(chave string) Valor {
	return vs[CanonicalKey(chave)]
}

// Definir grava o valor sob a chave canônica, aplicando a regra de merge de
// aliases: listas são concatenadas; um conflito entre escalares distintos
// promove o campo a lista.
func (vs Valores) Definir(chave string, v Valor) {
	canonica := CanonicalKey(chave)
	atual, existe := vs[canonica]
	if !existe || atual.Vazio() {
		vs[canonica] = v
		return
	}
	if v.Vazio() {
		return
	}

	if atual.Tipo() == TipoLista || v.Tipo() == TipoLista {
		vs[canonica] = NovaLista(append(atual.ComoLista(), v.ComoLista()...)...)
		return
	}
	if atual.ComoTexto() == v.ComoTexto() {
		return
	}
	// Escalares conflitantes: promove a lista.
	vs[canonica] = NovaLista(atual.ComoTexto(), v.ComoTexto())
}

// Canonicalizar constrói um Valores a partir de um mapa bruto de entrada
// (chaves possivelmente legadas/sufixadas, valores JSON genéricos).
func Canonicalizar(bruto map[string]interface{}) Valores {
	vs := make(Valores, len(bruto))
	for chave, valor := range bruto {
		vs.Definir(chave, ValorDeInterface(valor))
	}
	return vs
}
