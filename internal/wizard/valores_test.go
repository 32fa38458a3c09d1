package wizard

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestCanonicalKey(t *testing.T) {
	casos := []struct {
		entrada string
		querido string
	}{
		{"F42_CRITERIOS[]", ChaveF42Criterios},
		{"CRITERIOS_42", ChaveF42Criterios},
		{"CNPJ", ChaveCNPJEnte},
		{"  UF ", ChaveUF},
		{"CAMPO_NOVO", "CAMPO_NOVO"},
	}
	for _, c := range casos {
		if got := CanonicalKey(c.entrada); got != c.querido {
			t.Errorf("CanonicalKey(%q) = %q, esperado %q", c.entrada, got, c.querido)
		}
	}
}

func TestDefinirMesclaAliases(t *testing.T) {
	t.Run("listas concatenadas", func(t *testing.T) {
		vs := Valores{}
		vs.Definir("F42_CRITERIOS", NovaLista("a"))
		vs.Definir("F42_CRITERIOS[]", NovaLista("b", "c"))
		got := vs.Obter(ChaveF42Criterios).ComoLista()
		if !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
			t.Errorf("lista mesclada = %v", got)
		}
	})

	t.Run("escalares conflitantes promovem a lista", func(t *testing.T) {
		vs := Valores{}
		vs.Definir("EMAIL", NovoTexto("a@ente.gov.br"))
		vs.Definir("EMAIL_ENTE", NovoTexto("b@ente.gov.br"))
		v := vs.Obter(ChaveEmailEnte)
		if v.Tipo() != TipoLista {
			t.Fatalf("conflito de escalares deveria promover a lista, tipo = %v", v.Tipo())
		}
		if got := v.ComoLista(); !reflect.DeepEqual(got, []string{"a@ente.gov.br", "b@ente.gov.br"}) {
			t.Errorf("lista promovida = %v", got)
		}
	})

	t.Run("escalar duplicado nao vira lista", func(t *testing.T) {
		vs := Valores{}
		vs.Definir("UF", NovoTexto("SP"))
		vs.Definir("UF", NovoTexto("SP"))
		if v := vs.Obter(ChaveUF); v.Tipo() != TipoTexto || v.ComoTexto() != "SP" {
			t.Errorf("valor duplicado deveria permanecer escalar: %v", v)
		}
	})

	t.Run("vazio nao sobrescreve preenchido", func(t *testing.T) {
		vs := Valores{}
		vs.Definir("UF", NovoTexto("SP"))
		vs.Definir("UF", NovoTexto(""))
		if got := vs.Obter(ChaveUF).ComoTexto(); got != "SP" {
			t.Errorf("valor = %q, esperado SP", got)
		}
	})
}

func TestValorJSONIdaEVolta(t *testing.T) {
	vs := Valores{}
	vs.Definir(ChaveUF, NovoTexto("RS"))
	vs.Definir(ChaveF42Criterios, NovaLista("c1", "c2"))
	vs.Definir(ChaveF45Confirmacao, NovoBool(true))

	b, err := json.Marshal(vs)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var volta Valores
	if err := json.Unmarshal(b, &volta); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if got := volta.Obter(ChaveUF).ComoTexto(); got != "RS" {
		t.Errorf("UF = %q", got)
	}
	if got := volta.Obter(ChaveF42Criterios).ComoLista(); !reflect.DeepEqual(got, []string{"c1", "c2"}) {
		t.Errorf("criterios = %v", got)
	}
	if !volta.Obter(ChaveF45Confirmacao).ComoBool() {
		t.Error("confirmação deveria voltar como true")
	}
}

func TestValorDeInterfaceNumerico(t *testing.T) {
	// Números JSON chegam como float64 e viram texto (seriais de planilha).
	v := ValorDeInterface(float64(45927))
	if got := v.ComoTexto(); got != "45927" {
		t.Errorf("serial = %q", got)
	}
}

func TestCanonicalizar(t *testing.T) {
	bruto := map[string]interface{}{
		"CNPJ":            "11.222.333/0001-81",
		"F42_CRITERIOS[]": []interface{}{"a", "b"},
		"F45_CONFIRMACAO": true,
	}
	vs := Canonicalizar(bruto)
	if got := vs.Obter(ChaveCNPJEnte).ComoTexto(); got != "11.222.333/0001-81" {
		t.Errorf("CNPJ_ENTE = %q", got)
	}
	if got := vs.Obter(ChaveF42Criterios).ComoLista(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("F42_CRITERIOS = %v", got)
	}
	if !vs.Obter(ChaveF45Confirmacao).ComoBool() {
		t.Error("F45_CONFIRMACAO deveria ser true")
	}
}
