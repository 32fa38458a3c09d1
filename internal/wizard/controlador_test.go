package wizard

import (
	"errors"
	"testing"
	"time"

	"github.com/Dukorsa/CRP_EMERGENCIAL_GO/internal/core"
)

// notificadorSpy registra os efeitos visuais das transições.
type notificadorSpy struct {
	passoVisivel int
	total        int
	avisos       []string
}

func (n *notificadorSpy) ExibirPasso(indice, total int) {
	n.passoVisivel = indice
	n.total = total
}

func (n *notificadorSpy) AvisoBloqueante(mensagem string) {
	n.avisos = append(n.avisos, mensagem)
}

// persistenciaSpy conta os saves disparados pelas transições.
type persistenciaSpy struct {
	saves int
	falha error
}

func (p *persistenciaSpy) Salvar(e *Estado) error {
	p.saves++
	return p.falha
}

func passosDeTeste(portaFase Porta) []Passo {
	return PassosPadrao(portaFase)
}

func TestAvancarBloqueadoPelaPortaGescon(t *testing.T) {
	notif := &notificadorSpy{}
	persist := &persistenciaSpy{}
	c := NovoControlador(passosDeTeste(nil), NovoEstado(), persist, notif)

	err := c.Avancar()
	if !errors.Is(err, core.ErrPassoBloqueado) {
		t.Fatalf("avanço sem consulta Gescon deveria bloquear, err = %v", err)
	}
	if c.PassoAtual() != 0 {
		t.Errorf("transição recusada não pode mutar o índice, passo = %d", c.PassoAtual())
	}
	if len(notif.avisos) != 1 {
		t.Errorf("deveria exibir exatamente um aviso bloqueante, exibidos %d", len(notif.avisos))
	}
	if persist.saves != 0 {
		t.Errorf("transição recusada não deveria salvar, saves = %d", persist.saves)
	}
}

func TestAvancarAposGescon(t *testing.T) {
	notif := &notificadorSpy{}
	persist := &persistenciaSpy{}
	estado := NovoEstado()
	estado.Definir(ChaveGesconOK, NovoBool(true))
	c := NovoControlador(passosDeTeste(nil), estado, persist, notif)

	if err := c.Avancar(); err != nil {
		t.Fatalf("avanço liberado falhou: %v", err)
	}
	if c.PassoAtual() != 1 {
		t.Errorf("passo = %d, esperado 1", c.PassoAtual())
	}
	if notif.passoVisivel != 1 || notif.total != 4 {
		t.Errorf("indicador dessincronizado: visível %d de %d", notif.passoVisivel, notif.total)
	}
	if persist.saves != 1 {
		t.Errorf("cada transição deve salvar o rascunho, saves = %d", persist.saves)
	}
}

func TestPortaDeFaseBloqueiaAvanco(t *testing.T) {
	notif := &notificadorSpy{}
	portaFase := func(e *Estado) error {
		return core.NewValidationError("Selecione a fase.", map[string]string{ChaveFasePrograma: "Selecione a fase."})
	}
	estado := NovoEstado()
	estado.PassoAtual = 2
	c := NovoControlador(passosDeTeste(portaFase), estado, nil, notif)

	err := c.Avancar()
	if !errors.Is(err, core.ErrPassoBloqueado) {
		t.Fatalf("passo de fase com validação reprovada deveria bloquear, err = %v", err)
	}
	if c.PassoAtual() != 2 {
		t.Errorf("passo = %d, esperado 2", c.PassoAtual())
	}
	if len(notif.avisos) == 0 || notif.avisos[0] != "Selecione a fase." {
		t.Errorf("aviso bloqueante incorreto: %v", notif.avisos)
	}
}

func TestAvancarCapadoNoUltimoPasso(t *testing.T) {
	estado := NovoEstado()
	estado.PassoAtual = 3
	c := NovoControlador(passosDeTeste(nil), estado, nil, nil)

	if !c.UltimoPasso() {
		t.Fatal("deveria estar no último passo")
	}
	if err := c.Avancar(); err != nil {
		t.Fatalf("avanço no último passo não deveria falhar: %v", err)
	}
	if c.PassoAtual() != 3 {
		t.Errorf("índice deveria ficar capado em 3, obtido %d", c.PassoAtual())
	}
}

func TestVoltarSempre(t *testing.T) {
	persist := &persistenciaSpy{}
	estado := NovoEstado()
	estado.PassoAtual = 1
	c := NovoControlador(passosDeTeste(nil), estado, persist, nil)

	c.Voltar()
	if c.PassoAtual() != 0 {
		t.Errorf("passo = %d, esperado 0", c.PassoAtual())
	}
	// Piso em zero.
	c.Voltar()
	if c.PassoAtual() != 0 {
		t.Errorf("passo = %d, esperado 0 (piso)", c.PassoAtual())
	}
	if persist.saves != 2 {
		t.Errorf("Voltar também salva, saves = %d", persist.saves)
	}
}

func TestIndiceRestauradoComClamp(t *testing.T) {
	estado := NovoEstado()
	estado.PassoAtual = 99 // snapshot corrompido ou de versão com mais passos
	c := NovoControlador(passosDeTeste(nil), estado, nil, nil)
	if c.PassoAtual() != 3 {
		t.Errorf("índice fora do intervalo deveria ser ajustado para 3, obtido %d", c.PassoAtual())
	}
}

func TestEstadoExpirado(t *testing.T) {
	e := NovoEstado()
	agora := time.Now()
	e.SalvoEm = agora.Add(-31 * time.Minute)
	if !e.Expirado(30*time.Minute, agora) {
		t.Error("estado salvo há 31min deveria estar expirado com TTL de 30min")
	}
	e.SalvoEm = agora.Add(-29 * time.Minute)
	if e.Expirado(30*time.Minute, agora) {
		t.Error("estado salvo há 29min não deveria estar expirado")
	}
}

func TestDesserializarEstadoCorrompido(t *testing.T) {
	if e := DesserializarEstado("{nao-e-json"); e != nil {
		t.Error("snapshot corrompido deveria degradar para nil (sem estado salvo)")
	}
	if e := DesserializarEstado(""); e != nil {
		t.Error("snapshot vazio deveria degradar para nil")
	}
}

func TestEstadoSerializarIdaEVolta(t *testing.T) {
	e := NovoEstado()
	e.PassoAtual = 2
	e.Definir(ChaveUF, NovoTexto("SP"))
	e.Definir(ChaveF42Criterios, NovaLista("c1"))
	e.SalvoEm = time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)

	snapshot, err := e.Serializar()
	if err != nil {
		t.Fatalf("serializar: %v", err)
	}
	volta := DesserializarEstado(snapshot)
	if volta == nil {
		t.Fatal("desserialização retornou nil")
	}
	if volta.PassoAtual != 2 {
		t.Errorf("passo = %d", volta.PassoAtual)
	}
	if got := volta.Obter(ChaveUF).ComoTexto(); got != "SP" {
		t.Errorf("UF = %q", got)
	}
	if !volta.SalvoEm.Equal(e.SalvoEm) {
		t.Errorf("SalvoEm = %v", volta.SalvoEm)
	}
}
