package wizard

import (
	"errors"
	"fmt"

	"github.com/Dukorsa/CRP_EMERGENCIAL_GO/internal/core"
	appLogger "github.com/Dukorsa/CRP_EMERGENCIAL_GO/internal/core/logger"
)

// Porta é uma condição de avanço de um passo. Retorna nil quando a transição
// está liberada; caso contrário, um erro cuja mensagem é exibida ao usuário.
type Porta func(e *Estado) error

// Passo descreve um passo do wizard.
type Passo struct {
	Titulo string
	// Porta é avaliada em Avancar() a partir deste passo. nil = liberado.
	Porta Porta
}

// Notificador recebe os efeitos visuais das transições: exatamente um passo
// visível por vez, indicador sincronizado e avisos bloqueantes.
type Notificador interface {
	ExibirPasso(indice, total int)
	AvisoBloqueante(mensagem string)
}

// Persistencia é o destino dos snapshots salvos a cada transição.
type Persistencia interface {
	Salvar(e *Estado) error
}

// Controlador é a máquina de estados linear sobre os passos ordenados do
// wizard. Transições para frente passam pela Porta do passo atual; uma
// transição recusada nunca muta o índice.
type Controlador struct {
	passos  []Passo
	estado  *Estado
	persist Persistencia
	notif   Notificador
}

// NovoControlador cria o controlador sobre um estado (novo ou restaurado).
// O índice restaurado é ajustado para o intervalo válido.
func NovoControlador(passos []Passo, estado *Estado, persist Persistencia, notif Notificador) *Controlador {
	if len(passos) == 0 {
		appLogger.Fatalf("Controlador requer ao menos um passo")
	}
	if estado == nil {
		estado = NovoEstado()
	}
	if estado.PassoAtual < 0 {
		estado.PassoAtual = 0
	}
	if estado.PassoAtual >= len(passos) {
		estado.PassoAtual = len(passos) - 1
	}
	c := &Controlador{passos: passos, estado: estado, persist: persist, notif: notif}
	c.notificar()
	return c
}

// PassoAtual retorna o índice do passo visível.
func (c *Controlador) PassoAtual() int { return c.estado.PassoAtual }

// Estado expõe o estado subjacente (para leitura de campos e finalização).
func (c *Controlador) Estado() *Estado { return c.estado }

// UltimoPasso informa se o wizard está no passo final, de onde a finalização
// pode ser invocada.
func (c *Controlador) UltimoPasso() bool {
	return c.estado.PassoAtual == len(c.passos)-1
}

// Avancar tenta a transição para o próximo passo. Se a Porta do passo atual
// recusar, o índice não é mutado, o aviso bloqueante é exibido com a primeira
// violação e o erro é retornado envolvendo core.ErrPassoBloqueado.
func (c *Controlador) Avancar() error {
	passo := c.passos[c.estado.PassoAtual]
	if passo.Porta != nil {
		if err := passo.Porta(c.estado); err != nil {
			mensagem := err.Error()
			var ve *core.ValidationError
			if errors.As(err, &ve) {
				mensagem = ve.PrimeiraViolacao()
			}
			if c.notif != nil {
				c.notif.AvisoBloqueante(mensagem)
			}
			return fmt.Errorf("%w: %s", core.ErrPassoBloqueado, mensagem)
		}
	}

	if c.estado.PassoAtual < len(c.passos)-1 {
		c.estado.PassoAtual++
	}
	c.notificar()
	c.salvar()
	return nil
}

// Voltar retrocede um passo (piso em 0). Sempre permitido.
func (c *Controlador) Voltar() {
	if c.estado.PassoAtual > 0 {
		c.estado.PassoAtual--
	}
	c.notificar()
	c.salvar()
}

func (c *Controlador) notificar() {
	if c.notif != nil {
		c.notif.ExibirPasso(c.estado.PassoAtual, len(c.passos))
	}
}

func (c *Controlador) salvar() {
	if c.persist == nil {
		return
	}
	if err := c.persist.Salvar(c.estado); err != nil {
		// Falha de persistência não bloqueia a navegação; o próximo save
		// sobrescreve o snapshot inteiro.
		appLogger.Warnf("Falha ao salvar rascunho na transição de passo: %v", err)
	}
}

// PortaGescon libera o passo de identificação apenas após uma consulta
// Gescon bem-sucedida ter marcado a flag no estado.
func PortaGescon(e *Estado) error {
	if !e.Obter(ChaveGesconOK).ComoBool() {
		return core.NewValidationError(
			"Consulte o protocolo Gescon do ente antes de prosseguir.",
			map[string]string{ChaveCNPJEnte: "Consulta Gescon pendente para o CNPJ informado."})
	}
	return nil
}

// PassosPadrao monta a sequência de passos do formulário de CRP Emergencial.
// portaFase valida o conjunto de regras da fase selecionada (ver internal/fases)
// e é injetada aqui para manter a tabela de regras fora do controlador.
func PassosPadrao(portaFase Porta) []Passo {
	return []Passo{
		{Titulo: "Identificação do Ente", Porta: PortaGescon},
		{Titulo: "Representante Legal"},
		{Titulo: "Fase do Programa", Porta: portaFase},
		{Titulo: "Declarações e Conclusão"},
	}
}
