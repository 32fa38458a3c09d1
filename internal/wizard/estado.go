package wizard

import (
	"encoding/json"
	"time"
)

// Estado é o snapshot persistido do progresso do formulário.
//
// Ciclo de vida: criado na primeira interação; mutado a cada evento de campo
// e transição de passo; descartado na finalização bem-sucedida ou quando o
// TTL expira no load.
type Estado struct {
	// PassoAtual é o índice 0-based do passo visível. Invariante:
	// 0 <= PassoAtual < quantidade de passos (o controlador faz o clamp).
	PassoAtual int `json:"passo_atual"`
	// Valores guarda todos os campos preenchidos, por chave canônica.
	Valores Valores `json:"valores"`
	// SalvoEm é atualizado a cada save; rascunhos com SalvoEm mais antigo
	// que o TTL são descartados no load.
	SalvoEm time.Time `json:"salvo_em"`
	// FinalizadoEm é preenchido uma única vez, quando a solicitação é
	// concluída com sucesso.
	FinalizadoEm *time.Time `json:"finalizado_em,omitempty"`
}

// NovoEstado cria um estado vazio posicionado no primeiro passo.
func NovoEstado() *Estado {
	return &Estado{Valores: make(Valores)}
}

// Definir grava um valor de campo (com canonicalização de chave).
func (e *Estado) Definir(chave string, v Valor) {
	if e.Valores == nil {
		e.Valores = make(Valores)
	}
	e.Valores.Definir(chave, v)
}

// Obter lê um valor de campo (com canonicalização de chave).
func (e *Estado) Obter(chave string) Valor {
	if e.Valores == nil {
		return Valor{}
	}
	return e.Valores.Obter(chave)
}

// Expirado informa se o snapshot passou do TTL em relação a agora.
func (e *Estado) Expirado(ttl time.Duration, agora time.Time) bool {
	if e.SalvoEm.IsZero() {
		return false
	}
	return agora.Sub(e.SalvoEm) > ttl
}

// Finalizado informa se a solicitação deste estado já foi concluída.
func (e *Estado) Finalizado() bool {
	return e.FinalizadoEm != nil
}

// Serializar codifica o estado como JSON para o snapshot persistido.
func (e *Estado) Serializar() (string, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DesserializarEstado reconstrói um estado a partir do snapshot JSON.
// Dado corrompido degrada para "sem estado salvo" (retorna nil sem erro):
// o load nunca pode falhar por snapshot inválido.
func DesserializarEstado(snapshot string) *Estado {
	if snapshot == "" {
		return nil
	}
	var e Estado
	if err := json.Unmarshal([]byte(snapshot), &e); err != nil {
		return nil
	}
	if e.Valores == nil {
		e.Valores = make(Valores)
	}
	return &e
}
