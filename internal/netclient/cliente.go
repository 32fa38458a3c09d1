// Package netclient encapsula as chamadas HTTP de saída da aplicação
// (consultas Gescon, renderização de PDF, upstream do proxy) com timeout por
// classe de chamada, retentativa limitada com backoff exponencial e
// instrumentação explícita via observadores.
package netclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	appLogger "github.com/Dukorsa/CRP_EMERGENCIAL_GO/internal/core/logger"
)

// Classe de chamada define o teto de timeout da requisição.
type Classe int

const (
	// ClasseJSON cobre chamadas de API com corpo JSON (~2 minutos).
	ClasseJSON Classe = iota
	// ClasseBinaria cobre downloads binários como PDF (~1 minuto).
	ClasseBinaria
)

// Timeouts fixos por classe de chamada.
const (
	TimeoutJSON    = 2 * time.Minute
	TimeoutBinario = 1 * time.Minute
)

func (cl Classe) timeout() time.Duration {
	if cl == ClasseBinaria {
		return TimeoutBinario
	}
	return TimeoutJSON
}

// ErroHTTP é o erro tipado de uma resposta não-2xx, carregando o status e o
// corpo da resposta para tradução em mensagem amigável no ponto de chamada.
type ErroHTTP struct {
	Status int
	Corpo  []byte
}

func (e *ErroHTTP) Error() string {
	return fmt.Sprintf("resposta HTTP %d do serviço remoto", e.Status)
}

// Retriavel classifica um erro como transitório: HTTP 429/5xx, timeout,
// aborto de rede ou falta de conexão. Erros de validação (4xx exceto 429)
// nunca são retentados.
func Retriavel(err error) bool {
	if err == nil {
		return false
	}
	var eh *ErroHTTP
	if errors.As(err, &eh) {
		return eh.Status == http.StatusTooManyRequests || eh.Status >= 500
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	// Erros de transporte do net/http chegam como *url.Error envolvendo
	// um erro de rede; o errors.As acima cobre esses casos.
	return false
}

// MensagemAmigavel traduz um erro de rede/HTTP para o texto exibido ao
// usuário, chaveado pela classe do erro.
func MensagemAmigavel(err error) string {
	var eh *ErroHTTP
	if errors.As(err, &eh) {
		switch {
		case eh.Status == http.StatusTooManyRequests:
			return "Muitas solicitações em sequência. Aguarde alguns instantes e tente novamente."
		case eh.Status == http.StatusBadGateway:
			return "O servidor está reiniciando. Tente novamente em instantes."
		case eh.Status >= 500:
			return "O serviço está temporariamente indisponível. Tente novamente."
		}
		return fmt.Sprintf("O serviço remoto recusou a solicitação (HTTP %d).", eh.Status)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "Tempo de resposta esgotado. Verifique sua conexão e tente novamente."
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return "Sem conexão com o servidor. Verifique sua rede e tente novamente."
	}
	return "Erro inesperado ao comunicar com o servidor."
}

// Observador instrumenta as requisições de saída. É uma camada opt-in
// invocada deliberadamente pelo cliente — não uma sobrescrita silenciosa de
// primitivas compartilhadas do runtime.
type Observador interface {
	// AntesDaRequisicao pode observar e ajustar a requisição (ex: headers).
	AntesDaRequisicao(req *http.Request)
	// DepoisDaResposta é chamado após cada tentativa, com a resposta ou o erro.
	DepoisDaResposta(req *http.Request, resp *http.Response, err error, tentativa int)
}

// Cliente é o cliente HTTP de saída com a política de retentativa da aplicação.
type Cliente struct {
	http            *http.Client
	maxRetentativas int // retentativas além da primeira tentativa (0–1)
	backoffBase     time.Duration
	observadores    []Observador
	dormir          func(time.Duration)
}

// OpcaoCliente configura o Cliente.
type OpcaoCliente func(c *Cliente)

// ComHTTPClient substitui o transporte subjacente (testes).
func ComHTTPClient(h *http.Client) OpcaoCliente {
	return func(c *Cliente) { c.http = h }
}

// ComRetentativas define o número de retentativas (limitado a 1).
func ComRetentativas(n int) OpcaoCliente {
	return func(c *Cliente) {
		if n < 0 {
			n = 0
		}
		if n > 1 {
			n = 1
		}
		c.maxRetentativas = n
	}
}

// ComObservador anexa um observador de instrumentação.
func ComObservador(o Observador) OpcaoCliente {
	return func(c *Cliente) { c.observadores = append(c.observadores, o) }
}

// ComBackoffBase ajusta a base do backoff exponencial (testes).
func ComBackoffBase(d time.Duration) OpcaoCliente {
	return func(c *Cliente) { c.backoffBase = d }
}

// NovoCliente cria o cliente com a política padrão: 1 retentativa com
// backoff exponencial a partir de 500ms.
func NovoCliente(opcoes ...OpcaoCliente) *Cliente {
	c := &Cliente{
		http:            &http.Client{},
		maxRetentativas: 1,
		backoffBase:     500 * time.Millisecond,
		dormir:          time.Sleep,
	}
	for _, op := range opcoes {
		op(c)
	}
	return c
}

// PostJSON envia corpo como JSON e decodifica a resposta 2xx em destino
// (quando destino não é nil). Respostas não-2xx retornam *ErroHTTP.
func (c *Cliente) PostJSON(ctx context.Context, url string, corpo interface{}, destino interface{}) error {
	dados, _, err := c.post(ctx, url, corpo, ClasseJSON)
	if err != nil {
		return err
	}
	if destino == nil || len(dados) == 0 {
		return nil
	}
	if err := json.Unmarshal(dados, destino); err != nil {
		return fmt.Errorf("resposta malformada do serviço remoto: %w", err)
	}
	return nil
}

// PostBinario envia corpo como JSON e retorna os bytes crus da resposta e o
// Content-Type. Usado para o download do PDF renderizado.
func (c *Cliente) PostBinario(ctx context.Context, url string, corpo interface{}) ([]byte, string, error) {
	return c.post(ctx, url, corpo, ClasseBinaria)
}

func (c *Cliente) post(ctx context.Context, url string, corpo interface{}, classe Classe) ([]byte, string, error) {
	serializado, err := json.Marshal(corpo)
	if err != nil {
		return nil, "", fmt.Errorf("falha ao serializar corpo da requisição: %w", err)
	}

	var ultimoErr error
	for tentativa := 0; tentativa <= c.maxRetentativas; tentativa++ {
		if tentativa > 0 {
			// Backoff exponencial: base, 2x base, ...
			c.dormir(c.backoffBase << (tentativa - 1))
			appLogger.Warnf("Retentativa %d para %s após erro: %v", tentativa, url, ultimoErr)
		}

		dados, tipo, err := c.tentar(ctx, url, serializado, classe, tentativa)
		if err == nil {
			return dados, tipo, nil
		}
		ultimoErr = err
		if !Retriavel(err) {
			break
		}
	}
	return nil, "", ultimoErr
}

func (c *Cliente) tentar(ctx context.Context, url string, corpo []byte, classe Classe, tentativa int) ([]byte, string, error) {
	ctx, cancelar := context.WithTimeout(ctx, classe.timeout())
	defer cancelar()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(corpo))
	if err != nil {
		return nil, "", fmt.Errorf("falha ao montar requisição: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	// Parâmetro cache-buster por tentativa para furar caches intermediários.
	q := req.URL.Query()
	q.Set("_cb", fmt.Sprintf("%d-%d", time.Now().UnixNano(), tentativa))
	req.URL.RawQuery = q.Encode()

	for _, o := range c.observadores {
		o.AntesDaRequisicao(req)
	}

	resp, err := c.http.Do(req)
	for _, o := range c.observadores {
		o.DepoisDaResposta(req, resp, err, tentativa)
	}
	if err != nil {
		// Timeout do contexto chega envolvido em *url.Error; desembrulha
		// para a classificação.
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, "", context.DeadlineExceeded
		}
		return nil, "", err
	}
	defer resp.Body.Close()

	dados, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("falha ao ler resposta: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", &ErroHTTP{Status: resp.StatusCode, Corpo: dados}
	}
	return dados, resp.Header.Get("Content-Type"), nil
}
