// Package server expõe a superfície HTTP da aplicação: finalização de
// solicitações, consulta Gescon, geração de PDF, rascunhos de sessão e o
// proxy com injeção de chave de API.
package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Dukorsa/CRP_EMERGENCIAL_GO/internal/core"
	appLogger "github.com/Dukorsa/CRP_EMERGENCIAL_GO/internal/core/logger"
	"github.com/Dukorsa/CRP_EMERGENCIAL_GO/internal/renderer"
	"github.com/Dukorsa/CRP_EMERGENCIAL_GO/internal/services"
)

// CabecalhoSessao identifica a sessão de preenchimento do cliente.
const CabecalhoSessao = "X-Session-Key"

// CabecalhoIdempotencia devolve ao cliente o token anexado à submissão.
const CabecalhoIdempotencia = "X-Idempotency-Key"

// Server amarra os serviços da aplicação aos handlers HTTP.
type Server struct {
	cfg          *core.Config
	solicitacoes services.SolicitacaoService
	gescon       services.GesconService
	rascunhos    services.RascunhoService
	renderizador renderer.RenderizadorPDF
	export       services.ExportService

	proxy *proxyUpstream

	// emVoo garante uma única finalização em andamento por sessão.
	emVooMu sync.Mutex
	emVoo   map[string]struct{}

	httpServer *http.Server
}

// NewServer cria o servidor HTTP com todas as dependências.
func NewServer(
	cfg *core.Config,
	solicitacoes services.SolicitacaoService,
	gescon services.GesconService,
	rascunhos services.RascunhoService,
	renderizador renderer.RenderizadorPDF,
	export services.ExportService,
) *Server {
	if cfg == nil || solicitacoes == nil || rascunhos == nil {
		appLogger.Fatalf("Dependências nulas fornecidas para NewServer")
	}
	s := &Server{
		cfg:          cfg,
		solicitacoes: solicitacoes,
		gescon:       gescon,
		rascunhos:    rascunhos,
		renderizador: renderizador,
		export:       export,
		emVoo:        make(map[string]struct{}),
	}
	if cfg.UpstreamBase != "" {
		s.proxy = novoProxyUpstream(cfg.UpstreamBase, cfg.UpstreamAPIKey, cfg.ProxyPrefix, cfg.ProxyAllowlist)
	}
	return s
}

// Handler monta o roteamento completo com o middleware de CORS.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/solicitacoes", s.roteiaSolicitacoes)
	mux.HandleFunc("/api/gescon/consulta", s.handleGesconConsulta)
	mux.HandleFunc("/api/pdf", s.handlePDF)
	mux.HandleFunc("/api/rascunho", s.roteiaRascunho)
	mux.HandleFunc("/api/export", s.handleExport)
	mux.HandleFunc("/api/health", s.handleHealth)

	if s.proxy != nil {
		mux.Handle(s.cfg.ProxyPrefix, s.proxy)
	}

	return s.middlewareCORS(mux)
}

// Start sobe o servidor HTTP e bloqueia até ele encerrar.
func (s *Server) Start() error {
	endereco := fmt.Sprintf("%s:%d", s.cfg.ServerHost, s.cfg.ServerPort)
	s.httpServer = &http.Server{
		Addr:              endereco,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	appLogger.Infof("Servidor HTTP escutando em %s", endereco)
	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return core.WrapErrorf(err, "falha no servidor HTTP")
	}
	return nil
}

// Shutdown encerra o servidor aguardando as conexões em andamento.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	appLogger.Info("Encerrando servidor HTTP...")
	return s.httpServer.Shutdown(ctx)
}

// middlewareCORS aplica os cabeçalhos de CORS e resolve o preflight de forma
// uniforme para todas as rotas.
func (s *Server) middlewareCORS(proximo http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origem := r.Header.Get("Origin")
		if origem != "" && s.origemPermitida(origem) {
			w.Header().Set("Access-Control-Allow-Origin", origem)
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+CabecalhoSessao+", "+CabecalhoIdempotencia)
			w.Header().Set("Access-Control-Max-Age", "86400")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		proximo.ServeHTTP(w, r)
	})
}

func (s *Server) origemPermitida(origem string) bool {
	for _, permitida := range s.cfg.CORSOrigins {
		if permitida == "*" || strings.EqualFold(permitida, origem) {
			return true
		}
	}
	return false
}

// iniciarVoo marca a sessão como tendo uma finalização em andamento.
// Retorna false quando já existe uma; o handler responde 409 nesse caso.
func (s *Server) iniciarVoo(chave string) bool {
	s.emVooMu.Lock()
	defer s.emVooMu.Unlock()
	if _, ocupado := s.emVoo[chave]; ocupado {
		return false
	}
	s.emVoo[chave] = struct{}{}
	return true
}

func (s *Server) encerrarVoo(chave string) {
	s.emVooMu.Lock()
	defer s.emVooMu.Unlock()
	delete(s.emVoo, chave)
}
