package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/Dukorsa/CRP_EMERGENCIAL_GO/internal/core"
	appLogger "github.com/Dukorsa/CRP_EMERGENCIAL_GO/internal/core/logger"
	"github.com/Dukorsa/CRP_EMERGENCIAL_GO/internal/netclient"
	"github.com/Dukorsa/CRP_EMERGENCIAL_GO/internal/payload"
	"github.com/Dukorsa/CRP_EMERGENCIAL_GO/internal/wizard"
)

// respostaJSON escreve o corpo como JSON com o status informado.
func respostaJSON(w http.ResponseWriter, status int, corpo interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if corpo != nil {
		if err := json.NewEncoder(w).Encode(corpo); err != nil {
			appLogger.Warnf("Falha ao escrever resposta JSON: %v", err)
		}
	}
}

// respostaErro traduz um erro de serviço para a resposta HTTP adequada:
// violações de validação viram 422 com o mapa campo→mensagem; não-encontrado
// vira 404; o resto vira 500 com mensagem genérica.
func respostaErro(w http.ResponseWriter, err error) {
	var ve *core.ValidationError
	if errors.As(err, &ve) {
		respostaJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"ok":    false,
			"erro":  ve.Message,
			"erros": ve.Fields,
		})
		return
	}
	switch {
	case errors.Is(err, core.ErrGesconNaoEncontrado), errors.Is(err, core.ErrNotFound):
		respostaJSON(w, http.StatusNotFound, map[string]interface{}{"ok": false, "erro": err.Error()})
	case errors.Is(err, core.ErrInvalidInput):
		respostaJSON(w, http.StatusBadRequest, map[string]interface{}{"ok": false, "erro": err.Error()})
	default:
		var eh *netclient.ErroHTTP
		if errors.As(err, &eh) {
			respostaJSON(w, http.StatusBadGateway, map[string]interface{}{
				"ok":   false,
				"erro": netclient.MensagemAmigavel(err),
			})
			return
		}
		appLogger.Errorf("Erro não tratado no handler: %v", err)
		respostaJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"ok":   false,
			"erro": "Erro interno. Tente novamente em instantes.",
		})
	}
}

// chaveDeSessao extrai a chave de sessão do cliente, gerando uma efêmera
// quando ausente (o cliente que não manda chave abre mão da retomada).
func chaveDeSessao(r *http.Request) string {
	if chave := r.Header.Get(CabecalhoSessao); chave != "" {
		return chave
	}
	return uuid.NewString()
}

func (s *Server) roteiaSolicitacoes(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleFinalizar(w, r)
	case http.MethodGet:
		s.handleListarSolicitacoes(w, r)
	default:
		respostaJSON(w, http.StatusMethodNotAllowed, map[string]interface{}{"ok": false, "erro": "método não permitido"})
	}
}

// handleFinalizar valida o preenchimento completo e registra a solicitação.
func (s *Server) handleFinalizar(w http.ResponseWriter, r *http.Request) {
	var bruto map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&bruto); err != nil {
		respostaJSON(w, http.StatusBadRequest, map[string]interface{}{"ok": false, "erro": "corpo JSON inválido"})
		return
	}

	chave := chaveDeSessao(r)

	// Uma finalização por vez por sessão; a retentativa legítima vem depois
	// da resposta, com o mesmo token.
	if !s.iniciarVoo(chave) {
		respostaJSON(w, http.StatusConflict, map[string]interface{}{
			"ok":   false,
			"erro": "Já existe uma submissão em andamento para esta sessão.",
		})
		return
	}
	defer s.encerrarVoo(chave)

	valores := wizard.Canonicalizar(bruto)
	publica, _, err := s.solicitacoes.Finalizar(r.Context(), chave, valores)
	if err != nil {
		respostaErro(w, err)
		return
	}

	w.Header().Set(CabecalhoIdempotencia, publica.Token)
	respostaJSON(w, http.StatusOK, map[string]interface{}{
		"ok":          true,
		"solicitacao": publica,
	})
}

// handleListarSolicitacoes devolve as solicitações registradas.
func (s *Server) handleListarSolicitacoes(w http.ResponseWriter, r *http.Request) {
	lista, err := s.solicitacoes.ListarTodas()
	if err != nil {
		respostaErro(w, err)
		return
	}
	respostaJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "solicitacoes": lista})
}

// handleGesconConsulta consulta o registro Gescon pelo CNPJ.
func (s *Server) handleGesconConsulta(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respostaJSON(w, http.StatusMethodNotAllowed, map[string]interface{}{"ok": false, "erro": "método não permitido"})
		return
	}
	if s.gescon == nil {
		respostaJSON(w, http.StatusServiceUnavailable, map[string]interface{}{"ok": false, "erro": "consulta Gescon não configurada"})
		return
	}

	var corpo struct {
		CNPJ string `json:"cnpj"`
	}
	if err := json.NewDecoder(r.Body).Decode(&corpo); err != nil {
		respostaJSON(w, http.StatusBadRequest, map[string]interface{}{"ok": false, "erro": "corpo JSON inválido"})
		return
	}

	resultado, err := s.gescon.Consultar(r.Context(), corpo.CNPJ)
	if err != nil {
		respostaErro(w, err)
		return
	}
	respostaJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "resultado": resultado})
}

// handlePDF renderiza o payload em PDF. Aceita o payload plano ou embrulhado
// em {"data": ...}.
func (s *Server) handlePDF(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respostaJSON(w, http.StatusMethodNotAllowed, map[string]interface{}{"ok": false, "erro": "método não permitido"})
		return
	}
	if s.renderizador == nil {
		respostaJSON(w, http.StatusServiceUnavailable, map[string]interface{}{"ok": false, "erro": "renderização de PDF não configurada"})
		return
	}

	var bruto map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&bruto); err != nil {
		respostaJSON(w, http.StatusBadRequest, map[string]interface{}{"ok": false, "erro": "corpo JSON inválido"})
		return
	}
	if interno, ok := bruto["data"].(map[string]interface{}); ok {
		bruto = interno
	}

	pdf, err := s.renderizador.Renderizar(r.Context(), payload.Payload(bruto))
	if err != nil {
		respostaErro(w, err)
		return
	}

	nome := "solicitacao_crp_emergencial.pdf"
	if ente, ok := bruto[wizard.ChaveEnte].(string); ok && ente != "" {
		nome = fmt.Sprintf("solicitacao_crp_%s.pdf", nomeDeArquivo(ente))
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", nome))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(pdf); err != nil {
		appLogger.Warnf("Falha ao enviar PDF ao cliente: %v", err)
	}
}

func (s *Server) roteiaRascunho(w http.ResponseWriter, r *http.Request) {
	chave := r.Header.Get(CabecalhoSessao)
	if chave == "" {
		respostaJSON(w, http.StatusBadRequest, map[string]interface{}{
			"ok":   false,
			"erro": fmt.Sprintf("cabeçalho %s obrigatório", CabecalhoSessao),
		})
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.handleCarregarRascunho(w, r, chave)
	case http.MethodPut:
		s.handleSalvarRascunho(w, r, chave)
	case http.MethodDelete:
		if err := s.rascunhos.Limpar(chave); err != nil {
			respostaErro(w, err)
			return
		}
		respostaJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
	default:
		respostaJSON(w, http.StatusMethodNotAllowed, map[string]interface{}{"ok": false, "erro": "método não permitido"})
	}
}

// handleCarregarRascunho restaura o estado salvo da sessão. Rascunho ausente,
// expirado ou corrompido responde 200 com estado nulo.
func (s *Server) handleCarregarRascunho(w http.ResponseWriter, r *http.Request, chave string) {
	estado, err := s.rascunhos.Carregar(chave)
	if err != nil {
		respostaErro(w, err)
		return
	}
	respostaJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "estado": estado})
}

// handleSalvarRascunho grava o snapshot enviado pelo cliente.
func (s *Server) handleSalvarRascunho(w http.ResponseWriter, r *http.Request, chave string) {
	var corpo struct {
		PassoAtual int                    `json:"passo_atual"`
		Valores    map[string]interface{} `json:"valores"`
	}
	if err := json.NewDecoder(r.Body).Decode(&corpo); err != nil {
		respostaJSON(w, http.StatusBadRequest, map[string]interface{}{"ok": false, "erro": "corpo JSON inválido"})
		return
	}

	// O índice vem do cliente; o snapshot persistido fica dentro do intervalo
	// de passos válido.
	ultimo := len(wizard.PassosPadrao(nil)) - 1
	if corpo.PassoAtual < 0 {
		corpo.PassoAtual = 0
	}
	if corpo.PassoAtual > ultimo {
		corpo.PassoAtual = ultimo
	}

	estado := wizard.NovoEstado()
	estado.PassoAtual = corpo.PassoAtual
	estado.Valores = wizard.Canonicalizar(corpo.Valores)

	if err := s.rascunhos.Salvar(chave, estado); err != nil {
		respostaErro(w, err)
		return
	}
	respostaJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}

// handleExport gera o XLSX administrativo das solicitações.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respostaJSON(w, http.StatusMethodNotAllowed, map[string]interface{}{"ok": false, "erro": "método não permitido"})
		return
	}
	if s.export == nil {
		respostaJSON(w, http.StatusServiceUnavailable, map[string]interface{}{"ok": false, "erro": "exportação não configurada"})
		return
	}
	caminho, err := s.export.ExportarSolicitacoes()
	if err != nil {
		respostaErro(w, err)
		return
	}
	respostaJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "arquivo": caminho})
}

// nomeDeArquivo reduz o nome do ente a um identificador seguro para o
// cabeçalho Content-Disposition: sem acentos, minúsculo, underscores.
func nomeDeArquivo(nome string) string {
	sem, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), nome)
	if err != nil {
		sem = nome
	}
	var b strings.Builder
	for _, r := range strings.ToLower(sem) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_':
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "ente"
	}
	return b.String()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respostaJSON(w, http.StatusOK, map[string]interface{}{
		"ok":     true,
		"app":    s.cfg.AppName,
		"versao": s.cfg.AppVersion,
	})
}
