package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Dukorsa/CRP_EMERGENCIAL_GO/internal/core"
	"github.com/Dukorsa/CRP_EMERGENCIAL_GO/internal/data/models"
	"github.com/Dukorsa/CRP_EMERGENCIAL_GO/internal/payload"
	"github.com/Dukorsa/CRP_EMERGENCIAL_GO/internal/services"
)

// --- Repositórios em memória ---

type memRascunhoRepo struct {
	mu    sync.Mutex
	itens map[string]models.DBRascunho
}

func novoMemRascunhoRepo() *memRascunhoRepo {
	return &memRascunhoRepo{itens: make(map[string]models.DBRascunho)}
}

func (m *memRascunhoRepo) Salvar(chave, snapshot string, passoAtual int, salvoEm time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.itens[chave] = models.DBRascunho{Chave: chave, Snapshot: snapshot, PassoAtual: passoAtual, SalvoEm: salvoEm}
	return nil
}

func (m *memRascunhoRepo) Carregar(chave string) (*models.DBRascunho, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.itens[chave]
	if !ok {
		return nil, fmt.Errorf("%w: rascunho da sessão '%s' não encontrado", core.ErrNotFound, chave)
	}
	return &r, nil
}

func (m *memRascunhoRepo) Excluir(chave string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.itens, chave)
	return nil
}

type memTokenRepo struct {
	mu    sync.Mutex
	itens map[string]string
}

func novoMemTokenRepo() *memTokenRepo {
	return &memTokenRepo{itens: make(map[string]string)}
}

func (m *memTokenRepo) ObterOuCriar(chave string, gerar func() string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if token, ok := m.itens[chave]; ok {
		return token, nil
	}
	token := gerar()
	m.itens[chave] = token
	return token, nil
}

func (m *memTokenRepo) Excluir(chave string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.itens, chave)
	return nil
}

type memSolicitacaoRepo struct {
	mu          sync.Mutex
	porToken    map[string]models.DBSolicitacao
	proximoID   uint64
	falharVezes int
}

func novoMemSolicitacaoRepo() *memSolicitacaoRepo {
	return &memSolicitacaoRepo{porToken: make(map[string]models.DBSolicitacao)}
}

func (m *memSolicitacaoRepo) Add(s models.DBSolicitacao) (*models.DBSolicitacao, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.falharVezes > 0 {
		m.falharVezes--
		return nil, core.WrapErrorf(core.ErrDatabase, "indisponível")
	}
	if existente, ok := m.porToken[s.Token]; ok {
		return &existente, nil
	}
	m.proximoID++
	s.ID = m.proximoID
	m.porToken[s.Token] = s
	return &s, nil
}

func (m *memSolicitacaoRepo) GetByToken(token string) (*models.DBSolicitacao, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.porToken[token]
	if !ok {
		return nil, fmt.Errorf("%w: solicitação com token '%s' não encontrada", core.ErrNotFound, token)
	}
	return &s, nil
}

func (m *memSolicitacaoRepo) GetAll() ([]models.DBSolicitacao, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lista := make([]models.DBSolicitacao, 0, len(m.porToken))
	for _, s := range m.porToken {
		lista = append(lista, s)
	}
	return lista, nil
}

type planilhaSpy struct {
	mu     sync.Mutex
	linhas []payload.Payload
}

func (p *planilhaSpy) Registrar(_ context.Context, pl payload.Payload) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.linhas = append(p.linhas, pl)
	return nil
}

// --- Montagem do servidor de teste ---

type ambienteDeTeste struct {
	servidor     *httptest.Server
	solicitacoes *memSolicitacaoRepo
	tokens       *memTokenRepo
	rascunhos    *memRascunhoRepo
	planilha     *planilhaSpy
}

func novoAmbiente(t *testing.T) *ambienteDeTeste {
	t.Helper()

	rascunhoRepo := novoMemRascunhoRepo()
	tokenRepo := novoMemTokenRepo()
	solicitacaoRepo := novoMemSolicitacaoRepo()
	planilha := &planilhaSpy{}

	rascunhoService := services.NewRascunhoService(rascunhoRepo, tokenRepo, 30*time.Minute)
	construtor := payload.NovoConstrutor()
	solicitacaoService := services.NewSolicitacaoService(solicitacaoRepo, rascunhoService, planilha, construtor)

	cfg := &core.Config{
		AppName:     "crp-emergencial-teste",
		AppVersion:  "0.0.0",
		CORSOrigins: []string{"*"},
	}

	srv := NewServer(cfg, solicitacaoService, nil, rascunhoService, nil, nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &ambienteDeTeste{
		servidor:     ts,
		solicitacoes: solicitacaoRepo,
		tokens:       tokenRepo,
		rascunhos:    rascunhoRepo,
		planilha:     planilha,
	}
}

func postJSON(t *testing.T, url string, corpo interface{}, headers map[string]string) (*http.Response, map[string]interface{}) {
	t.Helper()
	dados, err := json.Marshal(corpo)
	if err != nil {
		t.Fatalf("marshal do corpo: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(dados))
	if err != nil {
		t.Fatalf("montagem da requisição: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("requisição: %v", err)
	}
	var decodificado map[string]interface{}
	_ = json.NewDecoder(resp.Body).Decode(&decodificado)
	resp.Body.Close()
	return resp, decodificado
}

func preenchimentoValido() map[string]interface{} {
	return map[string]interface{}{
		"UF":                    "SP",
		"ENTE":                  "Prefeitura X",
		"CNPJ_ENTE":             "11.222.333/0001-81",
		"EMAIL_ENTE":            "previdencia@prefeiturax.sp.gov.br",
		"NOME_REP":              "Maria da Silva",
		"CPF_REP":               "529.982.247-25",
		"CARGO_REP":             "Secretária de Administração",
		"FASE_PROGRAMA":         "4.1",
		"F41_OPCAO":             "4.1.1",
		"DECLARACAO_VERACIDADE": true,
	}
}

func TestFinalizarCenarioCompleto(t *testing.T) {
	amb := novoAmbiente(t)

	resp, corpo := postJSON(t, amb.servidor.URL+"/api/solicitacoes", preenchimentoValido(),
		map[string]string{CabecalhoSessao: "sessao-1"})

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, corpo = %v", resp.StatusCode, corpo)
	}
	if corpo["ok"] != true {
		t.Errorf("ok = %v", corpo["ok"])
	}
	token := resp.Header.Get(CabecalhoIdempotencia)
	if token == "" {
		t.Error("cabeçalho de idempotência ausente na resposta de sucesso")
	}

	registro, err := amb.solicitacoes.GetByToken(token)
	if err != nil {
		t.Fatalf("solicitação não registrada: %v", err)
	}
	if registro.Fase != "4.1" {
		t.Errorf("fase registrada = %q", registro.Fase)
	}
	if registro.CNPJEnte != "11222333000181" {
		t.Errorf("CNPJ registrado deve ser só dígitos, obtido %q", registro.CNPJEnte)
	}

	var p map[string]interface{}
	if err := json.Unmarshal([]byte(registro.PayloadJSON), &p); err != nil {
		t.Fatalf("payload registrado inválido: %v", err)
	}
	if p["FASE_PROGRAMA"] != "4.1" || p["F41_OPCAO"] == "" || p["DATA_GERACAO"] == "" {
		t.Errorf("payload registrado incompleto: %v", p)
	}

	if len(amb.planilha.linhas) != 1 {
		t.Errorf("planilha deveria ter 1 linha, tem %d", len(amb.planilha.linhas))
	}
	// Sucesso reconhecido limpa rascunho e token pendente.
	if _, ok := amb.tokens.itens["sessao-1"]; ok {
		t.Error("token pendente deveria ser limpo após o sucesso")
	}
}

func TestFinalizarIncompletoRetorna422(t *testing.T) {
	amb := novoAmbiente(t)

	corpo := preenchimentoValido()
	delete(corpo, "UF")
	delete(corpo, "F41_OPCAO")

	resp, decodificado := postJSON(t, amb.servidor.URL+"/api/solicitacoes", corpo,
		map[string]string{CabecalhoSessao: "sessao-2"})

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	erros, ok := decodificado["erros"].(map[string]interface{})
	if !ok {
		t.Fatalf("resposta 422 sem mapa de erros: %v", decodificado)
	}
	if _, tem := erros["UF"]; !tem {
		t.Error("mapa de erros deveria apontar UF")
	}
	if _, tem := erros["F41_OPCAO"]; !tem {
		t.Error("mapa de erros deveria apontar F41_OPCAO")
	}
	if len(amb.solicitacoes.porToken) != 0 {
		t.Error("rejeição de validação não deve registrar solicitação")
	}
}

func TestTokenSobreviveFalhaEDeduplicaRetentativa(t *testing.T) {
	amb := novoAmbiente(t)
	amb.solicitacoes.falharVezes = 1

	resp, _ := postJSON(t, amb.servidor.URL+"/api/solicitacoes", preenchimentoValido(),
		map[string]string{CabecalhoSessao: "sessao-3"})
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("primeira tentativa deveria falhar com 500, status = %d", resp.StatusCode)
	}

	tokenPendente, ok := amb.tokens.itens["sessao-3"]
	if !ok || tokenPendente == "" {
		t.Fatal("token pendente deveria sobreviver à falha")
	}

	resp, _ = postJSON(t, amb.servidor.URL+"/api/solicitacoes", preenchimentoValido(),
		map[string]string{CabecalhoSessao: "sessao-3"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("retentativa deveria ter sucesso, status = %d", resp.StatusCode)
	}
	if resp.Header.Get(CabecalhoIdempotencia) != tokenPendente {
		t.Error("retentativa deveria reutilizar o token pendente")
	}
	if len(amb.solicitacoes.porToken) != 1 {
		t.Errorf("deveria haver exatamente 1 solicitação registrada, há %d", len(amb.solicitacoes.porToken))
	}
}

func TestRascunhoCicloDeVida(t *testing.T) {
	amb := novoAmbiente(t)

	// Salvar
	req, _ := http.NewRequest(http.MethodPut, amb.servidor.URL+"/api/rascunho",
		bytes.NewReader([]byte(`{"passo_atual":2,"valores":{"UF":"RS","ENTE":"Município Y"}}`)))
	req.Header.Set(CabecalhoSessao, "sessao-4")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PUT rascunho: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("PUT status = %d", resp.StatusCode)
	}

	// Carregar
	reqGet, _ := http.NewRequest(http.MethodGet, amb.servidor.URL+"/api/rascunho", nil)
	reqGet.Header.Set(CabecalhoSessao, "sessao-4")
	resp, err = http.DefaultClient.Do(reqGet)
	if err != nil {
		t.Fatalf("GET rascunho: %v", err)
	}
	var corpo struct {
		OK     bool `json:"ok"`
		Estado *struct {
			PassoAtual int                        `json:"passo_atual"`
			Valores    map[string]json.RawMessage `json:"valores"`
		} `json:"estado"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&corpo)
	resp.Body.Close()
	if corpo.Estado == nil {
		t.Fatal("estado salvo deveria ser restaurado")
	}
	if corpo.Estado.PassoAtual != 2 {
		t.Errorf("passo_atual = %d", corpo.Estado.PassoAtual)
	}
	if _, tem := corpo.Estado.Valores["UF"]; !tem {
		t.Error("valores restaurados deveriam conter UF")
	}

	// Limpar
	reqDel, _ := http.NewRequest(http.MethodDelete, amb.servidor.URL+"/api/rascunho", nil)
	reqDel.Header.Set(CabecalhoSessao, "sessao-4")
	resp, err = http.DefaultClient.Do(reqDel)
	if err != nil {
		t.Fatalf("DELETE rascunho: %v", err)
	}
	resp.Body.Close()

	resp, err = http.DefaultClient.Do(reqGet)
	if err != nil {
		t.Fatalf("GET rascunho após limpeza: %v", err)
	}
	var depois struct {
		Estado json.RawMessage `json:"estado"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&depois)
	resp.Body.Close()
	if string(depois.Estado) != "null" {
		t.Errorf("estado após limpeza deveria ser nulo, obtido %s", depois.Estado)
	}
}

func TestCORSPreflight(t *testing.T) {
	amb := novoAmbiente(t)

	req, _ := http.NewRequest(http.MethodOptions, amb.servidor.URL+"/api/solicitacoes", nil)
	req.Header.Set("Origin", "https://exemplo.gov.br")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("preflight: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("preflight status = %d", resp.StatusCode)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") == "" {
		t.Error("preflight sem Access-Control-Allow-Origin")
	}
}

// O passo_atual do snapshot vem do cliente; índices fora do intervalo de
// passos são ajustados antes da persistência.
func TestRascunhoAjustaPassoForaDoIntervalo(t *testing.T) {
	amb := novoAmbiente(t)

	salvar := func(t *testing.T, sessao, corpo string) {
		t.Helper()
		req, _ := http.NewRequest(http.MethodPut, amb.servidor.URL+"/api/rascunho",
			bytes.NewReader([]byte(corpo)))
		req.Header.Set(CabecalhoSessao, sessao)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("PUT rascunho: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("PUT status = %d", resp.StatusCode)
		}
	}
	carregarPasso := func(t *testing.T, sessao string) int {
		t.Helper()
		req, _ := http.NewRequest(http.MethodGet, amb.servidor.URL+"/api/rascunho", nil)
		req.Header.Set(CabecalhoSessao, sessao)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("GET rascunho: %v", err)
		}
		var corpo struct {
			Estado *struct {
				PassoAtual int `json:"passo_atual"`
			} `json:"estado"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&corpo)
		resp.Body.Close()
		if corpo.Estado == nil {
			t.Fatal("estado salvo deveria ser restaurado")
		}
		return corpo.Estado.PassoAtual
	}

	salvar(t, "sessao-clamp-alto", `{"passo_atual":99,"valores":{"UF":"RS"}}`)
	if passo := carregarPasso(t, "sessao-clamp-alto"); passo != 3 {
		t.Errorf("passo_atual acima do último = %d, esperado 3", passo)
	}

	salvar(t, "sessao-clamp-baixo", `{"passo_atual":-5,"valores":{"UF":"RS"}}`)
	if passo := carregarPasso(t, "sessao-clamp-baixo"); passo != 0 {
		t.Errorf("passo_atual negativo = %d, esperado 0", passo)
	}
}
