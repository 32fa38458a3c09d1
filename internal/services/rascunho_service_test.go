package services

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Dukorsa/CRP_EMERGENCIAL_GO/internal/core"
	"github.com/Dukorsa/CRP_EMERGENCIAL_GO/internal/data/models"
	"github.com/Dukorsa/CRP_EMERGENCIAL_GO/internal/wizard"
)

type rascunhoRepoFake struct {
	mu    sync.Mutex
	itens map[string]models.DBRascunho
}

func novoRascunhoRepoFake() *rascunhoRepoFake {
	return &rascunhoRepoFake{itens: make(map[string]models.DBRascunho)}
}

func (f *rascunhoRepoFake) Salvar(chave, snapshot string, passoAtual int, salvoEm time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.itens[chave] = models.DBRascunho{Chave: chave, Snapshot: snapshot, PassoAtual: passoAtual, SalvoEm: salvoEm}
	return nil
}

func (f *rascunhoRepoFake) Carregar(chave string) (*models.DBRascunho, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.itens[chave]
	if !ok {
		return nil, fmt.Errorf("%w: rascunho não encontrado", core.ErrNotFound)
	}
	return &r, nil
}

func (f *rascunhoRepoFake) Excluir(chave string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.itens, chave)
	return nil
}

type tokenRepoFake struct {
	itens map[string]string
}

func novoTokenRepoFake() *tokenRepoFake {
	return &tokenRepoFake{itens: make(map[string]string)}
}

func (f *tokenRepoFake) ObterOuCriar(chave string, gerar func() string) (string, error) {
	if token, ok := f.itens[chave]; ok {
		return token, nil
	}
	f.itens[chave] = gerar()
	return f.itens[chave], nil
}

func (f *tokenRepoFake) Excluir(chave string) error {
	delete(f.itens, chave)
	return nil
}

func estadoComUF(uf string) *wizard.Estado {
	estado := wizard.NovoEstado()
	estado.Definir(wizard.ChaveUF, wizard.NovoTexto(uf))
	estado.PassoAtual = 1
	return estado
}

func TestSalvarECarregarDentroDoTTL(t *testing.T) {
	repo := novoRascunhoRepoFake()
	svc := NewRascunhoService(repo, novoTokenRepoFake(), 30*time.Minute).(*rascunhoServiceImpl)

	base := time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)
	svc.agora = func() time.Time { return base }

	if err := svc.Salvar("sessao", estadoComUF("SP")); err != nil {
		t.Fatalf("Salvar: %v", err)
	}

	svc.agora = func() time.Time { return base.Add(29 * time.Minute) }
	estado, err := svc.Carregar("sessao")
	if err != nil {
		t.Fatalf("Carregar: %v", err)
	}
	if estado == nil {
		t.Fatal("estado dentro do TTL deveria ser restaurado")
	}
	if got := estado.Obter(wizard.ChaveUF).ComoTexto(); got != "SP" {
		t.Errorf("UF restaurada = %q", got)
	}
	if estado.PassoAtual != 1 {
		t.Errorf("PassoAtual restaurado = %d", estado.PassoAtual)
	}
}

func TestCarregarAposTTLDescartaRascunho(t *testing.T) {
	repo := novoRascunhoRepoFake()
	svc := NewRascunhoService(repo, novoTokenRepoFake(), 30*time.Minute).(*rascunhoServiceImpl)

	base := time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)
	svc.agora = func() time.Time { return base }
	if err := svc.Salvar("sessao", estadoComUF("RS")); err != nil {
		t.Fatalf("Salvar: %v", err)
	}

	svc.agora = func() time.Time { return base.Add(31 * time.Minute) }
	estado, err := svc.Carregar("sessao")
	if err != nil {
		t.Fatalf("Carregar: %v", err)
	}
	if estado != nil {
		t.Error("estado expirado deveria ser descartado")
	}
	if _, ok := repo.itens["sessao"]; ok {
		t.Error("rascunho expirado deveria ser removido do repositório")
	}
}

func TestCarregarRascunhoCorrompidoDegradaParaAusente(t *testing.T) {
	repo := novoRascunhoRepoFake()
	svc := NewRascunhoService(repo, novoTokenRepoFake(), 30*time.Minute).(*rascunhoServiceImpl)

	repo.itens["sessao"] = models.DBRascunho{
		Chave:    "sessao",
		Snapshot: "{nao é json",
		SalvoEm:  time.Now().UTC(),
	}

	estado, err := svc.Carregar("sessao")
	if err != nil {
		t.Fatalf("Carregar: %v", err)
	}
	if estado != nil {
		t.Error("snapshot corrompido deveria degradar para ausente")
	}
	if _, ok := repo.itens["sessao"]; ok {
		t.Error("snapshot corrompido deveria ser removido")
	}
}

func TestLimparRemoveRascunhoEToken(t *testing.T) {
	repo := novoRascunhoRepoFake()
	tokens := novoTokenRepoFake()
	svc := NewRascunhoService(repo, tokens, 30*time.Minute)

	if err := svc.Salvar("sessao", estadoComUF("SP")); err != nil {
		t.Fatalf("Salvar: %v", err)
	}
	if _, err := svc.ObterOuCriarToken("sessao", func() string { return "tok-1" }); err != nil {
		t.Fatalf("ObterOuCriarToken: %v", err)
	}

	if err := svc.Limpar("sessao"); err != nil {
		t.Fatalf("Limpar: %v", err)
	}
	if _, ok := repo.itens["sessao"]; ok {
		t.Error("rascunho deveria ser removido")
	}
	if _, ok := tokens.itens["sessao"]; ok {
		t.Error("token pendente deveria ser removido")
	}
}

func TestTokenReutilizadoAteSerLimpo(t *testing.T) {
	svc := NewRascunhoService(novoRascunhoRepoFake(), novoTokenRepoFake(), 30*time.Minute)

	n := 0
	gerar := func() string { n++; return fmt.Sprintf("tok-%d", n) }

	t1, _ := svc.ObterOuCriarToken("sessao", gerar)
	t2, _ := svc.ObterOuCriarToken("sessao", gerar)
	if t1 != t2 {
		t.Errorf("retentativas do mesmo ciclo deveriam reutilizar o token: %q != %q", t1, t2)
	}

	if err := svc.Limpar("sessao"); err != nil {
		t.Fatalf("Limpar: %v", err)
	}
	t3, _ := svc.ObterOuCriarToken("sessao", gerar)
	if t3 == t1 {
		t.Error("novo ciclo após limpeza deveria gerar token novo")
	}
}
