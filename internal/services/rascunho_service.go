package services

import (
	"errors"
	"time"

	"github.com/Dukorsa/CRP_EMERGENCIAL_GO/internal/core"
	appLogger "github.com/Dukorsa/CRP_EMERGENCIAL_GO/internal/core/logger"
	"github.com/Dukorsa/CRP_EMERGENCIAL_GO/internal/repositories"
	"github.com/Dukorsa/CRP_EMERGENCIAL_GO/internal/wizard"
)

// RascunhoService define a interface para o ciclo de vida dos rascunhos de
// preenchimento: salvar a cada transição de passo, restaurar na volta do
// usuário (respeitando o TTL) e limpar após a finalização.
type RascunhoService interface {
	// Salvar grava o snapshot do estado da sessão.
	Salvar(chave string, estado *wizard.Estado) error
	// Carregar restaura o estado da sessão. Rascunho expirado ou corrompido é
	// removido e tratado como ausente (retorna nil sem erro).
	Carregar(chave string) (*wizard.Estado, error)
	// Limpar remove o rascunho e o token de idempotência pendente da sessão.
	Limpar(chave string) error
	// ObterOuCriarToken devolve o token de idempotência pendente da sessão.
	ObterOuCriarToken(chave string, gerar func() string) (string, error)
	// PersistenciaPara adapta o serviço à interface de persistência do
	// controlador de passos, amarrada a uma chave de sessão.
	PersistenciaPara(chave string) wizard.Persistencia
}

// rascunhoServiceImpl é a implementação de RascunhoService.
type rascunhoServiceImpl struct {
	repo      repositories.RascunhoRepository
	tokenRepo repositories.TokenRepository
	ttl       time.Duration
	agora     func() time.Time
}

// NewRascunhoService cria uma nova instância de RascunhoService.
func NewRascunhoService(repo repositories.RascunhoRepository, tokenRepo repositories.TokenRepository, ttl time.Duration) RascunhoService {
	if repo == nil || tokenRepo == nil {
		appLogger.Fatalf("Dependências nulas fornecidas para NewRascunhoService")
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &rascunhoServiceImpl{
		repo:      repo,
		tokenRepo: tokenRepo,
		ttl:       ttl,
		agora:     time.Now,
	}
}

// Salvar grava o snapshot do estado da sessão.
func (s *rascunhoServiceImpl) Salvar(chave string, estado *wizard.Estado) error {
	if estado == nil {
		return core.WrapErrorf(core.ErrInvalidInput, "estado nulo para salvar rascunho")
	}
	estado.SalvoEm = s.agora().UTC()
	snapshot, err := estado.Serializar()
	if err != nil {
		appLogger.Errorf("Falha ao serializar estado da sessão '%s': %v", chave, err)
		return core.WrapErrorf(err, "falha ao serializar rascunho")
	}
	return s.repo.Salvar(chave, snapshot, estado.PassoAtual, estado.SalvoEm)
}

// Carregar restaura o estado salvo da sessão. Três desfechos possíveis sem
// erro: estado restaurado, rascunho inexistente (nil) e rascunho expirado ou
// corrompido (removido e nil).
func (s *rascunhoServiceImpl) Carregar(chave string) (*wizard.Estado, error) {
	rascunho, err := s.repo.Carregar(chave)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	if s.agora().UTC().Sub(rascunho.SalvoEm) > s.ttl {
		appLogger.Infof("Rascunho da sessão '%s' expirado (salvo em %s); descartando.", chave, rascunho.SalvoEm.Format(time.RFC3339))
		if delErr := s.repo.Excluir(chave); delErr != nil {
			appLogger.Warnf("Falha ao remover rascunho expirado da sessão '%s': %v", chave, delErr)
		}
		return nil, nil
	}

	estado := wizard.DesserializarEstado(rascunho.Snapshot)
	if estado == nil {
		appLogger.Warnf("Rascunho da sessão '%s' corrompido; descartando.", chave)
		if delErr := s.repo.Excluir(chave); delErr != nil {
			appLogger.Warnf("Falha ao remover rascunho corrompido da sessão '%s': %v", chave, delErr)
		}
		return nil, nil
	}
	return estado, nil
}

// Limpar remove rascunho e token pendente da sessão. Só deve ser chamado após
// o reconhecimento de sucesso da finalização.
func (s *rascunhoServiceImpl) Limpar(chave string) error {
	if err := s.repo.Excluir(chave); err != nil {
		return err
	}
	return s.tokenRepo.Excluir(chave)
}

// ObterOuCriarToken delega ao repositório de tokens.
func (s *rascunhoServiceImpl) ObterOuCriarToken(chave string, gerar func() string) (string, error) {
	return s.tokenRepo.ObterOuCriar(chave, gerar)
}

// persistenciaDeSessao amarra o serviço a uma chave de sessão fixa.
type persistenciaDeSessao struct {
	servico RascunhoService
	chave   string
}

func (p *persistenciaDeSessao) Salvar(estado *wizard.Estado) error {
	return p.servico.Salvar(p.chave, estado)
}

// PersistenciaPara devolve um adaptador de persistência do controlador de
// passos para a sessão informada.
func (s *rascunhoServiceImpl) PersistenciaPara(chave string) wizard.Persistencia {
	return &persistenciaDeSessao{servico: s, chave: chave}
}
