package repositories

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/Dukorsa/CRP_EMERGENCIAL_GO/internal/core"
	appLogger "github.com/Dukorsa/CRP_EMERGENCIAL_GO/internal/core/logger"
	"github.com/Dukorsa/CRP_EMERGENCIAL_GO/internal/data/models"
)

// TokenRepository define a interface para o ciclo de vida da chave de
// idempotência de uma sessão: o token só é removido depois que o servidor
// reconhece o sucesso da submissão.
type TokenRepository interface {
	// ObterOuCriar retorna o token pendente da sessão, gerando e persistindo
	// um novo via gerar() quando ainda não existe.
	ObterOuCriar(chave string, gerar func() string) (string, error)
	Excluir(chave string) error
}

// gormTokenRepository é a implementação GORM de TokenRepository.
type gormTokenRepository struct {
	db *gorm.DB
}

// NewGormTokenRepository cria uma nova instância de gormTokenRepository.
func NewGormTokenRepository(db *gorm.DB) TokenRepository {
	if db == nil {
		appLogger.Fatalf("gorm.DB não pode ser nil para NewGormTokenRepository")
	}
	return &gormTokenRepository{db: db}
}

// ObterOuCriar devolve o token pendente da sessão, criando um quando não há.
// Retentativas da mesma submissão reutilizam o mesmo token.
func (r *gormTokenRepository) ObterOuCriar(chave string, gerar func() string) (string, error) {
	if chave == "" {
		return "", fmt.Errorf("%w: chave de sessão vazia para token de idempotência", core.ErrInvalidInput)
	}

	var registro models.DBTokenIdempotencia
	err := r.db.Where("chave = ?", chave).First(&registro).Error
	if err == nil {
		return registro.Token, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		appLogger.Errorf("Erro ao buscar token de idempotência da sessão '%s': %v", chave, err)
		return "", core.WrapErrorf(err, "falha ao buscar token de idempotência (GORM)")
	}

	registro = models.DBTokenIdempotencia{
		Chave:    chave,
		Token:    gerar(),
		CriadoEm: time.Now().UTC(),
	}
	if err := r.db.Create(&registro).Error; err != nil {
		// Corrida com outra requisição da mesma sessão: o índice único em
		// chave garante um vencedor; perder a corrida significa reler.
		var existente models.DBTokenIdempotencia
		if lerErr := r.db.Where("chave = ?", chave).First(&existente).Error; lerErr == nil {
			return existente.Token, nil
		}
		appLogger.Errorf("Erro ao criar token de idempotência da sessão '%s': %v", chave, err)
		return "", core.WrapErrorf(err, "falha ao criar token de idempotência (GORM)")
	}
	appLogger.Debugf("Token de idempotência criado para a sessão '%s'.", chave)
	return registro.Token, nil
}

// Excluir remove o token pendente da sessão. Chave inexistente não é erro.
func (r *gormTokenRepository) Excluir(chave string) error {
	result := r.db.Where("chave = ?", chave).Delete(&models.DBTokenIdempotencia{})
	if result.Error != nil {
		appLogger.Errorf("Erro ao excluir token de idempotência da sessão '%s': %v", chave, result.Error)
		return core.WrapErrorf(result.Error, "falha ao excluir token de idempotência (GORM)")
	}
	return nil
}
