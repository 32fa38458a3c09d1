package repositories

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/Dukorsa/CRP_EMERGENCIAL_GO/internal/core"
	appLogger "github.com/Dukorsa/CRP_EMERGENCIAL_GO/internal/core/logger"
	"github.com/Dukorsa/CRP_EMERGENCIAL_GO/internal/data/models"
)

// SolicitacaoRepository define a interface para operações no repositório de
// solicitações finalizadas.
type SolicitacaoRepository interface {
	// Add insere a solicitação. Se o token de idempotência já foi gravado por
	// uma tentativa anterior, retorna o registro existente sem duplicar.
	Add(solicitacao models.DBSolicitacao) (*models.DBSolicitacao, error)
	GetByToken(token string) (*models.DBSolicitacao, error)
	GetAll() ([]models.DBSolicitacao, error)
}

// gormSolicitacaoRepository é a implementação GORM de SolicitacaoRepository.
type gormSolicitacaoRepository struct {
	db *gorm.DB
}

// NewGormSolicitacaoRepository cria uma nova instância de gormSolicitacaoRepository.
func NewGormSolicitacaoRepository(db *gorm.DB) SolicitacaoRepository {
	if db == nil {
		appLogger.Fatalf("gorm.DB não pode ser nil para NewGormSolicitacaoRepository")
	}
	return &gormSolicitacaoRepository{db: db}
}

// Add insere uma nova solicitação, deduplicando pelo token de idempotência.
func (r *gormSolicitacaoRepository) Add(solicitacao models.DBSolicitacao) (*models.DBSolicitacao, error) {
	if solicitacao.Token == "" {
		return nil, fmt.Errorf("%w: solicitação sem token de idempotência", core.ErrInvalidInput)
	}

	result := r.db.Create(&solicitacao)
	if result.Error != nil {
		// Retentativa cuja gravação anterior chegou ao banco: o índice único
		// do token acusa o duplicado e o registro original é devolvido.
		if ehViolacaoDeUnicidade(result.Error) {
			existente, err := r.GetByToken(solicitacao.Token)
			if err == nil {
				appLogger.Infof("Solicitação com token '%s' já registrada (ID %d); retentativa deduplicada.", solicitacao.Token, existente.ID)
				return existente, nil
			}
		}
		appLogger.Errorf("Erro ao registrar solicitação (token '%s'): %v", solicitacao.Token, result.Error)
		return nil, core.WrapErrorf(result.Error, "falha ao registrar solicitação (GORM)")
	}

	appLogger.Infof("Nova solicitação registrada: ente '%s' (%s), fase %s (ID %d).",
		solicitacao.Ente, solicitacao.CNPJEnte, solicitacao.Fase, solicitacao.ID)
	return &solicitacao, nil
}

// GetByToken busca uma solicitação pelo token de idempotência.
func (r *gormSolicitacaoRepository) GetByToken(token string) (*models.DBSolicitacao, error) {
	var solicitacao models.DBSolicitacao
	result := r.db.Where("token = ?", token).First(&solicitacao)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: solicitação com token '%s' não encontrada", core.ErrNotFound, token)
		}
		appLogger.Errorf("Erro ao buscar solicitação pelo token '%s': %v", token, result.Error)
		return nil, core.WrapErrorf(result.Error, "falha ao buscar solicitação por token (GORM)")
	}
	return &solicitacao, nil
}

// GetAll busca todas as solicitações, mais recentes primeiro.
func (r *gormSolicitacaoRepository) GetAll() ([]models.DBSolicitacao, error) {
	var solicitacoes []models.DBSolicitacao
	if err := r.db.Order("criado_em DESC").Find(&solicitacoes).Error; err != nil {
		appLogger.Errorf("Erro ao buscar solicitações: %v", err)
		return nil, core.WrapErrorf(err, "falha ao buscar lista de solicitações (GORM)")
	}
	return solicitacoes, nil
}

// ehViolacaoDeUnicidade detecta violação de índice único de forma portável
// entre SQLite e PostgreSQL.
func ehViolacaoDeUnicidade(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
