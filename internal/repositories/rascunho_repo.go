package repositories

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Dukorsa/CRP_EMERGENCIAL_GO/internal/core"
	appLogger "github.com/Dukorsa/CRP_EMERGENCIAL_GO/internal/core/logger"
	"github.com/Dukorsa/CRP_EMERGENCIAL_GO/internal/data/models"
)

// RascunhoRepository define a interface para operações no repositório de
// rascunhos de preenchimento.
type RascunhoRepository interface {
	Salvar(chave string, snapshot string, passoAtual int, salvoEm time.Time) error
	Carregar(chave string) (*models.DBRascunho, error)
	Excluir(chave string) error
}

// gormRascunhoRepository é a implementação GORM de RascunhoRepository.
type gormRascunhoRepository struct {
	db *gorm.DB
}

// NewGormRascunhoRepository cria uma nova instância de gormRascunhoRepository.
func NewGormRascunhoRepository(db *gorm.DB) RascunhoRepository {
	if db == nil {
		appLogger.Fatalf("gorm.DB não pode ser nil para NewGormRascunhoRepository")
	}
	return &gormRascunhoRepository{db: db}
}

// Salvar grava (ou sobrescreve) o snapshot da sessão. Cada chave de sessão
// tem no máximo um rascunho; saves subsequentes substituem o anterior.
func (r *gormRascunhoRepository) Salvar(chave string, snapshot string, passoAtual int, salvoEm time.Time) error {
	if chave == "" {
		return fmt.Errorf("%w: chave de sessão vazia para salvar rascunho", core.ErrInvalidInput)
	}

	rascunho := models.DBRascunho{
		Chave:      chave,
		Snapshot:   snapshot,
		PassoAtual: passoAtual,
		SalvoEm:    salvoEm,
	}

	// Upsert pela chave única da sessão.
	result := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "chave"}},
		DoUpdates: clause.AssignmentColumns([]string{"snapshot", "passo_atual", "salvo_em"}),
	}).Create(&rascunho)
	if result.Error != nil {
		appLogger.Errorf("Erro ao salvar rascunho da sessão '%s': %v", chave, result.Error)
		return core.WrapErrorf(result.Error, "falha ao salvar rascunho (GORM)")
	}
	return nil
}

// Carregar busca o rascunho da sessão pela chave.
func (r *gormRascunhoRepository) Carregar(chave string) (*models.DBRascunho, error) {
	var rascunho models.DBRascunho
	result := r.db.Where("chave = ?", chave).First(&rascunho)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: rascunho da sessão '%s' não encontrado", core.ErrNotFound, chave)
		}
		appLogger.Errorf("Erro ao carregar rascunho da sessão '%s': %v", chave, result.Error)
		return nil, core.WrapErrorf(result.Error, "falha ao carregar rascunho (GORM)")
	}
	return &rascunho, nil
}

// Excluir remove o rascunho da sessão. Excluir uma chave inexistente não é
// erro: a limpeza pós-finalização e a expiração de TTL podem correr em dobro.
func (r *gormRascunhoRepository) Excluir(chave string) error {
	result := r.db.Where("chave = ?", chave).Delete(&models.DBRascunho{})
	if result.Error != nil {
		appLogger.Errorf("Erro ao excluir rascunho da sessão '%s': %v", chave, result.Error)
		return core.WrapErrorf(result.Error, "falha ao excluir rascunho (GORM)")
	}
	if result.RowsAffected > 0 {
		appLogger.Debugf("Rascunho da sessão '%s' removido.", chave)
	}
	return nil
}
