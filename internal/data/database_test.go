package data

import (
	"path/filepath"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Dukorsa/CRP_EMERGENCIAL_GO/internal/data/models"
)

func abrirSQLiteDeTeste(t *testing.T) *gorm.DB {
	t.Helper()
	caminho := filepath.Join(t.TempDir(), "teste.db")
	db, err := gorm.Open(sqlite.Open(caminho), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("abertura do SQLite de teste: %v", err)
	}
	return db
}

// O motor padrão é SQLite; o esquema inteiro precisa migrar nele sem DDL
// específico de outro dialeto (ex: DEFAULT now()).
func TestAutoMigrateCompletaNoSQLite(t *testing.T) {
	db := abrirSQLiteDeTeste(t)

	err := db.AutoMigrate(
		&models.DBRascunho{},
		&models.DBTokenIdempotencia{},
		&models.DBSolicitacao{},
	)
	if err != nil {
		t.Fatalf("AutoMigrate no SQLite: %v", err)
	}

	for _, tabela := range []string{"rascunhos", "tokens_idempotencia", "solicitacoes"} {
		if !db.Migrator().HasTable(tabela) {
			t.Errorf("tabela %q não criada", tabela)
		}
	}

	// Inserção básica confirma que as colunas obrigatórias funcionam sem
	// defaults de SQL.
	token := models.DBTokenIdempotencia{
		Chave:    "sessao-1",
		Token:    "tok-1",
		CriadoEm: time.Now().UTC(),
	}
	if err := db.Create(&token).Error; err != nil {
		t.Fatalf("inserção de token: %v", err)
	}
}
