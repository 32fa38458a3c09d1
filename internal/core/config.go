package core

import (
	"errors"
	"fmt"
	"log" // Usado para logs iniciais antes que o logger da aplicação esteja configurado
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config struct para armazenar todas as configurações da aplicação.
type Config struct {
	AppName    string
	AppVersion string
	AppDebug   bool

	// HTTP
	ServerHost      string
	ServerPort      int
	ShutdownTimeout time.Duration
	CORSOrigins     []string

	// Database
	DBEngine   string
	DBName     string
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string

	// Logging
	LogDir         string
	LogLevel       string
	LogMaxBytes    int
	LogBackupCount int
	LogToConsole   bool

	// Wizard / Rascunho
	RascunhoTTL time.Duration // Rascunhos mais antigos que isso são descartados no load

	// Integrações externas
	GesconBaseURL  string
	RendererURL    string
	UpstreamAPIKey string // Chave injetada pelo proxy nas chamadas upstream; nunca chega ao navegador
	UpstreamBase   string
	ProxyPrefix    string
	ProxyAllowlist []string

	// Google Sheets (registro das solicitações finalizadas)
	SheetsCredentialsFile string
	SheetsSpreadsheetID   string
	SheetsRange           string

	// Export
	ExportDir string
}

// LoadConfig carrega as configurações do arquivo .env especificado ou encontrado na árvore de diretórios.
func LoadConfig(envPath string) (*Config, error) {
	foundEnvPath, err := findEnvFile(envPath)
	if err != nil {
		log.Printf("Aviso: Arquivo .env em '%s' não encontrado ou inacessível: %v. Tentando carregar variáveis de ambiente globais.", envPath, err)
		if loadErr := godotenv.Load(); loadErr != nil {
			log.Printf("Aviso: Nenhum arquivo .env carregado: %v. Usando apenas variáveis de ambiente existentes ou defaults.", loadErr)
		}
	} else {
		log.Printf("Carregando configurações de: %s", foundEnvPath)
		if err := godotenv.Load(foundEnvPath); err != nil {
			log.Printf("Aviso: Erro ao carregar arquivo .env de '%s': %v. Usando valores padrão ou variáveis de ambiente existentes.", foundEnvPath, err)
		}
	}

	cfg := &Config{}

	cfg.AppName = getEnv("APP_NAME", "CRP Emergencial GO")
	cfg.AppVersion = getEnv("APP_VERSION", "1.0.0-go")
	cfg.AppDebug = getEnvAsBool("APP_DEBUG", false)

	cfg.ServerHost = getEnv("APP_SERVER_HOST", "0.0.0.0")
	cfg.ServerPort = getEnvAsInt("APP_SERVER_PORT", 8080)
	cfg.ShutdownTimeout = getEnvAsDuration("APP_SHUTDOWN_TIMEOUT", 15)
	cfg.CORSOrigins = getEnvAsList("APP_CORS_ORIGINS", []string{"*"})

	cfg.DBEngine = getEnv("APP_DB_ENGINE", "sqlite")
	cfg.DBName = getEnv("APP_DB_NAME", "crp_emergencial_go.db")
	cfg.DBHost = getEnv("APP_DB_HOST", "localhost")
	cfg.DBPort = getEnvAsInt("APP_DB_PORT", 5432)
	cfg.DBUser = getEnv("APP_DB_USER", "user")
	cfg.DBPassword = getEnv("APP_DB_PASSWORD", "password")

	cfg.LogDir = getEnv("APP_LOG_DIR", "./app_logs")
	cfg.LogLevel = strings.ToUpper(getEnv("APP_LOG_LEVEL", "INFO"))
	cfg.LogMaxBytes = getEnvAsInt("APP_LOG_MAX_BYTES", 5*1024*1024) // 5MB
	cfg.LogBackupCount = getEnvAsInt("APP_LOG_BACKUP_COUNT", 7)
	cfg.LogToConsole = getEnvAsBool("APP_LOG_TO_CONSOLE", true)

	cfg.RascunhoTTL = getEnvAsDuration("APP_RASCUNHO_TTL", 1800) // 30 minutos

	cfg.GesconBaseURL = getEnv("APP_GESCON_BASE_URL", "")
	cfg.RendererURL = getEnv("APP_RENDERER_URL", "")
	cfg.UpstreamAPIKey = getEnv("APP_UPSTREAM_API_KEY", "")
	cfg.UpstreamBase = getEnv("APP_UPSTREAM_BASE", "")
	cfg.ProxyPrefix = getEnv("APP_PROXY_PREFIX", "/proxy/")
	cfg.ProxyAllowlist = getEnvAsList("APP_PROXY_ALLOWLIST", []string{"gescon/consulta", "pdf"})

	cfg.SheetsCredentialsFile = getEnv("APP_SHEETS_CREDENTIALS_FILE", "")
	cfg.SheetsSpreadsheetID = getEnv("APP_SHEETS_SPREADSHEET_ID", "")
	cfg.SheetsRange = getEnv("APP_SHEETS_RANGE", "Solicitacoes!A:Z")

	cfg.ExportDir = getEnv("APP_EXPORT_DIR", "./app_exports")

	// Validações de Configurações Críticas
	if !cfg.AppDebug && cfg.UpstreamBase != "" && cfg.UpstreamAPIKey == "" {
		return nil, errors.New("FATAL: APP_UPSTREAM_API_KEY é obrigatória quando APP_UPSTREAM_BASE está configurada (AppDebug=false)")
	}
	if !strings.HasSuffix(cfg.ProxyPrefix, "/") {
		cfg.ProxyPrefix += "/"
	}

	// Garantir que diretórios essenciais existam. LogDir é crítico.
	if err := ensureDir(cfg.LogDir, true); err != nil {
		return nil, fmt.Errorf("falha ao criar diretório de log essencial '%s': %w", cfg.LogDir, err)
	}
	if cfg.DBEngine == "sqlite" {
		sqliteDir := filepath.Dir(cfg.DBName)
		if sqliteDir != "." && sqliteDir != string(filepath.Separator) {
			if err := ensureDir(sqliteDir, true); err != nil {
				return nil, fmt.Errorf("falha ao criar diretório para banco de dados SQLite '%s': %w", sqliteDir, err)
			}
		}
	}
	// Diretório de exportação: avisa em caso de falha, mas não é fatal.
	_ = ensureDir(cfg.ExportDir, false)

	log.Println("Configurações carregadas e validadas.")
	return cfg, nil
}

// findEnvFile tenta localizar o arquivo .env.
// Primeiro no path fornecido, depois subindo na árvore de diretórios a partir do CWD.
func findEnvFile(envPath string) (string, error) {
	if _, err := os.Stat(envPath); err == nil {
		absPath, _ := filepath.Abs(envPath)
		return absPath, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("não foi possível obter o diretório de trabalho atual: %w", err)
	}

	// Tenta encontrar subindo na árvore de diretórios (máximo 5 níveis).
	for i := 0; i < 5; i++ {
		tryPath := filepath.Join(cwd, ".env")
		if _, err := os.Stat(tryPath); err == nil {
			return tryPath, nil
		}
		parent := filepath.Dir(cwd)
		if parent == cwd { // Chegou à raiz
			break
		}
		cwd = parent
	}
	return "", fmt.Errorf("arquivo .env não encontrado no caminho '%s' ou nos diretórios pais", envPath)
}

// ensureDir garante que um diretório exista, criando-o se necessário.
// Se 'critical' for true, retorna erro em caso de falha. Caso contrário, apenas loga um aviso.
func ensureDir(dirPath string, critical bool) error {
	absPath, err := filepath.Abs(dirPath)
	if err != nil {
		msg := fmt.Sprintf("Não foi possível resolver o caminho absoluto para '%s': %v", dirPath, err)
		if critical {
			log.Println("ERRO CRÍTICO:", msg)
			return errors.New(msg)
		}
		log.Println("AVISO:", msg)
		return nil
	}

	if err := os.MkdirAll(absPath, os.ModePerm); err != nil {
		msg := fmt.Sprintf("Não foi possível criar o diretório '%s': %v", absPath, err)
		if critical {
			log.Println("ERRO CRÍTICO:", msg)
			return errors.New(msg)
		}
		log.Println("AVISO:", msg)
	}
	return nil
}

// getEnv recupera o valor de uma variável de ambiente ou retorna um fallback.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvAsInt recupera uma variável de ambiente como int ou retorna um fallback.
func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

// getEnvAsBool recupera uma variável de ambiente como bool ou retorna um fallback.
func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration recupera uma variável de ambiente como time.Duration em segundos, ou retorna um fallback.
func getEnvAsDuration(key string, fallbackSeconds int) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(value) * time.Second
	}
	return time.Duration(fallbackSeconds) * time.Second
}

// getEnvAsList recupera uma variável de ambiente como lista separada por vírgulas.
func getEnvAsList(key string, fallback []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
