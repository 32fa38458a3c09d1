package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Dukorsa/CRP_EMERGENCIAL_GO/internal/core"
	appLogger "github.com/Dukorsa/CRP_EMERGENCIAL_GO/internal/core/logger"
	"github.com/Dukorsa/CRP_EMERGENCIAL_GO/internal/data"
	"github.com/Dukorsa/CRP_EMERGENCIAL_GO/internal/netclient"
	"github.com/Dukorsa/CRP_EMERGENCIAL_GO/internal/payload"
	"github.com/Dukorsa/CRP_EMERGENCIAL_GO/internal/renderer"
	"github.com/Dukorsa/CRP_EMERGENCIAL_GO/internal/repositories"
	"github.com/Dukorsa/CRP_EMERGENCIAL_GO/internal/server"
	"github.com/Dukorsa/CRP_EMERGENCIAL_GO/internal/services"
)

func main() {
	// --- 1. Carregar Configurações ---
	cfg, err := core.LoadConfig(".env")
	if err != nil {
		log.Fatalf("Erro CRÍTICO ao carregar configuração: %v", err)
	}

	// --- 2. Configurar Logger ---
	if err := appLogger.SetupLogger(cfg); err != nil {
		log.Fatalf("Erro CRÍTICO ao configurar logger: %v", err)
	}
	appLogger.Info("=====================================================")
	appLogger.Infof("Iniciando %s v%s...", cfg.AppName, cfg.AppVersion)
	appLogger.Debugf("Modo Debug: %t", cfg.AppDebug)
	appLogger.Info("=====================================================")

	// --- 3. Inicializar Banco de Dados ---
	db, err := data.InitializeDB(cfg)
	if err != nil {
		appLogger.Fatalf("Erro CRÍTICO ao inicializar banco de dados: %v", err)
	}
	defer func() {
		if err := data.CloseDB(db); err != nil {
			appLogger.Errorf("Erro ao fechar conexão com banco de dados: %v", err)
		} else {
			appLogger.Info("Conexão com banco de dados fechada.")
		}
	}()
	appLogger.Info("Banco de dados inicializado com sucesso.")

	// --- 4. Inicializar Repositórios ---
	rascunhoRepo := repositories.NewGormRascunhoRepository(db)
	tokenRepo := repositories.NewGormTokenRepository(db)
	solicitacaoRepo := repositories.NewGormSolicitacaoRepository(db)

	// --- 5. Inicializar Serviços ---
	cliente := netclient.NovoCliente()

	rascunhoService := services.NewRascunhoService(rascunhoRepo, tokenRepo, cfg.RascunhoTTL)

	var planilhaService services.PlanilhaService
	if cfg.SheetsCredentialsFile != "" && cfg.SheetsSpreadsheetID != "" {
		ps, errPlanilha := services.NewSheetsPlanilhaService(context.Background(), cfg.SheetsCredentialsFile, cfg.SheetsSpreadsheetID, cfg.SheetsRange)
		if errPlanilha != nil {
			appLogger.Warnf("Falha ao inicializar integração com Google Sheets: %v. Registro em planilha desabilitado.", errPlanilha)
			planilhaService = services.NewPlanilhaDesativada()
		} else {
			planilhaService = ps
			appLogger.Info("Integração com Google Sheets inicializada.")
		}
	} else {
		appLogger.Info("Configuração do Google Sheets incompleta. Registro em planilha desabilitado.")
		planilhaService = services.NewPlanilhaDesativada()
	}

	construtor := payload.NovoConstrutor()
	solicitacaoService := services.NewSolicitacaoService(solicitacaoRepo, rascunhoService, planilhaService, construtor)
	exportService := services.NewExportService(solicitacaoService, cfg.ExportDir)

	var gesconService services.GesconService
	if cfg.GesconBaseURL != "" {
		gesconService = services.NewGesconService(cliente, cfg.GesconBaseURL)
		appLogger.Info("Serviço de consulta Gescon inicializado.")
	} else {
		appLogger.Info("URL do Gescon não configurada. Consulta Gescon desabilitada.")
	}

	var renderizador renderer.RenderizadorPDF
	if cfg.RendererURL != "" {
		renderizador = renderer.NovoRenderizadorHTTP(cliente, cfg.RendererURL)
		appLogger.Info("Renderizador de PDF inicializado.")
	} else {
		appLogger.Info("URL do renderizador não configurada. Geração de PDF desabilitada.")
	}

	// --- 6. Subir Servidor HTTP ---
	srv := server.NewServer(cfg, solicitacaoService, gesconService, rascunhoService, renderizador, exportService)

	erros := make(chan error, 1)
	go func() {
		erros <- srv.Start()
	}()

	sinais := make(chan os.Signal, 1)
	signal.Notify(sinais, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-erros:
		if err != nil {
			appLogger.Fatalf("Erro CRÍTICO no servidor HTTP: %v", err)
		}
	case sinal := <-sinais:
		appLogger.Infof("Sinal %s recebido. Encerrando...", sinal)
		ctx, cancelar := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancelar()
		if err := srv.Shutdown(ctx); err != nil {
			appLogger.Errorf("Erro no encerramento do servidor HTTP: %v", err)
		}
	}

	appLogger.Infof("%s encerrado.", cfg.AppName)
}
