package services

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/Dukorsa/CRP_EMERGENCIAL_GO/internal/core"
	appLogger "github.com/Dukorsa/CRP_EMERGENCIAL_GO/internal/core/logger"
	"github.com/Dukorsa/CRP_EMERGENCIAL_GO/internal/payload"
	"github.com/Dukorsa/CRP_EMERGENCIAL_GO/internal/wizard"
)

// PlanilhaService registra cada solicitação finalizada como uma linha na
// planilha de acompanhamento da equipe.
type PlanilhaService interface {
	Registrar(ctx context.Context, p payload.Payload) error
}

// colunasPlanilha define a ordem das colunas da linha registrada.
var colunasPlanilha = []string{
	wizard.ChaveDataGeracao,
	wizard.ChaveHoraGeracao,
	wizard.ChaveUF,
	wizard.ChaveEnte,
	"CNPJ",
	wizard.ChaveEsfera,
	"FASE",
	wizard.ChaveNomeRep,
	"EMAIL",
	"TELEFONE",
	wizard.ChaveIdempotencia,
}

// sheetsPlanilhaService é a implementação sobre a API do Google Sheets.
type sheetsPlanilhaService struct {
	servico       *sheets.Service
	spreadsheetID string
	intervalo     string
}

// NewSheetsPlanilhaService cria o serviço de planilha autenticado por conta
// de serviço (arquivo de credenciais JSON).
func NewSheetsPlanilhaService(ctx context.Context, credentialsFile, spreadsheetID, intervalo string) (PlanilhaService, error) {
	if credentialsFile == "" || spreadsheetID == "" {
		return nil, fmt.Errorf("%w: credenciais ou ID da planilha ausentes", core.ErrConfiguration)
	}

	dados, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, core.WrapErrorf(err, "falha ao ler arquivo de credenciais do Google Sheets")
	}
	credenciais, err := google.CredentialsFromJSON(ctx, dados, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, core.WrapErrorf(err, "credenciais do Google Sheets inválidas")
	}

	servico, err := sheets.NewService(ctx, option.WithTokenSource(credenciais.TokenSource))
	if err != nil {
		appLogger.Errorf("Falha ao inicializar cliente do Google Sheets: %v", err)
		return nil, core.WrapErrorf(err, "falha ao inicializar cliente do Google Sheets")
	}
	return &sheetsPlanilhaService{
		servico:       servico,
		spreadsheetID: spreadsheetID,
		intervalo:     intervalo,
	}, nil
}

// Registrar anexa a linha da solicitação na planilha.
func (s *sheetsPlanilhaService) Registrar(ctx context.Context, p payload.Payload) error {
	linha := make([]interface{}, 0, len(colunasPlanilha))
	for _, coluna := range colunasPlanilha {
		valor, ok := p[coluna]
		if !ok {
			valor = ""
		}
		linha = append(linha, fmt.Sprintf("%v", valor))
	}

	corpo := &sheets.ValueRange{Values: [][]interface{}{linha}}
	_, err := s.servico.Spreadsheets.Values.
		Append(s.spreadsheetID, s.intervalo, corpo).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		appLogger.Errorf("Falha ao registrar solicitação na planilha '%s': %v", s.spreadsheetID, err)
		return fmt.Errorf("%w: %v", core.ErrPlanilha, err)
	}
	appLogger.Debugf("Linha registrada na planilha '%s' (%s).", s.spreadsheetID, s.intervalo)
	return nil
}

// planilhaDesativada é usada quando a integração não está configurada.
type planilhaDesativada struct{}

func (planilhaDesativada) Registrar(context.Context, payload.Payload) error {
	return nil
}

// NewPlanilhaDesativada devolve uma implementação inerte de PlanilhaService.
func NewPlanilhaDesativada() PlanilhaService {
	return planilhaDesativada{}
}
