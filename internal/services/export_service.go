package services

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/Dukorsa/CRP_EMERGENCIAL_GO/internal/codec"
	"github.com/Dukorsa/CRP_EMERGENCIAL_GO/internal/core"
	appLogger "github.com/Dukorsa/CRP_EMERGENCIAL_GO/internal/core/logger"
)

// ExportService exporta as solicitações registradas para uma planilha XLSX
// no diretório de exportação configurado.
type ExportService interface {
	// ExportarSolicitacoes gera o arquivo e devolve o caminho final.
	ExportarSolicitacoes() (string, error)
}

// exportServiceImpl é a implementação de ExportService.
type exportServiceImpl struct {
	solicitacoes SolicitacaoService
	exportDir    string
	agora        func() time.Time
}

// NewExportService cria uma nova instância de ExportService.
func NewExportService(solicitacoes SolicitacaoService, exportDir string) ExportService {
	if solicitacoes == nil {
		appLogger.Fatalf("Dependências nulas fornecidas para NewExportService")
	}
	return &exportServiceImpl{
		solicitacoes: solicitacoes,
		exportDir:    exportDir,
		agora:        time.Now,
	}
}

var cabecalhoExport = []string{"ID", "Token", "CNPJ do Ente", "Ente", "UF", "Fase", "Registrada em"}

// ExportarSolicitacoes gera o XLSX com uma linha por solicitação registrada.
func (s *exportServiceImpl) ExportarSolicitacoes() (string, error) {
	registros, err := s.solicitacoes.ListarTodas()
	if err != nil {
		return "", err
	}

	xlsx := excelize.NewFile()
	const aba = "Solicitacoes"
	idx, err := xlsx.NewSheet(aba)
	if err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrExport, err)
	}
	xlsx.SetActiveSheet(idx)
	_ = xlsx.DeleteSheet("Sheet1")

	estiloCabecalho, _ := xlsx.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#1A659E"}, Pattern: 1},
		Font:      &excelize.Font{Color: "FFFFFF", Bold: true, Size: 11},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	for col, titulo := range cabecalhoExport {
		celula, _ := excelize.CoordinatesToCellName(col+1, 1)
		_ = xlsx.SetCellValue(aba, celula, titulo)
		_ = xlsx.SetCellStyle(aba, celula, celula, estiloCabecalho)
	}

	for linha, registro := range registros {
		valores := []interface{}{
			registro.ID,
			registro.Token,
			codec.MaskCNPJ(registro.CNPJEnte),
			registro.Ente,
			registro.UF,
			registro.Fase,
			registro.CriadoEm.Format("02/01/2006 15:04"),
		}
		for col, valor := range valores {
			celula, _ := excelize.CoordinatesToCellName(col+1, linha+2)
			_ = xlsx.SetCellValue(aba, celula, valor)
		}
	}

	nome := fmt.Sprintf("solicitacoes_%s.xlsx", s.agora().Format("20060102_150405"))
	caminho := filepath.Join(s.exportDir, nome)
	if err := xlsx.SaveAs(caminho); err != nil {
		appLogger.Errorf("Falha ao salvar exportação em '%s': %v", caminho, err)
		return "", fmt.Errorf("%w: falha ao salvar arquivo: %v", core.ErrExport, err)
	}

	appLogger.Infof("Exportação de %d solicitação(ões) salva em '%s'.", len(registros), caminho)
	return caminho, nil
}
