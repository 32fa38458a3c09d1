// Package renderer é a fronteira com o serviço externo de renderização de
// documentos: recebe o payload canônico e devolve o PDF da solicitação.
package renderer

import (
	"context"
	"fmt"
	"strings"

	"github.com/Dukorsa/CRP_EMERGENCIAL_GO/internal/core"
	appLogger "github.com/Dukorsa/CRP_EMERGENCIAL_GO/internal/core/logger"
	"github.com/Dukorsa/CRP_EMERGENCIAL_GO/internal/netclient"
	"github.com/Dukorsa/CRP_EMERGENCIAL_GO/internal/payload"
)

// RenderizadorPDF renderiza o payload de uma solicitação em PDF.
type RenderizadorPDF interface {
	Renderizar(ctx context.Context, p payload.Payload) ([]byte, error)
}

// renderizadorHTTP chama o serviço remoto de renderização.
type renderizadorHTTP struct {
	cliente *netclient.Cliente
	url     string
}

// NovoRenderizadorHTTP cria o renderizador apontado para o serviço remoto.
func NovoRenderizadorHTTP(cliente *netclient.Cliente, url string) RenderizadorPDF {
	if cliente == nil {
		appLogger.Fatalf("Cliente HTTP não pode ser nil para NovoRenderizadorHTTP")
	}
	if url == "" {
		appLogger.Fatalf("URL do serviço de renderização não configurada")
	}
	return &renderizadorHTTP{cliente: cliente, url: url}
}

// Renderizar envia o payload embrulhado em {"data": ...}, o contrato do
// serviço de modelos, e valida que a resposta é de fato um PDF.
func (r *renderizadorHTTP) Renderizar(ctx context.Context, p payload.Payload) ([]byte, error) {
	corpo := map[string]interface{}{"data": p}

	dados, tipoConteudo, err := r.cliente.PostBinario(ctx, r.url, corpo)
	if err != nil {
		appLogger.Errorf("Falha na renderização do PDF: %v", err)
		return nil, err
	}

	if len(dados) == 0 {
		return nil, fmt.Errorf("%w: serviço de renderização devolveu resposta vazia", core.ErrRenderizacao)
	}
	// O serviço responde application/pdf; qualquer outra coisa (HTML de erro,
	// página de manutenção de um proxy intermediário) é falha de renderização.
	if !strings.HasPrefix(tipoConteudo, "application/pdf") && !ehPDF(dados) {
		appLogger.Warnf("Serviço de renderização devolveu Content-Type inesperado: %s", tipoConteudo)
		return nil, fmt.Errorf("%w: resposta do serviço não é um PDF (%s)", core.ErrRenderizacao, tipoConteudo)
	}
	return dados, nil
}

// ehPDF verifica a assinatura do arquivo.
func ehPDF(dados []byte) bool {
	return len(dados) >= 5 && string(dados[:5]) == "%PDF-"
}
