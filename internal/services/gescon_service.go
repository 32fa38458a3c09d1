package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Dukorsa/CRP_EMERGENCIAL_GO/internal/codec"
	"github.com/Dukorsa/CRP_EMERGENCIAL_GO/internal/core"
	appLogger "github.com/Dukorsa/CRP_EMERGENCIAL_GO/internal/core/logger"
	"github.com/Dukorsa/CRP_EMERGENCIAL_GO/internal/data/models"
	"github.com/Dukorsa/CRP_EMERGENCIAL_GO/internal/netclient"
)

// GesconService define a interface do serviço de consulta ao registro Gescon:
// a existência de uma solicitação registrada para o CNPJ é pré-condição para
// avançar além da identificação do ente.
type GesconService interface {
	Consultar(ctx context.Context, cnpj string) (*models.GesconResultado, error)
}

// gesconServiceImpl é a implementação de GesconService.
type gesconServiceImpl struct {
	cliente *netclient.Cliente
	baseURL string
}

// NewGesconService cria uma nova instância de GesconService.
func NewGesconService(cliente *netclient.Cliente, baseURL string) GesconService {
	if cliente == nil {
		appLogger.Fatalf("Cliente HTTP não pode ser nil para NewGesconService")
	}
	if baseURL == "" {
		appLogger.Fatalf("URL base do Gescon não configurada para NewGesconService")
	}
	return &gesconServiceImpl{
		cliente: cliente,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Consultar busca a solicitação Gescon registrada para o CNPJ informado.
// CNPJ malformado é rejeitado antes de qualquer chamada de rede; ausência de
// registro vira ErrGesconNaoEncontrado.
func (s *gesconServiceImpl) Consultar(ctx context.Context, cnpj string) (*models.GesconResultado, error) {
	digitos := codec.DigitsOnly(cnpj)
	if len(digitos) != 14 {
		return nil, core.NewValidationError("CNPJ inválido.", map[string]string{"cnpj": "Informe um CNPJ com 14 dígitos."})
	}
	if !codec.IsValidCNPJ(digitos) {
		return nil, core.NewValidationError("CNPJ inválido.", map[string]string{"cnpj": "CNPJ inválido (dígitos verificadores não conferem)."})
	}

	var resultado models.GesconResultado
	url := fmt.Sprintf("%s/consulta", s.baseURL)
	err := s.cliente.PostJSON(ctx, url, map[string]string{"cnpj": digitos}, &resultado)
	if err != nil {
		var eh *netclient.ErroHTTP
		if errors.As(err, &eh) && eh.Status == http.StatusNotFound {
			appLogger.Infof("Consulta Gescon sem registro para o CNPJ %s.", codec.MaskCNPJ(digitos))
			return nil, fmt.Errorf("%w: nenhuma solicitação Gescon encontrada para o CNPJ %s", core.ErrGesconNaoEncontrado, codec.MaskCNPJ(digitos))
		}
		appLogger.Errorf("Erro na consulta Gescon para o CNPJ %s: %v", codec.MaskCNPJ(digitos), err)
		return nil, err
	}

	appLogger.Infof("Consulta Gescon encontrou protocolo '%s' para o CNPJ %s.", resultado.Protocolo, codec.MaskCNPJ(digitos))
	return &resultado, nil
}
