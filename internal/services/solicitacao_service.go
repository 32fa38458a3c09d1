package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Dukorsa/CRP_EMERGENCIAL_GO/internal/codec"
	"github.com/Dukorsa/CRP_EMERGENCIAL_GO/internal/core"
	appLogger "github.com/Dukorsa/CRP_EMERGENCIAL_GO/internal/core/logger"
	"github.com/Dukorsa/CRP_EMERGENCIAL_GO/internal/data/models"
	"github.com/Dukorsa/CRP_EMERGENCIAL_GO/internal/fases"
	"github.com/Dukorsa/CRP_EMERGENCIAL_GO/internal/payload"
	"github.com/Dukorsa/CRP_EMERGENCIAL_GO/internal/repositories"
	"github.com/Dukorsa/CRP_EMERGENCIAL_GO/internal/wizard"
)

// SolicitacaoService define a interface do serviço de finalização: a
// validação autoritativa do preenchimento completo, a montagem do payload
// canônico e o registro da solicitação.
type SolicitacaoService interface {
	// Finalizar valida todos os campos, monta o payload e registra a
	// solicitação. Violações de validação retornam *core.ValidationError com
	// o mapa campo→mensagem completo. O rascunho e o token da sessão só são
	// limpos após o registro bem-sucedido.
	Finalizar(ctx context.Context, chave string, valores wizard.Valores) (*models.SolicitacaoPublic, payload.Payload, error)
	ListarTodas() ([]*models.SolicitacaoPublic, error)
	ObterPorToken(token string) (*models.SolicitacaoPublic, error)
}

// solicitacaoServiceImpl é a implementação de SolicitacaoService.
type solicitacaoServiceImpl struct {
	repo       repositories.SolicitacaoRepository
	rascunhos  RascunhoService
	planilha   PlanilhaService
	construtor *payload.Construtor
	agora      func() time.Time
}

// NewSolicitacaoService cria uma nova instância de SolicitacaoService.
func NewSolicitacaoService(
	repo repositories.SolicitacaoRepository,
	rascunhos RascunhoService,
	planilha PlanilhaService,
	construtor *payload.Construtor,
) SolicitacaoService {
	if repo == nil || rascunhos == nil || planilha == nil || construtor == nil {
		appLogger.Fatalf("Dependências nulas fornecidas para NewSolicitacaoService")
	}
	return &solicitacaoServiceImpl{
		repo:       repo,
		rascunhos:  rascunhos,
		planilha:   planilha,
		construtor: construtor,
		agora:      time.Now,
	}
}

// validarBase verifica os campos obrigatórios fora do bloco da fase.
func validarBase(vs wizard.Valores) map[string]string {
	violacoes := make(map[string]string)

	if vs.Obter(wizard.ChaveUF).Vazio() {
		violacoes[wizard.ChaveUF] = "Selecione a UF do ente."
	}
	if vs.Obter(wizard.ChaveEnte).Vazio() {
		violacoes[wizard.ChaveEnte] = "Informe o nome do ente."
	}
	cnpj := codec.DigitsOnly(vs.Obter(wizard.ChaveCNPJEnte).ComoTexto())
	if len(cnpj) != 14 || !codec.IsValidCNPJ(cnpj) {
		violacoes[wizard.ChaveCNPJEnte] = "Informe um CNPJ válido."
	}
	if vs.Obter(wizard.ChaveNomeRep).Vazio() {
		violacoes[wizard.ChaveNomeRep] = "Informe o nome do representante legal."
	}
	cpf := codec.DigitsOnly(vs.Obter(wizard.ChaveCPFRep).ComoTexto())
	if len(cpf) != 11 || !codec.IsValidCPF(cpf) {
		violacoes[wizard.ChaveCPFRep] = "Informe um CPF válido."
	}
	if !vs.Obter(wizard.ChaveDeclaracaoVeracidade).ComoBool() {
		violacoes[wizard.ChaveDeclaracaoVeracidade] = "Confirme a declaração de veracidade das informações."
	}
	return violacoes
}

// Finalizar executa o fluxo completo de finalização da solicitação.
func (s *solicitacaoServiceImpl) Finalizar(ctx context.Context, chave string, valores wizard.Valores) (*models.SolicitacaoPublic, payload.Payload, error) {
	// Validação autoritativa: todos os campos, todas as violações de uma vez.
	fase := fases.ResolverFase(valores)
	violacoes := validarBase(valores)
	for campo, mensagem := range fases.ValidarTudo(fase, valores) {
		violacoes[campo] = mensagem
	}
	if len(violacoes) > 0 {
		appLogger.Infof("Finalização da sessão '%s' rejeitada com %d violação(ões).", chave, len(violacoes))
		return nil, nil, core.NewValidationError("Preenchimento incompleto ou inválido.", violacoes)
	}

	// Token pendente da sessão: retentativas da mesma submissão reutilizam o
	// mesmo token até o reconhecimento de sucesso.
	token, err := s.rascunhos.ObterOuCriarToken(chave, s.construtor.NovoToken)
	if err != nil {
		return nil, nil, err
	}

	p, token := s.construtor.Construir(valores, token)

	payloadJSON, err := json.Marshal(p)
	if err != nil {
		return nil, nil, core.WrapErrorf(err, "falha ao serializar payload da solicitação")
	}

	registro := models.DBSolicitacao{
		Token:       token,
		CNPJEnte:    codec.DigitsOnly(valores.Obter(wizard.ChaveCNPJEnte).ComoTexto()),
		Ente:        valores.Obter(wizard.ChaveEnte).ComoTexto(),
		UF:          valores.Obter(wizard.ChaveUF).ComoTexto(),
		Fase:        fase,
		PayloadJSON: string(payloadJSON),
		CriadoEm:    s.agora().UTC(),
	}

	salvo, err := s.repo.Add(registro)
	if err != nil {
		// Em falha o token pendente permanece: a retentativa do usuário
		// reaproveita o mesmo token e o servidor deduplica.
		return nil, nil, err
	}

	// O registro na planilha é acompanhamento, não parte do contrato de
	// finalização; falha aqui não desfaz a solicitação já registrada.
	if err := s.planilha.Registrar(ctx, p); err != nil {
		appLogger.Warnf("Solicitação %d registrada, mas falhou o registro na planilha: %v", salvo.ID, err)
	}

	if err := s.rascunhos.Limpar(chave); err != nil {
		appLogger.Warnf("Solicitação %d registrada, mas falhou a limpeza do rascunho da sessão '%s': %v", salvo.ID, chave, err)
	}

	return models.ToSolicitacaoPublic(salvo), p, nil
}

// ListarTodas devolve todas as solicitações registradas.
func (s *solicitacaoServiceImpl) ListarTodas() ([]*models.SolicitacaoPublic, error) {
	registros, err := s.repo.GetAll()
	if err != nil {
		return nil, err
	}
	publicas := make([]*models.SolicitacaoPublic, 0, len(registros))
	for i := range registros {
		publicas = append(publicas, models.ToSolicitacaoPublic(&registros[i]))
	}
	return publicas, nil
}

// ObterPorToken busca uma solicitação pelo token de idempotência.
func (s *solicitacaoServiceImpl) ObterPorToken(token string) (*models.SolicitacaoPublic, error) {
	registro, err := s.repo.GetByToken(token)
	if err != nil {
		return nil, err
	}
	return models.ToSolicitacaoPublic(registro), nil
}
