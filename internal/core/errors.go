package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Erros sentinela pré-definidos para tipos comuns de falha na aplicação.
// Estes podem ser verificados usando errors.Is(err, ErrNotFound).
var (
	// --- Erros Gerais ---
	ErrInternal      = errors.New("erro interno da aplicação")
	ErrConfiguration = errors.New("erro de configuração da aplicação")

	// --- Erros de Banco de Dados / Repositório ---
	ErrDatabase = errors.New("erro na operação com o banco de dados")
	ErrNotFound = errors.New("registro não encontrado")
	ErrConflict = errors.New("conflito de dados (ex: registro duplicado)")

	// --- Erros de Validação e Entrada ---
	ErrValidation   = errors.New("erro de validação nos dados fornecidos")
	ErrInvalidInput = errors.New("entrada de dados inválida ou mal formatada")

	// --- Erros Específicos da Aplicação ---
	ErrRascunhoExpirado    = errors.New("rascunho expirado")
	ErrPassoBloqueado      = errors.New("avanço de passo bloqueado")
	ErrGesconNaoEncontrado = errors.New("nenhum protocolo Gescon encontrado para o CNPJ informado")
	ErrRenderizacao        = errors.New("falha na renderização do documento")
	ErrPlanilha            = errors.New("falha ao registrar na planilha")
	ErrExport              = errors.New("falha ao exportar dados")
	ErrProxyNaoPermitido   = errors.New("caminho não permitido pelo proxy")
)

// ValidationError é um tipo de erro que contém detalhes sobre os campos que falharam na validação.
type ValidationError struct {
	// Message é uma mensagem geral sobre a falha de validação.
	Message string
	// Fields mapeia nomes de campos para suas respectivas mensagens de erro.
	Fields map[string]string
	// Underlying é o erro original que pode ter causado a falha de validação (opcional).
	Underlying error
}

// NewValidationError cria uma nova instância de ValidationError.
func NewValidationError(message string, fields map[string]string) *ValidationError {
	return &ValidationError{
		Message: message,
		Fields:  fields,
	}
}

// Error implementa a interface error.
func (ve *ValidationError) Error() string {
	var sb strings.Builder
	if ve.Message != "" {
		sb.WriteString(ve.Message)
	} else {
		sb.WriteString("Erro de validação")
	}

	if len(ve.Fields) > 0 {
		// Ordena os campos para que a mensagem seja determinística.
		campos := make([]string, 0, len(ve.Fields))
		for campo := range ve.Fields {
			campos = append(campos, campo)
		}
		sort.Strings(campos)

		sb.WriteString(" (Detalhes: ")
		detalhes := make([]string, 0, len(campos))
		for _, campo := range campos {
			detalhes = append(detalhes, fmt.Sprintf("%s: %s", campo, ve.Fields[campo]))
		}
		sb.WriteString(strings.Join(detalhes, ", "))
		sb.WriteString(")")
	}
	if ve.Underlying != nil {
		sb.WriteString(fmt.Sprintf(" | Erro original: %v", ve.Underlying))
	}
	return sb.String()
}

// Unwrap retorna o erro encapsulado, permitindo o uso de errors.Is e errors.As com o erro original.
func (ve *ValidationError) Unwrap() error {
	return ve.Underlying
}

// Is permite que `errors.Is(err, ErrValidation)` funcione corretamente,
// mesmo que `err` seja um `*ValidationError` sem ErrValidation como `Underlying`.
func (ve *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// PrimeiraViolacao retorna a mensagem do primeiro campo violado (em ordem
// alfabética de chave, para ser determinística). O gate interativo do wizard
// reporta uma violação por vez; a checagem autoritativa usa o mapa completo.
func (ve *ValidationError) PrimeiraViolacao() string {
	if len(ve.Fields) == 0 {
		return ve.Message
	}
	campos := make([]string, 0, len(ve.Fields))
	for campo := range ve.Fields {
		campos = append(campos, campo)
	}
	sort.Strings(campos)
	return ve.Fields[campos[0]]
}

// --- Funções Helper ---

// WrapErrorf cria um novo erro que envolve um erro existente com uma mensagem formatada,
// preservando o erro original para verificação com `errors.Is` e `errors.As`.
func WrapErrorf(originalErr error, format string, args ...interface{}) error {
	if originalErr == nil {
		return fmt.Errorf(format, args...)
	}
	// O formato ": %w" no final é crucial para que errors.Unwrap funcione.
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), originalErr)
}
