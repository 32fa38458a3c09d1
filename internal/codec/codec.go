// Package codec converte valores brutos de entrada do formulário em valores
// canônicos tipados (CPF/CNPJ apenas dígitos, strings mascaradas para exibição,
// datas normalizadas para dd/mm/aaaa).
//
// Política de erro: nenhuma função deste pacote retorna erro ou entra em pânico.
// Entrada malformada resulta em passthrough ou string vazia; rejeitar campos
// vazios é responsabilidade da camada de validação.
package codec

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var naoDigitos = regexp.MustCompile(`[^0-9]`)

// DigitsOnly remove todos os caracteres não numéricos.
// Usada para campos do payload que devem ser strings canônicas de dígitos,
// independente da máscara de exibição.
func DigitsOnly(raw string) string {
	return naoDigitos.ReplaceAllString(raw, "")
}

// maskPattern descreve uma máscara de dígitos agrupados: o tamanho de cada
// grupo e o separador inserido após cada grupo (exceto o último).
type maskPattern struct {
	grupos      []int
	separadores []string
}

// maskDigitsGrouped extrai os dígitos de raw, trunca na quantidade de dígitos
// do padrão e insere os separadores nos offsets fixos. Função pura e
// determinística; aplicá-la duas vezes produz o mesmo resultado.
func maskDigitsGrouped(raw string, p maskPattern) string {
	digitos := DigitsOnly(raw)

	total := 0
	for _, g := range p.grupos {
		total += g
	}
	if len(digitos) > total {
		digitos = digitos[:total]
	}

	var sb strings.Builder
	pos := 0
	for i, g := range p.grupos {
		if pos >= len(digitos) {
			break
		}
		fim := pos + g
		if fim > len(digitos) {
			fim = len(digitos)
		}
		sb.WriteString(digitos[pos:fim])
		pos = fim
		// Só insere o separador quando ainda há dígitos por escrever; um grupo
		// incompleto consome todos os dígitos restantes e encerra o loop.
		if i < len(p.separadores) && pos < len(digitos) {
			sb.WriteString(p.separadores[i])
		}
	}
	return sb.String()
}

var (
	padraoCPF  = maskPattern{grupos: []int{3, 3, 3, 2}, separadores: []string{".", ".", "-"}}
	padraoCNPJ = maskPattern{grupos: []int{2, 3, 3, 4, 2}, separadores: []string{".", ".", "/", "-"}}
)

// MaskCPF formata um CPF como 000.000.000-00. Entradas com menos de 11
// dígitos são agrupadas até onde houver dígitos; excedentes são truncados.
func MaskCPF(raw string) string {
	return maskDigitsGrouped(raw, padraoCPF)
}

// MaskCNPJ formata um CNPJ como 00.000.000/0000-00.
func MaskCNPJ(raw string) string {
	return maskDigitsGrouped(raw, padraoCNPJ)
}

// MaskTelefone formata um telefone brasileiro com DDD: (00) 0000-0000 para
// números de 10 dígitos, (00) 00000-0000 para 11 dígitos (celular).
// Entradas com outros comprimentos retornam apenas os dígitos, sem máscara.
func MaskTelefone(raw string) string {
	digitos := DigitsOnly(raw)
	if len(digitos) > 11 {
		digitos = digitos[:11]
	}
	switch len(digitos) {
	case 10:
		return fmt.Sprintf("(%s) %s-%s", digitos[:2], digitos[2:6], digitos[6:])
	case 11:
		return fmt.Sprintf("(%s) %s-%s", digitos[:2], digitos[2:7], digitos[7:])
	default:
		return digitos
	}
}

// Epoch de serial de planilha: 1899-12-30, granularidade de dia.
var epochPlanilha = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

var (
	padraoSerial = regexp.MustCompile(`^\d{1,5}$`)
	padraoISO    = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})`)
)

// NormalizeDateBR aceita um serial de planilha (string numérica pequena,
// epoch 1899-12-30), uma data ISO aaaa-mm-dd (com sufixo opcional de hora) ou
// uma string já localizada, e retorna dd/mm/aaaa nos casos numérico/ISO.
// Qualquer outra entrada é retornada inalterada.
func NormalizeDateBR(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}

	if padraoSerial.MatchString(s) {
		dias, err := strconv.Atoi(s)
		if err != nil {
			return raw
		}
		data := epochPlanilha.AddDate(0, 0, dias)
		return data.Format("02/01/2006")
	}

	if m := padraoISO.FindStringSubmatch(s); m != nil {
		// Reordena os componentes sem validar o calendário: a origem
		// (planilha/API) já produz datas válidas e a política do codec é
		// nunca falhar.
		return fmt.Sprintf("%s/%s/%s", m[3], m[2], m[1])
	}

	return raw
}
