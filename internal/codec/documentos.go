package codec

import "strconv"

// --- Validadores de dígito verificador (CPF/CNPJ) ---
//
// Operam sobre strings já limpas (apenas dígitos); use DigitsOnly antes.

// IsValidCNPJ verifica se uma string de CNPJ (apenas dígitos) é válida.
func IsValidCNPJ(cnpj string) bool {
	if len(cnpj) != 14 {
		return false
	}
	// CNPJs com todos os dígitos iguais (ex: "00000000000000") passam no
	// cálculo mas não são válidos.
	if allDigitsEqual(cnpj) {
		return false
	}

	// Primeiro dígito verificador
	weights1 := []int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	if digitoVerificador(cnpj[:12], weights1) != int(cnpj[12]-'0') {
		return false
	}

	// Segundo dígito verificador
	weights2 := []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	return digitoVerificador(cnpj[:13], weights2) == int(cnpj[13]-'0')
}

// IsValidCPF verifica se uma string de CPF (apenas dígitos) é válida.
func IsValidCPF(cpf string) bool {
	if len(cpf) != 11 {
		return false
	}
	if allDigitsEqual(cpf) {
		return false
	}

	weights1 := []int{10, 9, 8, 7, 6, 5, 4, 3, 2}
	if digitoVerificador(cpf[:9], weights1) != int(cpf[9]-'0') {
		return false
	}

	weights2 := []int{11, 10, 9, 8, 7, 6, 5, 4, 3, 2}
	return digitoVerificador(cpf[:10], weights2) == int(cpf[10]-'0')
}

// digitoVerificador calcula o dígito verificador módulo 11 para a sequência
// de dígitos fornecida com os pesos dados.
func digitoVerificador(digitos string, pesos []int) int {
	sum := 0
	for i := 0; i < len(digitos); i++ {
		d, _ := strconv.Atoi(string(digitos[i]))
		sum += d * pesos[i]
	}
	resto := sum % 11
	if resto < 2 {
		return 0
	}
	return 11 - resto
}

// allDigitsEqual verifica se todos os caracteres de uma string são iguais.
func allDigitsEqual(s string) bool {
	if len(s) < 2 {
		return true
	}
	first := s[0]
	for i := 1; i < len(s); i++ {
		if s[i] != first {
			return false
		}
	}
	return true
}
