package models

import (
	"time"

	"github.com/Dukorsa/CRP_EMERGENCIAL_GO/internal/codec"
)

// DBSolicitacao é uma solicitação de CRP Emergencial finalizada. O token de
// idempotência tem índice único: retentativas da mesma submissão que chegaram
// ao servidor com o reconhecimento perdido são deduplicadas aqui.
type DBSolicitacao struct {
	ID       uint64 `gorm:"primaryKey;autoIncrement"`
	Token    string `gorm:"type:varchar(64);uniqueIndex;not null"`
	CNPJEnte string `gorm:"type:varchar(14);index;not null"` // Apenas dígitos
	Ente     string `gorm:"type:varchar(200)"`
	UF       string `gorm:"type:varchar(2)"`
	Fase     string `gorm:"type:varchar(8);not null"`
	// PayloadJSON é o payload canônico completo enviado na finalização.
	PayloadJSON string    `gorm:"type:text;not null"`
	CriadoEm    time.Time `gorm:"not null"`
}

// TableName especifica o nome da tabela para GORM.
func (DBSolicitacao) TableName() string {
	return "solicitacoes"
}

// FormatCNPJ retorna o CNPJ do ente com a máscara de exibição.
func (s *DBSolicitacao) FormatCNPJ() string {
	return codec.MaskCNPJ(s.CNPJEnte)
}

// SolicitacaoPublic representa uma solicitação como retornada pela API.
type SolicitacaoPublic struct {
	ID       uint64    `json:"id"`
	Token    string    `json:"token"`
	CNPJEnte string    `json:"cnpj_ente"`
	Ente     string    `json:"ente"`
	UF       string    `json:"uf"`
	Fase     string    `json:"fase"`
	CriadoEm time.Time `json:"criado_em"`
}

// ToSolicitacaoPublic converte o registro do banco para a forma pública.
func ToSolicitacaoPublic(db *DBSolicitacao) *SolicitacaoPublic {
	if db == nil {
		return nil
	}
	return &SolicitacaoPublic{
		ID:       db.ID,
		Token:    db.Token,
		CNPJEnte: db.CNPJEnte,
		Ente:     db.Ente,
		UF:       db.UF,
		Fase:     db.Fase,
		CriadoEm: db.CriadoEm,
	}
}

// GesconResultado é o resultado da consulta ao registro Gescon: dados do
// ente, do representante e do certificado anterior amarrados ao CNPJ.
type GesconResultado struct {
	Protocolo      string `json:"protocolo"`
	Ente           string `json:"ente"`
	UF             string `json:"uf"`
	Esfera         string `json:"esfera"`
	Representante  string `json:"representante"`
	CPFRep         string `json:"cpf_representante"`
	EmailRep       string `json:"email_representante"`
	CRPAnterior    string `json:"crp_anterior"`
	CRPValidadeAte string `json:"crp_validade_ate"`
}
