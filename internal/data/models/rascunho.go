package models

import "time"

// DBRascunho é o snapshot persistido do progresso do formulário de uma
// sessão. Um registro por chave de sessão, sobrescrito a cada save; o load
// descarta (e remove) registros além do TTL.
type DBRascunho struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"`
	// Chave é o identificador opaco da sessão do preenchimento.
	Chave string `gorm:"type:varchar(64);uniqueIndex;not null"`
	// Snapshot é o estado do wizard serializado em JSON.
	Snapshot   string    `gorm:"type:text;not null"`
	PassoAtual int       `gorm:"not null;default:0"`
	SalvoEm    time.Time `gorm:"not null"`
}

// TableName especifica o nome da tabela para GORM.
func (DBRascunho) TableName() string {
	return "rascunhos"
}

// DBTokenIdempotencia guarda a chave de idempotência pendente de uma sessão,
// em registro separado do rascunho: o token sobrevive a retentativas da mesma
// submissão e só é removido após o reconhecimento de sucesso do servidor.
type DBTokenIdempotencia struct {
	ID       uint64    `gorm:"primaryKey;autoIncrement"`
	Chave    string    `gorm:"type:varchar(64);uniqueIndex;not null"`
	Token    string    `gorm:"type:varchar(64);not null"`
	CriadoEm time.Time `gorm:"not null"`
}

// TableName especifica o nome da tabela para GORM.
func (DBTokenIdempotencia) TableName() string {
	return "tokens_idempotencia"
}
