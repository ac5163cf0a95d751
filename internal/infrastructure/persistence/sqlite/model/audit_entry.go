package model

// AuditEntry rows are append-only; there is no update or delete path.
type AuditEntry struct {
	ID           string `gorm:"column:id;type:text;primaryKey"`
	SubmissionID string `gorm:"column:submission_id;type:text;not null;index"`
	Action       string `gorm:"column:action;type:text;not null;index"`
	Payload      string `gorm:"column:payload;type:text;not null;default:''"`
	Actor        string `gorm:"column:actor;type:text;not null"`
	CreatedAt    string `gorm:"column:created_at;type:text;not null"`
}

func (AuditEntry) TableName() string {
	return "audit_log"
}
