package model

type Submission struct {
	ID             string   `gorm:"column:id;type:text;primaryKey"`
	OwnerID        string   `gorm:"column:owner_id;type:text;not null;index"`
	Type           string   `gorm:"column:type;type:text;not null"`
	Status         string   `gorm:"column:status;type:text;not null;index"`
	Version        int64    `gorm:"column:version;not null;default:1"`
	QualityScore   *int     `gorm:"column:quality_score"`
	DuplicateRisk  *float64 `gorm:"column:duplicate_risk"`
	AIFeedback     string   `gorm:"column:ai_feedback;type:text;not null;default:''"`
	ExpertFeedback string   `gorm:"column:expert_feedback;type:text;not null;default:''"`
	Files          string   `gorm:"column:files;type:text;not null"`
	ContentHash    string   `gorm:"column:content_hash;type:text;not null"`
	CertificateID  *string  `gorm:"column:certificate_id;type:text"`
	ChainTx        *string  `gorm:"column:chain_tx;type:text"`
	RewardAmount   *int64   `gorm:"column:reward_amount"`
	CreatedAt      string   `gorm:"column:created_at;type:text;not null"`
	UpdatedAt      string   `gorm:"column:updated_at;type:text;not null"`
}

func (Submission) TableName() string {
	return "submissions"
}
