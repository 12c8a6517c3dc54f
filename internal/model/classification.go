package model

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Source records who decided a classification.
type Source string

const (
	// SourceModel marks a classification produced by the classifier model.
	SourceModel Source = "model"
	// SourceHumanCorrection marks a classification taught by a human. It is
	// never overwritten by a model-derived result and never expires.
	SourceHumanCorrection Source = "human_correction"
)

// ClassificationRecord maps a normalized query to its category.
// Records are addressed by the hash of the normalized query so the key stays
// fixed width on every dialect.
type ClassificationRecord struct {
	Key             string    `json:"-" gorm:"column:record_key;primaryKey;type:char(64);comment:归一化查询哈希"`
	NormalizedQuery string    `json:"normalized_query" gorm:"type:text;not null;comment:归一化查询"`
	Category        Category  `json:"category" gorm:"type:varchar(32);not null;comment:分类"`
	Source          Source    `json:"source" gorm:"type:varchar(32);not null;index;comment:来源"`
	UpdatedAt       time.Time `json:"updated_at" gorm:"not null;comment:更新时间"`
}

// TableName specifies the table name for ClassificationRecord.
func (ClassificationRecord) TableName() string {
	return "classification_records"
}

// RecordKey returns the storage key of a normalized query.
func RecordKey(normalizedQuery string) string {
	sum := sha256.Sum256([]byte(normalizedQuery))
	return hex.EncodeToString(sum[:])
}

// IsCorrection reports whether the record was taught by a human.
func (r *ClassificationRecord) IsCorrection() bool {
	return r != nil && r.Source == SourceHumanCorrection
}

// Classification is the outcome of routing a prompt.
type Classification struct {
	Category      Category `json:"category"`
	EnhancedQuery string   `json:"enhanced_query"`
	// Route tells which path produced the result: cache, heuristic or model.
	Route string `json:"-"`
}
