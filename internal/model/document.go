package model

import (
	"strings"
	"time"
)

// Document represents an ingested document in the knowledge base.
// Documents are immutable once ingested and only removed explicitly.
type Document struct {
	ID          string    `json:"id" gorm:"primaryKey;type:varchar(32)"`
	Source      string    `json:"source" gorm:"type:varchar(512);not null"` // File path or caller supplied name
	IngestedSeq int64     `json:"ingested_seq" gorm:"uniqueIndex;not null"`
	ChunkNum    int       `json:"chunk_num" gorm:"default:0"`
	IngestedAt  time.Time `json:"ingested_at" gorm:"not null"`
	Chunks      []Chunk   `json:"chunks,omitempty" gorm:"foreignKey:DocumentID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for Document.
func (Document) TableName() string {
	return "rag_documents"
}

// Chunk is a bounded slice of a document, the unit of retrieval.
type Chunk struct {
	ID         int64  `json:"-" gorm:"primaryKey;autoIncrement"`
	DocumentID string `json:"document_id" gorm:"type:varchar(32);index;not null"`
	Ordinal    int    `json:"ordinal" gorm:"not null"`
	Content    string `json:"content" gorm:"type:text;not null"`
	// Terms is the space separated lexical key of Content.
	Terms string `json:"-" gorm:"type:text;not null"`
}

// TableName specifies the table name for Chunk.
func (Chunk) TableName() string {
	return "rag_chunks"
}

// TermList splits the stored lexical key.
func (c *Chunk) TermList() []string {
	return strings.Fields(c.Terms)
}

// ScoredChunk is a retrieval hit.
type ScoredChunk struct {
	Chunk
	Score float64 `json:"score"`
	// Seq is the ingestion sequence of the owning document.
	Seq int64 `json:"-"`
}

// Answer is the result of the answer pipeline.
type Answer struct {
	Content       string        `json:"content"`
	Category      Category      `json:"category"`
	EnhancedQuery string        `json:"enhanced_query"`
	Sources       []ScoredChunk `json:"sources,omitempty"`
}
