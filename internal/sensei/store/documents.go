package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/kart-io/sensei/internal/model"
	"github.com/kart-io/sensei/pkg/errors"
)

// chunkBatchSize bounds the rows per INSERT when storing chunks.
const chunkBatchSize = 200

// DocumentStore persists ingested documents and their chunks.
type DocumentStore struct {
	db *gorm.DB
}

// NewDocumentStore creates a DocumentStore on db.
func NewDocumentStore(db *gorm.DB) *DocumentStore {
	return &DocumentStore{db: db}
}

// Create stores doc and its chunks in a single transaction.
func (s *DocumentStore) Create(ctx context.Context, doc *model.Document) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		chunks := doc.Chunks
		head := *doc
		head.Chunks = nil
		if err := tx.Create(&head).Error; err != nil {
			return err
		}
		if len(chunks) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(chunks, chunkBatchSize).Error; err != nil {
			return err
		}
		doc.Chunks = chunks
		return nil
	})
	if err != nil {
		return errors.ErrStorage.WithCause(err)
	}
	return nil
}

// Delete removes a document and its chunks.
func (s *DocumentStore) Delete(ctx context.Context, id string) error {
	var affected int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", id).Delete(&model.Chunk{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&model.Document{})
		affected = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return errors.ErrStorage.WithCause(err)
	}
	if affected == 0 {
		return errors.ErrDocumentNotFound.WithMessagef("document %s not found", id)
	}
	return nil
}

// List returns every document with its chunks, in ingestion order.
func (s *DocumentStore) List(ctx context.Context) ([]model.Document, error) {
	var docs []model.Document
	err := s.db.WithContext(ctx).
		Preload("Chunks", func(db *gorm.DB) *gorm.DB { return db.Order("ordinal ASC") }).
		Order("ingested_seq ASC").
		Find(&docs).Error
	if err != nil {
		return nil, errors.ErrStorage.WithCause(err)
	}
	return docs, nil
}

// MaxSeq returns the highest ingestion sequence stored, 0 when empty.
func (s *DocumentStore) MaxSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := s.db.WithContext(ctx).Model(&model.Document{}).
		Select("COALESCE(MAX(ingested_seq), 0)").Scan(&seq).Error
	if err != nil {
		return 0, errors.ErrStorage.WithCause(err)
	}
	return seq, nil
}
