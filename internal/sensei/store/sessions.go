package store

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kart-io/sensei/internal/model"
	"github.com/kart-io/sensei/pkg/errors"
)

// defaultMessageLimit caps transcript reads.
const defaultMessageLimit = 500

// SessionStore persists conversation transcripts.
type SessionStore struct {
	db *gorm.DB
}

// NewSessionStore creates a SessionStore on db.
func NewSessionStore(db *gorm.DB) *SessionStore {
	return &SessionStore{db: db}
}

// Append creates the session if needed and appends msgs to it.
func (s *SessionStore) Append(ctx context.Context, sessionID string, msgs ...model.Message) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&model.Session{ID: sessionID}).Error; err != nil {
			return err
		}
		if len(msgs) == 0 {
			return nil
		}
		for i := range msgs {
			msgs[i].SessionID = sessionID
		}
		return tx.Create(&msgs).Error
	})
	if err != nil {
		return errors.ErrStorage.WithCause(err)
	}
	return nil
}

// Messages returns up to limit messages of a session, oldest first. An
// unknown session yields an empty list.
func (s *SessionStore) Messages(ctx context.Context, sessionID string, limit int) ([]model.Message, error) {
	if limit <= 0 || limit > defaultMessageLimit {
		limit = defaultMessageLimit
	}

	msgs := []model.Message{}
	if err := s.db.WithContext(ctx).Where("session_id = ?", sessionID).Order("id ASC").Limit(limit).Find(&msgs).Error; err != nil {
		return nil, errors.ErrStorage.WithCause(err)
	}
	return msgs, nil
}
