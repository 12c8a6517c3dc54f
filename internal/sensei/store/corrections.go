package store

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/kart-io/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kart-io/sensei/internal/model"
	"github.com/kart-io/sensei/pkg/errors"
	"github.com/kart-io/sensei/pkg/utils/keylock"
)

// CorrectionStore is the durable map from normalized query to category.
// Operations on the same key are serialized; different keys proceed in parallel.
type CorrectionStore struct {
	db     *gorm.DB
	mirror Mirror
	locks  *keylock.KeyLock
	now    func() time.Time

	// stale holds keys whose mirror entry could be neither refreshed nor
	// evicted. Reads of those keys bypass the mirror until a set succeeds.
	stale sync.Map
}

// CorrectionOption configures a CorrectionStore.
type CorrectionOption func(*CorrectionStore)

// WithMirror enables a read-through cache in front of the database.
func WithMirror(m Mirror) CorrectionOption {
	return func(s *CorrectionStore) { s.mirror = m }
}

// WithNow overrides the clock.
func WithNow(now func() time.Time) CorrectionOption {
	return func(s *CorrectionStore) { s.now = now }
}

// NewCorrectionStore creates a CorrectionStore on db.
func NewCorrectionStore(db *gorm.DB, opts ...CorrectionOption) *CorrectionStore {
	s := &CorrectionStore{
		db:    db,
		locks: keylock.New(),
		now:   time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Get returns the record of normalizedQuery, or (nil, nil) when absent.
func (s *CorrectionStore) Get(ctx context.Context, normalizedQuery string) (*model.ClassificationRecord, error) {
	key := model.RecordKey(normalizedQuery)
	unlock := s.locks.Lock(key)
	defer unlock()

	if _, suspect := s.stale.Load(key); s.mirror != nil && !suspect {
		rec, err := s.mirror.Get(ctx, key)
		switch {
		case err == nil:
			return rec, nil
		case !stderrors.Is(err, ErrMirrorMiss):
			logger.Warnw("redis mirror read failed", "error", err.Error())
		}
	}

	rec := &model.ClassificationRecord{}
	err := s.db.WithContext(ctx).Where("record_key = ?", key).Take(rec).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.ErrStorage.WithCause(err)
	}

	s.mirrorSet(ctx, rec)
	return rec, nil
}

// Put records a human correction. It overwrites any previous record of the
// key and is durable before it returns.
func (s *CorrectionStore) Put(ctx context.Context, normalizedQuery string, category model.Category) error {
	rec := &model.ClassificationRecord{
		Key:             model.RecordKey(normalizedQuery),
		NormalizedQuery: normalizedQuery,
		Category:        category,
		Source:          model.SourceHumanCorrection,
		UpdatedAt:       s.now().UTC(),
	}

	unlock := s.locks.Lock(rec.Key)
	defer unlock()

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "record_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"normalized_query", "category", "source", "updated_at"}),
	}).Create(rec).Error
	if err != nil {
		return errors.ErrStorage.WithCause(err)
	}

	s.mirrorSet(ctx, rec)
	return nil
}

// PutIfAbsent records a model-derived classification unless the key already
// has a record. It reports whether a row was written.
func (s *CorrectionStore) PutIfAbsent(ctx context.Context, normalizedQuery string, category model.Category) (bool, error) {
	rec := &model.ClassificationRecord{
		Key:             model.RecordKey(normalizedQuery),
		NormalizedQuery: normalizedQuery,
		Category:        category,
		Source:          model.SourceModel,
		UpdatedAt:       s.now().UTC(),
	}

	unlock := s.locks.Lock(rec.Key)
	defer unlock()

	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(rec)
	if res.Error != nil {
		return false, errors.ErrStorage.WithCause(res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}

	s.mirrorSet(ctx, rec)
	return true, nil
}

// Count returns the number of records, split by source.
func (s *CorrectionStore) Count(ctx context.Context) (map[model.Source]int64, error) {
	var rows []struct {
		Source model.Source
		N      int64
	}
	err := s.db.WithContext(ctx).Model(&model.ClassificationRecord{}).
		Select("source, count(*) as n").Group("source").Scan(&rows).Error
	if err != nil {
		return nil, errors.ErrStorage.WithCause(err)
	}
	out := make(map[model.Source]int64, len(rows))
	for _, r := range rows {
		out[r.Source] = r.N
	}
	return out, nil
}

// mirrorSet refreshes the cache after an authoritative write. A failed set is
// followed by a delete so that a stale entry cannot shadow the database; when
// the delete fails too the key is read from the database only. Callers hold
// the key lock.
func (s *CorrectionStore) mirrorSet(ctx context.Context, rec *model.ClassificationRecord) {
	if s.mirror == nil {
		return
	}
	err := s.mirror.Set(ctx, rec)
	if err == nil {
		s.stale.Delete(rec.Key)
		return
	}
	logger.Warnw("redis mirror write failed", "error", err.Error())
	if err := s.mirror.Del(ctx, rec.Key); err != nil {
		s.stale.Store(rec.Key, struct{}{})
		logger.Errorw("redis mirror may be stale, bypassing it for key", "key", rec.Key, "error", err.Error())
		return
	}
	s.stale.Delete(rec.Key)
}
