package store

import (
	"context"

	"github.com/kart-io/logger"
	"gorm.io/gorm"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	redisopts "github.com/kart-io/sensei/pkg/options/redis"
	storeopts "github.com/kart-io/sensei/pkg/options/store"
)

// Store bundles the repositories sharing one database.
type Store struct {
	DB          *gorm.DB
	Corrections *CorrectionStore
	Documents   *DocumentStore
	Sessions    *SessionStore

	mirror *RedisMirror
}

// New opens the database and, when enabled, the Redis mirror. An unreachable
// Redis is logged and skipped; the database alone is sufficient.
func New(ctx context.Context, dbOpts *storeopts.Options, redisOpts *redisopts.Options) (*Store, error) {
	db, err := Open(dbOpts)
	if err != nil {
		return nil, err
	}

	s := &Store{DB: db}
	var copts []CorrectionOption
	if redisOpts != nil && redisOpts.Enabled {
		m, err := NewRedisMirror(ctx, redisOpts)
		if err != nil {
			logger.Warnw("redis mirror disabled", "redis", redisOpts.String(), "error", err.Error())
		} else {
			s.mirror = m
			copts = append(copts, WithMirror(m))
		}
	}

	s.Corrections = NewCorrectionStore(db, copts...)
	s.Documents = NewDocumentStore(db)
	s.Sessions = NewSessionStore(db)
	return s, nil
}

// Close releases the database and the mirror.
func (s *Store) Close() error {
	var errs []error
	if s.mirror != nil {
		if err := s.mirror.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := Close(s.DB); err != nil {
		errs = append(errs, err)
	}
	return utilerrors.NewAggregate(errs)
}
