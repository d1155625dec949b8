package repository

import (
	"context"

	"gorm.io/gorm"
)

// Store groups the repositories the approval workflow writes through, so a
// single transition can span all of them in one transaction.
type Store interface {
	Approvables() ApprovableRepository
	ApprovalLogs() ApprovalLogRepository
	Users() UserRepository
	// WithinTransaction runs fn against a Store bound to one database
	// transaction. A returned error rolls everything back. Nested calls reuse
	// the outer transaction.
	WithinTransaction(ctx context.Context, fn func(tx Store) error) error
}

type gormStore struct {
	db   *gorm.DB
	inTx bool
}

// NewStore returns a Store backed by db.
func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Approvables() ApprovableRepository {
	return &approvableRepository{base: newBase(s.db, s.inTx)}
}

func (s *gormStore) ApprovalLogs() ApprovalLogRepository {
	return &approvalLogRepository{base: newBase(s.db, s.inTx)}
}

func (s *gormStore) Users() UserRepository {
	return &userRepository{base: newBase(s.db, s.inTx)}
}

func (s *gormStore) WithinTransaction(ctx context.Context, fn func(tx Store) error) error {
	if s.inTx {
		return fn(s)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx, inTx: true})
	})
}
