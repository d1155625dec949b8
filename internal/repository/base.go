package repository

import (
	"context"
	"errors"
	"strings"

	"bizdir/internal/database"
	"bizdir/internal/observability"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// base carries the handle shared by every repository. Inside a transaction
// inTx is set and reads stay on the transaction instead of the replica.
type base struct {
	db      *gorm.DB
	inTx    bool
	metrics *observability.DatabaseMetrics
}

func newBase(db *gorm.DB, inTx bool) base {
	return base{db: db, inTx: inTx, metrics: observability.NewDatabaseMetrics()}
}

func (b base) reader(ctx context.Context) *gorm.DB {
	if b.inTx {
		return b.db.WithContext(ctx)
	}
	return readDB(b.db).WithContext(ctx)
}

func (b base) writer(ctx context.Context) *gorm.DB {
	return b.db.WithContext(ctx)
}

func readDB(primary *gorm.DB) *gorm.DB {
	if db := database.GetReadDB(); db != nil {
		return db
	}
	return primary
}

// isUniqueConstraintError checks if a DB error is a unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique constraint")
}
