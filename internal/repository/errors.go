package repository

import (
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrConflict is returned when an insert violates a uniqueness constraint.
var ErrConflict = errors.New("repository: conflicting record")

func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	message := err.Error()
	return strings.Contains(message, "UNIQUE constraint failed") ||
		strings.Contains(message, "duplicate key") ||
		strings.Contains(message, "Duplicate entry")
}

func translateConflict(err error) error {
	if isDuplicateKey(err) {
		return ErrConflict
	}
	return err
}

// forUpdate locks the selected rows until the surrounding transaction ends.
// SQLite serialises writers on its own and rejects the clause.
func forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector != nil && tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}
