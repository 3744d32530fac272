package shared

import (
	"github.com/tillpoint/tillpoint/internal/platform/db"
	"github.com/tillpoint/tillpoint/internal/platform/httpx"
	core "github.com/tillpoint/tillpoint/internal/shared"
)

var (
	ErrNotFound  = core.Safe("Record not found", httpx.ErrNotFound)
	ErrDuplicate = core.Safe("A record with this code already exists", httpx.ErrDuplicate)
	ErrInUse     = core.Safe("Record is still referenced by products", httpx.ErrConflict)
	ErrInvalidID = core.Safe("Invalid ID", httpx.ErrValidation)
)

// MapWriteError turns constraint failures into user-safe errors.
func MapWriteError(err error) error {
	switch {
	case err == nil:
		return nil
	case db.IsNoRows(err):
		return ErrNotFound
	case db.IsUniqueViolation(err):
		return ErrDuplicate
	case db.IsForeignKeyViolation(err):
		return ErrInUse
	}
	return err
}
