package apierr

import (
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/maraichr/slidepilot/pkg/models"
)

// IsNotFound reports whether err is or wraps a missing-row error from any store.
func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows) || errors.Is(err, models.ErrNotFound)
}
