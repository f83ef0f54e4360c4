package collection

import (
	"errors"
	"fmt"

	"github.com/kilupskalvis/orderset/internal/storage"
)

// Sentinel errors returned by Store. Callers match them with errors.Is.
var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// translate classifies a backend error. Missing records become ErrNotFound;
// everything else the backend reports is ErrStorageUnavailable.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrInvalidArgument), errors.Is(err, ErrStorageUnavailable):
		return err
	case errors.Is(err, storage.ErrNotFound):
		return ErrNotFound
	default:
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
}

func notFound(id int64) error {
	return fmt.Errorf("%w: record %d", ErrNotFound, id)
}
