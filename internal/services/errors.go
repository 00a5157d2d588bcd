package services

import (
	"errors"
	"fmt"

	"github.com/feniix/family-gallery-sub002/internal/catalog"
)

var (
	ErrForbidden       = errors.New("not authorized")
	ErrInvalidBatch    = errors.New("invalid batch")
	ErrUnsupportedType = errors.New("unsupported media type")
)

// DuplicateError rejects an upload whose content is already catalogued.
// The existing record rides along so the caller can show what it is.
type DuplicateError struct {
	Existing catalog.Record
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate content, already catalogued as %s", e.Existing.ID)
}
