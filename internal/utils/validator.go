package utils

import (
	"fmt"
	"mime/multipart"
	"strings"
)

const maxUploadBytes = 50 * 1024 * 1024

// ValidateFileHeader rejects empty, oversized or non-media uploads
// before the bytes are read into memory.
func ValidateFileHeader(h *multipart.FileHeader) error {
	if h.Size == 0 || h.Size > maxUploadBytes {
		return fmt.Errorf("%w: size %d not allowed", ErrInvalidFile, h.Size)
	}
	// octet-stream means the client didn't know; the real type is
	// sniffed from the bytes later
	ct := h.Header.Get("Content-Type")
	if ct != "" && ct != "application/octet-stream" &&
		!strings.HasPrefix(ct, "image/") && !strings.HasPrefix(ct, "video/") {
		return fmt.Errorf("%w: content type %q", ErrInvalidFile, ct)
	}
	return nil
}
