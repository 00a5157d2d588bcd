package metadata

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strconv"
	"time"

	"github.com/feniix/family-gallery-sub002/internal/catalog"
)

// Extraction is what the catalog needs to know about raw upload bytes:
// a content hash for duplicate detection and a best-effort canonical
// timestamp with its provenance.
type Extraction struct {
	ContentHash       string
	TakenAt           time.Time
	TakenAtSource     catalog.TimeSource
	TakenAtConfidence catalog.Confidence
}

// Extractor produces an Extraction from raw bytes. Implementations that
// parse embedded metadata (EXIF and friends) report TimeSourceMetadata
// with high confidence; the default implementation works from the
// filename and the upload time only.
type Extractor interface {
	Extract(data []byte, filename string, uploadedAt time.Time) Extraction
}

// FileExtractor hashes content with SHA-256 and derives the canonical
// timestamp from filename patterns, falling back to the upload time.
type FileExtractor struct{}

func NewFileExtractor() *FileExtractor { return &FileExtractor{} }

// matches camera-style names: IMG_20230415_120301.jpg, 2023-04-15 pic.png
var filenameDate = regexp.MustCompile(`(20\d{2}|19\d{2})[-_.]?(\d{2})[-_.]?(\d{2})`)

func (e *FileExtractor) Extract(data []byte, filename string, uploadedAt time.Time) Extraction {
	sum := sha256.Sum256(data)
	out := Extraction{
		ContentHash:       hex.EncodeToString(sum[:]),
		TakenAt:           uploadedAt.UTC(),
		TakenAtSource:     catalog.TimeSourceUpload,
		TakenAtConfidence: catalog.ConfidenceLow,
	}
	if t, ok := dateFromFilename(filename, uploadedAt); ok {
		out.TakenAt = t
		out.TakenAtSource = catalog.TimeSourceFilename
		out.TakenAtConfidence = catalog.ConfidenceMedium
	}
	return out
}

func dateFromFilename(filename string, uploadedAt time.Time) (time.Time, bool) {
	m := filenameDate.FindStringSubmatch(filename)
	if m == nil {
		return time.Time{}, false
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// dates in the future are bogus heuristics, not camera clocks
	if t.After(uploadedAt.UTC().Add(24 * time.Hour)) {
		return time.Time{}, false
	}
	return t, true
}
