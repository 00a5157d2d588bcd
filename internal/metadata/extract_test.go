package metadata

import (
	"testing"
	"time"

	"github.com/feniix/family-gallery-sub002/internal/catalog"
)

func TestFileExtractor(t *testing.T) {
	e := NewFileExtractor()
	uploaded := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	t.Run("hash is stable and content addressed", func(t *testing.T) {
		a := e.Extract([]byte("same bytes"), "a.jpg", uploaded)
		b := e.Extract([]byte("same bytes"), "different-name.jpg", uploaded)
		c := e.Extract([]byte("other bytes"), "a.jpg", uploaded)

		if a.ContentHash != b.ContentHash {
			t.Error("Expected identical content to hash identically regardless of filename")
		}
		if a.ContentHash == c.ContentHash {
			t.Error("Expected different content to hash differently")
		}
		if len(a.ContentHash) != 64 {
			t.Errorf("Expected hex sha256, got %q", a.ContentHash)
		}
	})

	t.Run("camera style filename", func(t *testing.T) {
		got := e.Extract(nil, "IMG_20230415_120301.jpg", uploaded)

		want := time.Date(2023, 4, 15, 0, 0, 0, 0, time.UTC)
		if !got.TakenAt.Equal(want) {
			t.Errorf("Expected %v, got %v", want, got.TakenAt)
		}
		if got.TakenAtSource != catalog.TimeSourceFilename || got.TakenAtConfidence != catalog.ConfidenceMedium {
			t.Errorf("Expected filename/medium, got %s/%s", got.TakenAtSource, got.TakenAtConfidence)
		}
	})

	t.Run("dashed date filename", func(t *testing.T) {
		got := e.Extract(nil, "2022-12-31 party.png", uploaded)

		want := time.Date(2022, 12, 31, 0, 0, 0, 0, time.UTC)
		if !got.TakenAt.Equal(want) {
			t.Errorf("Expected %v, got %v", want, got.TakenAt)
		}
	})

	t.Run("implausible dates fall back to upload time", func(t *testing.T) {
		for _, name := range []string{"20231545.jpg", "vacation.mp4", "20991231.jpg"} {
			got := e.Extract(nil, name, uploaded)
			if got.TakenAtSource != catalog.TimeSourceUpload {
				t.Errorf("%s: expected upload-time fallback, got %s", name, got.TakenAtSource)
			}
			if got.TakenAtConfidence != catalog.ConfidenceLow {
				t.Errorf("%s: expected low confidence, got %s", name, got.TakenAtConfidence)
			}
			if !got.TakenAt.Equal(uploaded) {
				t.Errorf("%s: expected upload time, got %v", name, got.TakenAt)
			}
		}
	})
}
