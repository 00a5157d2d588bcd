package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *DocStore {
	t.Helper()
	s, err := NewDocStore(t.TempDir(), zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("NewDocStore: %v", err)
	}
	return s
}

func TestDocStore(t *testing.T) {
	ctx := context.Background()

	t.Run("read missing document", func(t *testing.T) {
		s := newTestStore(t)

		_, err := s.Read(ctx, "nope")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("write and read back", func(t *testing.T) {
		s := newTestStore(t)

		if err := s.Write(ctx, "doc1", []byte(`{"a":1}`)); err != nil {
			t.Fatalf("Write: %v", err)
		}
		data, err := s.Read(ctx, "doc1")
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		if !bytes.Equal(data, []byte(`{"a":1}`)) {
			t.Errorf("Expected %q, got %q", `{"a":1}`, data)
		}
	})

	t.Run("write replaces whole document", func(t *testing.T) {
		s := newTestStore(t)

		if err := s.Write(ctx, "doc1", []byte(`{"a":1}`)); err != nil {
			t.Fatalf("Write: %v", err)
		}
		if err := s.Write(ctx, "doc1", []byte(`{"b":2}`)); err != nil {
			t.Fatalf("Write: %v", err)
		}
		data, err := s.Read(ctx, "doc1")
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		if !bytes.Equal(data, []byte(`{"b":2}`)) {
			t.Errorf("Expected replacement, got %q", data)
		}
	})

	t.Run("rejects path-like names", func(t *testing.T) {
		s := newTestStore(t)

		for _, name := range []string{"", "a/b", `a\b`, "../escape"} {
			if err := s.Write(ctx, name, []byte("{}")); err == nil {
				t.Errorf("Expected error for name %q", name)
			}
		}
	})

	t.Run("list returns written documents", func(t *testing.T) {
		s := newTestStore(t)

		for _, name := range []string{"media-2023", "media-2024", "users"} {
			if err := s.Write(ctx, name, []byte("[]")); err != nil {
				t.Fatalf("Write %s: %v", name, err)
			}
		}
		names, err := s.List(ctx)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(names) != 3 {
			t.Errorf("Expected 3 documents, got %d: %v", len(names), names)
		}
	})

	// Concurrent readers must never observe a torn document; every read
	// is either a previous complete value or the new complete value.
	t.Run("readers never see partial writes", func(t *testing.T) {
		s := newTestStore(t)

		type payload struct {
			N    int    `json:"n"`
			Fill string `json:"fill"`
		}
		fill := string(bytes.Repeat([]byte("x"), 64*1024))

		first, _ := json.Marshal(payload{N: 0, Fill: fill})
		if err := s.Write(ctx, "doc", first); err != nil {
			t.Fatalf("seed write: %v", err)
		}

		var wg sync.WaitGroup
		stop := make(chan struct{})
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					select {
					case <-stop:
						return
					default:
					}
					data, err := s.Read(ctx, "doc")
					if err != nil {
						t.Errorf("Read: %v", err)
						return
					}
					var p payload
					if err := json.Unmarshal(data, &p); err != nil {
						t.Errorf("observed torn document: %v", err)
						return
					}
					if p.Fill != fill {
						t.Errorf("observed truncated payload (n=%d)", p.N)
						return
					}
				}
			}()
		}
		for n := 1; n <= 50; n++ {
			data, _ := json.Marshal(payload{N: n, Fill: fill})
			if err := s.Write(ctx, "doc", data); err != nil {
				t.Fatalf("Write: %v", err)
			}
		}
		close(stop)
		wg.Wait()
	})
}
