package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/feniix/family-gallery-sub002/internal/catalog"
	"github.com/feniix/family-gallery-sub002/internal/users"
)

const (
	// MaxBatchSize caps one batch issuance call.
	MaxBatchSize = 50
	// MaxTTL is the ceiling a requested TTL is silently clamped to.
	MaxTTL = 24 * time.Hour
)

// Signer issues time-limited access URLs for stored objects.
type Signer interface {
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// PutSigner issues time-limited URLs for direct client uploads.
type PutSigner interface {
	PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, error)
}

// URLCache is an optional cache in front of the signer. Get returns ""
// on a miss.
type URLCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, url string, ttl time.Duration) error
}

type URLService struct {
	cat        *catalog.Catalog
	signer     Signer
	putSigner  PutSigner // nil disables direct-upload tickets
	cache      URLCache  // nil disables caching
	cacheTTL   time.Duration
	defaultTTL time.Duration
	log        *zap.SugaredLogger
	now        func() time.Time
}

func NewURLService(cat *catalog.Catalog, signer Signer, defaultTTL time.Duration, log *zap.SugaredLogger) *URLService {
	return &URLService{cat: cat, signer: signer, defaultTTL: defaultTTL, log: log, now: time.Now}
}

// WithCache enables signed-URL caching. cacheTTL is capped against the
// URL TTL at issuance so cached URLs never outlive their signature.
func (s *URLService) WithCache(cache URLCache, cacheTTL time.Duration) *URLService {
	s.cache = cache
	s.cacheTTL = cacheTTL
	return s
}

// WithPutSigner enables direct-upload ticket issuance.
func (s *URLService) WithPutSigner(ps PutSigner) *URLService {
	s.putSigner = ps
	return s
}

// SignedURL is one issued time-limited URL. ExpiresIn reflects the
// clamped TTL in seconds.
type SignedURL struct {
	URL       string    `json:"url"`
	ExpiresIn int       `json:"expires_in"`
	ExpiresAt time.Time `json:"expires_at"`
}

// clampTTL applies the silent TTL policy: zero means the configured
// default, anything above MaxTTL becomes MaxTTL. Never an error.
func (s *URLService) clampTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	if ttl > MaxTTL {
		ttl = MaxTTL
	}
	return ttl
}

func (s *URLService) authorize(viewer users.User, rec catalog.Record) error {
	if rec.UploadedBy == viewer.ID {
		return nil
	}
	if !viewer.Role.CanView(rec.Visibility) {
		return ErrForbidden
	}
	return nil
}

// Issue resolves one (record, variant) pair to a signed URL.
func (s *URLService) Issue(ctx context.Context, viewer users.User, id, variant string, ttl time.Duration) (SignedURL, error) {
	rec, err := s.cat.FindByID(ctx, id)
	if err != nil {
		return SignedURL{}, err
	}
	return s.issueFor(ctx, viewer, rec, variant, ttl)
}

func (s *URLService) issueFor(ctx context.Context, viewer users.User, rec catalog.Record, variant string, ttl time.Duration) (SignedURL, error) {
	if err := s.authorize(viewer, rec); err != nil {
		return SignedURL{}, err
	}
	key, err := rec.VariantPath(variant)
	if err != nil {
		return SignedURL{}, err
	}
	ttl = s.clampTTL(ttl)

	url, err := s.sign(ctx, key, ttl)
	if err != nil {
		return SignedURL{}, err
	}
	return SignedURL{
		URL:       url,
		ExpiresIn: int(ttl.Seconds()),
		ExpiresAt: s.now().UTC().Add(ttl),
	}, nil
}

func (s *URLService) sign(ctx context.Context, key string, ttl time.Duration) (string, error) {
	cacheKey := fmt.Sprintf("%s:%d", key, int(ttl.Seconds()))
	if s.cache != nil {
		if url, err := s.cache.Get(ctx, cacheKey); err != nil {
			s.log.Warnw("signed url cache read failed", "error", err)
		} else if url != "" {
			return url, nil
		}
	}
	url, err := s.signer.PresignGet(ctx, key, ttl)
	if err != nil {
		return "", err
	}
	if s.cache != nil {
		cacheTTL := s.cacheTTL
		if cacheTTL <= 0 || cacheTTL > ttl/2 {
			cacheTTL = ttl / 2
		}
		if cacheTTL > 0 {
			if err := s.cache.Set(ctx, cacheKey, url, cacheTTL); err != nil {
				s.log.Warnw("signed url cache write failed", "error", err)
			}
		}
	}
	return url, nil
}

// UploadTicket grants one direct client upload to a reserved key.
type UploadTicket struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	ExpiresIn int       `json:"expires_in"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IssueUpload reserves an object key for the uploader and returns a
// presigned PUT URL for it. The record itself is catalogued after the
// client finishes the upload, not here.
func (s *URLService) IssueUpload(ctx context.Context, uploader users.User, fileName, contentType string, ttl time.Duration) (UploadTicket, error) {
	if s.putSigner == nil {
		return UploadTicket{}, errors.New("direct uploads not configured")
	}
	if !strings.HasPrefix(contentType, "image/") && !strings.HasPrefix(contentType, "video/") {
		return UploadTicket{}, ErrUnsupportedType
	}
	ttl = s.clampTTL(ttl)
	key := uploader.ID + "/" + uuid.NewString() + "_" + fileName
	url, err := s.putSigner.PresignPut(ctx, key, contentType, ttl)
	if err != nil {
		return UploadTicket{}, err
	}
	return UploadTicket{
		Key:       key,
		URL:       url,
		ExpiresIn: int(ttl.Seconds()),
		ExpiresAt: s.now().UTC().Add(ttl),
	}, nil
}

// BatchRequest is one item of a batch issuance call.
type BatchRequest struct {
	ID         string `json:"id"`
	Variant    string `json:"variant"`
	TTLSeconds int    `json:"ttl_seconds"`
}

// BatchItem is the per-request outcome. Either URL fields or Error is
// set, never both.
type BatchItem struct {
	ID        string     `json:"id"`
	Variant   string     `json:"variant"`
	URL       string     `json:"url,omitempty"`
	ExpiresIn int        `json:"expires_in,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// BatchResult reports a batch issuance. Partial success is the designed
// outcome: Success is true only when every item resolved.
type BatchResult struct {
	Results   []BatchItem `json:"results"`
	Processed int         `json:"processed"`
	Errors    int         `json:"errors"`
	Success   bool        `json:"success"`
}

// IssueBatch resolves up to MaxBatchSize (record, variant) pairs. The
// whole batch is rejected for an empty, oversized or malformed payload;
// after that, each request succeeds or fails independently against a
// lookup map pre-loaded from every partition the index lists (or the
// bounded fallback window).
func (s *URLService) IssueBatch(ctx context.Context, viewer users.User, reqs []BatchRequest) (BatchResult, error) {
	if len(reqs) == 0 {
		return BatchResult{}, fmt.Errorf("%w: empty batch", ErrInvalidBatch)
	}
	if len(reqs) > MaxBatchSize {
		return BatchResult{}, fmt.Errorf("%w: %d requests exceeds limit of %d", ErrInvalidBatch, len(reqs), MaxBatchSize)
	}
	for i, r := range reqs {
		if r.ID == "" {
			return BatchResult{}, fmt.Errorf("%w: request %d is missing an id", ErrInvalidBatch, i)
		}
	}

	records, err := s.cat.LoadAll(ctx)
	if err != nil {
		return BatchResult{}, err
	}

	out := BatchResult{Results: make([]BatchItem, 0, len(reqs))}
	for _, r := range reqs {
		item := BatchItem{ID: r.ID, Variant: r.Variant}
		rec, ok := records[r.ID]
		if !ok {
			item.Error = catalog.ErrRecordNotFound.Error()
			out.Errors++
			out.Results = append(out.Results, item)
			continue
		}
		signed, err := s.issueFor(ctx, viewer, rec, r.Variant, time.Duration(r.TTLSeconds)*time.Second)
		if err != nil {
			item.Error = batchErrorMessage(err)
			out.Errors++
			out.Results = append(out.Results, item)
			continue
		}
		item.URL = signed.URL
		item.ExpiresIn = signed.ExpiresIn
		expiresAt := signed.ExpiresAt
		item.ExpiresAt = &expiresAt
		out.Processed++
		out.Results = append(out.Results, item)
	}
	out.Success = out.Errors == 0
	return out, nil
}

func batchErrorMessage(err error) string {
	switch {
	case errors.Is(err, catalog.ErrRecordNotFound):
		return catalog.ErrRecordNotFound.Error()
	case errors.Is(err, catalog.ErrUnknownVariant):
		return err.Error()
	case errors.Is(err, ErrForbidden):
		return ErrForbidden.Error()
	default:
		return "signing failed"
	}
}
