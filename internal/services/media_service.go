package services

import (
	"bytes"
	"context"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/feniix/family-gallery-sub002/internal/catalog"
	"github.com/feniix/family-gallery-sub002/internal/metadata"
	"github.com/feniix/family-gallery-sub002/internal/users"
)

// ByteStore is the durable object storage the upload path writes file
// bytes to. Record documents never carry bytes, only keys.
type ByteStore interface {
	Upload(ctx context.Context, key, contentType string, data []byte) error
}

type MediaService struct {
	cat     *catalog.Catalog
	bytes   ByteStore
	extract metadata.Extractor
	log     *zap.SugaredLogger
	now     func() time.Time
}

func NewMediaService(cat *catalog.Catalog, objects ByteStore, extract metadata.Extractor, log *zap.SugaredLogger) *MediaService {
	return &MediaService{cat: cat, bytes: objects, extract: extract, log: log, now: time.Now}
}

// Upload catalogues one file: extract hash and canonical timestamp,
// reject duplicates, store the original (plus a thumbnail variant for
// photos) and insert the record into the shard of its canonical year.
func (s *MediaService) Upload(ctx context.Context, uploaderID, filename, contentType string, data []byte) (catalog.Record, error) {
	var kind catalog.Kind
	switch {
	case strings.HasPrefix(contentType, "image/"):
		kind = catalog.KindPhoto
	case strings.HasPrefix(contentType, "video/"):
		kind = catalog.KindVideo
	default:
		return catalog.Record{}, ErrUnsupportedType
	}

	uploadedAt := s.now().UTC()
	ext := s.extract.Extract(data, filename, uploadedAt)

	dup, err := s.cat.CheckDuplicate(ctx, ext.ContentHash, ext.TakenAt)
	if err != nil {
		return catalog.Record{}, err
	}
	if dup.IsDuplicate {
		return catalog.Record{}, &DuplicateError{Existing: *dup.Existing}
	}

	id := uuid.NewString()
	key := uploaderID + "/" + id + "_" + filename
	if err := s.bytes.Upload(ctx, key, contentType, data); err != nil {
		return catalog.Record{}, err
	}

	variants := map[string]string{}
	if kind == catalog.KindPhoto {
		thumbKey := key + "_thumb.jpg"
		if thumb, err := generateThumbnail(data); err != nil {
			s.log.Warnw("thumbnail generation failed", "file", filename, "error", err)
		} else if err := s.bytes.Upload(ctx, thumbKey, "image/jpeg", thumb); err != nil {
			s.log.Warnw("thumbnail upload failed", "file", filename, "error", err)
		} else {
			variants[catalog.VariantThumbnail] = thumbKey
		}
	}

	rec := catalog.Record{
		ID:                id,
		FileName:          filename,
		Path:              key,
		Variants:          variants,
		Kind:              kind,
		UploadedBy:        uploaderID,
		UploadedAt:        uploadedAt,
		TakenAt:           ext.TakenAt,
		TakenAtSource:     ext.TakenAtSource,
		TakenAtConfidence: ext.TakenAtConfidence,
		ContentHash:       ext.ContentHash,
		Visibility:        catalog.VisibilityFamily,
	}
	if err := s.cat.Insert(ctx, rec); err != nil {
		return catalog.Record{}, err
	}
	return rec, nil
}

// DuplicateCheck is the response of a standalone duplicate probe.
type DuplicateCheck struct {
	IsDuplicate bool            `json:"is_duplicate"`
	Hash        string          `json:"hash"`
	Existing    *catalog.Record `json:"existing_record,omitempty"`
}

// CheckDuplicate probes whether raw bytes are already catalogued
// without storing anything.
func (s *MediaService) CheckDuplicate(ctx context.Context, data []byte, filename string) (DuplicateCheck, error) {
	ext := s.extract.Extract(data, filename, s.now().UTC())
	res, err := s.cat.CheckDuplicate(ctx, ext.ContentHash, ext.TakenAt)
	if err != nil {
		return DuplicateCheck{}, err
	}
	return DuplicateCheck{IsDuplicate: res.IsDuplicate, Hash: ext.ContentHash, Existing: res.Existing}, nil
}

// Edit updates tags and/or visibility of a record. Only the uploader or
// an admin may edit.
func (s *MediaService) Edit(ctx context.Context, actor users.User, id string, tags []string, visibility *catalog.Visibility) (catalog.Record, error) {
	rec, err := s.cat.FindByID(ctx, id)
	if err != nil {
		return catalog.Record{}, err
	}
	if rec.UploadedBy != actor.ID && !actor.Role.AtLeast(users.RoleAdmin) {
		return catalog.Record{}, ErrForbidden
	}
	return s.cat.UpdateRecord(ctx, id, func(r catalog.Record) catalog.Record {
		if tags != nil {
			r.Tags = tags
		}
		if visibility != nil {
			r.Visibility = *visibility
		}
		return r
	})
}

// ListYear returns the records of one yearly shard the viewer is
// cleared to see, newest first.
func (s *MediaService) ListYear(ctx context.Context, viewer users.User, year int) ([]catalog.Record, error) {
	recs, err := s.cat.Year(ctx, year)
	if err != nil {
		return nil, err
	}
	visible := make([]catalog.Record, 0, len(recs))
	for _, r := range recs {
		if r.UploadedBy == viewer.ID || viewer.Role.CanView(r.Visibility) {
			visible = append(visible, r)
		}
	}
	return visible, nil
}

func generateThumbnail(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	thumb := imaging.Resize(img, 320, 0, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
