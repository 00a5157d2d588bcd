package catalog

import (
	"fmt"
	"sort"
	"time"
)

// Kind classifies a media record by its underlying content.
type Kind string

const (
	KindPhoto Kind = "photo"
	KindVideo Kind = "video"
)

// Visibility is the audience a record is shared with. Levels form a
// total order from most to least restricted; a viewer cleared for a
// level can see everything at that level and below it in restriction.
type Visibility string

const (
	VisibilityPrivate  Visibility = "private"
	VisibilityFamily   Visibility = "family"
	VisibilityExtended Visibility = "extended"
	VisibilityPublic   Visibility = "public"
)

var visibilityRank = map[Visibility]int{
	VisibilityPrivate:  3,
	VisibilityFamily:   2,
	VisibilityExtended: 1,
	VisibilityPublic:   0,
}

func (v Visibility) Valid() bool {
	_, ok := visibilityRank[v]
	return ok
}

// Rank returns the restriction level, higher meaning more restricted.
func (v Visibility) Rank() int { return visibilityRank[v] }

func ParseVisibility(s string) (Visibility, error) {
	v := Visibility(s)
	if !v.Valid() {
		return "", fmt.Errorf("unknown visibility %q", s)
	}
	return v, nil
}

// TimeSource tags where a record's canonical timestamp came from.
type TimeSource string

const (
	TimeSourceMetadata TimeSource = "metadata"
	TimeSourceFilename TimeSource = "filename"
	TimeSourceUpload   TimeSource = "upload"
)

// Confidence grades how much the canonical timestamp can be trusted.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

const VariantThumbnail = "thumbnail"

// Record is one catalogued media item. Records live in the yearly shard
// of their canonical timestamp; the ID is unique across all shards.
type Record struct {
	ID                string            `json:"id"`
	FileName          string            `json:"file_name"`
	Path              string            `json:"path"`
	Variants          map[string]string `json:"variants,omitempty"`
	Kind              Kind              `json:"kind"`
	UploadedBy        string            `json:"uploaded_by"`
	UploadedAt        time.Time         `json:"uploaded_at"`
	TakenAt           time.Time         `json:"taken_at"`
	TakenAtSource     TimeSource        `json:"taken_at_source"`
	TakenAtConfidence Confidence        `json:"taken_at_confidence"`
	ContentHash       string            `json:"content_hash"`
	Tags              []string          `json:"tags,omitempty"`
	Visibility        Visibility        `json:"visibility"`
}

// VariantPath resolves a variant name to a storage path. "original"
// maps to the record's primary path.
func (r Record) VariantPath(variant string) (string, error) {
	if variant == "" || variant == "original" {
		return r.Path, nil
	}
	if p, ok := r.Variants[variant]; ok && p != "" {
		return p, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownVariant, variant)
}

// sortNewestFirst re-establishes collection order after a mutation:
// newest canonical timestamp first, ID as tie-break.
func sortNewestFirst(recs []Record) {
	sort.SliceStable(recs, func(i, j int) bool {
		if !recs[i].TakenAt.Equal(recs[j].TakenAt) {
			return recs[i].TakenAt.After(recs[j].TakenAt)
		}
		return recs[i].ID < recs[j].ID
	})
}
