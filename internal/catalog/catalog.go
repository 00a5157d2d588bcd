package catalog

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/feniix/family-gallery-sub002/internal/store"
)

var (
	ErrRecordNotFound = errors.New("record not found")
	ErrUnknownVariant = errors.New("unknown variant")
)

const (
	indexDoc    = "media-index"
	shardPrefix = "media-"

	// fallbackYears bounds the scan when the index is unreadable: the
	// current year and this many years before it. Availability over
	// completeness under index failure.
	fallbackYears = 5
)

// Catalog stores media records in one JSON document per year, keyed by
// the canonical timestamp, with the Index as a cross-shard lookup aid.
type Catalog struct {
	docs  *store.DocStore
	retry store.RetryConfig
	log   *zap.SugaredLogger
	now   func() time.Time
}

func New(docs *store.DocStore, log *zap.SugaredLogger) *Catalog {
	return &Catalog{docs: docs, retry: store.DefaultRetry(), log: log, now: time.Now}
}

// WithRetryConfig overrides the retry policy for all shard updates.
func (c *Catalog) WithRetryConfig(cfg store.RetryConfig) *Catalog {
	c.retry = cfg
	return c
}

func shardName(key string) string { return shardPrefix + key }

func yearKey(t time.Time) string { return strconv.Itoa(t.UTC().Year()) }

func (c *Catalog) shard(key string) *store.Collection[[]Record] {
	return store.NewCollection[[]Record](c.docs, shardName(key)).WithRetryConfig(c.retry)
}

func (c *Catalog) index() *store.Collection[Index] {
	return store.NewCollection[Index](c.docs, indexDoc).WithRetryConfig(c.retry)
}

// Insert appends rec to the shard for its canonical year, then updates
// the index as a best-effort follow-up. The two writes are independent
// commits: a crash between them leaves the record reachable only via
// the fallback scan until the next write to the same partition.
func (c *Catalog) Insert(ctx context.Context, rec Record) error {
	key := yearKey(rec.TakenAt)
	_, err := c.shard(key).Update(ctx, func(recs []Record) []Record {
		recs = append(recs, rec)
		sortNewestFirst(recs)
		return recs
	})
	if err != nil {
		return err
	}

	now := c.now().UTC()
	if _, err := c.index().Update(ctx, func(ix Index) Index {
		ix = ix.withPartition(key, now)
		ix.TotalRecords++
		return ix
	}); err != nil {
		c.log.Warnw("media index update failed; record discoverable via fallback scan only",
			"record", rec.ID, "partition", key, "error", err)
	}
	return nil
}

// AddPartition marks a partition as holding records. Idempotent: a key
// already listed only bumps LastUpdated.
func (c *Catalog) AddPartition(ctx context.Context, key string) error {
	now := c.now().UTC()
	_, err := c.index().Update(ctx, func(ix Index) Index {
		return ix.withPartition(key, now)
	})
	return err
}

// Index returns the current index document (zero value when absent).
func (c *Catalog) Index(ctx context.Context) (Index, error) {
	return c.index().Read(ctx)
}

// scanKeys returns the partition keys to search, newest first. The
// index drives the fast path; when it is unreadable or empty the
// bounded window of recent years is scanned instead.
func (c *Catalog) scanKeys(ctx context.Context) []string {
	ix, err := c.index().Read(ctx)
	if err == nil && len(ix.Partitions) > 0 {
		keys := append([]string(nil), ix.Partitions...)
		sort.Sort(sort.Reverse(sort.StringSlice(keys)))
		return keys
	}
	if err != nil {
		c.log.Warnw("media index unreadable; falling back to recent-year scan", "error", err)
	}
	year := c.now().UTC().Year()
	keys := make([]string, 0, fallbackYears+1)
	for i := 0; i <= fallbackYears; i++ {
		keys = append(keys, strconv.Itoa(year-i))
	}
	return keys
}

// FindByID locates a record across shards. Partitions are disjoint by
// ID so scan order affects latency, not correctness.
func (c *Catalog) FindByID(ctx context.Context, id string) (Record, error) {
	for _, key := range c.scanKeys(ctx) {
		recs, err := c.shard(key).Read(ctx)
		if err != nil {
			c.log.Warnw("shard unreadable during lookup", "partition", key, "error", err)
			continue
		}
		for _, r := range recs {
			if r.ID == id {
				return r, nil
			}
		}
	}
	return Record{}, ErrRecordNotFound
}

// DuplicateResult reports whether a content hash is already catalogued.
type DuplicateResult struct {
	IsDuplicate bool    `json:"is_duplicate"`
	Existing    *Record `json:"existing_record,omitempty"`
}

// CheckDuplicate scans shards for a record with the given content hash.
// The scan is never restricted to the partition implied by refTime: a
// re-upload can carry metadata implying a different year. refTime's own
// year is added to the scan set to cover a shard written but not yet
// indexed. Partitions are scanned descending by key so the first match
// is deterministic for a fixed index state.
func (c *Catalog) CheckDuplicate(ctx context.Context, hash string, refTime time.Time) (DuplicateResult, error) {
	keys := c.scanKeys(ctx)
	ref := yearKey(refTime)
	found := false
	for _, k := range keys {
		if k == ref {
			found = true
			break
		}
	}
	if !found {
		keys = append(keys, ref)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))

	for _, key := range keys {
		recs, err := c.shard(key).Read(ctx)
		if err != nil {
			c.log.Warnw("shard unreadable during duplicate check", "partition", key, "error", err)
			continue
		}
		for _, r := range recs {
			if r.ContentHash == hash {
				rec := r
				return DuplicateResult{IsDuplicate: true, Existing: &rec}, nil
			}
		}
	}
	return DuplicateResult{}, nil
}

// UpdateRecord applies mutate to the record with the given ID in place.
// The shard's newest-first order is re-established afterwards since the
// mutation may change the canonical timestamp's tie-break position.
func (c *Catalog) UpdateRecord(ctx context.Context, id string, mutate func(Record) Record) (Record, error) {
	for _, key := range c.scanKeys(ctx) {
		recs, err := c.shard(key).Read(ctx)
		if err != nil {
			c.log.Warnw("shard unreadable during update", "partition", key, "error", err)
			continue
		}
		present := false
		for _, r := range recs {
			if r.ID == id {
				present = true
				break
			}
		}
		if !present {
			continue
		}

		var updated Record
		_, err = c.shard(key).Update(ctx, func(recs []Record) []Record {
			for i := range recs {
				if recs[i].ID == id {
					recs[i] = mutate(recs[i])
					updated = recs[i]
					break
				}
			}
			sortNewestFirst(recs)
			return recs
		})
		if err != nil {
			return Record{}, err
		}
		if updated.ID == "" {
			// record vanished between locate and update
			return Record{}, ErrRecordNotFound
		}
		return updated, nil
	}
	return Record{}, ErrRecordNotFound
}

// LoadAll pre-loads every record reachable through the scan strategy
// into one map keyed by ID, for callers that resolve many IDs at once.
func (c *Catalog) LoadAll(ctx context.Context) (map[string]Record, error) {
	out := make(map[string]Record)
	for _, key := range c.scanKeys(ctx) {
		recs, err := c.shard(key).Read(ctx)
		if err != nil {
			c.log.Warnw("shard unreadable during preload", "partition", key, "error", err)
			continue
		}
		for _, r := range recs {
			out[r.ID] = r
		}
	}
	return out, nil
}

// Year returns the records of one yearly shard, newest first.
func (c *Catalog) Year(ctx context.Context, year int) ([]Record, error) {
	return c.shard(strconv.Itoa(year)).Read(ctx)
}
