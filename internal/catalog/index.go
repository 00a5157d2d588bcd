package catalog

import (
	"sort"
	"time"
)

// Index is the single small document enumerating which yearly shards
// currently hold records. It is an optimization structure, never a
// source of truth: consumers must tolerate it being stale or absent and
// fall back to scanning recent shards. It only grows; shards accumulate
// and are never removed.
type Index struct {
	Partitions   []string  `json:"partitions"`
	TotalRecords int       `json:"total_records"`
	LastUpdated  time.Time `json:"last_updated"`
}

// withPartition returns the index with key present in the partition
// set. Idempotent on the set; LastUpdated always moves forward.
func (ix Index) withPartition(key string, now time.Time) Index {
	ix.LastUpdated = now
	for _, p := range ix.Partitions {
		if p == key {
			return ix
		}
	}
	ix.Partitions = append(append([]string(nil), ix.Partitions...), key)
	sort.Strings(ix.Partitions)
	return ix
}

func (ix Index) hasPartition(key string) bool {
	for _, p := range ix.Partitions {
		if p == key {
			return true
		}
	}
	return false
}
