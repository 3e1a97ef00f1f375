// Package catalog runs the discovery and download-orchestration stages of a
// batch run: dataset search, scene search, download request and the
// availability polling loop.
package catalog

import (
	"sort"
	"time"

	"github.com/avalanchegeo/eros-ingester/interface/m2m"
)

const (
	// DefaultMaxScenes is the scene-search page size. There is no pagination
	// loop: only the first page of each dataset is considered.
	DefaultMaxScenes = 10
	// DefaultLabel identifies the download requests of a run
	DefaultLabel = "download-sample"
	// DefaultRetrieveWait is the pause between two download-retrieve polls
	DefaultRetrieveWait = 30 * time.Second
)

// Catalog drives the M2M discovery operations for one run
type Catalog struct {
	Client *m2m.Client

	// MaxScenes caps the scene-search page size (DefaultMaxScenes if 0)
	MaxScenes int
	// Label of the download requests (DefaultLabel if empty)
	Label string
	// RetrieveWait is the pause between two retrieve polls (DefaultRetrieveWait if 0)
	RetrieveWait time.Duration
	// RetrieveMaxAttempts bounds the polling loop. 0 means unbounded: a
	// permanently-preparing download then blocks the loop forever.
	RetrieveMaxAttempts int
}

func (c *Catalog) maxScenes() int {
	if c.MaxScenes == 0 {
		return DefaultMaxScenes
	}
	return c.MaxScenes
}

func (c *Catalog) label() string {
	if c.Label == "" {
		return DefaultLabel
	}
	return c.Label
}

func (c *Catalog) retrieveWait() time.Duration {
	if c.RetrieveWait == 0 {
		return DefaultRetrieveWait
	}
	return c.RetrieveWait
}

// sortedKeys returns the keys of m in lexical order, for stable iteration
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
