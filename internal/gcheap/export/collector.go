// Package export exposes region-table statistics as a minimal text
// exposition endpoint, servable over HTTP/1 or HTTP/3.
package export

import (
	"fmt"
	"sort"
	"strings"

	"github.com/arclang/arc/internal/gcheap"
)

// Collector snapshots one region table into metric gauges.
type Collector struct {
	table *gcheap.RegionTable
}

// NewCollector builds a collector over the table.
func NewCollector(t *gcheap.RegionTable) *Collector {
	return &Collector{table: t}
}

// Snapshot returns metric name -> value. Region states are read lock-free;
// the snapshot is a consistent heap-wide view only between the collector's
// synchronization points, which is fine for monitoring.
func (c *Collector) Snapshot() map[string]float64 {
	stateCounts := make(map[gcheap.RegionState]int, gcheap.RegionStatesNum())
	var used, live, garbage uintptr
	var pins int64
	c.table.ForEach(func(r *gcheap.Region) {
		stateCounts[r.State()]++
		used += r.Used()
		live += r.LiveDataBytes()
		garbage += r.Garbage()
		pins += r.PinCount()
	})

	s := c.table.Sizes()
	m := map[string]float64{
		"region_count":      float64(s.RegionCount),
		"region_size_bytes": float64(s.RegionSizeBytes),
		"bytes_used":        float64(used),
		"bytes_live":        float64(live),
		"bytes_garbage":     float64(garbage),
		"bytes_committed":   float64(c.table.CommittedBytes()),
		"pins":              float64(pins),
	}
	for st, n := range stateCounts {
		m["regions_"+metricToken(st.String())] = float64(n)
	}
	return m
}

// Render writes the snapshot in deterministic text exposition form.
func (c *Collector) Render(sb *strings.Builder) {
	snapshot := c.Snapshot()
	keys := make([]string, 0, len(snapshot))
	for k := range snapshot {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(sb, "gcheap_%s %g\n", k, snapshot[k])
	}
}

// metricToken lowercases a state name into a [a-z0-9_] token.
func metricToken(s string) string {
	b := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z' || c >= '0' && c <= '9':
			b = append(b, c)
		case c >= 'A' && c <= 'Z':
			b = append(b, c+'a'-'A')
		default:
			if len(b) > 0 && b[len(b)-1] != '_' {
				b = append(b, '_')
			}
		}
	}
	for len(b) > 0 && b[len(b)-1] == '_' {
		b = b[:len(b)-1]
	}
	return string(b)
}
