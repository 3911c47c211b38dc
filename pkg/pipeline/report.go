package pipeline

import (
	"fmt"
	"strings"
	"time"
)

// Report summarizes one completed scoring run.
type Report struct {
	RunID    string        `json:"run_id"`
	Border   float64       `json:"border"`
	MaxRaw   float64       `json:"max_raw_rank"`
	MinRaw   float64       `json:"min_raw_rank"`
	AvgRaw   float64       `json:"avg_raw_rank"`
	Nodes    int           `json:"nodes"`
	Groups   int           `json:"groups"`
	Edges    int           `json:"edges"`
	Duration time.Duration `json:"duration_ns"`

	Persisted int              `json:"persisted"`
	Failed    []PersistFailure `json:"-"`
}

// Summary renders the human-readable run report.
func (r *Report) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "border: %g\n", r.Border)
	fmt.Fprintf(&b, "max: %g\n", r.MaxRaw)
	fmt.Fprintf(&b, "min: %g\n", r.MinRaw)
	fmt.Fprintf(&b, "avg: %g\n", r.AvgRaw)
	fmt.Fprintf(&b, "nodes: %d  groups: %d  edges: %d\n", r.Nodes, r.Groups, r.Edges)
	fmt.Fprintf(&b, "persisted: %d", r.Persisted)
	if len(r.Failed) > 0 {
		fmt.Fprintf(&b, "  failed: %d", len(r.Failed))
		for _, f := range r.Failed {
			fmt.Fprintf(&b, "\n  %s %q: %v", f.Entity, f.Key, f.Err)
		}
	}
	return b.String()
}
