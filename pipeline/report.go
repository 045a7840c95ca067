package pipeline

import (
	"time"

	"github.com/g2gml/pg/schema"
)

// Report summarizes a finished job
type Report struct {
	JobID      string
	Workers    int
	Lines      int
	Nodes      int
	Edges      int
	NodeSchema *schema.Schema
	EdgeSchema *schema.Schema
	NodeLabels map[string]int
	EdgeLabels map[string]int
	Elapsed    time.Duration
}

func addCounts(dst, src map[string]int) {
	for k, v := range src {
		dst[k] += v
	}
}
