// Package export publishes run results as compressed snapshot artifacts,
// locally or to an S3-compatible bucket.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang/snappy"

	"github.com/dd0wney/cluso-sybilrank/pkg/graph"
	"github.com/dd0wney/cluso-sybilrank/pkg/logging"
	"github.com/dd0wney/cluso-sybilrank/pkg/pipeline"
)

// Sink stores one named artifact.
type Sink interface {
	Put(ctx context.Context, key string, data []byte) error
}

// FileSink writes artifacts into a local directory.
type FileSink struct {
	Dir string
}

// Put writes the artifact as a file under the sink directory.
func (s *FileSink) Put(ctx context.Context, key string, data []byte) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(s.Dir, key)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

type nodeScore struct {
	Key     string  `json:"key"`
	Kind    string  `json:"kind"`
	Rank    float64 `json:"rank"`
	RawRank float64 `json:"raw_rank"`
}

type groupScore struct {
	Key     string  `json:"key"`
	Seed    bool    `json:"seed"`
	Rank    float64 `json:"rank"`
	RawRank float64 `json:"raw_rank"`
	Degree  float64 `json:"degree"`
}

type snapshotArtifact struct {
	Report *pipeline.Report `json:"report"`
	Nodes  []nodeScore      `json:"nodes"`
	Groups []groupScore     `json:"groups"`
}

// SnapshotExporter serializes a run's report and per-entity scores to JSON,
// compresses the document with snappy and hands it to a sink.
type SnapshotExporter struct {
	sink   Sink
	logger logging.Logger
}

// NewSnapshotExporter creates an exporter around a sink.
func NewSnapshotExporter(sink Sink, logger logging.Logger) *SnapshotExporter {
	if logger == nil {
		logger = logging.DefaultLogger()
	}
	return &SnapshotExporter{sink: sink, logger: logger}
}

// Export publishes the artifact under sybilrank-<run id>.json.sz.
func (e *SnapshotExporter) Export(ctx context.Context, report *pipeline.Report, g *graph.Graph) error {
	artifact := snapshotArtifact{Report: report}
	for _, n := range g.Nodes() {
		artifact.Nodes = append(artifact.Nodes, nodeScore{
			Key:     n.Key,
			Kind:    n.Kind.String(),
			Rank:    n.Rank,
			RawRank: n.RawRank,
		})
	}
	for _, grp := range g.Groups() {
		artifact.Groups = append(artifact.Groups, groupScore{
			Key:     grp.Key,
			Seed:    grp.IsSeed,
			Rank:    grp.Rank,
			RawRank: grp.RawRank,
			Degree:  grp.Degree,
		})
	}

	data, err := json.Marshal(artifact)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	compressed := snappy.Encode(nil, data)

	key := fmt.Sprintf("sybilrank-%s.json.sz", report.RunID)
	if err := e.sink.Put(ctx, key, compressed); err != nil {
		return err
	}
	e.logger.Info("snapshot exported",
		logging.String("artifact", key),
		logging.Int("bytes_uncompressed", len(data)),
		logging.Int("bytes_compressed", len(compressed)))
	return nil
}

// Decode decompresses and parses an exported artifact. Used by tooling and
// tests.
func Decode(data []byte) (*pipeline.Report, error) {
	raw, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, fmt.Errorf("decompress snapshot: %w", err)
	}
	var artifact snapshotArtifact
	if err := json.Unmarshal(raw, &artifact); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	return artifact.Report, nil
}
