// Package config defines the canonical, file-serializable configuration model
// for the breach-dump pipeline. A single Pipeline value describes every stage
// (extract, dedup, load, merge, compact, report), the store they share and the
// ambient knobs (logging, metrics, batching).
//
// Pipelines are decoded from JSON (default) or YAML (.yaml/.yml) files:
//
//	{
//	  "job":      "breach-wordlist",
//	  "encoding": "latin1",
//	  "extract":  { "source": "data", "destination": "pd_data_shadow" },
//	  "dedup":    { "source": "pd_data_shadow", "destination": "pd_unique" },
//	  "load":     { "source": "pd_unique", "delete_source": true },
//	  "storage":  { "kind": "sqlite", "dsn": "pd_unique_db/database.db" },
//	  "report":   { "destination": "pd_unique_db", "top_k": [100000, 200000, 1000000] }
//	}
//
// Fields left out of the file keep the values from Defaults.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Pipeline describes the full pipeline. It is the top-level object decoded
// from a pipeline file.
type Pipeline struct {
	// Job names the run; used for metrics grouping and log fields.
	Job string `json:"job" yaml:"job"`

	// Encoding is the charset of every text file the pipeline reads or writes
	// (dumps, intermediate shards, reports). It should be a single-byte charset
	// so that no input byte sequence is ever rejected.
	Encoding string `json:"encoding" yaml:"encoding"`

	Extract Extract `json:"extract" yaml:"extract"`
	Dedup   Stage   `json:"dedup" yaml:"dedup"`
	Load    Stage   `json:"load" yaml:"load"`
	Storage Storage `json:"storage" yaml:"storage"`
	Merge   Merge   `json:"merge" yaml:"merge"`
	Report  Report  `json:"report" yaml:"report"`

	Runtime RuntimeConfig `json:"runtime" yaml:"runtime"`
	Metrics Metrics       `json:"metrics" yaml:"metrics"`
	Log     Log           `json:"log" yaml:"log"`
}

// Stage is the configuration surface every file-driven stage shares.
type Stage struct {
	// Source is the directory the stage consumes (walked recursively).
	Source string `json:"source" yaml:"source"`

	// Destination is the directory the stage writes to. Unused by the loader.
	Destination string `json:"destination" yaml:"destination"`

	// DeleteSource removes each consumed file once it has been fully
	// processed. Deletion failures are logged and ignored.
	DeleteSource bool `json:"delete_source" yaml:"delete_source"`
}

// Extract configures the extractor stage.
type Extract struct {
	Stage `yaml:",inline"`

	// Pattern is the delimiter regular expression separating the ignored
	// mail prefix from the password. The leftmost match wins.
	Pattern string `json:"pattern" yaml:"pattern"`
}

// Storage selects the store backend and its two tables.
type Storage struct {
	// Kind selects the backend: "sqlite", "postgres", "mysql" or "mssql".
	Kind string `json:"kind" yaml:"kind"`

	// DSN is the backend connection string. For sqlite it is a file path.
	DSN string `json:"dsn" yaml:"dsn"`

	// RawTable holds the append-only per-file counts.
	RawTable string `json:"raw_table" yaml:"raw_table"`

	// MergedTable holds one row per distinct value.
	MergedTable string `json:"merged_table" yaml:"merged_table"`
}

// Merge configures the merge and compact stages.
type Merge struct {
	// Verify compares SUM(count) of both tables after merging and before
	// dropping the raw table.
	Verify bool `json:"verify" yaml:"verify"`
}

// Report configures the reporter stage.
type Report struct {
	Destination string `json:"destination" yaml:"destination"`

	// TopK lists the ranked list sizes to emit.
	TopK []int `json:"top_k" yaml:"top_k"`

	// CheckUnique fails the report when a value is streamed twice.
	CheckUnique bool `json:"check_unique" yaml:"check_unique"`
}

// RuntimeConfig controls batching and channel buffer sizes.
type RuntimeConfig struct {
	BatchSize     int `json:"batch_size" yaml:"batch_size"`
	ChannelBuffer int `json:"channel_buffer" yaml:"channel_buffer"`
}

// Metrics selects the metrics backend.
type Metrics struct {
	// Backend is "none", "pushgateway" or "datadog".
	Backend        string `json:"backend" yaml:"backend"`
	PushgatewayURL string `json:"pushgateway_url" yaml:"pushgateway_url"`
	DatadogAddr    string `json:"datadog_addr" yaml:"datadog_addr"`
}

// Log configures the process logger.
type Log struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// Defaults returns a Pipeline populated with the conventional directory
// layout, table names and tunables.
func Defaults() Pipeline {
	return Pipeline{
		Job:      "breach-wordlist",
		Encoding: "latin1",
		Extract: Extract{
			Stage:   Stage{Source: "data", Destination: "pd_data_shadow"},
			Pattern: DefaultPattern,
		},
		Dedup: Stage{Source: "pd_data_shadow", Destination: "pd_unique"},
		Load:  Stage{Source: "pd_unique"},
		Storage: Storage{
			Kind:        "sqlite",
			DSN:         filepath.Join("pd_unique_db", "database.db"),
			RawTable:    "table1",
			MergedTable: "table2",
		},
		Merge: Merge{Verify: true},
		Report: Report{
			Destination: "pd_unique_db",
			TopK:        []int{100000, 200000, 1000000},
			CheckUnique: true,
		},
		Runtime: RuntimeConfig{BatchSize: 5000, ChannelBuffer: 1024},
		Metrics: Metrics{Backend: "none"},
		Log:     Log{Level: "info", Format: "text"},
	}
}

// DefaultPattern matches "@<domain-like token>:" where the token consists of
// letters, digits, underscores and dots.
const DefaultPattern = `@[\p{L}\p{N}_.]+:`

// Load reads and decodes the pipeline file at path on top of Defaults.
// Files ending in .yaml or .yml are decoded as YAML, everything else as JSON.
func Load(path string) (Pipeline, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Pipeline{}, fmt.Errorf("read config: %w", err)
	}
	return Decode(b, filepath.Ext(path))
}

// Decode decodes b on top of Defaults. ext selects the format (".yaml",
// ".yml" or anything else for JSON).
func Decode(b []byte, ext string) (Pipeline, error) {
	p := Defaults()
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(b))
		dec.KnownFields(true)
		// An empty document leaves the defaults in place.
		if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
			return Pipeline{}, fmt.Errorf("decode yaml config: %w", err)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(b))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&p); err != nil {
			return Pipeline{}, fmt.Errorf("decode json config: %w", err)
		}
	}
	return p, nil
}
