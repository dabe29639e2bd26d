// Package config provides configuration models and helpers for the pipeline.
//
// This file adds a lightweight linter/validator for Pipeline values. It
// performs static checks over a decoded Pipeline and returns a list of issues
// (errors and warnings) that callers can surface in a CLI or tests.
package config

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"breachpw/internal/charset"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a configuration warning that should be surfaced
	// to users but may not necessarily block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation/lint finding for a Pipeline.
//
// Path is a dotted path into the config (e.g. "storage.kind",
// "report.top_k[1]"). Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue has SeverityError.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidatePipeline performs static validation / linting of a Pipeline.
//
// It does not mutate the pipeline. Callers may decide whether to treat
// warnings as fatal or not.
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue

	if strings.TrimSpace(p.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "job",
			Message:  "job must not be empty; it is used for metrics labeling and identifying runs",
		})
	}
	issues = append(issues, validateEncoding(p.Encoding)...)
	issues = append(issues, validateExtract(p.Extract)...)
	issues = append(issues, validateStage("dedup", p.Dedup, true)...)
	issues = append(issues, validateStage("load", p.Load, false)...)
	issues = append(issues, validateChain(p)...)
	issues = append(issues, validateStorage(p.Storage)...)
	issues = append(issues, validateReport(p.Report)...)
	issues = append(issues, validateRuntime(p.Runtime)...)
	issues = append(issues, validateMetrics(p.Metrics)...)

	return issues
}

func validateEncoding(name string) []Issue {
	enc, err := charset.Lookup(name)
	if err != nil {
		return []Issue{{
			Severity: SeverityError,
			Path:     "encoding",
			Message:  err.Error(),
		}}
	}
	if !enc.SingleByte() {
		return []Issue{{
			Severity: SeverityWarning,
			Path:     "encoding",
			Message:  fmt.Sprintf("encoding %q is not single-byte; lines with invalid byte sequences will be skipped", name),
		}}
	}
	return nil
}

func validateExtract(e Extract) []Issue {
	issues := validateStage("extract", e.Stage, true)
	if strings.TrimSpace(e.Pattern) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "extract.pattern",
			Message:  "extract.pattern must not be empty",
		})
		return issues
	}
	if _, err := regexp.Compile(e.Pattern); err != nil {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "extract.pattern",
			Message:  fmt.Sprintf("extract.pattern does not compile: %v", err),
		})
	}
	return issues
}

// validateStage checks the shared {source, destination} surface of a stage.
func validateStage(name string, s Stage, needsDest bool) []Issue {
	var issues []Issue
	if strings.TrimSpace(s.Source) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     name + ".source",
			Message:  name + ".source must not be empty",
		})
	}
	if !needsDest {
		return issues
	}
	if strings.TrimSpace(s.Destination) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     name + ".destination",
			Message:  name + ".destination must not be empty",
		})
		return issues
	}
	if filepath.Clean(s.Source) == filepath.Clean(s.Destination) {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     name + ".destination",
			Message:  "destination must differ from source; outputs would overwrite their own inputs",
		})
	}
	return issues
}

// validateChain warns when a stage does not consume its predecessor's output.
func validateChain(p Pipeline) []Issue {
	var issues []Issue
	if filepath.Clean(p.Extract.Destination) != filepath.Clean(p.Dedup.Source) {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "dedup.source",
			Message:  fmt.Sprintf("dedup.source %q differs from extract.destination %q", p.Dedup.Source, p.Extract.Destination),
		})
	}
	if filepath.Clean(p.Dedup.Destination) != filepath.Clean(p.Load.Source) {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "load.source",
			Message:  fmt.Sprintf("load.source %q differs from dedup.destination %q", p.Load.Source, p.Dedup.Destination),
		})
	}
	return issues
}

// validateStorage validates storage configuration.
func validateStorage(s Storage) []Issue {
	var issues []Issue

	if strings.TrimSpace(s.Kind) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.kind",
			Message:  "storage.kind must not be empty",
		})
		return issues
	}

	known := map[string]struct{}{
		"postgres": {},
		"mysql":    {},
		"mssql":    {},
		"sqlite":   {},
	}
	if _, ok := known[s.Kind]; !ok {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "storage.kind",
			Message:  fmt.Sprintf("unknown storage kind %q; ensure a matching backend is registered", s.Kind),
		})
	}

	if strings.TrimSpace(s.DSN) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.dsn",
			Message:  "storage.dsn must not be empty",
		})
	}
	for _, tbl := range []struct{ path, name string }{
		{"storage.raw_table", s.RawTable},
		{"storage.merged_table", s.MergedTable},
	} {
		if !identRe.MatchString(tbl.name) {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     tbl.path,
				Message:  fmt.Sprintf("table name %q must be a plain identifier ([A-Za-z_][A-Za-z0-9_]*)", tbl.name),
			})
		}
	}
	if strings.EqualFold(s.RawTable, s.MergedTable) {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.merged_table",
			Message:  "merged_table must differ from raw_table",
		})
	}

	return issues
}

func validateReport(r Report) []Issue {
	var issues []Issue
	if strings.TrimSpace(r.Destination) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "report.destination",
			Message:  "report.destination must not be empty",
		})
	}
	if len(r.TopK) == 0 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "report.top_k",
			Message:  "no top_k sizes configured; only stats.txt will be written",
		})
	}
	seen := make(map[int]struct{}, len(r.TopK))
	for i, k := range r.TopK {
		path := fmt.Sprintf("report.top_k[%d]", i)
		if k <= 0 {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path,
				Message:  fmt.Sprintf("top_k=%d must be positive", k),
			})
			continue
		}
		if _, dup := seen[k]; dup {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     path,
				Message:  fmt.Sprintf("top_k=%d listed twice; the duplicate is ignored", k),
			})
		}
		seen[k] = struct{}{}
	}
	return issues
}

// validateRuntime validates RuntimeConfig for obvious misconfigurations.
func validateRuntime(r RuntimeConfig) []Issue {
	var issues []Issue

	if r.BatchSize <= 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.batch_size",
			Message:  fmt.Sprintf("batch_size=%d must be positive", r.BatchSize),
		})
	}
	if r.ChannelBuffer < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.channel_buffer",
			Message:  "channel_buffer must not be negative",
		})
	}

	return issues
}

func validateMetrics(m Metrics) []Issue {
	switch m.Backend {
	case "", "none":
		return nil
	case "pushgateway":
		if strings.TrimSpace(m.PushgatewayURL) == "" {
			return []Issue{{
				Severity: SeverityError,
				Path:     "metrics.pushgateway_url",
				Message:  "pushgateway backend requires pushgateway_url",
			}}
		}
	case "datadog":
		if strings.TrimSpace(m.DatadogAddr) == "" {
			return []Issue{{
				Severity: SeverityError,
				Path:     "metrics.datadog_addr",
				Message:  "datadog backend requires datadog_addr",
			}}
		}
	default:
		return []Issue{{
			Severity: SeverityWarning,
			Path:     "metrics.backend",
			Message:  fmt.Sprintf("unknown metrics backend %q; metrics will be disabled", m.Backend),
		}}
	}
	return nil
}
