package config

import (
	"strings"
	"testing"
)

// hasIssue reports whether issues contains an Issue with the given severity,
// path, and a Message containing msgSubstr.
func hasIssue(t *testing.T, issues []Issue, sev IssueSeverity, path, msgSubstr string) bool {
	t.Helper()
	for _, iss := range issues {
		if iss.Severity == sev && iss.Path == path && strings.Contains(iss.Message, msgSubstr) {
			return true
		}
	}
	return false
}

/*
TestValidatePipeline_Defaults verifies that the built-in defaults produce no
issues at all.
*/
func TestValidatePipeline_Defaults(t *testing.T) {
	if issues := ValidatePipeline(Defaults()); len(issues) != 0 {
		t.Fatalf("expected no issues for defaults; got %+v", issues)
	}
}

func TestValidatePipeline_MissingJob(t *testing.T) {
	p := Defaults()
	p.Job = "  "

	issues := ValidatePipeline(p)
	if !hasIssue(t, issues, SeverityError, "job", "job must not be empty") {
		t.Fatalf("expected SeverityError for job; got issues: %+v", issues)
	}
	if !HasErrors(issues) {
		t.Fatalf("HasErrors = false; want true")
	}
}

func TestValidateEncoding_Cases(t *testing.T) {
	if issues := validateEncoding("latin1"); len(issues) != 0 {
		t.Fatalf("latin1: unexpected issues %+v", issues)
	}
	if issues := validateEncoding("utf-8"); !hasIssue(t, issues, SeverityWarning, "encoding", "not single-byte") {
		t.Fatalf("utf-8: expected single-byte warning; got %+v", issues)
	}
	if issues := validateEncoding("klingon"); !hasIssue(t, issues, SeverityError, "encoding", "unknown encoding") {
		t.Fatalf("klingon: expected error; got %+v", issues)
	}
}

func TestValidateExtract_Cases(t *testing.T) {
	t.Run("empty_pattern", func(t *testing.T) {
		e := Defaults().Extract
		e.Pattern = ""
		if !hasIssue(t, validateExtract(e), SeverityError, "extract.pattern", "must not be empty") {
			t.Fatal("expected error for empty pattern")
		}
	})

	t.Run("bad_pattern", func(t *testing.T) {
		e := Defaults().Extract
		e.Pattern = "@[a-z+:"
		if !hasIssue(t, validateExtract(e), SeverityError, "extract.pattern", "does not compile") {
			t.Fatal("expected error for uncompilable pattern")
		}
	})

	t.Run("same_dirs", func(t *testing.T) {
		e := Defaults().Extract
		e.Destination = e.Source + "/"
		if !hasIssue(t, validateExtract(e), SeverityError, "extract.destination", "must differ") {
			t.Fatal("expected error for destination == source")
		}
	})

	t.Run("missing_dirs", func(t *testing.T) {
		issues := validateExtract(Extract{Pattern: DefaultPattern})
		if !hasIssue(t, issues, SeverityError, "extract.source", "must not be empty") {
			t.Fatalf("expected source error; got %+v", issues)
		}
		if !hasIssue(t, issues, SeverityError, "extract.destination", "must not be empty") {
			t.Fatalf("expected destination error; got %+v", issues)
		}
	})
}

func TestValidateStage_LoadNeedsNoDestination(t *testing.T) {
	if issues := validateStage("load", Stage{Source: "pd_unique"}, false); len(issues) != 0 {
		t.Fatalf("unexpected issues %+v", issues)
	}
}

func TestValidateChain_Mismatch(t *testing.T) {
	p := Defaults()
	p.Dedup.Source = "elsewhere"
	p.Load.Source = "nowhere"

	issues := validateChain(p)
	if !hasIssue(t, issues, SeverityWarning, "dedup.source", "differs from extract.destination") {
		t.Fatalf("expected dedup warning; got %+v", issues)
	}
	if !hasIssue(t, issues, SeverityWarning, "load.source", "differs from dedup.destination") {
		t.Fatalf("expected load warning; got %+v", issues)
	}
}

func TestValidateStorage_Cases(t *testing.T) {
	t.Run("missing_kind", func(t *testing.T) {
		issues := validateStorage(Storage{})
		if !hasIssue(t, issues, SeverityError, "storage.kind", "must not be empty") {
			t.Fatalf("expected error for empty storage.kind; got %+v", issues)
		}
	})

	t.Run("unknown_kind", func(t *testing.T) {
		s := Defaults().Storage
		s.Kind = "weird"
		if !hasIssue(t, validateStorage(s), SeverityWarning, "storage.kind", "unknown storage kind") {
			t.Fatal("expected warning for unknown storage.kind")
		}
	})

	t.Run("missing_dsn", func(t *testing.T) {
		s := Defaults().Storage
		s.DSN = ""
		if !hasIssue(t, validateStorage(s), SeverityError, "storage.dsn", "must not be empty") {
			t.Fatal("expected error for empty dsn")
		}
	})

	t.Run("unsafe_table_name", func(t *testing.T) {
		s := Defaults().Storage
		s.RawTable = "t1; DROP TABLE x"
		if !hasIssue(t, validateStorage(s), SeverityError, "storage.raw_table", "plain identifier") {
			t.Fatal("expected error for unsafe table name")
		}
	})

	t.Run("table_issues_in_order", func(t *testing.T) {
		s := Defaults().Storage
		s.RawTable = "raw-table"
		s.MergedTable = "merged table"
		for i := 0; i < 20; i++ {
			var paths []string
			for _, iss := range validateStorage(s) {
				paths = append(paths, iss.Path)
			}
			if strings.Join(paths, ",") != "storage.raw_table,storage.merged_table" {
				t.Fatalf("unexpected issue order: %v", paths)
			}
		}
	})

	t.Run("same_tables", func(t *testing.T) {
		s := Defaults().Storage
		s.MergedTable = "TABLE1"
		if !hasIssue(t, validateStorage(s), SeverityError, "storage.merged_table", "must differ") {
			t.Fatal("expected error for identical table names")
		}
	})
}

func TestValidateReport_Cases(t *testing.T) {
	r := Report{Destination: "out", TopK: []int{100, 0, 100}}
	issues := validateReport(r)
	if !hasIssue(t, issues, SeverityError, "report.top_k[1]", "must be positive") {
		t.Fatalf("expected error for zero size; got %+v", issues)
	}
	if !hasIssue(t, issues, SeverityWarning, "report.top_k[2]", "duplicate is ignored") {
		t.Fatalf("expected warning for duplicate size; got %+v", issues)
	}

	issues = validateReport(Report{})
	if !hasIssue(t, issues, SeverityError, "report.destination", "must not be empty") {
		t.Fatalf("expected destination error; got %+v", issues)
	}
	if !hasIssue(t, issues, SeverityWarning, "report.top_k", "only stats.txt") {
		t.Fatalf("expected empty top_k warning; got %+v", issues)
	}
}

func TestValidateRuntime_Cases(t *testing.T) {
	issues := validateRuntime(RuntimeConfig{BatchSize: 0, ChannelBuffer: -1})
	if !hasIssue(t, issues, SeverityError, "runtime.batch_size", "must be positive") {
		t.Fatalf("expected batch_size error; got %+v", issues)
	}
	if !hasIssue(t, issues, SeverityError, "runtime.channel_buffer", "must not be negative") {
		t.Fatalf("expected channel_buffer error; got %+v", issues)
	}
}

func TestValidateMetrics_Cases(t *testing.T) {
	tests := []struct {
		name string
		m    Metrics
		sev  IssueSeverity
		path string
	}{
		{"pushgateway_without_url", Metrics{Backend: "pushgateway"}, SeverityError, "metrics.pushgateway_url"},
		{"datadog_without_addr", Metrics{Backend: "datadog"}, SeverityError, "metrics.datadog_addr"},
		{"unknown", Metrics{Backend: "graphite"}, SeverityWarning, "metrics.backend"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !hasIssue(t, validateMetrics(tt.m), tt.sev, tt.path, "") {
				t.Fatalf("expected %s at %s", tt.sev, tt.path)
			}
		})
	}
	if issues := validateMetrics(Metrics{Backend: "datadog", DatadogAddr: "127.0.0.1:8125"}); len(issues) != 0 {
		t.Fatalf("unexpected issues %+v", issues)
	}
}

func TestIssue_Error(t *testing.T) {
	iss := Issue{Severity: SeverityError, Path: "storage.dsn", Message: "boom"}
	if got, want := iss.Error(), "error at storage.dsn: boom"; got != want {
		t.Fatalf("Error() = %q; want %q", got, want)
	}
}
