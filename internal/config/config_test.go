package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

// -----------------------------------------------------------------------------
// Pipeline decoding tests
// -----------------------------------------------------------------------------
//
// Pipeline files only need to name what differs from Defaults; the tests
// decode from strings to stay hermetic and load the shipped samples once.

func TestDecode_JSONOverridesDefaults(t *testing.T) {
	t.Parallel()

	const js = `{
	  "job": "nightly",
	  "extract": { "source": "dumps", "delete_source": true },
	  "storage": { "kind": "postgres", "dsn": "postgres://u@h/db" },
	  "report": { "top_k": [10, 20] },
	  "runtime": { "batch_size": 100 }
	}`

	p, err := Decode([]byte(js), ".json")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	want := Defaults()
	want.Job = "nightly"
	want.Extract.Source = "dumps"
	want.Extract.DeleteSource = true
	want.Storage.Kind = "postgres"
	want.Storage.DSN = "postgres://u@h/db"
	want.Report.TopK = []int{10, 20}
	want.Runtime.BatchSize = 100

	if !reflect.DeepEqual(p, want) {
		t.Fatalf("decoded pipeline mismatch:\n got: %+v\nwant: %+v", p, want)
	}
}

func TestDecode_JSONRejectsUnknownFields(t *testing.T) {
	t.Parallel()

	_, err := Decode([]byte(`{"storage": {"table": "x"}}`), ".json")
	if err == nil || !strings.Contains(err.Error(), "unknown field") {
		t.Fatalf("expected unknown field error; got %v", err)
	}
}

func TestDecode_YAMLRejectsUnknownFields(t *testing.T) {
	t.Parallel()

	for name, doc := range map[string]string{
		"top level": "job: x\nstages: [extract]\n",
		"nested":    "storage:\n  kind: sqlite\n  table: x\n",
		"inline":    "extract:\n  source: data\n  delete_sources: true\n",
	} {
		_, err := Decode([]byte(doc), ".yaml")
		if err == nil || !strings.Contains(err.Error(), "not found in type") {
			t.Fatalf("%s: expected unknown field error; got %v", name, err)
		}
	}
}

func TestDecode_YAMLEmptyKeepsDefaults(t *testing.T) {
	t.Parallel()

	p, err := Decode(nil, ".yml")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !reflect.DeepEqual(p, Defaults()) {
		t.Fatalf("empty document changed defaults: %+v", p)
	}
}

func TestDecode_YAML(t *testing.T) {
	t.Parallel()

	const y = `
job: yaml-job
encoding: windows-1252
extract:
  source: in
  destination: out
  pattern: '@[a-z.]+:'
merge:
  verify: false
`
	p, err := Decode([]byte(y), ".YML")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if p.Job != "yaml-job" || p.Encoding != "windows-1252" {
		t.Fatalf("unexpected header fields: %+v", p)
	}
	if p.Extract.Source != "in" || p.Extract.Destination != "out" || p.Extract.Pattern != "@[a-z.]+:" {
		t.Fatalf("inline stage fields not decoded: %+v", p.Extract)
	}
	if p.Merge.Verify {
		t.Fatalf("merge.verify = true; want false")
	}
	if p.Storage.RawTable != "table1" {
		t.Fatalf("defaults lost: raw_table = %q", p.Storage.RawTable)
	}
}

func TestDecode_Malformed(t *testing.T) {
	t.Parallel()

	if _, err := Decode([]byte(`{`), ".json"); err == nil {
		t.Fatal("expected error for truncated JSON")
	}
	if _, err := Decode([]byte("job: [unclosed"), ".yaml"); err == nil {
		t.Fatal("expected error for malformed YAML")
	}
}

func TestLoad_SampleConfigs(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"breachpw.yaml", "postgres.json"} {
		p, err := Load(filepath.Join("..", "..", "configs", name))
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if HasErrors(ValidatePipeline(p)) {
			t.Fatalf("%s: sample config has errors: %+v", name, ValidatePipeline(p))
		}
	}
}

func TestLoad_Missing(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error; got %v", err)
	}
}

func TestDefaults_Independent(t *testing.T) {
	t.Parallel()

	a := Defaults()
	a.Report.TopK[0] = 1
	if Defaults().Report.TopK[0] != 100000 {
		t.Fatal("Defaults shares its top_k slice between calls")
	}
}
