// Command breachpw turns breach dumps into frequency-ranked password
// wordlists. It runs the whole pipeline ("run") or any single stage by name.
package main

import (
	"errors"
	"fmt"
	"os"

	flags "github.com/jessevdk/go-flags"

	"breachpw/internal/pipeline"

	// register all backends with the storage factory.
	_ "breachpw/internal/storage/all"
)

func main() {
	opts := &globalOptions{}
	parser := newParser(opts)

	if _, err := parser.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if parser.Active != nil {
		return
	}
	// --validate without a command.
	if opts.Validate {
		if err := validateOnly(opts, os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}
	parser.WriteHelp(os.Stderr)
	os.Exit(2)
}

// newParser builds the command tree around opts.
func newParser(opts *globalOptions) *flags.Parser {
	parser := flags.NewParser(opts, flags.Default)
	parser.SubcommandsOptional = true

	_, _ = parser.AddCommand("run",
		"Run every stage",
		"Run extract, dedup, load, merge, compact and report in order.",
		&stageCommand{opts: opts, stages: pipeline.Stages})

	for _, s := range []struct{ name, short string }{
		{"extract", "Extract passwords from the dump files"},
		{"dedup", "Count distinct passwords per file"},
		{"load", "Bulk-load per-file counts into the raw table"},
		{"merge", "Merge raw counts into one row per password"},
		{"compact", "Drop the raw table and reclaim space"},
		{"report", "Write top-K wordlists and stats.txt"},
	} {
		_, _ = parser.AddCommand(s.name, s.short, "", &stageCommand{opts: opts, stages: []string{s.name}})
	}

	_, _ = parser.AddCommand("validate",
		"Validate the configuration",
		"Load the configuration, print every issue and exit non-zero on errors.",
		&validateCommand{opts: opts})

	return parser
}
