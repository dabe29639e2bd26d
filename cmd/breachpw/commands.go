package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"breachpw/internal/config"
	"breachpw/internal/pipeline"
)

// globalOptions are accepted before any command.
type globalOptions struct {
	Config   string `short:"c" long:"config" description:"pipeline config file (.json, .yaml or .yml)" default:"configs/breachpw.yaml"`
	Verbose  bool   `short:"v" long:"verbose" description:"enable debug logging"`
	Validate bool   `long:"validate" description:"validate the configuration and exit"`
}

var errInvalidConfig = errors.New("configuration is invalid")

// stageCommand runs a fixed list of stages.
type stageCommand struct {
	opts   *globalOptions
	stages []string
}

func (c *stageCommand) Execute([]string) error {
	if c.opts.Validate {
		return validateOnly(c.opts, os.Stdout)
	}

	p, err := loadPipeline(c.opts.Config, os.Stderr)
	if err != nil {
		return err
	}
	log := newLogger(p.Log, c.opts.Verbose, os.Stderr)

	flush := setupMetrics(p, log)
	defer flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runStages(ctx, p, log, c.stages)
}

func runStages(ctx context.Context, p config.Pipeline, log logrus.FieldLogger, stages []string) error {
	r, err := pipeline.New(p, log)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"stages":  stages,
		"storage": p.Storage.Kind,
		"charset": p.Encoding,
	}).Info("starting")
	return r.Run(ctx, stages...)
}

// validateCommand implements "breachpw validate".
type validateCommand struct {
	opts *globalOptions
}

func (c *validateCommand) Execute([]string) error {
	return validateOnly(c.opts, os.Stdout)
}

func validateOnly(opts *globalOptions, w io.Writer) error {
	if _, err := loadPipeline(opts.Config, w); err != nil {
		return err
	}
	fmt.Fprintf(w, "configuration is valid: %s\n", opts.Config)
	return nil
}

// loadPipeline decodes and lints path, printing every issue to w. Warnings
// do not fail.
func loadPipeline(path string, w io.Writer) (config.Pipeline, error) {
	p, err := config.Load(path)
	if err != nil {
		return config.Pipeline{}, err
	}
	issues := config.ValidatePipeline(p)
	for _, iss := range issues {
		fmt.Fprintf(w, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		return config.Pipeline{}, fmt.Errorf("%w: %s", errInvalidConfig, path)
	}
	return p, nil
}
