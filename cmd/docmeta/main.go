// Command docmeta runs the documentation-to-metadata transformer over a
// stream of metadata records.
//
// It reads newline-delimited JSON record envelopes (from a file, stdin, or a
// directory of record files in a local or git-hosted store), extracts
// bullet-style key-value annotations from entity documentation, and writes
// the transformed stream, including any metadata records created along the
// way, followed by the records drained at end of stream.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/dnswlt/docmeta/internal/api"
	"github.com/dnswlt/docmeta/internal/config"
	"github.com/dnswlt/docmeta/internal/gitclient"
	"github.com/dnswlt/docmeta/internal/store"
	"github.com/dnswlt/docmeta/internal/transform"
	"github.com/peterbourgon/ff/v3"
)

var (
	// Version is the application version.
	// It is set at build time via -ldflags "-X main.Version=...".
	Version = "dev"
)

func gitClientAuthFromEnv() *gitclient.Auth {
	user := os.Getenv("DOCMETA_GIT_USER")
	if user == "" {
		return nil
	}
	pass := os.Getenv("DOCMETA_GIT_PASSWORD")
	return &gitclient.Auth{
		Username: user,
		Password: pass,
	}
}

// Options contains program options that can be set via command-line flags or environment variables.
type Options struct {
	RootDir     string
	ConfigPath  string
	Input       string
	Output      string
	RecordsDir  string
	GitURL      string
	GitRef      string
	ShowVersion bool
}

func newSource(opts *Options) (store.Source, error) {
	if opts.GitURL != "" {
		log.Printf("Cloning %s", opts.GitURL)
		client, err := gitclient.NewClient(opts.GitURL, gitClientAuthFromEnv())
		if err != nil {
			return nil, fmt.Errorf("failed to connect to git repository %s: %v", opts.GitURL, err)
		}
		return store.NewGitSource(client, opts.GitRef), nil
	}
	return store.NewDiskStore(opts.RootDir), nil
}

// readInput collects the record envelopes to transform, in order.
func readInput(opts *Options, st store.Store, bundle *config.Bundle) ([]*api.Envelope, error) {
	if opts.Input == "-" {
		envelopes, err := api.DecodeEnvelopes(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("invalid record stream on stdin: %v", err)
		}
		return envelopes, nil
	}
	if opts.Input != "" {
		return store.ReadEnvelopes(st, opts.Input)
	}
	recordsDir := opts.RecordsDir
	if recordsDir == "" {
		recordsDir = bundle.Records.Dir
	}
	if recordsDir == "" {
		return nil, fmt.Errorf("no input: set -input, -records-dir, or records.dir in the config")
	}
	files, err := store.RecordFiles(st, recordsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list record files in %q: %v", recordsDir, err)
	}
	var envelopes []*api.Envelope
	for _, f := range files {
		envs, err := store.ReadEnvelopes(st, f)
		if err != nil {
			return nil, err
		}
		envelopes = append(envelopes, envs...)
	}
	return envelopes, nil
}

func writeOutput(opts *Options, envelopes []*api.Envelope) error {
	var w io.Writer = os.Stdout
	if opts.Output != "" && opts.Output != "-" {
		f, err := os.Create(opts.Output)
		if err != nil {
			return fmt.Errorf("failed to create output file %q: %v", opts.Output, err)
		}
		defer f.Close()
		w = f
	}
	return api.EncodeEnvelopes(w, envelopes)
}

func run(opts *Options) error {
	source, err := newSource(opts)
	if err != nil {
		return err
	}
	ref := ""
	if opts.GitURL != "" {
		ref = opts.GitRef
	}
	st, err := source.Store(ref)
	if err != nil {
		return fmt.Errorf("failed to open store: %v", err)
	}

	bundle, err := config.Load(st, opts.ConfigPath)
	if err != nil {
		return err
	}
	tf, err := transform.New(&bundle.Transformer)
	if err != nil {
		return err
	}

	input, err := readInput(opts, st, bundle)
	if err != nil {
		return err
	}

	output := tf.Transform(input)
	// Drain the records accumulated across the run once the stream is done.
	for _, proposal := range tf.EndOfStream() {
		output = append(output, &api.Envelope{Record: proposal})
	}

	if err := writeOutput(opts, output); err != nil {
		return err
	}

	report := tf.Report()
	log.Printf("Transformed %d record(s) into %d, annotations matched on %d entit(ies)",
		len(input), len(output), len(report.Entities))
	for _, w := range report.Warnings {
		log.Printf("Warning: %s", w)
	}
	return nil
}

func main() {
	fs := flag.NewFlagSet("docmeta", flag.ExitOnError)
	var opts Options
	fs.StringVar(&opts.RootDir, "root-dir", ".", "Root directory of the disk store (ignored with -git-url)")
	fs.StringVar(&opts.ConfigPath, "config", "docmeta.yml", "Path of the configuration file, relative to the store root")
	fs.StringVar(&opts.Input, "input", "", "Path of the record stream to transform, relative to the store root (\"-\" for stdin)")
	fs.StringVar(&opts.Output, "output", "-", "Path of the output file (\"-\" for stdout)")
	fs.StringVar(&opts.RecordsDir, "records-dir", "", "Directory scanned for record stream files if -input is not set")
	fs.StringVar(&opts.GitURL, "git-url", "", "URL of a git repository to read config and records from")
	fs.StringVar(&opts.GitRef, "git-ref", "main", "Git branch or tag to read (requires -git-url)")
	fs.BoolVar(&opts.ShowVersion, "version", false, "Print the version and exit")

	if err := ff.Parse(fs, os.Args[1:], ff.WithEnvVarPrefix("DOCMETA")); err != nil {
		log.Fatalf("Failed to parse flags: %v", err)
	}

	if opts.ShowVersion {
		fmt.Printf("docmeta version %s\n", Version)
		return
	}

	if err := run(&opts); err != nil {
		log.Fatalf("docmeta failed: %v", err)
	}
}
