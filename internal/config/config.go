// Package config holds ctsvendor's settings: the chunk size, the log level
// and where things live in the host tree. Every field has a default; an
// optional YAML file overrides any subset of them.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultChunkSize has been tested empirically to keep chunks within the
// CI per-file time budget.
const DefaultChunkSize = 25

// Config is the complete tool configuration.
type Config struct {
	ChunkSize int    `yaml:"chunk_size"`
	LogLevel  string `yaml:"log_level"`
	Layout    Layout `yaml:"layout"`
}

// Layout names the directories and files the pipeline touches. Host paths
// are relative to the host repository root, checkout paths to the CTS
// checkout root.
type Layout struct {
	VendorDir         string `yaml:"vendor_dir"`          // host: checkout/ and checkout_commit.txt live here
	WPTTestsDir       string `yaml:"wpt_tests_dir"`       // host: must already exist
	WPTSubdir         string `yaml:"wpt_subdir"`          // created under WPTTestsDir
	OutputDir         string `yaml:"output_dir"`          // checkout: npm run wpt output
	DocumentName      string `yaml:"document_name"`       // generated document
	ExtraDocumentName string `yaml:"extra_document_name"` // removed after generation
	UnchunkedConfig   string `yaml:"unchunked_config"`    // checkout: gen_wpt_cts_html argument
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ChunkSize: DefaultChunkSize,
		LogLevel:  "info",
		Layout: Layout{
			VendorDir:         filepath.Join("dom", "webgpu", "tests", "cts"),
			WPTTestsDir:       filepath.Join("testing", "web-platform", "mozilla", "tests"),
			WPTSubdir:         "webgpu",
			OutputDir:         "out-wpt",
			DocumentName:      "cts.https.html",
			ExtraDocumentName: "cts-chunked2sec.https.html",
			UnchunkedConfig:   filepath.Join("tools", "gen_wpt_cfg_unchunked.json"),
		},
	}
}

// Load reads the YAML file at path over Default. An empty path returns the
// defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over Default and validates the result. Unknown keys
// are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be a positive integer, got %d", c.ChunkSize)
	}
	fields := []struct {
		name, value string
	}{
		{"layout.vendor_dir", c.Layout.VendorDir},
		{"layout.wpt_tests_dir", c.Layout.WPTTestsDir},
		{"layout.wpt_subdir", c.Layout.WPTSubdir},
		{"layout.output_dir", c.Layout.OutputDir},
		{"layout.document_name", c.Layout.DocumentName},
		{"layout.extra_document_name", c.Layout.ExtraDocumentName},
		{"layout.unchunked_config", c.Layout.UnchunkedConfig},
	}
	for _, f := range fields {
		if f.value == "" {
			return fmt.Errorf("%s must not be empty", f.name)
		}
		if filepath.IsAbs(f.value) {
			return fmt.Errorf("%s must be a relative path, got %q", f.name, f.value)
		}
	}
	return nil
}
