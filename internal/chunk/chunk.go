// Package chunk redistributes test variants into bounded-size documents so
// that no single file exceeds the test runner's per-file time budget.
//
// Chunk membership is purely positional: inserting a case upstream shifts
// every later case into a different chunk. Chunk directories are not
// zero-padded, so their names stay stable as the chunk count grows.
package chunk

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/eykd/ctsvendor/internal/cases"
	"github.com/eykd/ctsvendor/internal/rooted"
)

var (
	// ErrInvalidChunkSize is returned for a chunk size below one.
	ErrInvalidChunkSize = errors.New("chunk size must be positive")
	// ErrChunkWriteFailures is matched by *WriteFailuresError.
	ErrChunkWriteFailures = errors.New("failed to write one or more chunks")
)

// WriteFailuresError reports how many chunks could not be written. Err
// combines the individual failures.
type WriteFailuresError struct {
	Count int
	Err   error
}

func (e *WriteFailuresError) Error() string {
	return fmt.Sprintf("failed to write %d chunked test file(s): %v", e.Count, e.Err)
}

// Is reports whether target is ErrChunkWriteFailures.
func (e *WriteFailuresError) Is(target error) bool { return target == ErrChunkWriteFailures }

func (e *WriteFailuresError) Unwrap() error { return e.Err }

// Chunk is a contiguous run of case lines. Index starts at 1.
type Chunk struct {
	Index int
	Cases []string
}

// Partition splits cases into consecutive groups of at most size, in order.
func Partition(cases []string, size int) ([]Chunk, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidChunkSize, size)
	}
	chunks := make([]Chunk, 0, (len(cases)+size-1)/size)
	for start := 0; start < len(cases); start += size {
		end := min(start+size, len(cases))
		chunks = append(chunks, Chunk{Index: len(chunks) + 1, Cases: cases[start:end]})
	}
	return chunks, nil
}

// Render returns boilerplate followed by each case on its own line.
func Render(boilerplate string, c Chunk) []byte {
	var b strings.Builder
	b.WriteString(boilerplate)
	for _, line := range c.Cases {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

// Chunker writes one document per chunk.
type Chunker struct {
	log      *zap.Logger
	size     int
	fileName string
}

// New returns a Chunker grouping size cases per document named fileName.
func New(log *zap.Logger, size int, fileName string) *Chunker {
	return &Chunker{log: log, size: size, fileName: fileName}
}

// Write materializes doc under outDir as <outDir>/<N>/<fileName>. A failing
// chunk does not stop the others; all failures are reported together
// afterwards. Only when every chunk is written is original removed.
func (c *Chunker) Write(doc *cases.Document, outDir, original rooted.Path) error {
	chunks, err := Partition(doc.Cases, c.size)
	if err != nil {
		return err
	}
	c.log.Info("re-distributing tests into chunks",
		zap.Int("chunks", len(chunks)), zap.Int("chunk_size", c.size))

	var errs error
	failed := 0
	for _, ch := range chunks {
		if err := c.writeChunk(doc.Boilerplate, ch, outDir); err != nil {
			c.log.Error("failed to write chunk", zap.Int("chunk", ch.Index), zap.Error(err))
			errs = multierr.Append(errs, err)
			failed++
		}
	}
	if failed > 0 {
		return &WriteFailuresError{Count: failed, Err: errs}
	}
	c.log.Debug("finished writing chunked test files")

	c.log.Info("removing unchunked document", zap.Stringer("path", original))
	return rooted.RemoveFile(original)
}

func (c *Chunker) writeChunk(boilerplate string, ch Chunk, outDir rooted.Path) error {
	dir, err := outDir.Child(strconv.Itoa(ch.Index))
	if err != nil {
		return err
	}
	if err := rooted.CreateDirAll(dir); err != nil {
		return err
	}
	file, err := dir.Child(c.fileName)
	if err != nil {
		return err
	}
	if err := rooted.WriteFile(file, Render(boilerplate, ch)); err != nil {
		return fmt.Errorf("failed to write chunked output: %w", err)
	}
	first, _ := cases.Variant(ch.Cases[0])
	last, _ := cases.Variant(ch.Cases[len(ch.Cases)-1])
	c.log.Debug("wrote chunk", zap.Stringer("path", file),
		zap.Int("cases", len(ch.Cases)), zap.String("first", first), zap.String("last", last))
	return nil
}
