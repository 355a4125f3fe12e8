// Package cases splits a generated WPT test document into its shared
// boilerplate and the ordered list of test variant declarations.
package cases

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

// VariantMarker begins the declaration block.
const VariantMarker = "<meta name=variant"

var variantRE = regexp.MustCompile(`^<meta name=variant content='([^']*?)'>$`)

var (
	// ErrNoTestCasesFound means the document has no VariantMarker.
	ErrNoTestCasesFound = errors.New("no test cases found")
	// ErrEmptyCaseSet means no case lines remained after validation.
	ErrEmptyCaseSet = errors.New("test case set is empty")
	// ErrMalformedBoilerplate is matched by *MalformedBoilerplateError.
	ErrMalformedBoilerplate = errors.New("boilerplate does not end with a newline")
	// ErrUnexpectedBoilerplateShape is matched by *UnexpectedShapeError.
	ErrUnexpectedBoilerplateShape = errors.New("unexpected boilerplate shape")
	// ErrInvalidCaseLines is matched by *InvalidCaseLinesError.
	ErrInvalidCaseLines = errors.New("invalid test case lines")
)

// MalformedBoilerplateError points at the character that should have been
// a newline before the first case.
type MalformedBoilerplateError struct {
	Offset int  // byte offset of the offending character
	Char   rune // the offending character
}

func (e *MalformedBoilerplateError) Error() string {
	return fmt.Sprintf("last character before test cases was %q at byte offset %d, expected a newline so the first case is on its own line", e.Char, e.Offset)
}

// Is reports whether target is ErrMalformedBoilerplate.
func (e *MalformedBoilerplateError) Is(target error) bool { return target == ErrMalformedBoilerplate }

// UnexpectedShapeError names a rewrite whose expected text was absent.
type UnexpectedShapeError struct {
	Rewrite string
	Missing string
}

func (e *UnexpectedShapeError) Error() string {
	return fmt.Sprintf("%s: could not find %q in boilerplate; did something change upstream?", e.Rewrite, e.Missing)
}

// Is reports whether target is ErrUnexpectedBoilerplateShape.
func (e *UnexpectedShapeError) Is(target error) bool { return target == ErrUnexpectedBoilerplateShape }

// InvalidCaseLinesError lists every line that failed validation.
type InvalidCaseLinesError struct {
	Lines []string
}

func (e *InvalidCaseLinesError) Error() string {
	quoted := make([]string, len(e.Lines))
	for i, l := range e.Lines {
		quoted[i] = fmt.Sprintf("%q", l)
	}
	return fmt.Sprintf("%d line(s) are not test cases: %s", len(e.Lines), strings.Join(quoted, ", "))
}

// Is reports whether target is ErrInvalidCaseLines.
func (e *InvalidCaseLinesError) Is(target error) bool { return target == ErrInvalidCaseLines }

// Document is a parsed test document.
type Document struct {
	// Boilerplate is the rewritten prefix shared by every chunk. It is empty
	// or ends with "\n".
	Boilerplate string
	// Cases holds one variant declaration per element, in document order.
	Cases []string
}

// Parser validates generated documents.
type Parser struct {
	log       *zap.Logger
	rewriters []Rewriter
}

// NewParser returns a Parser applying rewriters, in order, to the
// boilerplate. Pass DefaultRewriters() for upstream CTS output.
func NewParser(log *zap.Logger, rewriters ...Rewriter) *Parser {
	return &Parser{log: log, rewriters: rewriters}
}

// Parse splits text into boilerplate and cases. Every shape assumption is
// checked; all invalid case lines are reported together.
func (p *Parser) Parse(text string) (*Document, error) {
	idx := strings.Index(text, VariantMarker)
	if idx < 0 {
		return nil, ErrNoTestCasesFound
	}
	boilerplate, rest := text[:idx], text[idx:]

	if boilerplate != "" && !strings.HasSuffix(boilerplate, "\n") {
		last, size := utf8.DecodeLastRuneInString(boilerplate)
		return nil, &MalformedBoilerplateError{Offset: len(boilerplate) - size, Char: last}
	}

	for _, rw := range p.rewriters {
		p.log.Info("rewriting boilerplate", zap.String("rewrite", rw.Name()))
		out, err := rw.Rewrite(boilerplate)
		if err != nil {
			return nil, err
		}
		boilerplate = out
	}
	p.log.Debug("boilerplate", zap.String("text", boilerplate))

	lines := splitTerminator(rest)
	var invalid []string
	for _, line := range lines {
		if !variantRE.MatchString(line) {
			p.log.Error("line is not a test case", zap.String("line", line))
			invalid = append(invalid, line)
		}
	}
	if len(invalid) > 0 {
		return nil, &InvalidCaseLinesError{Lines: invalid}
	}
	if len(lines) == 0 {
		return nil, ErrEmptyCaseSet
	}
	p.log.Info("found test cases", zap.Int("count", len(lines)))

	return &Document{Boilerplate: boilerplate, Cases: lines}, nil
}

// Variant returns the content of a validated case line, e.g.
// "webgpu:api,operation,*" for
// "<meta name=variant content='webgpu:api,operation,*'>".
func Variant(line string) (string, bool) {
	m := variantRE.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// splitTerminator splits on "\n"; a trailing terminator does not produce a
// final empty element.
func splitTerminator(s string) []string {
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
