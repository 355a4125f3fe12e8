package cases

import (
	"strings"
)

// Fixed strings of the generated WPT document. They describe an external
// format; a mismatch means upstream changed it.
const (
	// WPTScriptTag is the runtime script reference emitted upstream.
	WPTScriptTag = "<script type=module src=/webgpu/common/runtime/wpt.js></script>"
	// MountedWPTScriptTag is WPTScriptTag under the _mozilla mount point.
	MountedWPTScriptTag = "<script type=module src=/_mozilla/webgpu/common/runtime/wpt.js></script>"
	// CharsetAnchor is the line after which the timeout declaration goes.
	CharsetAnchor = "\n<meta charset=utf-8>\n"
	// LongTimeoutMeta is inserted after CharsetAnchor.
	LongTimeoutMeta = `<meta name="timeout" content="long">` +
		" <!-- TODO: narrow to only where it's needed, see " +
		"https://bugzilla.mozilla.org/show_bug.cgi?id=1850537 -->\n"
)

// Rewriter transforms boilerplate. Rewriters fail with an
// *UnexpectedShapeError when the text they expect is absent.
type Rewriter interface {
	Name() string
	Rewrite(boilerplate string) (string, error)
}

// ReplaceOnce replaces the first occurrence of Old with New.
type ReplaceOnce struct {
	Label string
	Old   string
	New   string
}

// Name implements Rewriter.
func (r ReplaceOnce) Name() string { return r.Label }

// Rewrite implements Rewriter.
func (r ReplaceOnce) Rewrite(boilerplate string) (string, error) {
	if !strings.Contains(boilerplate, r.Old) {
		return "", &UnexpectedShapeError{Rewrite: r.Label, Missing: r.Old}
	}
	return strings.Replace(boilerplate, r.Old, r.New, 1), nil
}

// InsertAfter inserts Text right after the first occurrence of Anchor.
type InsertAfter struct {
	Label  string
	Anchor string
	Text   string
}

// Name implements Rewriter.
func (r InsertAfter) Name() string { return r.Label }

// Rewrite implements Rewriter.
func (r InsertAfter) Rewrite(boilerplate string) (string, error) {
	idx := strings.Index(boilerplate, r.Anchor)
	if idx < 0 {
		return "", &UnexpectedShapeError{Rewrite: r.Label, Missing: r.Anchor}
	}
	at := idx + len(r.Anchor)
	return boilerplate[:at] + r.Text + boilerplate[at:], nil
}

// MountScriptPath points the WPT runtime script at the _mozilla mount.
func MountScriptPath() Rewriter {
	return ReplaceOnce{Label: "mount wpt.js under /_mozilla", Old: WPTScriptTag, New: MountedWPTScriptTag}
}

// LongTimeout declares a long per-test timeout after the charset line.
func LongTimeout() Rewriter {
	return InsertAfter{Label: "add long timeout", Anchor: CharsetAnchor, Text: LongTimeoutMeta}
}

// DefaultRewriters returns the rewrites applied to upstream output.
func DefaultRewriters() []Rewriter {
	return []Rewriter{MountScriptPath(), LongTimeout()}
}
