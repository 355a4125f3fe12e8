package cases

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

const upstreamDoc = `<!-- AUTO-GENERATED - DO NOT EDIT. See WebGPU CTS: tools/gen_wpt_cts_html. -->
<!doctype html>
<title>WebGPU CTS</title>
<meta charset=utf-8>
<link rel=help href='https://gpuweb.github.io/gpuweb/'>

<script src=/resources/testharness.js></script>
<script src=/resources/testharnessreport.js></script>
<script type=module src=/webgpu/common/runtime/wpt.js></script>
<meta name=variant content='webgpu:api,operation,adapter,requestDevice:*'>
<meta name=variant content='webgpu:api,operation,buffers,map:*'>
`

func TestParse_UpstreamDocument(t *testing.T) {
	doc, err := NewParser(zaptest.NewLogger(t), DefaultRewriters()...).Parse(upstreamDoc)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	wantCases := []string{
		"<meta name=variant content='webgpu:api,operation,adapter,requestDevice:*'>",
		"<meta name=variant content='webgpu:api,operation,buffers,map:*'>",
	}
	if diff := cmp.Diff(wantCases, doc.Cases); diff != "" {
		t.Errorf("Cases mismatch (-want +got):\n%s", diff)
	}
	if strings.Contains(doc.Boilerplate, WPTScriptTag) {
		t.Error("boilerplate still references the unmounted wpt.js")
	}
	if !strings.Contains(doc.Boilerplate, MountedWPTScriptTag) {
		t.Error("boilerplate does not reference the mounted wpt.js")
	}
	if !strings.Contains(doc.Boilerplate, "<meta charset=utf-8>\n"+LongTimeoutMeta+"<link rel=help") {
		t.Errorf("timeout not inserted after charset line:\n%s", doc.Boilerplate)
	}
	if !strings.HasSuffix(doc.Boilerplate, "\n") {
		t.Error("boilerplate must end with a newline")
	}
}

func TestParse_ScenarioA_TimeoutOnly(t *testing.T) {
	text := "<script src=x></script>\n<meta charset=utf-8>\n" +
		"<meta name=variant content='a'>\n<meta name=variant content='b'>\n<meta name=variant content='c'>\n"

	doc, err := NewParser(zaptest.NewLogger(t), LongTimeout()).Parse(text)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	wantBoilerplate := "<script src=x></script>\n<meta charset=utf-8>\n" + LongTimeoutMeta
	if doc.Boilerplate != wantBoilerplate {
		t.Errorf("Boilerplate = %q, want %q", doc.Boilerplate, wantBoilerplate)
	}
	if len(doc.Cases) != 3 {
		t.Errorf("len(Cases) = %d, want 3", len(doc.Cases))
	}
}

func TestParse_DefaultRewritersRejectForeignScript(t *testing.T) {
	text := "<script src=x></script>\n<meta charset=utf-8>\n<meta name=variant content='a'>\n"
	_, err := NewParser(zaptest.NewLogger(t), DefaultRewriters()...).Parse(text)
	if !errors.Is(err, ErrUnexpectedBoilerplateShape) {
		t.Fatalf("error = %v, want ErrUnexpectedBoilerplateShape", err)
	}
	var shapeErr *UnexpectedShapeError
	if !errors.As(err, &shapeErr) || shapeErr.Missing != WPTScriptTag {
		t.Errorf("error = %#v, want missing %q", err, WPTScriptTag)
	}
}

func TestParse_MissingCharsetAnchor(t *testing.T) {
	text := WPTScriptTag + "\n<meta name=variant content='a'>\n"
	_, err := NewParser(zaptest.NewLogger(t), DefaultRewriters()...).Parse(text)
	var shapeErr *UnexpectedShapeError
	if !errors.As(err, &shapeErr) {
		t.Fatalf("error = %v, want *UnexpectedShapeError", err)
	}
	if shapeErr.Missing != CharsetAnchor {
		t.Errorf("Missing = %q, want %q", shapeErr.Missing, CharsetAnchor)
	}
}

func TestParse_NoTestCases(t *testing.T) {
	_, err := NewParser(zap.NewNop()).Parse("<!doctype html>\n<title>empty</title>\n")
	if !errors.Is(err, ErrNoTestCasesFound) {
		t.Fatalf("error = %v, want ErrNoTestCasesFound", err)
	}
}

func TestParse_MalformedBoilerplate(t *testing.T) {
	text := "<title>x</title>é<meta name=variant content='a'>\n"
	_, err := NewParser(zap.NewNop()).Parse(text)
	if !errors.Is(err, ErrMalformedBoilerplate) {
		t.Fatalf("error = %v, want ErrMalformedBoilerplate", err)
	}
	var mbErr *MalformedBoilerplateError
	if !errors.As(err, &mbErr) {
		t.Fatalf("error %T is not *MalformedBoilerplateError", err)
	}
	if mbErr.Char != 'é' {
		t.Errorf("Char = %q, want %q", mbErr.Char, 'é')
	}
	if want := len("<title>x</title>"); mbErr.Offset != want {
		t.Errorf("Offset = %d, want %d", mbErr.Offset, want)
	}
}

func TestParse_EmptyBoilerplateIsAllowed(t *testing.T) {
	doc, err := NewParser(zap.NewNop()).Parse("<meta name=variant content='only'>")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if doc.Boilerplate != "" {
		t.Errorf("Boilerplate = %q, want empty", doc.Boilerplate)
	}
	if diff := cmp.Diff([]string{"<meta name=variant content='only'>"}, doc.Cases); diff != "" {
		t.Errorf("Cases mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_ScenarioB_UnquotedVariant(t *testing.T) {
	text := "<meta charset=utf-8>\n<meta name=variant content=a>\n"
	_, err := NewParser(zap.NewNop()).Parse(text)
	if !errors.Is(err, ErrInvalidCaseLines) {
		t.Fatalf("error = %v, want ErrInvalidCaseLines", err)
	}
	var invErr *InvalidCaseLinesError
	if !errors.As(err, &invErr) {
		t.Fatalf("error %T is not *InvalidCaseLinesError", err)
	}
	if diff := cmp.Diff([]string{"<meta name=variant content=a>"}, invErr.Lines); diff != "" {
		t.Errorf("Lines mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_ReportsEveryInvalidLine(t *testing.T) {
	text := "\n<meta name=variant content='ok'>\n" +
		"<meta name=variant content=bad1>\n" +
		"<meta name=variant content='ok2'>\n" +
		"\n" +
		"<meta name=variant content='trailing'> \n"

	core, logs := observer.New(zapcore.ErrorLevel)
	_, err := NewParser(zap.New(core)).Parse(text)

	var invErr *InvalidCaseLinesError
	if !errors.As(err, &invErr) {
		t.Fatalf("error = %v, want *InvalidCaseLinesError", err)
	}
	want := []string{
		"<meta name=variant content=bad1>",
		"",
		"<meta name=variant content='trailing'> ",
	}
	if diff := cmp.Diff(want, invErr.Lines); diff != "" {
		t.Errorf("Lines mismatch (-want +got):\n%s", diff)
	}
	if n := logs.FilterMessage("line is not a test case").Len(); n != len(want) {
		t.Errorf("logged %d invalid lines, want %d", n, len(want))
	}
}

func TestParse_PreservesOrder(t *testing.T) {
	var b strings.Builder
	b.WriteString("<meta charset=utf-8>\n")
	var want []string
	for _, v := range []string{"z", "a", "m", "b"} {
		line := "<meta name=variant content='" + v + "'>"
		want = append(want, line)
		b.WriteString(line + "\n")
	}
	doc, err := NewParser(zap.NewNop()).Parse(b.String())
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if diff := cmp.Diff(want, doc.Cases); diff != "" {
		t.Errorf("Cases mismatch (-want +got):\n%s", diff)
	}
}

func TestVariant(t *testing.T) {
	got, ok := Variant("<meta name=variant content='webgpu:shader,*'>")
	if !ok || got != "webgpu:shader,*" {
		t.Errorf("Variant() = %q, %v; want %q, true", got, ok, "webgpu:shader,*")
	}
	if _, ok := Variant("<meta name=variant content=a>"); ok {
		t.Error("Variant() accepted an unquoted declaration")
	}
}

func TestSplitTerminator(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"a\nb\n", []string{"a", "b"}},
		{"a\nb", []string{"a", "b"}},
		{"a\n\n", []string{"a", ""}},
		{"", nil},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, splitTerminator(tt.in)); diff != "" {
			t.Errorf("splitTerminator(%q) mismatch (-want +got):\n%s", tt.in, diff)
		}
	}
}
