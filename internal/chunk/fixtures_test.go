package chunk_test

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap/zaptest"
	"gopkg.in/yaml.v3"

	"github.com/eykd/ctsvendor/internal/cases"
	"github.com/eykd/ctsvendor/internal/chunk"
	"github.com/eykd/ctsvendor/internal/rooted"
)

// fixturesDir holds one directory per generated document: input.html,
// fixture.yaml and either expected/<N>.html or an expected error.
const fixturesDir = "testdata/fixtures"

// fixture mirrors fixture.yaml.
type fixture struct {
	ChunkSize int      `yaml:"chunk_size"`
	Rewriters []string `yaml:"rewriters"`
	Error     string   `yaml:"error"`
}

var rewritersByName = map[string]func() cases.Rewriter{
	"mount-script-path": cases.MountScriptPath,
	"long-timeout":      cases.LongTimeout,
}

var errorsByName = map[string]error{
	"ErrNoTestCasesFound":           cases.ErrNoTestCasesFound,
	"ErrEmptyCaseSet":               cases.ErrEmptyCaseSet,
	"ErrMalformedBoilerplate":       cases.ErrMalformedBoilerplate,
	"ErrUnexpectedBoilerplateShape": cases.ErrUnexpectedBoilerplateShape,
	"ErrInvalidCaseLines":           cases.ErrInvalidCaseLines,
}

// TestFixtures parses and chunks every fixture document and compares the
// chunk files byte for byte.
func TestFixtures(t *testing.T) {
	entries, err := os.ReadDir(fixturesDir)
	if err != nil {
		t.Fatalf("reading fixtures dir %s: %v", fixturesDir, err)
	}

	ran := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		ran++
		t.Run(name, func(t *testing.T) {
			runFixture(t, filepath.Join(fixturesDir, name))
		})
	}
	if ran == 0 {
		t.Fatalf("no fixtures found in %s", fixturesDir)
	}
}

func runFixture(t *testing.T, dir string) {
	t.Helper()

	fx := loadFixture(t, dir)
	input, err := os.ReadFile(filepath.Join(dir, "input.html"))
	if err != nil {
		t.Fatalf("read input.html: %v", err)
	}

	var rewriters []cases.Rewriter
	for _, name := range fx.Rewriters {
		mk, ok := rewritersByName[name]
		if !ok {
			t.Fatalf("unknown rewriter %q", name)
		}
		rewriters = append(rewriters, mk())
	}

	log := zaptest.NewLogger(t)
	doc, parseErr := cases.NewParser(log, rewriters...).Parse(string(input))
	if fx.Error != "" {
		want, ok := errorsByName[fx.Error]
		if !ok {
			t.Fatalf("unknown error %q", fx.Error)
		}
		if !errors.Is(parseErr, want) {
			t.Fatalf("Parse() error = %v, want %s", parseErr, fx.Error)
		}
		return
	}
	if parseErr != nil {
		t.Fatalf("Parse() error = %v", parseErr)
	}

	base, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	root, err := rooted.New("out", base)
	if err != nil {
		t.Fatal(err)
	}
	original := root.MustChild("cts.https.html")
	if err := rooted.WriteFile(original, input); err != nil {
		t.Fatal(err)
	}
	outDir := root.MustChild("chunked")
	if err := rooted.CreateDirAll(outDir); err != nil {
		t.Fatal(err)
	}

	if err := chunk.New(log, fx.ChunkSize, "cts.https.html").Write(doc, outDir, original); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if original.Exists() {
		t.Error("unchunked document was not removed")
	}

	want := readExpected(t, filepath.Join(dir, "expected"))
	got := readChunks(t, outDir.Abs())
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("chunks mismatch (-want +got):\n%s", diff)
	}
}

func loadFixture(t *testing.T, dir string) fixture {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, "fixture.yaml"))
	if err != nil {
		t.Fatalf("read fixture.yaml: %v", err)
	}
	var fx fixture
	if err := yaml.Unmarshal(data, &fx); err != nil {
		t.Fatalf("parse fixture.yaml: %v", err)
	}
	return fx
}

// readExpected maps chunk index to contents from expected/<N>.html.
func readExpected(t *testing.T, dir string) map[int]string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("reading %s: %v", dir, err)
	}
	out := make(map[int]string, len(entries))
	for _, e := range entries {
		idx, err := strconv.Atoi(strings.TrimSuffix(e.Name(), ".html"))
		if err != nil {
			t.Fatalf("unexpected file %s in %s", e.Name(), dir)
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			t.Fatal(err)
		}
		out[idx] = string(data)
	}
	return out
}

// readChunks maps chunk index to contents from <dir>/<N>/cts.https.html.
func readChunks(t *testing.T, dir string) map[int]string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("reading %s: %v", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	out := make(map[int]string, len(names))
	for _, name := range names {
		idx, err := strconv.Atoi(name)
		if err != nil {
			t.Errorf("unexpected entry %s in output", name)
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name, "cts.https.html"))
		if err != nil {
			t.Errorf("chunk %d: %v", idx, err)
			continue
		}
		out[idx] = string(data)
	}
	return out
}
