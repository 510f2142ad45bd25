package pipeline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/ppiankov/imgpull/internal/model"
	"github.com/ppiankov/imgpull/internal/naming"
	"github.com/ppiankov/imgpull/internal/resolve"
	"github.com/ppiankov/imgpull/internal/scan"
	"github.com/ppiankov/imgpull/internal/storage"
)

// countingBlobs records writes made through a filesystem vault
type countingBlobs struct {
	*storage.FS
	mu     sync.Mutex
	writes map[string]int
}

func (c *countingBlobs) WriteBytes(ctx context.Context, p string, data []byte) error {
	c.mu.Lock()
	c.writes[p]++
	c.mu.Unlock()
	return c.FS.WriteBytes(ctx, p, data)
}

type engineFixture struct {
	engine *Engine
	blobs  *countingBlobs
	root   string
}

func newEngineFixture(t *testing.T, policy string, files map[string]string, index resolve.LinkIndex) *engineFixture {
	t.Helper()
	root := t.TempDir()
	for p, content := range files {
		full := filepath.Join(root, filepath.FromSlash(p))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	vault, err := storage.NewFS(root, "assets")
	if err != nil {
		t.Fatalf("NewFS failed: %v", err)
	}
	blobs := &countingBlobs{FS: vault, writes: map[string]int{}}

	namer, err := naming.New(model.NamingConfig{Policy: policy, Hash: model.HashSHA256}, blobs)
	if err != nil {
		t.Fatalf("naming.New failed: %v", err)
	}
	fetcher := NewFetcher(testHTTPConfig(), blobs)
	engine := NewEngine(scan.NewScanner(false), resolve.NewResolver(index), fetcher, namer, blobs, nil)
	return &engineFixture{engine: engine, blobs: blobs, root: root}
}

// imageServer serves fixed bytes per path and 404 otherwise
func imageServer(t *testing.T, images map[string]string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := images[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestProcessDocument_EndToEnd(t *testing.T) {
	server := imageServer(t, map[string]string{"/cat.png": "X"})
	fx := newEngineFixture(t, model.NamingContent, nil, nil)

	text := "See ![cat](" + server.URL + "/cat.png) here"
	updated, changed, res := fx.engine.ProcessDocument(context.Background(), text, "note.md", "assets")

	dest := "assets/" + naming.SHA256Hex([]byte("X")) + ".png"
	if want := "See ![cat](" + dest + ") here"; updated != want {
		t.Errorf("Expected %q, got %q", want, updated)
	}
	if !changed {
		t.Error("Expected document to be changed")
	}
	if res.Total != 1 || res.Succeeded != 1 || len(res.Failures) != 0 {
		t.Errorf("Unexpected result: %+v", res)
	}
	data, err := os.ReadFile(filepath.Join(fx.root, filepath.FromSlash(dest)))
	if err != nil || string(data) != "X" {
		t.Errorf("Expected stored asset with bytes X, got %q, %v", data, err)
	}
}

func TestProcessDocument_FailureLeavesSpanUntouched(t *testing.T) {
	server := imageServer(t, map[string]string{"/ok.png": "OK"})
	fx := newEngineFixture(t, model.NamingContent, nil, nil)

	missing := server.URL + "/missing.png"
	text := "![a](" + server.URL + "/ok.png)\n![b](" + missing + ")\n![c](nowhere.png)\n"
	updated, changed, res := fx.engine.ProcessDocument(context.Background(), text, "note.md", "assets")

	if !changed {
		t.Error("Expected document to be changed")
	}
	if res.Total != 3 || res.Succeeded != 1 {
		t.Errorf("Expected 1/3, got %d/%d", res.Succeeded, res.Total)
	}
	if len(res.Failures) != 2 {
		t.Fatalf("Expected 2 failures, got %+v", res.Failures)
	}
	if res.Failures[0].Path != missing || res.Failures[1].Path != "nowhere.png" {
		t.Errorf("Expected failures in document order, got %+v", res.Failures)
	}
	if !strings.Contains(updated, "![b]("+missing+")") || !strings.Contains(updated, "![c](nowhere.png)") {
		t.Errorf("Expected failed references untouched, got %q", updated)
	}
	if strings.Contains(updated, server.URL+"/ok.png") {
		t.Errorf("Expected successful reference rewritten, got %q", updated)
	}
}

func TestProcessDocument_ManagedReferencesExcluded(t *testing.T) {
	fx := newEngineFixture(t, model.NamingContent, map[string]string{"assets/abc.png": "A"}, nil)

	text := "![x](assets/abc.png) and ![y](./assets/my%20pic.png)"
	updated, changed, res := fx.engine.ProcessDocument(context.Background(), text, "note.md", "assets/")

	if changed || updated != text {
		t.Errorf("Expected text unchanged, got %q", updated)
	}
	if res.Total != 0 || res.Succeeded != 0 || len(res.Failures) != 0 {
		t.Errorf("Expected managed references excluded from counts, got %+v", res)
	}
}

func TestProcessDocument_ContentWrittenOnce(t *testing.T) {
	server := imageServer(t, map[string]string{"/a.png": "SAME", "/b.png": "SAME"})
	fx := newEngineFixture(t, model.NamingContent, nil, nil)
	ctx := context.Background()

	first, _, res1 := fx.engine.ProcessDocument(ctx, "![a]("+server.URL+"/a.png)", "one.md", "assets")
	second, _, res2 := fx.engine.ProcessDocument(ctx, "![b]("+server.URL+"/b.png)", "two.md", "assets")

	if res1.Succeeded != 1 || res2.Succeeded != 1 {
		t.Fatalf("Expected both references rewritten, got %+v %+v", res1, res2)
	}
	dest := "assets/" + naming.SHA256Hex([]byte("SAME")) + ".png"
	if first != "![a]("+dest+")" || second != "![b]("+dest+")" {
		t.Errorf("Expected both documents to point at %s, got %q and %q", dest, first, second)
	}
	if fx.blobs.writes[dest] != 1 {
		t.Errorf("Expected a single write of %s, got %d", dest, fx.blobs.writes[dest])
	}
}

func TestProcessDocument_EmbedNormalizedToInline(t *testing.T) {
	files := map[string]string{"media/pics/cat.png": "CAT"}
	index := resolve.NewVaultIndex([]string{"media/pics/cat.png", "notes/n.md"})
	fx := newEngineFixture(t, model.NamingContent, files, index)

	updated, _, res := fx.engine.ProcessDocument(context.Background(), "![[cat.png|A cat]]", "notes/n.md", "assets")

	dest := "assets/" + naming.SHA256Hex([]byte("CAT")) + ".png"
	if want := "![A cat](" + dest + ")"; updated != want {
		t.Errorf("Expected %q, got %q", want, updated)
	}
	if res.Total != 1 || res.Succeeded != 1 {
		t.Errorf("Unexpected result: %+v", res)
	}
}

func TestProcessDocument_PreservesSurroundingText(t *testing.T) {
	server := imageServer(t, map[string]string{"/1.png": "one", "/2.gif": "two"})
	fx := newEngineFixture(t, model.NamingContent, nil, nil)

	text := "# Título\n\nbefore ![first](" + server.URL + "/1.png \"Caption\") middle ✓ ![](" +
		server.URL + "/2.gif) after\n"
	updated, _, res := fx.engine.ProcessDocument(context.Background(), text, "note.md", "assets")

	if res.Succeeded != 2 {
		t.Fatalf("Expected 2 rewrites, got %+v", res)
	}
	want := "# Título\n\nbefore ![first](assets/" + naming.SHA256Hex([]byte("one")) + ".png \"Caption\") middle ✓ ![](assets/" +
		naming.SHA256Hex([]byte("two")) + ".gif) after\n"
	if updated != want {
		t.Errorf("Expected\n%q\ngot\n%q", want, updated)
	}
}

func TestProcessDocument_UniqueNamesEscapedAndStable(t *testing.T) {
	files := map[string]string{
		"my pic.png":        "new",
		"assets/my pic.png": "old",
	}
	fx := newEngineFixture(t, model.NamingUnique, files, nil)
	ctx := context.Background()

	updated, changed, res := fx.engine.ProcessDocument(ctx, "![p](my%20pic.png)", "note.md", "assets")
	if !changed || res.Succeeded != 1 {
		t.Fatalf("Expected rewrite, got %q %+v", updated, res)
	}
	if want := "![p](assets/my%20pic%20%281%29.png)"; updated != want {
		t.Errorf("Expected %q, got %q", want, updated)
	}

	again, changed, res := fx.engine.ProcessDocument(ctx, updated, "note.md", "assets")
	if changed || again != updated || res.Total != 0 {
		t.Errorf("Expected second pass to be a no-op, got %q %+v", again, res)
	}
}

func TestProcessDocument_NoReferences(t *testing.T) {
	fx := newEngineFixture(t, model.NamingContent, nil, nil)
	text := "plain text with [a link](https://example.com)"
	updated, changed, res := fx.engine.ProcessDocument(context.Background(), text, "note.md", "assets")
	if changed || updated != text || res.Total != 0 {
		t.Errorf("Expected no-op, got %q %v %+v", updated, changed, res)
	}
}

func TestDropOverlaps(t *testing.T) {
	refs := []model.ImageReference{
		{Start: 0, End: 10, Path: "a"},
		{Start: 5, End: 12, Path: "b"},
		{Start: 10, End: 15, Path: "c"},
		{Start: 14, End: 20, Path: "d"},
		{Start: 20, End: 25, Path: "e"},
	}
	got := dropOverlaps(refs)
	var paths []string
	for _, r := range got {
		paths = append(paths, r.Path)
	}
	if strings.Join(paths, ",") != "a,c,e" {
		t.Errorf("Expected a,c,e, got %v", paths)
	}
	if len(refs) != 5 {
		t.Error("input slice must not be modified")
	}
}

func TestEscapeLinkPath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"assets/abc.png", "assets/abc.png"},
		{"assets/my pic.png", "assets/my%20pic.png"},
		{"assets/img (1).png", "assets/img%20%281%29.png"},
		{"assets/Ünïcödé.jpg", "assets/Ünïcödé.jpg"},
	}
	for _, tt := range tests {
		if got := EscapeLinkPath(tt.in); got != tt.want {
			t.Errorf("EscapeLinkPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
