package ingestion_engine

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/docembed/internal/models"
)

// writeTree creates files relative to root; an empty body makes an empty file.
func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, body := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}
}

func collect(ch <-chan models.SourceFile) []models.SourceFile {
	var out []models.SourceFile
	for f := range ch {
		out = append(out, f)
	}
	return out
}

func relPaths(t *testing.T, root string, files []models.SourceFile) []string {
	t.Helper()
	out := make([]string, len(files))
	for i, f := range files {
		rel, err := filepath.Rel(root, f.Path)
		require.NoError(t, err)
		out[i] = filepath.ToSlash(rel)
	}
	return out
}

func TestWalk_Filters(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.txt":               "alpha",
		"b.PDF":               "%PDF-1.4",
		"empty.txt":           "",
		"notes/c.md":          "# heading",
		"notes/deep/d.py":     "print(1)",
		"notes/server.log":    "log line",
		"notes/trace.txt.log": "log line",
		"image.png":           "binary",
		"noext":               "data",
		".hidden.txt":         "secret",
		".git/config.txt":     "secret",
		"notes/.cache/e.txt":  "secret",
	})

	w := NewDirectoryWalker(nil, nil)
	ch, err := w.Walk(context.Background(), root)
	require.NoError(t, err)

	files := collect(ch)
	assert.Equal(t, []string{"a.txt", "b.PDF", "notes/c.md", "notes/deep/d.py"}, relPaths(t, root, files))

	for _, f := range files {
		assert.True(t, filepath.IsAbs(f.Path))
		assert.Positive(t, f.Size)
	}
	assert.Equal(t, ".pdf", files[1].Extension)
	assert.Equal(t, "application/pdf", files[1].ContentType)
	assert.Equal(t, int64(len("alpha")), files[0].Size)
}

func TestWalk_HiddenRootIsAllowed(t *testing.T) {
	root := filepath.Join(t.TempDir(), ".data")
	writeTree(t, root, map[string]string{"doc.txt": "content"})

	ch, err := NewDirectoryWalker(nil, nil).Walk(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, []string{"doc.txt"}, relPaths(t, root, collect(ch)))
}

func TestWalk_SymlinkedRoot(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "real")
	writeTree(t, target, map[string]string{
		"doc.txt":      "content",
		"sub/more.md":  "# more",
		".hidden/x.md": "secret",
	})
	link := filepath.Join(dir, "link")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	ch, err := NewDirectoryWalker(nil, nil).Walk(context.Background(), link)
	require.NoError(t, err)

	files := collect(ch)
	assert.Equal(t, []string{"doc.txt", "sub/more.md"}, relPaths(t, link, files))
	for _, f := range files {
		assert.True(t, strings.HasPrefix(f.Path, link+string(filepath.Separator)), f.Path)
	}
}

func TestWalk_CustomExtensions(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.txt": "alpha",
		"b.go":  "package b",
		"c.rst": "title",
	})

	w := NewDirectoryWalker([]string{"go", " .RST "}, nil)
	ch, err := w.Walk(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, []string{"b.go", "c.rst"}, relPaths(t, root, collect(ch)))
}

func TestWalk_Deterministic(t *testing.T) {
	root := t.TempDir()
	files := map[string]string{}
	for _, name := range []string{"z.txt", "m/a.txt", "a.txt", "m/b/c.txt", "b.md"} {
		files[name] = "x"
	}
	writeTree(t, root, files)

	w := NewDirectoryWalker(nil, nil)
	first, err := w.Walk(context.Background(), root)
	require.NoError(t, err)
	second, err := w.Walk(context.Background(), root)
	require.NoError(t, err)

	a, b := relPaths(t, root, collect(first)), relPaths(t, root, collect(second))
	assert.Equal(t, a, b)
	assert.Equal(t, []string{"a.txt", "b.md", "m/a.txt", "m/b/c.txt", "z.txt"}, a)
}

func TestWalk_MissingRoot(t *testing.T) {
	_, err := NewDirectoryWalker(nil, nil).Walk(context.Background(), filepath.Join(t.TempDir(), "nope"))
	require.ErrorIs(t, err, ErrDirectoryNotFound)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestWalk_RootIsFile(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.txt": "alpha"})

	_, err := NewDirectoryWalker(nil, nil).Walk(context.Background(), filepath.Join(root, "a.txt"))
	assert.ErrorIs(t, err, ErrDirectoryNotFound)
}

func TestWalk_StopsOnCancel(t *testing.T) {
	root := t.TempDir()
	files := map[string]string{}
	for i := 0; i < 300; i++ {
		files[fmt.Sprintf("dir%d/f%03d.txt", i%5, i)] = "x"
	}
	writeTree(t, root, files)

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := NewDirectoryWalker(nil, nil).Walk(ctx, root)
	require.NoError(t, err)

	<-ch
	cancel()

	// the producer must close the channel without delivering the whole tree
	n := 1
	for range ch {
		n++
	}
	assert.Less(t, n, 300)
}

func TestContentTypeFor(t *testing.T) {
	assert.Equal(t, "application/pdf", ContentTypeFor(".pdf"))
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.wordprocessingml.document", ContentTypeFor(".docx"))
	assert.Equal(t, "application/octet-stream", ContentTypeFor(".nosuchext"))
}

func TestIsHidden(t *testing.T) {
	root := filepath.FromSlash("/data/.root")
	assert.False(t, isHidden(root, filepath.FromSlash("/data/.root/a.txt")))
	assert.True(t, isHidden(root, filepath.FromSlash("/data/.root/.git/a.txt")))
	assert.True(t, isHidden(root, filepath.FromSlash("/data/.root/x/.env.txt")))
	assert.False(t, isHidden(root, filepath.FromSlash("/data/.root/x/y.txt")))
}
