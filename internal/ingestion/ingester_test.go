package ingestion

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/scholia/internal/index"
	"github.com/normanking/scholia/internal/textproc"
)

func newTestIngester(t *testing.T) (*Ingester, *index.Index) {
	t.Helper()
	idx, err := index.New(textproc.NewTokenizer())
	require.NoError(t, err)
	ing, err := NewIngester(idx)
	require.NoError(t, err)
	return ing, idx
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNewIngesterRequiresIndex(t *testing.T) {
	_, err := NewIngester(nil)
	assert.ErrorIs(t, err, ErrNilIndex)
}

func TestIngestMarkdown(t *testing.T) {
	ing, idx := newTestIngester(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "grace.md", "# On Grace\n\nGrace perfects *nature*, said Aquinas.\n")

	require.NoError(t, ing.IngestFile(path))

	doc, ok := idx.GetDocument(path)
	require.True(t, ok)
	assert.Equal(t, "On Grace", doc.Title)
	assert.Equal(t, index.ContentTypeMarkdown, doc.ContentType)
	assert.Equal(t, path, doc.SourcePath)
	assert.NotNil(t, idx.GetPosting("aquina", path))
	assert.NotNil(t, idx.GetPosting("natur", path), "emphasis markers stripped")
}

func TestIngestHTML(t *testing.T) {
	ing, idx := newTestIngester(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "essay.html",
		`<html><head><title>The Summa</title></head><body><p>Virtue and habit.</p></body></html>`)

	require.NoError(t, ing.IngestFile(path))

	doc, ok := idx.GetDocument(path)
	require.True(t, ok)
	assert.Equal(t, "The Summa", doc.Title)
	assert.Equal(t, index.ContentTypeHTML, doc.ContentType)
	assert.NotNil(t, idx.GetPosting("virtu", path))
}

func TestIngestPlainText(t *testing.T) {
	ing, idx := newTestIngester(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "notes.txt", "Predestination in the reformed tradition.")

	require.NoError(t, ing.IngestFile(path))

	doc, ok := idx.GetDocument(path)
	require.True(t, ok)
	assert.Equal(t, "notes", doc.Title, "filename fallback title")
	assert.NotNil(t, idx.GetPosting("predestin", path))
}

func TestIngestUnsupportedExtension(t *testing.T) {
	ing, _ := newTestIngester(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "image.png", "not really an image")

	assert.ErrorIs(t, ing.IngestFile(path), ErrUnsupportedFile)
}

func TestIngestEmptyFileFails(t *testing.T) {
	ing, _ := newTestIngester(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "empty.md", "   \n")

	assert.Error(t, ing.IngestFile(path))
}

func TestIngestDirectory(t *testing.T) {
	ing, idx := newTestIngester(t)
	dir := t.TempDir()

	writeFile(t, dir, "a.md", "# A\n\nGrace and mercy.")
	writeFile(t, dir, "b.txt", "Faith seeking understanding.")
	writeFile(t, dir, "c.bin", "skip me")
	writeFile(t, dir, "broken.md", "")

	require.NoError(t, os.Mkdir(filepath.Join(dir, ".hidden"), 0o755))
	writeFile(t, filepath.Join(dir, ".hidden"), "secret.md", "# Hidden\n\nshould not index")

	stats, err := ing.IngestDirectory(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Indexed)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 2, idx.DocumentCount())
}

func TestIngestDirectoryCancellation(t *testing.T) {
	ing, _ := newTestIngester(t)
	dir := t.TempDir()
	writeFile(t, dir, "a.md", "# A\n\ncontent")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ing.IngestDirectory(ctx, dir)
	assert.ErrorIs(t, err, context.Canceled)
}
