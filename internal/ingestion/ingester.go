// Package ingestion feeds local files into the long-lived index used by the
// non-live search path. Markdown, PDF, HTML and plain text are supported;
// anything else is skipped.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/normanking/scholia/internal/extract"
	"github.com/normanking/scholia/internal/index"
)

// ErrNilIndex is returned when an Ingester is constructed without an index.
var ErrNilIndex = errors.New("ingestion: nil index")

// ErrUnsupportedFile marks extensions the ingester does not parse.
var ErrUnsupportedFile = errors.New("ingestion: unsupported file type")

// Stats summarizes one ingestion run.
type Stats struct {
	Indexed int
	Skipped int
	Failed  int
}

// Ingester parses files and adds them to an index. Safe for sequential use;
// runs are not concurrent with each other.
type Ingester struct {
	idx *index.Index
	md  goldmark.Markdown
	log zerolog.Logger
}

// Option configures an Ingester.
type Option func(*Ingester)

// WithLogger attaches a logger for per-file diagnostics.
func WithLogger(log zerolog.Logger) Option {
	return func(i *Ingester) { i.log = log }
}

// NewIngester creates an Ingester writing into idx.
func NewIngester(idx *index.Index, opts ...Option) (*Ingester, error) {
	if idx == nil {
		return nil, ErrNilIndex
	}
	ing := &Ingester{
		idx: idx,
		md:  goldmark.New(),
		log: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(ing)
	}
	return ing, nil
}

// IngestDirectory walks root and ingests every supported file. Per-file
// failures are counted and logged, never fatal; only context cancellation
// and an unreadable root abort the walk.
func (i *Ingester) IngestDirectory(ctx context.Context, root string) (Stats, error) {
	var stats Stats

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != root {
				return filepath.SkipDir
			}
			return nil
		}

		switch ingestErr := i.IngestFile(path); {
		case ingestErr == nil:
			stats.Indexed++
		case errors.Is(ingestErr, ErrUnsupportedFile):
			stats.Skipped++
		default:
			stats.Failed++
			i.log.Warn().Str("path", path).Err(ingestErr).Msg("failed to ingest file")
		}
		return nil
	})
	return stats, err
}

// IngestFile parses one file and adds it to the index under its path.
func (i *Ingester) IngestFile(path string) error {
	var (
		title       string
		content     string
		contentType index.ContentType
		err         error
	)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		contentType = index.ContentTypeMarkdown
		title, content, err = i.parseMarkdown(path)
	case ".pdf":
		contentType = index.ContentTypePDF
		content, err = parsePDF(path)
	case ".html", ".htm":
		contentType = index.ContentTypeHTML
		title, content, err = parseHTML(path)
	case ".txt":
		contentType = index.ContentTypeMarkdown
		content, err = readFileString(path)
	default:
		return ErrUnsupportedFile
	}
	if err != nil {
		return err
	}
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("no extractable text in %s", path)
	}
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	i.idx.AddDocument(index.Document{
		ID:            path,
		Title:         title,
		SourcePath:    path,
		ContentType:   contentType,
		LastIndexedAt: time.Now(),
	}, content)
	i.log.Debug().Str("path", path).Msg("indexed file")
	return nil
}

// parseMarkdown renders the document's AST to plain text. The title is the
// first heading, at any level.
func (i *Ingester) parseMarkdown(path string) (string, string, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return "", "", err
	}

	root := i.md.Parser().Parse(text.NewReader(src))

	var title string
	var sb strings.Builder
	err = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			if title == "" {
				title = string(node.Text(src))
			}
		case *ast.Text:
			sb.Write(node.Segment.Value(src))
			sb.WriteByte(' ')
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return "", "", err
	}
	return title, strings.TrimSpace(sb.String()), nil
}

// parsePDF concatenates the plain text of every page. Pages that fail text
// extraction are skipped.
func parsePDF(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", err
	}
	reader, err := pdf.NewReader(file, info.Size())
	if err != nil {
		return "", fmt.Errorf("parse pdf: %w", err)
	}

	var sb strings.Builder
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(pageText)
		sb.WriteByte('\n')
	}
	return strings.TrimSpace(sb.String()), nil
}

func parseHTML(path string) (string, string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", "", err
	}
	defer file.Close()

	page, err := extract.Extract("file://"+filepath.ToSlash(path), file)
	if err != nil {
		return "", "", err
	}
	return page.Title, page.Text, nil
}

func readFileString(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
