package content

import (
	"bytes"
	"context"
	"fmt"
	"go/format"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"

	"github.com/averagehelper/site/internal/domain/entities"
	"github.com/averagehelper/site/internal/infrastructure/logger"
	"github.com/averagehelper/site/internal/ports"
)

const (
	// IndexDateLayout formats dates in the Ways index.
	IndexDateLayout = "Jan _2, 2006"

	waysIndexName = "ways.gmi"
	waysDirName   = "ways"
	sourceExt     = ".md"

	documentFooter = "-----\n" +
		"\n" +
		"=> https://creativecommons.org/publicdomain/zero/1.0 Ways by Average Helper is marked with CC0 1.0\n" +
		"=> /ways Return to Ways\n"
)

var tableTemplate = template.Must(template.New("table").Parse(`// Code generated by "site ways build"; DO NOT EDIT.

package {{ .Package }}

// waysDocuments maps a capsule route to its embedded gemtext file.
var waysDocuments = map[string]string{
{{- range .Documents }}
	{{ printf "%q" (print "/ways/" .Slug) }}: {{ printf "%q" (print $.Prefix .Slug ".gmi") }},
{{- end }}
}
`))

// Service turns the Ways Markdown posts into gemtext
type Service struct {
	logger *logger.Logger
}

// NewService creates a new content service
func NewService(logger *logger.Logger) *Service {
	return &Service{
		logger: logger,
	}
}

// Build reads every post of req.SourceDir and writes the index, one
// document per post and, when req.TablePath is set, the Go lookup table.
// Any malformed post aborts the build before anything is written.
func (s *Service) Build(ctx context.Context, req ports.BuildRequest) (*ports.BuildResult, error) {
	if err := validate.Struct(&req); err != nil {
		return nil, fmt.Errorf("invalid build request: %w", err)
	}

	documents, err := s.readDocuments(ctx, req.SourceDir)
	if err != nil {
		return nil, err
	}
	SortDocuments(documents)

	result := &ports.BuildResult{Documents: documents}
	write := func(name string, content []byte) error {
		if err := os.WriteFile(name, content, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
		s.logger.LogBuildStep("write", name, map[string]interface{}{"bytes": len(content)})
		result.Written = append(result.Written, name)
		return nil
	}

	waysDir := filepath.Join(req.OutputDir, waysDirName)
	if err := os.MkdirAll(waysDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", waysDir, err)
	}

	if err := write(filepath.Join(req.OutputDir, waysIndexName), []byte(RenderIndex(documents))); err != nil {
		return nil, err
	}

	for _, doc := range documents {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := write(filepath.Join(waysDir, doc.Slug+".gmi"), []byte(RenderDocument(doc))); err != nil {
			return nil, err
		}
	}

	if req.TablePath != "" {
		pkg := req.TablePackage
		if pkg == "" {
			dir, err := filepath.Abs(filepath.Dir(req.TablePath))
			if err != nil {
				return nil, fmt.Errorf("failed to resolve %s: %w", req.TablePath, err)
			}
			pkg = filepath.Base(dir)
		}
		table, err := RenderTable(pkg, req.TablePrefix, documents)
		if err != nil {
			return nil, err
		}
		if err := write(req.TablePath, table); err != nil {
			return nil, err
		}
	}

	s.logger.Infow("Ways built", "documents", len(documents), "output", req.OutputDir)

	return result, nil
}

func (s *Service) readDocuments(ctx context.Context, dir string) ([]*entities.ContentDocument, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	var documents []*entities.ContentDocument
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), sourceExt) {
			continue
		}

		name := filepath.Join(dir, entry.Name())
		source, err := os.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}

		doc, err := ParseDocument(strings.TrimSuffix(entry.Name(), sourceExt), source)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", name, err)
		}
		s.logger.LogBuildStep("parse", name, map[string]interface{}{"title": doc.Title})

		documents = append(documents, doc)
	}

	return documents, nil
}

// SortDocuments orders documents newest first, keeping input order for
// equal dates.
func SortDocuments(documents []*entities.ContentDocument) {
	sort.SliceStable(documents, func(i, j int) bool {
		return documents[i].Less(documents[j])
	})
}

// RenderIndex renders the Ways index for sorted documents.
func RenderIndex(documents []*entities.ContentDocument) string {
	var b strings.Builder
	b.WriteString("# Ways\n\n")
	for _, doc := range documents {
		fmt.Fprintf(&b, "=> /ways/%s %s (%s)\n", doc.Slug, doc.Title, doc.Date.Format(IndexDateLayout))
	}
	b.WriteString("\n=> / Return home\n")
	return b.String()
}

// RenderDocument renders one post: its title, the converted body and the
// license footer.
func RenderDocument(doc *entities.ContentDocument) string {
	var b strings.Builder
	b.WriteString("# ")
	b.WriteString(doc.Title)
	b.WriteString("\n\n")
	if body := RenderGemtext(doc.Body); body != "" {
		b.WriteString(body)
		b.WriteString("\n")
	}
	b.WriteString(documentFooter)
	return b.String()
}

// RenderTable renders the gofmt'ed source of the route table.
func RenderTable(pkg, prefix string, documents []*entities.ContentDocument) ([]byte, error) {
	var buf bytes.Buffer
	err := tableTemplate.Execute(&buf, struct {
		Package   string
		Prefix    string
		Documents []*entities.ContentDocument
	}{
		Package:   pkg,
		Prefix:    prefix,
		Documents: documents,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render ways table: %w", err)
	}

	source, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("failed to format ways table: %w", err)
	}
	return source, nil
}
