package content

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/averagehelper/site/internal/domain/entities"
	"github.com/averagehelper/site/internal/infrastructure/logger"
	"github.com/averagehelper/site/internal/ports"
)

func TestParseDocument(t *testing.T) {
	source := "---\n" +
		"title: \"Making tea\"\n" +
		"description: How I make tea.\n" +
		"date: 2024-03-05\n" +
		"---\n" +
		"Boil the water.\n"

	doc, err := ParseDocument("making-tea", []byte(source))
	if err != nil {
		t.Fatalf("ParseDocument: %v", err)
	}
	if doc.Slug != "making-tea" || doc.Title != "Making tea" || doc.Description != "How I make tea." {
		t.Errorf("unexpected document %+v", doc)
	}
	if want := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC); !doc.Date.Equal(want) {
		t.Errorf("Date = %v, want %v", doc.Date, want)
	}
	if strings.TrimSpace(doc.Body) != "Boil the water." {
		t.Errorf("Body = %q", doc.Body)
	}
}

func TestParseDocumentQuotedDate(t *testing.T) {
	source := "---\ntitle: T\ndescription: D\ndate: \"2023-12-31\"\n---\nbody\n"

	doc, err := ParseDocument("quoted", []byte(source))
	if err != nil {
		t.Fatalf("ParseDocument: %v", err)
	}
	if doc.Date.Year() != 2023 || doc.Date.Month() != time.December || doc.Date.Day() != 31 {
		t.Errorf("Date = %v", doc.Date)
	}
}

func TestParseDocumentRejectsBadFrontMatter(t *testing.T) {
	tests := map[string]string{
		"no front matter":     "# Just markdown\n",
		"missing title":       "---\ndescription: D\ndate: 2024-01-01\n---\nbody\n",
		"missing description": "---\ntitle: T\ndate: 2024-01-01\n---\nbody\n",
		"missing date":        "---\ntitle: T\ndescription: D\n---\nbody\n",
		"malformed date":      "---\ntitle: T\ndescription: D\ndate: yesterday\n---\nbody\n",
		"malformed yaml":      "---\ntitle: [unclosed\n---\nbody\n",
	}

	for name, source := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseDocument("post", []byte(source))
			if !errors.Is(err, entities.ErrMissingFrontMatter) {
				t.Errorf("error = %v, want ErrMissingFrontMatter", err)
			}
		})
	}
}

func TestSortDocuments(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC) }
	documents := []*entities.ContentDocument{
		{Slug: "a", Date: day(1)},
		{Slug: "b", Date: day(3)},
		{Slug: "c", Date: day(2)},
		{Slug: "d", Date: day(3)},
	}

	SortDocuments(documents)

	var got []string
	for _, doc := range documents {
		got = append(got, doc.Slug)
	}
	if strings.Join(got, ",") != "b,d,c,a" {
		t.Errorf("order = %v, want b,d,c,a", got)
	}
}

func TestRenderIndex(t *testing.T) {
	documents := []*entities.ContentDocument{
		{Slug: "second", Title: "Second", Date: time.Date(2024, 2, 14, 0, 0, 0, 0, time.UTC)},
		{Slug: "first", Title: "First", Date: time.Date(2023, 11, 3, 0, 0, 0, 0, time.UTC)},
	}

	want := "# Ways\n" +
		"\n" +
		"=> /ways/second Second (Feb 14, 2024)\n" +
		"=> /ways/first First (Nov  3, 2023)\n" +
		"\n" +
		"=> / Return home\n"
	if got := RenderIndex(documents); got != want {
		t.Errorf("RenderIndex =\n%s\nwant\n%s", got, want)
	}
}

func TestRenderDocument(t *testing.T) {
	doc := &entities.ContentDocument{Title: "Making tea", Body: "\nBoil the water.\n"}

	want := "# Making tea\n" +
		"\n" +
		"Boil the water.\n" +
		"\n" +
		"-----\n" +
		"\n" +
		"=> https://creativecommons.org/publicdomain/zero/1.0 Ways by Average Helper is marked with CC0 1.0\n" +
		"=> /ways Return to Ways\n"
	if got := RenderDocument(doc); got != want {
		t.Errorf("RenderDocument =\n%s\nwant\n%s", got, want)
	}
}

func TestRenderGemtext(t *testing.T) {
	tests := []struct {
		name     string
		markdown string
		want     string
	}{
		{
			name:     "paragraphs",
			markdown: "One\nline.\n\nTwo.\n",
			want:     "One line.\n\nTwo.\n",
		},
		{
			name:     "headings",
			markdown: "## Section\n\n#### Deep\n",
			want:     "## Section\n\n### Deep\n",
		},
		{
			name:     "links follow their paragraph",
			markdown: "See [my site](https://average.name) and *more*.\n",
			want:     "See my site and more.\n=> https://average.name my site\n",
		},
		{
			name:     "list",
			markdown: "- one\n- [two](/two)\n  - nested\n\nAfter.\n",
			want:     "* one\n* two\n* nested\n=> /two two\n\nAfter.\n",
		},
		{
			name:     "quote",
			markdown: "> Quoted\n> text.\n",
			want:     "> Quoted text.\n",
		},
		{
			name:     "fenced code",
			markdown: "```sh\necho hi\n```\n",
			want:     "```sh\necho hi\n```\n",
		},
		{
			name:     "thematic break",
			markdown: "Above\n\n---\n\nBelow\n",
			want:     "Above\n\n-----\n\nBelow\n",
		},
		{
			name:     "code span",
			markdown: "Run `make`.\n",
			want:     "Run `make`.\n",
		},
		{
			name:     "image",
			markdown: "![A cat](/cat.png)\n",
			want:     "A cat\n=> /cat.png A cat\n",
		},
		{
			name:     "html is dropped",
			markdown: "<div>hidden</div>\n\nShown.\n",
			want:     "Shown.\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RenderGemtext(tt.markdown); got != tt.want {
				t.Errorf("RenderGemtext =\n%q\nwant\n%q", got, tt.want)
			}
		})
	}
}

func TestRenderTable(t *testing.T) {
	documents := []*entities.ContentDocument{{Slug: "b"}, {Slug: "a"}}

	source, err := RenderTable("web", "gemtext/ways/", documents)
	if err != nil {
		t.Fatalf("RenderTable: %v", err)
	}

	got := string(source)
	for _, want := range []string{
		"// Code generated",
		"DO NOT EDIT.",
		"package web",
		`"/ways/b": "gemtext/ways/b.gmi",`,
		`"/ways/a": "gemtext/ways/a.gmi",`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("table missing %q:\n%s", want, got)
		}
	}
}

func writeFile(t *testing.T, name, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(name, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestServiceBuild(t *testing.T) {
	source := t.TempDir()
	output := t.TempDir()
	table := filepath.Join(t.TempDir(), "web", "ways_table.go")
	if err := os.MkdirAll(filepath.Dir(table), 0o755); err != nil {
		t.Fatal(err)
	}

	writeFile(t, filepath.Join(source, "older.md"), "---\ntitle: Older\ndescription: D\ndate: 2023-01-01\n---\nOld.\n")
	writeFile(t, filepath.Join(source, "newer.md"), "---\ntitle: Newer\ndescription: D\ndate: 2024-01-01\n---\nNew.\n")
	writeFile(t, filepath.Join(source, "notes.txt"), "not a post")
	writeFile(t, filepath.Join(source, "drafts", "draft.md"), "no front matter")

	service := NewService(logger.NewNop())
	result, err := service.Build(context.Background(), ports.BuildRequest{
		SourceDir:   source,
		OutputDir:   output,
		TablePath:   table,
		TablePrefix: "gemtext/ways/",
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if len(result.Documents) != 2 || result.Documents[0].Slug != "newer" {
		t.Fatalf("Documents = %+v", result.Documents)
	}
	if len(result.Written) != 4 {
		t.Errorf("Written = %v, want 4 files", result.Written)
	}

	index, err := os.ReadFile(filepath.Join(output, "ways.gmi"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(index), "=> /ways/newer Newer (Jan  1, 2024)\n=> /ways/older Older (Jan  1, 2023)\n") {
		t.Errorf("index:\n%s", index)
	}

	doc, err := os.ReadFile(filepath.Join(output, "ways", "older.gmi"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(doc), "# Older\n\nOld.\n") {
		t.Errorf("document:\n%s", doc)
	}

	generated, err := os.ReadFile(table)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(generated), "package web") {
		t.Errorf("table:\n%s", generated)
	}
}

func TestServiceBuildAbortsOnBadFrontMatter(t *testing.T) {
	source := t.TempDir()
	output := t.TempDir()

	writeFile(t, filepath.Join(source, "good.md"), "---\ntitle: Good\ndescription: D\ndate: 2024-01-01\n---\nOK.\n")
	writeFile(t, filepath.Join(source, "bad.md"), "---\ntitle: Bad\n---\nNo date.\n")

	service := NewService(logger.NewNop())
	_, err := service.Build(context.Background(), ports.BuildRequest{SourceDir: source, OutputDir: output})
	if !errors.Is(err, entities.ErrMissingFrontMatter) {
		t.Fatalf("error = %v, want ErrMissingFrontMatter", err)
	}

	if _, err := os.Stat(filepath.Join(output, "ways.gmi")); !os.IsNotExist(err) {
		t.Error("index written despite failed build")
	}
}

func TestServiceBuildValidatesRequest(t *testing.T) {
	service := NewService(logger.NewNop())
	if _, err := service.Build(context.Background(), ports.BuildRequest{}); err == nil {
		t.Fatal("expected error for empty request")
	}
}
