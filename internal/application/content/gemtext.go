package content

import (
	"strings"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

var (
	markdownParserInstance goldmark.Markdown
	markdownParserOnce     sync.Once
)

func getMarkdownParser() goldmark.Markdown {
	markdownParserOnce.Do(func() {
		markdownParserInstance = goldmark.New(
			goldmark.WithExtensions(extension.GFM),
		)
	})
	return markdownParserInstance
}

// RenderGemtext converts a Markdown body to gemtext. Inline links are
// kept as text and repeated as link lines after the block holding them.
func RenderGemtext(markdown string) string {
	source := []byte(markdown)
	document := getMarkdownParser().Parser().Parse(text.NewReader(source))

	renderer := &gemtextRenderer{source: source}
	ast.Walk(document, renderer.walk)

	return renderer.output.String()
}

type gemLink struct {
	url   string
	label string
}

func (l gemLink) line() string {
	label := strings.TrimSpace(l.label)
	if label == "" || label == l.url {
		return "=> " + l.url
	}
	return "=> " + l.url + " " + label
}

type gemtextRenderer struct {
	source []byte
	output strings.Builder

	// Inline text of the open block.
	inline strings.Builder
	// Links found in the open block, or in the whole list when inside one.
	links []gemLink
	// Offsets into inline where open links started.
	linkStarts []int

	quoteDepth int
	listDepth  int
	// Set once the first line of the outermost list is written, so later
	// items follow without a blank line.
	listStarted bool
	// Bullet for the next block of a list item.
	pendingBullet string
}

// emit writes a block of lines, separated from the previous block by a
// blank line unless both are part of one list.
func (r *gemtextRenderer) emit(lines ...string) {
	join := false
	if r.listDepth > 0 {
		join = r.listStarted
		r.listStarted = true
	}
	if r.output.Len() > 0 && !join {
		r.output.WriteString("\n")
	}
	for _, line := range lines {
		r.output.WriteString(line)
		r.output.WriteString("\n")
	}
}

func (r *gemtextRenderer) linkLines() []string {
	lines := make([]string, 0, len(r.links))
	for _, link := range r.links {
		lines = append(lines, link.line())
	}
	r.links = r.links[:0]
	return lines
}

// flushText emits the inline buffer with prefix on its first line and
// the quote marker on every line.
func (r *gemtextRenderer) flushText(prefix string) {
	content := strings.TrimSpace(r.inline.String())
	r.inline.Reset()

	var lines []string
	if content != "" {
		for i, line := range strings.Split(content, "\n") {
			line = strings.TrimSpace(line)
			if i == 0 {
				line = prefix + line
			}
			if r.quoteDepth > 0 {
				line = "> " + line
			}
			lines = append(lines, line)
		}
	}
	if r.listDepth == 0 {
		lines = append(lines, r.linkLines()...)
	}
	if len(lines) > 0 {
		r.emit(lines...)
	}
}

func (r *gemtextRenderer) walk(node ast.Node, entering bool) (ast.WalkStatus, error) {
	switch node.Kind() {

	case ast.KindDocument:

	case ast.KindParagraph, ast.KindTextBlock:
		if entering {
			r.inline.Reset()
		} else {
			prefix := r.pendingBullet
			r.pendingBullet = ""
			r.flushText(prefix)
		}

	case ast.KindHeading:
		if entering {
			r.inline.Reset()
		} else {
			level := node.(*ast.Heading).Level
			if level > 3 {
				level = 3
			}
			r.flushText(strings.Repeat("#", level) + " ")
		}

	case ast.KindFencedCodeBlock:
		if entering {
			info := ""
			if block := node.(*ast.FencedCodeBlock); block.Info != nil {
				info = string(block.Language(r.source))
			}
			r.emitPreformatted(info, r.blockLines(node))
			return ast.WalkSkipChildren, nil
		}

	case ast.KindCodeBlock:
		if entering {
			r.emitPreformatted("", r.blockLines(node))
			return ast.WalkSkipChildren, nil
		}

	case ast.KindBlockquote:
		if entering {
			r.quoteDepth++
		} else {
			r.quoteDepth--
		}

	case ast.KindList:
		if entering {
			r.listDepth++
		} else {
			if r.listDepth == 1 {
				if links := r.linkLines(); len(links) > 0 {
					r.emit(links...)
				}
				r.listStarted = false
			}
			r.listDepth--
		}

	case ast.KindListItem:
		if entering {
			r.pendingBullet = "* "
		}

	case ast.KindThematicBreak:
		if entering {
			r.emit("-----")
		}

	case ast.KindHTMLBlock, ast.KindRawHTML:
		if entering {
			return ast.WalkSkipChildren, nil
		}

	case ast.KindText:
		if entering {
			t := node.(*ast.Text)
			r.inline.Write(t.Segment.Value(r.source))
			switch {
			case t.HardLineBreak():
				r.inline.WriteString("\n")
			case t.SoftLineBreak():
				r.inline.WriteString(" ")
			}
		}

	case ast.KindString:
		if entering {
			r.inline.Write(node.(*ast.String).Value)
		}

	case ast.KindCodeSpan:
		r.inline.WriteString("`")

	case ast.KindLink, ast.KindImage:
		if entering {
			r.linkStarts = append(r.linkStarts, r.inline.Len())
		} else {
			start := r.linkStarts[len(r.linkStarts)-1]
			r.linkStarts = r.linkStarts[:len(r.linkStarts)-1]

			var destination []byte
			if link, ok := node.(*ast.Link); ok {
				destination = link.Destination
			} else {
				destination = node.(*ast.Image).Destination
			}
			r.links = append(r.links, gemLink{
				url:   string(destination),
				label: r.inline.String()[start:],
			})
		}

	case ast.KindAutoLink:
		if entering {
			link := node.(*ast.AutoLink)
			url := string(link.URL(r.source))
			r.inline.WriteString(string(link.Label(r.source)))
			r.links = append(r.links, gemLink{url: url, label: url})
		}

	case extast.KindTaskCheckBox:
		if entering {
			if node.(*extast.TaskCheckBox).IsChecked {
				r.inline.WriteString("[x] ")
			} else {
				r.inline.WriteString("[ ] ")
			}
		}

	case extast.KindTable:
		if entering {
			r.emitPreformatted("", r.tableRows(node))
			return ast.WalkSkipChildren, nil
		}
	}

	return ast.WalkContinue, nil
}

func (r *gemtextRenderer) emitPreformatted(alt string, lines []string) {
	block := make([]string, 0, len(lines)+2)
	block = append(block, "```"+alt)
	block = append(block, lines...)
	block = append(block, "```")
	r.emit(block...)
}

func (r *gemtextRenderer) blockLines(node ast.Node) []string {
	segments := node.Lines()
	lines := make([]string, 0, segments.Len())
	for i := 0; i < segments.Len(); i++ {
		segment := segments.At(i)
		lines = append(lines, strings.TrimRight(string(segment.Value(r.source)), "\r\n"))
	}
	return lines
}

func (r *gemtextRenderer) tableRows(table ast.Node) []string {
	var rows []string
	for row := table.FirstChild(); row != nil; row = row.NextSibling() {
		var cells []string
		for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
			cells = append(cells, strings.TrimSpace(r.plainText(cell)))
		}
		rows = append(rows, strings.Join(cells, " | "))
	}
	return rows
}

func (r *gemtextRenderer) plainText(node ast.Node) string {
	var b strings.Builder
	_ = ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := n.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(r.source))
			if t.SoftLineBreak() {
				b.WriteString(" ")
			}
		case *ast.String:
			b.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return b.String()
}
