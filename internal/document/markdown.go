package document

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"go.abhg.dev/goldmark/toc"
)

// markdownDocument treats every H1 and H2 section of a notes file as a page.
type markdownDocument struct {
	name     string
	sections []string
}

// OpenMarkdown reads and splits a markdown file.
func OpenMarkdown(path string) (Document, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read markdown: %w", err)
	}

	sections, err := splitSections(source)
	if err != nil {
		return nil, err
	}

	return &markdownDocument{
		name:     filepath.Base(path),
		sections: sections,
	}, nil
}

func (d *markdownDocument) Name() string  { return d.name }
func (d *markdownDocument) NumPages() int { return len(d.sections) }
func (d *markdownDocument) Close() error  { return nil }

func (d *markdownDocument) Page(n int) (*Page, error) {
	if n < 1 || n > len(d.sections) {
		return nil, fmt.Errorf("page %d not found", n)
	}
	return &Page{Number: n, Text: d.sections[n-1]}, nil
}

// splitSections cuts source at every H1 and H2 heading. Text before the
// first heading becomes its own section when it is not blank.
func splitSections(source []byte) ([]string, error) {
	md := goldmark.New(
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
	)
	doc := md.Parser().Parse(text.NewReader(source))

	tree, err := toc.Inspect(doc, source,
		toc.MinDepth(1),
		toc.MaxDepth(2),
		toc.Compact(true),
	)
	if err != nil {
		return nil, fmt.Errorf("inspect TOC: %w", err)
	}

	var starts []int
	for _, item := range flatten(tree.Items) {
		heading := findHeaderByID(doc, string(item.ID))
		if heading == nil || heading.Lines().Len() == 0 {
			continue
		}
		starts = append(starts, lineStart(source, heading.Lines().At(0).Start))
	}

	if len(starts) == 0 {
		if body := strings.TrimSpace(string(source)); body != "" {
			return []string{body}, nil
		}
		return nil, nil
	}

	var sections []string
	if pre := strings.TrimSpace(string(source[:starts[0]])); pre != "" {
		sections = append(sections, pre)
	}
	for i, start := range starts {
		end := len(source)
		if i+1 < len(starts) {
			end = starts[i+1]
		}
		if s := strings.TrimSpace(string(source[start:end])); s != "" {
			sections = append(sections, s)
		}
	}
	return sections, nil
}

// flatten lists TOC items in document order.
func flatten(items toc.Items) toc.Items {
	var out toc.Items
	for _, item := range items {
		out = append(out, item)
		out = append(out, flatten(item.Items)...)
	}
	return out
}

// lineStart moves pos back to the beginning of its line, so a section
// keeps its heading marker.
func lineStart(source []byte, pos int) int {
	for pos > 0 && source[pos-1] != '\n' {
		pos--
	}
	return pos
}

// findHeaderByID locates a heading node by its auto-generated ID.
func findHeaderByID(node ast.Node, id string) ast.Node {
	var found ast.Node
	ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering && n.Kind() == ast.KindHeading {
			heading := n.(*ast.Heading)
			headingID, ok := heading.AttributeString("id")
			if ok && string(headingID.([]byte)) == id {
				found = n
				return ast.WalkStop, nil
			}
		}
		return ast.WalkContinue, nil
	})
	return found
}
