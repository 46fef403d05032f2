package deck

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

// SlideKind classifies a parsed slide.
type SlideKind string

const (
	SlideTitle   SlideKind = "title"
	SlideMermaid SlideKind = "mermaid"
	SlideContent SlideKind = "content"
)

// Slide is the structured view of one slide's markdown.
type Slide struct {
	Kind     SlideKind `json:"kind"`
	Heading  string    `json:"heading,omitempty"`
	Subtitle string    `json:"subtitle,omitempty"`
	Bullets  []string  `json:"bullets,omitempty"`
	Mermaid  string    `json:"mermaid,omitempty"`
	Markdown string    `json:"markdown"`
}

// SplitSlides returns the non-empty slides of a deck with front matter and
// HTML comment lines removed.
func SplitSlides(md string) []string {
	_, body, _ := SplitFrontMatter(strings.ReplaceAll(md, "\r\n", "\n"))

	var slides []string
	for _, part := range strings.Split("\n"+body+"\n", SlideSeparator) {
		var kept []string
		for _, line := range strings.Split(part, "\n") {
			if strings.HasPrefix(strings.TrimSpace(line), "<!--") {
				continue
			}
			kept = append(kept, line)
		}
		if s := strings.TrimSpace(strings.Join(kept, "\n")); s != "" {
			slides = append(slides, s)
		}
	}
	return slides
}

var mdParser = goldmark.New(goldmark.WithExtensions(extension.GFM))

// ParseSlide walks the slide's markdown AST. A mermaid fence wins; a lone H1
// with at most one paragraph is a title slide; anything else is content.
func ParseSlide(md string) Slide {
	src := []byte(md)
	doc := mdParser.Parser().Parse(text.NewReader(src))
	s := Slide{Kind: SlideContent, Markdown: md}

	var (
		h1s        int
		paragraphs []string
		others     int
	)
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			if s.Heading == "" {
				s.Heading = nodeText(node, src)
			}
			if node.Level == 1 {
				h1s++
			} else {
				others++
			}
		case *ast.FencedCodeBlock:
			if string(node.Language(src)) == "mermaid" && s.Mermaid == "" {
				s.Mermaid = strings.TrimSpace(blockText(node, src))
			}
			others++
		case *ast.List:
			for item := node.FirstChild(); item != nil; item = item.NextSibling() {
				if t := nodeText(item, src); t != "" {
					s.Bullets = append(s.Bullets, t)
				}
			}
			others++
		case *ast.Paragraph:
			paragraphs = append(paragraphs, nodeText(node, src))
		default:
			others++
		}
	}

	switch {
	case s.Mermaid != "":
		s.Kind = SlideMermaid
	case h1s == 1 && others == 0 && len(paragraphs) <= 1:
		s.Kind = SlideTitle
		if len(paragraphs) == 1 {
			s.Subtitle = paragraphs[0]
		}
	}
	return s
}

// nodeText concatenates the inline text below n; list items keep only their
// first block so nested lists do not bleed into the bullet.
func nodeText(n ast.Node, src []byte) string {
	var b bytes.Buffer
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.List:
			if c != n {
				return ast.WalkSkipChildren, nil
			}
		case *ast.Text:
			b.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(t.Value)
		case *ast.CodeSpan:
			for cc := t.FirstChild(); cc != nil; cc = cc.NextSibling() {
				if tt, ok := cc.(*ast.Text); ok {
					b.Write(tt.Segment.Value(src))
				}
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}

func blockText(n ast.Node, src []byte) string {
	var b bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(src))
	}
	return b.String()
}
