package deck

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// HandoutOptions configures the printable PDF. FontPath names a UTF-8 TTF
// font; without it the core Helvetica font is used, which only covers
// Latin-1 text.
type HandoutOptions struct {
	FontPath string
}

// Handout renders the deck as an A4 document, one slide per page.
func Handout(md string, opts HandoutOptions) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 15)

	r := &handoutRenderer{pdf: pdf, font: "Helvetica", size: 11}
	if opts.FontPath != "" {
		pdf.AddUTF8Font("deck", "", opts.FontPath)
		r.font, r.utf8 = "deck", true
	} else {
		r.tr = pdf.UnicodeTranslatorFromDescriptor("")
	}

	for _, slide := range SplitSlides(md) {
		pdf.AddPage()
		r.updateFont()
		r.src = []byte(slide)
		doc := mdParser.Parser().Parse(text.NewReader(r.src))
		if err := ast.Walk(doc, r.walk); err != nil {
			return nil, fmt.Errorf("render handout: %w", err)
		}
	}
	if pdf.PageCount() == 0 {
		pdf.AddPage()
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write handout: %w", err)
	}
	return buf.Bytes(), nil
}

type handoutRenderer struct {
	pdf       *fpdf.Fpdf
	src       []byte
	font      string
	utf8      bool
	tr        func(string) string
	size      float64
	bold      bool
	listLevel int
}

func (r *handoutRenderer) updateFont() {
	style := ""
	if r.bold && !r.utf8 {
		style = "B"
	}
	r.pdf.SetFont(r.font, style, r.size)
}

func (r *handoutRenderer) write(s string) {
	if r.tr != nil {
		s = r.tr(s)
	}
	r.pdf.Write(6, s)
}

func (r *handoutRenderer) walk(n ast.Node, entering bool) (ast.WalkStatus, error) {
	switch node := n.(type) {
	case *ast.Heading:
		if entering {
			r.size = 20 - float64(node.Level)*2
			r.bold = true
		} else {
			r.size, r.bold = 11, false
			r.pdf.Ln(10)
		}
		r.updateFont()
	case *ast.Paragraph:
		if !entering && r.listLevel == 0 {
			r.pdf.Ln(8)
		}
	case *ast.Text:
		if entering {
			r.write(string(node.Segment.Value(r.src)))
			if node.SoftLineBreak() {
				r.write(" ")
			}
		}
	case *ast.Emphasis:
		r.bold = entering && node.Level == 2
		r.updateFont()
	case *ast.CodeSpan:
		if entering {
			r.write(nodeText(node, r.src))
		}
		return ast.WalkSkipChildren, nil
	case *ast.FencedCodeBlock, *ast.CodeBlock:
		if entering {
			font := "Courier"
			if r.utf8 {
				font = r.font
			}
			r.pdf.SetFont(font, "", 9)
			body := blockText(n, r.src)
			if r.tr != nil {
				body = r.tr(body)
			}
			r.pdf.MultiCell(0, 5, body, "", "L", false)
			r.updateFont()
			r.pdf.Ln(2)
		}
		return ast.WalkSkipChildren, nil
	case *ast.List:
		if entering {
			r.listLevel++
		} else {
			r.listLevel--
			r.pdf.Ln(8)
		}
	case *ast.ListItem:
		if entering {
			r.pdf.Ln(6)
			r.pdf.SetX(15 + float64(r.listLevel)*5)
			r.write("- ")
		}
	case *ast.ThematicBreak:
		r.pdf.Ln(4)
	}
	return ast.WalkContinue, nil
}
