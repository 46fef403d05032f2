package source

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Extractor turns document bytes into plain text.
type Extractor struct {
	tempDir string
}

func NewExtractor(tempDir string) *Extractor {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &Extractor{tempDir: tempDir}
}

// Extract sniffs the format (falling back to hint, "pdf", "html" or "text")
// and returns the document text.
func (e *Extractor) Extract(data []byte, hint string) (string, error) {
	switch sniff(data, hint) {
	case "pdf":
		return e.PDF(data)
	case "html":
		return HTML(data, "")
	case "text":
		return string(data), nil
	default:
		return "", ErrUnsupportedDocument
	}
}

func sniff(data []byte, hint string) string {
	head := bytes.TrimSpace(data[:min(len(data), 512)])
	lower := bytes.ToLower(head)
	switch {
	case bytes.HasPrefix(head, []byte("%PDF-")):
		return "pdf"
	case bytes.HasPrefix(lower, []byte("<!doctype html")), bytes.HasPrefix(lower, []byte("<html")):
		return "html"
	}
	return hint
}

var contentPageRe = regexp.MustCompile(`Content_page_(\d+)`)

// PDF extracts page content streams with pdfcpu and decodes the text-showing
// operators in page order.
func (e *Extractor) PDF(data []byte) (string, error) {
	work, err := os.MkdirTemp(e.tempDir, "slidepilot-pdf-*")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(work)

	in := filepath.Join(work, "source.pdf")
	if err := os.WriteFile(in, data, 0o600); err != nil {
		return "", fmt.Errorf("write temp pdf: %w", err)
	}
	outDir := filepath.Join(work, "content")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("create content dir: %w", err)
	}

	if _, err := api.ReadContextFile(in); err != nil {
		return "", fmt.Errorf("read pdf: %w", err)
	}
	if err := api.ExtractContentFile(in, outDir, nil, model.NewDefaultConfiguration()); err != nil {
		return "", fmt.Errorf("extract pdf content: %w", err)
	}

	entries, err := os.ReadDir(outDir)
	if err != nil {
		return "", fmt.Errorf("read content dir: %w", err)
	}

	type page struct {
		n    int
		text string
	}
	var pages []page
	for _, entry := range entries {
		m := contentPageRe.FindStringSubmatch(entry.Name())
		if entry.IsDir() || m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		raw, err := os.ReadFile(filepath.Join(outDir, entry.Name()))
		if err != nil {
			return "", fmt.Errorf("read page %d content: %w", n, err)
		}
		pages = append(pages, page{n: n, text: ContentStreamText(raw)})
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].n < pages[j].n })

	var b strings.Builder
	for _, p := range pages {
		t := strings.TrimSpace(p.text)
		if t == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(t)
	}
	return b.String(), nil
}

// HTML selects the main content region (main, article or [role=main], else
// the body with boilerplate removed) and converts it to markdown.
func HTML(data []byte, baseURL string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	doc.Find("script, style, noscript").Remove()
	sel := doc.Find("main, article, [role=main]").First()
	if sel.Length() == 0 {
		sel = doc.Find("body")
		sel.Find("nav, header, footer, aside").Remove()
	}

	inner, err := sel.Html()
	if err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}
	out, err := md.NewConverter(baseURL, true, nil).ConvertString(inner)
	if err != nil {
		return "", fmt.Errorf("convert html: %w", err)
	}
	return strings.TrimSpace(out), nil
}
