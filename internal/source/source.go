// Package source resolves a raw pipeline input into a topic, a document or a
// video reference, and turns documents into plain text.
package source

import (
	"errors"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/maraichr/slidepilot/pkg/models"
)

// Kind is the input variant.
type Kind = models.SourceKind

const (
	KindText     = models.SourceText
	KindDocument = models.SourceDocument
	KindVideoRef = models.SourceVideo
)

var (
	// ErrVideoNotSupported is returned when collecting a video reference.
	ErrVideoNotSupported = errors.New("video sources are not supported")
	// ErrUnsupportedDocument is returned for a document whose format has no extractor.
	ErrUnsupportedDocument = errors.New("unsupported document format")
)

// Source is the resolved input. Ref is the topic text for KindText, or the
// location for documents and videos.
type Source struct {
	Kind Kind   `json:"kind"`
	Ref  string `json:"ref"`
}

var videoRe = regexp.MustCompile(`(?i)^(https?://)?(www\.|m\.)?(youtube\.com/(watch\?|embed/|shorts/)|youtu\.be/)`)

// Detect classifies input once, at pipeline entry.
func Detect(input string) Source {
	in := strings.TrimSpace(input)
	switch {
	case videoRe.MatchString(in):
		return Source{Kind: KindVideoRef, Ref: in}
	case isDocument(in):
		return Source{Kind: KindDocument, Ref: in}
	default:
		return Source{Kind: KindText, Ref: in}
	}
}

func isDocument(in string) bool {
	lower := strings.ToLower(in)
	switch {
	case strings.HasPrefix(lower, "s3://"), strings.HasPrefix(lower, "minio://"):
		return true
	case strings.HasPrefix(lower, "uploads/"), strings.Contains(lower, "/uploads/"):
		return true
	}

	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		u, err := url.Parse(in)
		if err != nil {
			return false
		}
		ext := strings.ToLower(path.Ext(u.Path))
		return ext == ".pdf" || ext == ".html" || ext == ".htm"
	}
	return strings.HasSuffix(lower, ".pdf")
}

// Stem returns the file name of a document location without directory or
// extension, with the upload id prefix removed. It is the title fallback.
func (s Source) Stem() string {
	ref := s.Ref
	if u, err := url.Parse(ref); err == nil && u.Scheme != "" {
		ref = u.Path
	}
	base := path.Base(ref)
	base = strings.TrimSuffix(base, path.Ext(base))
	if i := strings.IndexByte(base, '_'); i == 36 {
		base = base[i+1:]
	}
	if base == "." || base == "/" {
		return ""
	}
	return base
}

// Format reports the document format from the location's extension.
func (s Source) Format() string {
	ref := s.Ref
	if u, err := url.Parse(ref); err == nil && u.Scheme != "" {
		ref = u.Path
	}
	switch strings.ToLower(path.Ext(ref)) {
	case ".pdf":
		return "pdf"
	case ".html", ".htm":
		return "html"
	case ".md", ".markdown", ".txt":
		return "text"
	default:
		return ""
	}
}
