package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned by every store implementation when a record is missing.
var ErrNotFound = errors.New("not found")

// ErrDeckNotFound wraps ErrNotFound for deck lookups.
var ErrDeckNotFound = fmt.Errorf("deck %w", ErrNotFound)

// SourceKind identifies which input variant a deck was generated from.
type SourceKind string

const (
	SourceText     SourceKind = "text"
	SourceDocument SourceKind = "document"
	SourceVideo    SourceKind = "video"
)

// Deck is a persisted slide deck produced by one pipeline run.
type Deck struct {
	ID          uuid.UUID  `json:"id"`
	OwnerID     string     `json:"owner_id"`
	Title       string     `json:"title"`
	Slug        string     `json:"slug"`
	SourceKind  SourceKind `json:"source_kind"`
	SourceRef   string     `json:"source_ref"`
	Markdown    string     `json:"markdown,omitempty"`
	MarkdownKey string     `json:"markdown_key"`
	HandoutKey  *string    `json:"handout_key,omitempty"`
	VideoURL    *string    `json:"video_url,omitempty"`
	Score       float64    `json:"score"`
	Passed      bool       `json:"passed"`
	Attempts    int        `json:"attempts"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Feedback is a user rating attached to a deck.
type Feedback struct {
	ID        uuid.UUID `json:"id"`
	DeckID    uuid.UUID `json:"deck_id"`
	OwnerID   string    `json:"owner_id"`
	Rating    int       `json:"rating"`
	Comment   *string   `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
