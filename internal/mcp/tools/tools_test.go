package tools

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/maraichr/slidepilot/internal/auth"
	"github.com/maraichr/slidepilot/internal/pipeline"
	"github.com/maraichr/slidepilot/internal/render"
	"github.com/maraichr/slidepilot/internal/source"
	"github.com/maraichr/slidepilot/pkg/models"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func ownerCtx(sub string) context.Context {
	return auth.WithPrincipal(context.Background(), &auth.Principal{Sub: sub, Scopes: map[string]bool{
		auth.ScopeRead: true, auth.ScopeWrite: true, auth.ScopeRender: true,
	}})
}

type fakeRunner struct {
	err error
	log []string
}

func (f fakeRunner) Run(ctx context.Context, rc *pipeline.RunContext, opts pipeline.Options) (pipeline.Result, error) {
	if f.err != nil {
		return pipeline.Result{RunID: rc.RunID, Log: f.log}, f.err
	}
	return pipeline.Result{RunID: rc.RunID, Title: "Topic for " + rc.Owner}, nil
}

func TestGenerateDeck(t *testing.T) {
	h := NewGenerateDeckHandler(fakeRunner{}, discard)

	if _, err := h.Handle(ownerCtx("alice"), GenerateDeckParams{}); err == nil {
		t.Fatal("expected error for empty input")
	}
	if _, err := h.Handle(context.Background(), GenerateDeckParams{Input: "x"}); err == nil {
		t.Fatal("expected error without a principal")
	}

	out, err := h.Handle(ownerCtx("alice"), GenerateDeckParams{Input: "Go"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Topic for alice") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestGenerateDeck_VideoSource(t *testing.T) {
	h := NewGenerateDeckHandler(fakeRunner{err: &pipeline.StageError{Stage: pipeline.StageCollect, Err: source.ErrVideoNotSupported}}, discard)
	_, err := h.Handle(ownerCtx("alice"), GenerateDeckParams{Input: "https://youtu.be/abc"})
	if err == nil || !strings.Contains(err.Error(), "not supported") {
		t.Fatalf("expected unsupported message, got %v", err)
	}
}

func TestGenerateDeck_StageFailureIncludesLog(t *testing.T) {
	h := NewGenerateDeckHandler(fakeRunner{
		err: &pipeline.StageError{Stage: pipeline.StageEvaluate, Err: errors.New("rate limited")},
		log: []string{"[draft] 3 slides", "[evaluate] failed: rate limited"},
	}, discard)

	_, err := h.Handle(ownerCtx("alice"), GenerateDeckParams{Input: "Go"})
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	for _, want := range []string{"stage `evaluate`", "rate limited", "[draft] 3 slides", "[evaluate] failed: rate limited"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q missing %q", msg, want)
		}
	}
}

type memDecks map[uuid.UUID]models.Deck

func (m memDecks) GetDeck(_ context.Context, id uuid.UUID, owner string) (*models.Deck, error) {
	d, ok := m[id]
	if !ok || d.OwnerID != owner {
		return nil, models.ErrDeckNotFound
	}
	return &d, nil
}

func (m memDecks) ListDecks(_ context.Context, owner string, _ int) ([]models.Deck, error) {
	var out []models.Deck
	for _, d := range m {
		if d.OwnerID == owner {
			out = append(out, d)
		}
	}
	return out, nil
}

type memJobs struct {
	jobs map[uuid.UUID]*models.RenderJob
	// reads before the job flips to completed
	flipAfter int
	reads     int
}

func (m *memJobs) CreateJob(_ context.Context, owner string, p render.Payload) (uuid.UUID, error) {
	id := uuid.New()
	m.jobs[id] = &models.RenderJob{ID: id, OwnerID: owner, DeckID: p.DeckID, Status: models.JobPending}
	return id, nil
}

func (m *memJobs) GetJobForOwner(_ context.Context, id uuid.UUID, owner string) (*models.RenderJob, error) {
	j, ok := m.jobs[id]
	if !ok || j.OwnerID != owner {
		return nil, models.ErrNotFound
	}
	m.reads++
	if m.flipAfter > 0 && m.reads >= m.flipAfter {
		ref := "alice/intro_video.mp4"
		j.Status = models.JobCompleted
		j.ResultRef = &ref
	}
	cp := *j
	return &cp, nil
}

func TestRenderJobTools(t *testing.T) {
	d := models.Deck{ID: uuid.New(), OwnerID: "alice", Title: "Intro", Markdown: "# Intro"}
	decks := memDecks{d.ID: d}
	jobs := &memJobs{jobs: map[uuid.UUID]*models.RenderJob{}, flipAfter: 2}

	create := NewCreateRenderJobHandler(decks, jobs, discard)
	if _, err := create.Handle(ownerCtx("bob"), CreateRenderJobParams{DeckID: d.ID.String()}); err == nil || err.Error() != "deck not found" {
		t.Fatalf("expected deck not found for another owner, got %v", err)
	}
	out, err := create.Handle(ownerCtx("alice"), CreateRenderJobParams{DeckID: d.ID.String()})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "pending") {
		t.Errorf("unexpected output %q", out)
	}

	var jobID uuid.UUID
	for id := range jobs.jobs {
		jobID = id
	}

	get := NewGetRenderJobHandler(jobs, discard)
	get.interval = time.Millisecond
	out, err = get.Handle(ownerCtx("alice"), GetRenderJobParams{JobID: jobID.String(), WaitSeconds: 5})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "**completed**") || !strings.Contains(out, "intro_video.mp4") {
		t.Errorf("expected completed job, got %q", out)
	}

	if _, err := get.Handle(ownerCtx("alice"), GetRenderJobParams{JobID: uuid.NewString()}); err == nil || err.Error() != "render job not found" {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListDecks(t *testing.T) {
	d := models.Deck{ID: uuid.New(), OwnerID: "alice", Title: "Intro"}
	h := NewListDecksHandler(memDecks{d.ID: d}, discard)
	out, err := h.Handle(ownerCtx("alice"), ListDecksParams{})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "**Intro**") {
		t.Errorf("unexpected output %q", out)
	}
	out, _ = h.Handle(ownerCtx("carol"), ListDecksParams{})
	if out != "No decks found." {
		t.Errorf("unexpected output %q", out)
	}
}

type errHandler struct{}

func (errHandler) Handle(context.Context, ListDecksParams) (string, error) {
	return "", errors.New("boom")
}

func TestWrapHandler_MapsErrors(t *testing.T) {
	fn := WrapHandler[ListDecksParams](errHandler{})
	res, _, err := fn(context.Background(), &sdkmcp.CallToolRequest{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError {
		t.Fatal("expected IsError")
	}
	if tc, ok := res.Content[0].(*sdkmcp.TextContent); !ok || tc.Text != "boom" {
		t.Errorf("unexpected content %+v", res.Content)
	}
}

func TestRegister(t *testing.T) {
	server := sdkmcp.NewServer(&sdkmcp.Implementation{Name: "slidepilot", Version: "test"}, nil)
	Register(server,
		NewGenerateDeckHandler(fakeRunner{}, discard),
		NewListDecksHandler(memDecks{}, discard),
		nil, nil)
}

func TestRequireOwner_Scopes(t *testing.T) {
	readOnly := auth.WithPrincipal(context.Background(), &auth.Principal{Sub: "bob", Scopes: map[string]bool{auth.ScopeRead: true}})

	if _, err := requireOwner(readOnly, auth.ScopeWrite); err == nil || !strings.Contains(err.Error(), "insufficient scope") {
		t.Fatalf("expected scope error, got %v", err)
	}
	owner, err := requireOwner(readOnly, auth.ScopeRead, auth.ScopeRender)
	if err != nil || owner != "bob" {
		t.Fatalf("got %q, %v", owner, err)
	}

	admin := auth.WithPrincipal(context.Background(), auth.DevPrincipal())
	if owner, err := requireOwner(admin, auth.ScopeRender); err != nil || owner != auth.DevOwner {
		t.Fatalf("admin: got %q, %v", owner, err)
	}
}
