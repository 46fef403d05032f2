// Command generate runs the deck pipeline on the local machine against an
// embedded store, without Postgres, Valkey or MinIO.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"

	"github.com/maraichr/slidepilot/internal/app"
	"github.com/maraichr/slidepilot/internal/auth"
	"github.com/maraichr/slidepilot/internal/config"
	"github.com/maraichr/slidepilot/internal/llm"
	"github.com/maraichr/slidepilot/internal/pipeline"
	"github.com/maraichr/slidepilot/internal/render"
	"github.com/maraichr/slidepilot/internal/store/local"
	"github.com/maraichr/slidepilot/pkg/models"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	passStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#3FB950"))
	warnStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#D29922"))
	failStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F85149"))
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#5B8DEF")).Padding(0, 1)
)

func main() {
	_ = godotenv.Load(".env")

	var (
		narrate = flag.Bool("narrate", false, "generate per-slide narration")
		video   = flag.Bool("render", false, "enqueue a video render of the deck")
		wait    = flag.Bool("wait", false, "with -render, block until the video is finished")
		dot     = flag.Bool("dot", false, "print the stage graph in DOT format and exit")
		dataDir = flag.String("data", "", "data directory (default LOCAL_DATA_DIR)")
		verbose = flag.Bool("v", false, "log at debug level")
	)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: generate [flags] <topic | file.pdf | s3://... | https://...>\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := config.Load()
	if err != nil {
		fatal(logger, "failed to load config", err)
	}
	if *dataDir != "" {
		cfg.Local.DataDir = *dataDir
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := local.Open(cfg.Local.DataDir)
	if err != nil {
		fatal(logger, "failed to open data dir", err)
	}
	defer db.Close()

	blobs, err := local.NewBlobStore(filepath.Join(cfg.Local.DataDir, "blobs"))
	if err != nil {
		fatal(logger, "failed to open blob dir", err)
	}
	decks := local.NewDeckStore(db)
	jobs := local.NewJobStore(db)

	completer, err := llm.NewCompleter(ctx, cfg)
	if err != nil && !*dot {
		fatal(logger, "failed to init LLM", err)
	}

	stores := app.Stores{Decks: decks, Blobs: blobs}
	var (
		manager *render.Manager
		trigger *render.LocalTrigger
	)
	if *video {
		worker := render.NewWorker(jobs, app.NewRenderPipeline(cfg, completer, logger), blobs, decks,
			cfg.Render.TempDir, cfg.Render.JobTimeout, logger)
		trigger = render.NewLocalTrigger(ctx, worker, cfg.Render.LocalWorkers, 8, logger)
		manager = render.NewManager(jobs, trigger, logger)
		stores.Jobs = manager
	}

	engine, err := app.NewEngine(cfg, completer, app.NewLoader(ctx, cfg, blobs, nil, logger), stores, logger)
	if err != nil {
		fatal(logger, "failed to build pipeline", err)
	}

	if *dot {
		if err := engine.DOT(os.Stdout); err != nil {
			fatal(logger, "failed to write graph", err)
		}
		return
	}

	input := strings.TrimSpace(strings.Join(flag.Args(), " "))
	if input == "" {
		flag.Usage()
		os.Exit(2)
	}

	res, runErr := engine.Run(ctx, pipeline.NewRunContext(auth.DevOwner, input), pipeline.Options{
		Narrate: *narrate,
		Render:  *video,
	})
	fmt.Println(summary(res, runErr, cfg.Local.DataDir))
	if runErr != nil {
		os.Exit(1)
	}

	if trigger == nil {
		return
	}
	if *wait && res.RenderJobID != nil {
		job, err := manager.Wait(ctx, *res.RenderJobID, 2*time.Second)
		if err != nil {
			fatal(logger, "render wait failed", err)
		}
		fmt.Println(jobLine(job))
	}
	trigger.Close()
}

func summary(res pipeline.Result, runErr error, dataDir string) string {
	lines := []string{titleStyle.Render(orDefault(res.Title, "(untitled)"))}

	if ev := res.Evaluation; ev != nil {
		status := passStyle.Render("PASS")
		switch {
		case res.BestEffort:
			status = warnStyle.Render("BEST EFFORT")
		case !ev.Pass:
			status = failStyle.Render("FAIL")
		}
		lines = append(lines, fmt.Sprintf("%s %.1f/10 %s after %d attempt(s)",
			labelStyle.Render("score"), ev.Score, status, res.Attempts))
	}
	if d := res.Deck; d != nil {
		lines = append(lines,
			fmt.Sprintf("%s %s", labelStyle.Render("deck "), d.ID),
			fmt.Sprintf("%s %s", labelStyle.Render("file "), filepath.Join(dataDir, "blobs", d.MarkdownKey)))
		if d.HandoutKey != nil {
			lines = append(lines, fmt.Sprintf("%s %s", labelStyle.Render("pdf  "), filepath.Join(dataDir, "blobs", *d.HandoutKey)))
		}
	}
	if len(res.Narrations) > 0 {
		lines = append(lines, fmt.Sprintf("%s %d slides", labelStyle.Render("voice"), len(res.Narrations)))
	}
	if res.RenderJobID != nil {
		lines = append(lines, fmt.Sprintf("%s %s", labelStyle.Render("video"), *res.RenderJobID))
	}
	if runErr != nil {
		lines = append(lines, failStyle.Render("error: ")+runErr.Error())
	}
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func jobLine(job *models.RenderJob) string {
	switch job.Status {
	case models.JobCompleted:
		return passStyle.Render("video ready: ") + deref(job.ResultRef)
	case models.JobFailed:
		return failStyle.Render("video failed: ") + deref(job.ErrorMessage)
	default:
		return warnStyle.Render(string(job.Status))
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, slog.String("error", err.Error()))
	fmt.Fprintln(os.Stderr, failStyle.Render(msg+": ")+err.Error())
	os.Exit(1)
}
