package render

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/maraichr/slidepilot/internal/deck"
)

// ChromeImager screenshots each slide's HTML page in headless Chrome.
type ChromeImager struct {
	execPath string
	timeout  time.Duration
}

func NewChromeImager(execPath string, timeout time.Duration) *ChromeImager {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ChromeImager{execPath: execPath, timeout: timeout}
}

func (c *ChromeImager) Capture(ctx context.Context, dir string, slides []string) ([]string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.WindowSize(deck.SlideWidth, deck.SlideHeight),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("allow-file-access-from-files", true),
	)
	if c.execPath != "" {
		opts = append(opts, chromedp.ExecPath(c.execPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	// start the browser outside any per-slide deadline
	if err := chromedp.Run(browserCtx); err != nil {
		return nil, fmt.Errorf("start chrome: %w", err)
	}

	paths := make([]string, 0, len(slides))
	for i, slide := range slides {
		page, err := deck.SlideHTML(slide)
		if err != nil {
			return nil, err
		}
		htmlPath := filepath.Join(dir, fmt.Sprintf("slide_%03d.html", i))
		if err := os.WriteFile(htmlPath, []byte(page), 0o600); err != nil {
			return nil, fmt.Errorf("write slide html: %w", err)
		}

		var buf []byte
		runCtx, cancel := context.WithTimeout(browserCtx, c.timeout)
		err = chromedp.Run(runCtx,
			chromedp.EmulateViewport(deck.SlideWidth, deck.SlideHeight),
			chromedp.Navigate("file://"+htmlPath),
			chromedp.CaptureScreenshot(&buf),
		)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("screenshot slide %d: %w", i+1, err)
		}

		pngPath := filepath.Join(dir, fmt.Sprintf("slide_%03d.png", i))
		if err := os.WriteFile(pngPath, buf, 0o600); err != nil {
			return nil, fmt.Errorf("write slide png: %w", err)
		}
		paths = append(paths, pngPath)
	}
	return paths, nil
}
