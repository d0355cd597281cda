package capture

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/raysh454/miru/internal/logging"
)

// ChromedpCapturer renders pages in headless Chrome and screenshots them.
// One allocator is shared across captures; each capture runs in its own tab.
type ChromedpCapturer struct {
	cfg      *Config
	logger   logging.Logger
	allocCtx context.Context
	cancel   context.CancelFunc
}

// NewChromedpCapturer starts a browser allocator with the given config.
func NewChromedpCapturer(cfg *Config, logger logging.Logger) (*ChromedpCapturer, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	if !cfg.Headless {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	// Disable features that make pixel output vary between runs.
	opts = append(opts,
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("disable-smooth-scrolling", true),
	)

	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)
	return &ChromedpCapturer{
		cfg:      cfg,
		logger:   logger,
		allocCtx: allocCtx,
		cancel:   cancel,
	}, nil
}

// waitNetworkIdle returns a channel that is closed once no network requests
// have been in flight for idleAfter.
func waitNetworkIdle(ctx context.Context, idleAfter time.Duration) chan struct{} {
	idleChan := make(chan struct{})
	var activeReqs int32
	var timer *time.Timer
	var timerMutex sync.Mutex
	var once sync.Once

	startTimer := func() {
		timerMutex.Lock()
		defer timerMutex.Unlock()

		if timer != nil {
			timer.Stop()
		}

		timer = time.AfterFunc(idleAfter, func() {
			if atomic.LoadInt32(&activeReqs) == 0 {
				once.Do(func() {
					close(idleChan)
				})
			}
		})
	}

	chromedp.ListenTarget(ctx,
		func(ev any) {
			switch ev.(type) {
			case *network.EventRequestWillBeSent:
				atomic.AddInt32(&activeReqs, 1)
			case *network.EventLoadingFinished, *network.EventLoadingFailed:
				if atomic.AddInt32(&activeReqs, -1) == 0 {
					startTimer()
				}
			}
		})

	// Pages that issue no requests after navigation still need to go idle.
	startTimer()

	return idleChan
}

func (c *ChromedpCapturer) Capture(ctx context.Context, target Target) (*Record, error) {
	records, err := c.capture(ctx, target, 0, 1)
	if err != nil {
		return nil, err
	}
	return records[0], nil
}

func (c *ChromedpCapturer) CaptureSeries(ctx context.Context, target Target, interval time.Duration, count int) ([]*Record, error) {
	if count < 1 {
		count = 1
	}
	return c.capture(ctx, target, interval, count)
}

func (c *ChromedpCapturer) capture(ctx context.Context, target Target, interval time.Duration, count int) ([]*Record, error) {
	tabCtx, cancelTab := chromedp.NewContext(c.allocCtx)
	defer cancelTab()

	timeout := c.cfg.NavTimeout
	if timeout > 0 {
		var cancelTimeout context.CancelFunc
		tabCtx, cancelTimeout = context.WithTimeout(tabCtx, timeout+time.Duration(count)*interval)
		defer cancelTimeout()
	}

	vp := target.Viewport
	if vp.Width == 0 || vp.Height == 0 {
		vp = c.cfg.DefaultViewport
	}

	waitIdle := waitNetworkIdle(tabCtx, c.cfg.IdleAfter)

	err := chromedp.Run(tabCtx,
		network.Enable(),
		chromedp.EmulateViewport(int64(vp.Width), int64(vp.Height)),
		chromedp.Navigate(target.URL),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: navigating to %s: %v", ErrCapture, target.URL, err)
	}

	select {
	case <-waitIdle:
	case <-tabCtx.Done():
		return nil, fmt.Errorf("%w: render wait for %s: %v", ErrCapture, target.URL, tabCtx.Err())
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: render wait for %s: %v", ErrCapture, target.URL, ctx.Err())
	}

	var html string
	if err := chromedp.Run(tabCtx, chromedp.OuterHTML("html", &html)); err != nil {
		return nil, fmt.Errorf("%w: reading DOM of %s: %v", ErrCapture, target.URL, err)
	}
	title := extractTitle(html)

	source := target.URL
	if target.Selector != "" {
		source += " " + target.Selector
	}

	records := make([]*Record, 0, count)
	for i := 0; i < count; i++ {
		if i > 0 && interval > 0 {
			select {
			case <-time.After(interval):
			case <-tabCtx.Done():
				return nil, fmt.Errorf("%w: series capture of %s: %v", ErrCapture, target.URL, tabCtx.Err())
			}
		}

		var shot []byte
		var action chromedp.Action
		if target.Selector != "" {
			action = chromedp.Screenshot(target.Selector, &shot, chromedp.NodeVisible)
		} else {
			action = chromedp.CaptureScreenshot(&shot)
		}
		if err := chromedp.Run(tabCtx, action); err != nil {
			return nil, fmt.Errorf("%w: screenshot of %s: %v", ErrCapture, source, err)
		}

		rec := NewRecord(shot, source, title)
		records = append(records, rec)

		if c.logger != nil {
			c.logger.Debug("captured screenshot",
				logging.Field{Key: "source", Value: source},
				logging.Field{Key: "hash", Value: rec.Hash},
				logging.Field{Key: "frame", Value: i})
		}
	}

	return records, nil
}

func (c *ChromedpCapturer) Close() error {
	c.cancel()
	return nil
}

// extractTitle pulls the page <title> out of the rendered DOM. An empty
// string is fine; the title is report metadata only and never hashed.
func extractTitle(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}
