package target

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"

	"github.com/stigoleg/idle-suppressor/internal/event"
)

const (
	defaultPageURL  = "about:blank"
	dispatchTimeout = 10 * time.Second
)

// BrowserOptions configures the DevTools-backed target.
type BrowserOptions struct {
	// RemoteURL is a DevTools websocket or http endpoint of a running
	// browser, e.g. "ws://127.0.0.1:9222". Empty launches a new browser.
	RemoteURL string

	// PageURL is navigated to when no existing tab matches.
	PageURL string

	// MatchURL selects an existing tab whose URL contains it.
	MatchURL string

	// Headless and NoSandbox apply only to launched browsers.
	Headless  bool
	NoSandbox bool
}

// Browser dispatches events on the document of a Chrome page over the
// DevTools protocol.
type Browser struct {
	mu          sync.Mutex
	log         zerolog.Logger
	tabCtx      context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	targetID    target.ID
	closed      bool
}

// NewBrowser connects to (or launches) a browser and attaches to a page.
func NewBrowser(ctx context.Context, opts BrowserOptions, log zerolog.Logger) (*Browser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// The browser must outlive ctx; it is released by Close.
	var allocCtx context.Context
	var cancelAlloc context.CancelFunc
	if opts.RemoteURL != "" {
		allocCtx, cancelAlloc = chromedp.NewRemoteAllocator(context.Background(), opts.RemoteURL)
	} else {
		allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", opts.Headless),
		)
		if opts.NoSandbox {
			allocOpts = append(allocOpts, chromedp.NoSandbox)
		}
		allocCtx, cancelAlloc = chromedp.NewExecAllocator(context.Background(), allocOpts...)
	}

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("connect to browser: %w", err)
	}

	b := &Browser{
		log:         log,
		cancelAlloc: func() { cancelBrowser(); cancelAlloc() },
	}

	info, err := findPage(browserCtx, opts.MatchURL)
	if err != nil {
		b.cancelAlloc()
		return nil, err
	}

	if info != nil {
		b.tabCtx, b.cancelTab = chromedp.NewContext(browserCtx, chromedp.WithTargetID(info.TargetID))
		b.targetID = info.TargetID
		if err := chromedp.Run(b.tabCtx); err != nil {
			b.cancelTab()
			b.cancelAlloc()
			return nil, fmt.Errorf("attach to page %s: %w", info.URL, err)
		}
		log.Info().Str("url", info.URL).Str("title", info.Title).Msg("attached to existing page")
		return b, nil
	}

	pageURL := opts.PageURL
	if pageURL == "" {
		pageURL = defaultPageURL
	}
	b.tabCtx, b.cancelTab = browserCtx, cancelBrowser
	if err := chromedp.Run(b.tabCtx, chromedp.Navigate(pageURL)); err != nil {
		b.cancelAlloc()
		return nil, fmt.Errorf("navigate to %s: %w", pageURL, err)
	}
	if c := chromedp.FromContext(b.tabCtx); c != nil && c.Target != nil {
		b.targetID = c.Target.TargetID
	}
	log.Info().Str("url", pageURL).Msg("opened page")
	return b, nil
}

// findPage returns the first page tab whose URL contains match, or nil.
func findPage(ctx context.Context, match string) (*target.Info, error) {
	if match == "" {
		return nil, nil
	}
	infos, err := chromedp.Targets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list browser targets: %w", err)
	}
	return selectPage(infos, match), nil
}

func selectPage(infos []*target.Info, match string) *target.Info {
	for _, info := range infos {
		if info == nil || info.Type != "page" {
			continue
		}
		if strings.Contains(info.URL, match) {
			return info
		}
	}
	return nil
}

func (b *Browser) Name() string { return NameBrowser }

// Dispatch evaluates the event constructor on the page and dispatches it on
// document.
func (b *Browser) Dispatch(ctx context.Context, ev event.Event) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrNoDocument
	}
	tabCtx := b.tabCtx
	b.mu.Unlock()

	script, err := event.Script(ev)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithTimeout(tabCtx, dispatchTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var outcome string
	if err := chromedp.Run(runCtx, chromedp.Evaluate(script, &outcome)); err != nil {
		return fmt.Errorf("dispatch %s: %w", ev.Type(), err)
	}
	return b.checkOutcome(ev.Type(), outcome)
}

// checkOutcome maps the value of an event.Script evaluation to an error.
func (b *Browser) checkOutcome(typ, outcome string) error {
	switch outcome {
	case "dispatched":
		return nil
	case "cancelled":
		b.log.Debug().Str("type", typ).Msg("event default prevented by page listener")
		return nil
	case "no-document":
		return ErrNoDocument
	default:
		return fmt.Errorf("dispatch %s: unexpected result %q", typ, outcome)
	}
}

// Close detaches from the page and releases the browser.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	if b.cancelTab != nil {
		b.cancelTab()
	}
	if b.cancelAlloc != nil {
		b.cancelAlloc()
	}
	b.log.Info().Str("target_id", string(b.targetID)).Msg("browser released")
	return nil
}
