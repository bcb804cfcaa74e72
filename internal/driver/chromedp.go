// Package driver implements the `driver` keyword's browser-automation host
// object (spec.md §4.2, §8 concrete scenario 6) on top of chromedp/chromedp,
// grounded on intelligencedev-manifold/internal/tools/web/screenshot.go's
// allocator/context/Tasks usage pattern.
package driver

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/wingman-run/wingman/internal/script"
)

var _ script.HostObject = (*ChromeDriver)(nil)

// ChromeDriver wraps one chromedp browser context as a script.HostObject,
// exposing navigation and inspection to feature steps as `driver.<method>`
// calls and `driver.title`/`driver.url` properties.
type ChromeDriver struct {
	ctx       context.Context
	cancelCtx context.CancelFunc
	allocCtx  context.Context
	cancelAll context.CancelFunc
	timeout   time.Duration
}

// Config is the map a `driver { ... }` step (or a `configure` block's
// `driver` key) may supply: headless, width/height, a starting url, and a
// per-action timeout.
type Config struct {
	Headless bool
	Width    int
	Height   int
	URL      string
	Timeout  time.Duration
}

func configFromArgs(args any) Config {
	cfg := Config{Headless: true, Width: 1280, Height: 800, Timeout: 15 * time.Second}
	m, ok := args.(map[string]any)
	if !ok {
		return cfg
	}
	if v, ok := m["headless"].(bool); ok {
		cfg.Headless = v
	}
	if v, ok := m["width"].(float64); ok {
		cfg.Width = int(v)
	}
	if v, ok := m["height"].(float64); ok {
		cfg.Height = int(v)
	}
	if v, ok := m["url"].(string); ok {
		cfg.URL = v
	}
	if v, ok := m["timeoutSeconds"].(float64); ok {
		cfg.Timeout = time.Duration(v) * time.Second
	}
	return cfg
}

// NewFactory returns a script.HostObject factory (wingman's DriverFactory
// shape) that launches one browser per `driver` step invocation.
func NewFactory(parent context.Context) func(args any) (script.HostObject, error) {
	return func(args any) (script.HostObject, error) {
		cfg := configFromArgs(args)
		return newChromeDriver(parent, cfg)
	}
}

func newChromeDriver(parent context.Context, cfg Config) (*ChromeDriver, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", cfg.Headless),
		chromedp.Flag("window-size", fmt.Sprintf("%d,%d", cfg.Width, cfg.Height)),
	)
	allocCtx, cancelAll := chromedp.NewExecAllocator(parent, opts...)
	browserCtx, cancelCtx := chromedp.NewContext(allocCtx)

	d := &ChromeDriver{
		ctx:       browserCtx,
		cancelCtx: cancelCtx,
		allocCtx:  allocCtx,
		cancelAll: cancelAll,
		timeout:   cfg.Timeout,
	}

	if cfg.URL != "" {
		if err := d.navigate(cfg.URL); err != nil {
			d.Close()
			return nil, err
		}
	}
	return d, nil
}

func (d *ChromeDriver) run(tasks chromedp.Tasks) error {
	ctx, cancel := context.WithTimeout(d.ctx, d.timeout)
	defer cancel()
	return chromedp.Run(ctx, tasks)
}

func (d *ChromeDriver) navigate(url string) error {
	return d.run(chromedp.Tasks{
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	})
}

// GetProperty exposes `title` and `url` as live reads of the current page.
func (d *ChromeDriver) GetProperty(name string) (any, bool) {
	switch name {
	case "title":
		var title string
		if err := d.run(chromedp.Tasks{chromedp.Title(&title)}); err != nil {
			return nil, false
		}
		return title, true
	case "url":
		var url string
		if err := d.run(chromedp.Tasks{chromedp.Location(&url)}); err != nil {
			return nil, false
		}
		return url, true
	}
	return nil, false
}

func (d *ChromeDriver) SetProperty(string, any) error {
	return fmt.Errorf("driver: properties are read-only")
}

// Invoke supports navigate(url), click(selector), sendKeys(selector, text),
// waitFor(selector), screenshot() -> base64 PNG, and close().
func (d *ChromeDriver) Invoke(method string, args []any) (any, error) {
	switch method {
	case "navigate":
		url, err := stringArg(args, 0)
		if err != nil {
			return nil, err
		}
		return nil, d.navigate(url)
	case "click":
		selector, err := stringArg(args, 0)
		if err != nil {
			return nil, err
		}
		return nil, d.run(chromedp.Tasks{chromedp.Click(selector, chromedp.ByQuery)})
	case "sendKeys":
		selector, err := stringArg(args, 0)
		if err != nil {
			return nil, err
		}
		text, err := stringArg(args, 1)
		if err != nil {
			return nil, err
		}
		return nil, d.run(chromedp.Tasks{chromedp.SendKeys(selector, text, chromedp.ByQuery)})
	case "waitFor":
		selector, err := stringArg(args, 0)
		if err != nil {
			return nil, err
		}
		return nil, d.run(chromedp.Tasks{chromedp.WaitVisible(selector, chromedp.ByQuery)})
	case "screenshot":
		var png []byte
		if err := d.run(chromedp.Tasks{chromedp.FullScreenshot(&png, 90)}); err != nil {
			return nil, err
		}
		return png, nil
	case "close":
		d.Close()
		return nil, nil
	}
	return nil, fmt.Errorf("driver: no such method %q", method)
}

// Close tears down the browser context and allocator; safe to call more
// than once.
func (d *ChromeDriver) Close() {
	if d.cancelCtx != nil {
		d.cancelCtx()
	}
	if d.cancelAll != nil {
		d.cancelAll()
	}
}

func stringArg(args []any, i int) (string, error) {
	if i >= len(args) {
		return "", fmt.Errorf("driver: missing argument %d", i)
	}
	s, ok := args[i].(string)
	if !ok {
		return "", fmt.Errorf("driver: argument %d must be a string", i)
	}
	return s, nil
}
