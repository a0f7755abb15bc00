package crawler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"sjsage522/couponwatcher/helpers"
	"sjsage522/couponwatcher/logger"
	werrors "sjsage522/couponwatcher/pkg/errors"
)

// hides the automation flag from page scripts
const webdriverMaskScript = `Object.defineProperty(navigator, 'webdriver', { get: () => undefined });`

// BrowserSessionFactory starts headless Chromium sessions through Playwright
type BrowserSessionFactory struct {
	opts SessionOptions
	log  *logger.Logger
}

// NewBrowserSessionFactory creates a Playwright-backed factory
func NewBrowserSessionFactory(opts SessionOptions) *BrowserSessionFactory {
	if opts.ViewportWidth <= 0 || opts.ViewportHeight <= 0 {
		opts.ViewportWidth, opts.ViewportHeight = 1920, 1080
	}
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = 60 * time.Second
	}
	return &BrowserSessionFactory{
		opts: opts,
		log:  logger.ForSession("browser"),
	}
}

// launchArgs returns the Chromium flags used for every session
func (f *BrowserSessionFactory) launchArgs() []string {
	args := []string{
		"--disable-gpu",
		"--disable-blink-features=AutomationControlled",
	}
	if f.opts.Locale != "" {
		args = append(args, "--lang="+f.opts.Locale)
	}
	return args
}

// NewSession starts the driver, the browser, a context and a page.
// Any failure tears down what was already started.
func (f *BrowserSessionFactory) NewSession(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, werrors.NewSession("session start canceled", err)
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, werrors.NewSession("failed to start playwright driver", err)
	}
	s := &browserSession{pw: pw, log: f.log}

	launch := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(f.opts.Headless),
		Args:     f.launchArgs(),
	}
	if f.opts.ExecutablePath != "" {
		launch.ExecutablePath = playwright.String(f.opts.ExecutablePath)
	}
	if f.opts.Proxy != "" {
		launch.Proxy = &playwright.Proxy{Server: f.opts.Proxy}
	}

	s.browser, err = pw.Chromium.Launch(launch)
	if err != nil {
		s.Close()
		return nil, werrors.NewSession("failed to launch chromium", err)
	}

	contextOpts := playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  f.opts.ViewportWidth,
			Height: f.opts.ViewportHeight,
		},
	}
	if f.opts.Locale != "" {
		contextOpts.Locale = playwright.String(f.opts.Locale)
	}

	s.context, err = s.browser.NewContext(contextOpts)
	if err != nil {
		s.Close()
		return nil, werrors.NewSession("failed to create browser context", err)
	}
	if err := s.context.AddInitScript(playwright.Script{Content: playwright.String(webdriverMaskScript)}); err != nil {
		s.Close()
		return nil, werrors.NewSession("failed to install init script", err)
	}

	s.page, err = s.context.NewPage()
	if err != nil {
		s.Close()
		return nil, werrors.NewSession("failed to open page", err)
	}
	s.page.SetDefaultNavigationTimeout(float64(f.opts.NavigationTimeout.Milliseconds()))

	f.log.Debug().
		Bool("headless", f.opts.Headless).
		Str("locale", f.opts.Locale).
		Int("viewport_width", f.opts.ViewportWidth).
		Int("viewport_height", f.opts.ViewportHeight).
		Msg("Browser session started")

	return s, nil
}

type browserSession struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page
	log     *logger.Logger

	closeOnce sync.Once
	closeErr  error
}

func (s *browserSession) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	resp, err := s.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	if err != nil {
		return werrors.NewNetwork(fmt.Sprintf("failed to load %s", url), err)
	}
	if resp == nil || resp.Status() < 400 {
		return nil
	}
	retryAfter, _ := resp.HeaderValue("retry-after")
	return navigationStatusError(url, resp.Status(), retryAfter)
}

// navigationStatusError maps an error status of a navigation: rate limiting
// statuses are returned raw for the fetcher's gate, the rest are network errors
func navigationStatusError(url string, status int, retryAfter string) error {
	statusErr := &helpers.StatusError{URL: url, StatusCode: status, RetryAfter: retryAfter}
	if helpers.IsRateLimitStatus(status) {
		return statusErr
	}
	return werrors.NewNetwork(fmt.Sprintf("failed to load %s", url), statusErr)
}

func (s *browserSession) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.page.Locator(selector).First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateAttached,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	if errors.Is(err, playwright.ErrTimeout) {
		return werrors.NewRenderTimeout(selector, timeout, err)
	}
	if err != nil {
		return werrors.NewNetwork(fmt.Sprintf("failed waiting for %q", selector), err)
	}
	return nil
}

func (s *browserSession) Content(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	html, err := s.page.Content()
	if err != nil {
		return "", werrors.NewNetwork("failed to read page content", err)
	}
	return html, nil
}

// Close tears the session down innermost first; later calls return the first result
func (s *browserSession) Close() error {
	s.closeOnce.Do(func() {
		var errs []error
		if s.page != nil {
			errs = append(errs, s.page.Close())
		}
		if s.context != nil {
			errs = append(errs, s.context.Close())
		}
		if s.browser != nil {
			errs = append(errs, s.browser.Close())
		}
		if s.pw != nil {
			errs = append(errs, s.pw.Stop())
		}
		s.closeErr = errors.Join(errs...)
		if s.closeErr != nil {
			s.log.Warn().Err(s.closeErr).Msg("Browser session closed with errors")
		} else {
			s.log.Debug().Msg("Browser session closed")
		}
	})
	return s.closeErr
}
