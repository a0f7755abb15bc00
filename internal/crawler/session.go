package crawler

import (
	"context"
	"fmt"
	"time"
)

// Session is one page-rendering session. Implementations are not safe for
// concurrent use; Close may be called more than once.
type Session interface {
	// Navigate loads url in the session
	Navigate(ctx context.Context, url string) error

	// WaitFor blocks until selector is present in the rendered page or timeout elapses
	WaitFor(ctx context.Context, selector string, timeout time.Duration) error

	// Content returns the rendered markup of the current page
	Content(ctx context.Context) (string, error)

	// Close releases the session
	Close() error
}

// SessionFactory starts sessions
type SessionFactory interface {
	NewSession(ctx context.Context) (Session, error)
}

// SessionOptions configures session factories
type SessionOptions struct {
	Headless          bool
	ExecutablePath    string
	Proxy             string
	Locale            string
	ViewportWidth     int
	ViewportHeight    int
	NavigationTimeout time.Duration
}

// NewSessionFactory returns the factory for mode ("browser" or "http")
func NewSessionFactory(mode string, opts SessionOptions) (SessionFactory, error) {
	switch mode {
	case "browser":
		return NewBrowserSessionFactory(opts), nil
	case "http":
		return NewHTTPSessionFactory(opts.Locale), nil
	default:
		return nil, fmt.Errorf("unknown session mode %q", mode)
	}
}
