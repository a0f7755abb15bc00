package crawler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"sjsage522/couponwatcher/helpers"
	werrors "sjsage522/couponwatcher/pkg/errors"
)

var errSessionClosed = errors.New("session closed")

// HTTPSessionFactory starts sessions that fetch pages without rendering scripts.
// It suits sites that render server side.
type HTTPSessionFactory struct {
	acceptLanguage string
}

// NewHTTPSessionFactory creates a plain HTTP factory sending acceptLanguage
func NewHTTPSessionFactory(acceptLanguage string) *HTTPSessionFactory {
	return &HTTPSessionFactory{acceptLanguage: acceptLanguage}
}

// NewSession implements SessionFactory
func (f *HTTPSessionFactory) NewSession(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, werrors.NewSession("session start canceled", err)
	}
	return &httpSession{acceptLanguage: f.acceptLanguage}, nil
}

type httpSession struct {
	mu             sync.Mutex
	acceptLanguage string
	url            string
	body           string
	doc            *goquery.Document
	closed         bool
}

func (s *httpSession) Navigate(ctx context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errSessionClosed
	}

	body, err := helpers.FetchWithRandomHeaders(ctx, url, s.acceptLanguage)
	if err != nil {
		if errors.Is(err, helpers.ErrRateLimited) {
			return err
		}
		return werrors.NewNetwork(fmt.Sprintf("failed to load %s", url), err)
	}

	s.url = url
	s.body = string(body)
	s.doc = nil
	return nil
}

// WaitFor checks the fetched document once; a static page will not render anything later
func (s *httpSession) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errSessionClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if s.doc == nil {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(s.body))
		if err != nil {
			return werrors.New(werrors.ErrorTypeStructure, "failed to parse page", err)
		}
		s.doc = doc
	}
	if s.doc.Find(selector).Length() == 0 {
		return werrors.NewRenderTimeout(selector, timeout, nil)
	}
	return nil
}

func (s *httpSession) Content(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", errSessionClosed
	}
	return s.body, nil
}

func (s *httpSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.body = ""
	s.doc = nil
	return nil
}
