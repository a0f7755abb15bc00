package crawler

import (
	"context"
	"time"

	werrors "sjsage522/couponwatcher/pkg/errors"
)

// fakeSession serves canned pages keyed by URL
type fakeSession struct {
	pages       map[string]string
	navigateErr map[string]error
	current     string
	visited     []string
	closed      int
}

var _ Session = (*fakeSession)(nil)

func newFakeSession(pages map[string]string) *fakeSession {
	return &fakeSession{pages: pages, navigateErr: map[string]error{}}
}

func (s *fakeSession) Navigate(ctx context.Context, url string) error {
	s.visited = append(s.visited, url)
	if err := s.navigateErr[url]; err != nil {
		return err
	}
	s.current = url
	return nil
}

func (s *fakeSession) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	if _, ok := s.pages[s.current]; !ok {
		return werrors.NewRenderTimeout(selector, timeout, nil)
	}
	return nil
}

func (s *fakeSession) Content(ctx context.Context) (string, error) {
	return s.pages[s.current], nil
}

func (s *fakeSession) Close() error {
	s.closed++
	return nil
}
