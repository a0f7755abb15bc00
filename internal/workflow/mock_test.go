package workflow

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"sjsage522/couponwatcher/internal/crawler"
)

type fakeSession struct {
	closed int
}

func (s *fakeSession) Navigate(ctx context.Context, url string) error { return nil }

func (s *fakeSession) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	return nil
}

func (s *fakeSession) Content(ctx context.Context) (string, error) { return "", nil }

func (s *fakeSession) Close() error {
	s.closed++
	return nil
}

type fakeFactory struct {
	session *fakeSession
	err     error
	started int
}

func (f *fakeFactory) NewSession(ctx context.Context) (crawler.Session, error) {
	f.started++
	if f.err != nil {
		return nil, f.err
	}
	return f.session, nil
}

type fakeFetcher struct {
	post      *crawler.PostInfo
	listErr   error
	page      string
	pageErr   error
	panicPage bool
	pages     []string
}

func (f *fakeFetcher) GetLatestPostInfo(ctx context.Context, s crawler.Session) (*crawler.PostInfo, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.post, nil
}

func (f *fakeFetcher) GetPostPage(ctx context.Context, s crawler.Session, link string) (string, error) {
	f.pages = append(f.pages, link)
	if f.panicPage {
		panic("boom")
	}
	if f.pageErr != nil {
		return "", f.pageErr
	}
	return f.page, nil
}

// recordingEmitter keeps every message as "plain:<text>" or "image:<url>"
type recordingEmitter struct {
	mu     sync.Mutex
	sent   []string
	runIDs []string
	failOn string
}

var errDelivery = errors.New("chat host unavailable")

func (e *recordingEmitter) record(ctx context.Context, entry string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.failOn != "" && strings.HasPrefix(entry, e.failOn) {
		return errDelivery
	}
	e.sent = append(e.sent, entry)
	e.runIDs = append(e.runIDs, RunIDFrom(ctx))
	return nil
}

func (e *recordingEmitter) Plain(ctx context.Context, text string) error {
	return e.record(ctx, "plain:"+text)
}

func (e *recordingEmitter) Image(ctx context.Context, url string) error {
	return e.record(ctx, "image:"+url)
}

func (e *recordingEmitter) count(entry string) int {
	n := 0
	for _, s := range e.sent {
		if s == entry {
			n++
		}
	}
	return n
}

type observation struct {
	state, errType     string
	couponFound, isNew bool
}

type recordingObserver struct {
	runs []observation
}

func (o *recordingObserver) ObserveRun(state, errType string, couponFound, isNew bool, elapsed time.Duration) {
	o.runs = append(o.runs, observation{state, errType, couponFound, isNew})
}

type recordingDiagnostics struct {
	errs []error
}

func (d *recordingDiagnostics) LogError(component string, err error) {
	d.errs = append(d.errs, err)
}

func (d *recordingDiagnostics) LogInfo(format string, args ...interface{}) {}
