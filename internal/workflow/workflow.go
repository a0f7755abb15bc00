// Package workflow runs one "latest update" check: fetch the newest post,
// report it, look for a coupon code on its page and remember the post.
package workflow

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"sjsage522/couponwatcher/helpers"
	"sjsage522/couponwatcher/internal/crawler"
	"sjsage522/couponwatcher/internal/store"
	"sjsage522/couponwatcher/logger"
	werrors "sjsage522/couponwatcher/pkg/errors"
)

// State is a step of an update run
type State string

const (
	StateIdle             State = "Idle"
	StateFetchingListing  State = "FetchingListing"
	StateCheckingNovelty  State = "CheckingNovelty"
	StateFetchingPostPage State = "FetchingPostPage"
	StateExtractingCoupon State = "ExtractingCoupon"
	StatePersisting       State = "Persisting"
	StateDone             State = "Done"
	StateFailed           State = "Failed"
)

// PostFetcher finds the newest post and loads post pages
type PostFetcher interface {
	GetLatestPostInfo(ctx context.Context, s crawler.Session) (*crawler.PostInfo, error)
	GetPostPage(ctx context.Context, s crawler.Session, link string) (string, error)
}

// Extractor finds a coupon code in post markup
type Extractor func(html string) (string, bool)

// Observer receives a summary of every finished run
type Observer interface {
	ObserveRun(state, errType string, couponFound, isNew bool, elapsed time.Duration)
}

// Result describes one finished run
type Result struct {
	RunID       string
	State       State
	FailedAt    State
	Post        *crawler.PostInfo
	PreviousURL string
	IsNew       bool
	Coupon      string
	Found       bool
	Err         error
	Duration    time.Duration
}

// Workflow orchestrates fetcher, extractor and store for one run at a time
type Workflow struct {
	sessions    crawler.SessionFactory
	fetcher     PostFetcher
	store       store.Store
	extract     Extractor
	diagnostics helpers.LoggerInterface
	observer    Observer
	now         func() time.Time
	newRunID    func() string
	log         *logger.Logger
}

// Option configures a Workflow
type Option func(*Workflow)

// WithDiagnostics sets where full failure diagnostics are written
func WithDiagnostics(d helpers.LoggerInterface) Option {
	return func(w *Workflow) { w.diagnostics = d }
}

// WithObserver sets the run observer
func WithObserver(o Observer) Option {
	return func(w *Workflow) { w.observer = o }
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(w *Workflow) { w.now = now }
}

// WithRunIDs overrides run id generation
func WithRunIDs(next func() string) Option {
	return func(w *Workflow) { w.newRunID = next }
}

// New creates a Workflow
func New(sessions crawler.SessionFactory, fetcher PostFetcher, st store.Store, extract Extractor, opts ...Option) *Workflow {
	w := &Workflow{
		sessions: sessions,
		fetcher:  fetcher,
		store:    st,
		extract:  extract,
		now:      time.Now,
		newRunID: func() string { return uuid.New().String() },
		log:      logger.ForWorkflow(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run performs one update run and returns its result. Any failure is returned
// as a *errors.WorkflowError tagged with the state it happened in; the stored
// record is only written once the coupon step has completed.
func (w *Workflow) Run(ctx context.Context, em Emitter) (res *Result, err error) {
	res = &Result{RunID: w.newRunID(), State: StateIdle}
	ctx = WithRunID(ctx, res.RunID)
	log := w.log.WithRunID(res.RunID)
	start := w.now()

	defer func() {
		if r := recover(); r != nil {
			err = werrors.NewInternal(fmt.Sprintf("panic: %v", r), fmt.Errorf("%s", debug.Stack()))
		}
		res.Duration = w.now().Sub(start)
		if err != nil {
			we := werrors.Classify(err, string(res.State))
			res.FailedAt = res.State
			res.State = StateFailed
			res.Err = we
			err = we
		}
	}()

	if err := em.Plain(ctx, MsgSearching); err != nil {
		return res, werrors.NewDelivery("failed to send status", err)
	}

	w.transition(log, res, StateFetchingListing)
	session, err := w.sessions.NewSession(ctx)
	if err != nil {
		return res, err
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("Failed to release session")
		}
	}()

	post, err := w.fetcher.GetLatestPostInfo(ctx, session)
	if err != nil {
		return res, err
	}
	res.Post = post

	w.transition(log, res, StateCheckingNovelty)
	prev, _ := w.store.Load()
	res.PreviousURL = prev
	res.IsNew = post.Link != prev
	log.Info().
		Str("link", post.Link).
		Bool("is_new", res.IsNew).
		Msg("Latest post checked")

	if err := em.Image(ctx, post.ImageURL); err != nil {
		return res, werrors.NewDelivery("failed to send image", err)
	}
	if err := em.Plain(ctx, FormatPost(post.Title, post.Link)); err != nil {
		return res, werrors.NewDelivery("failed to send post", err)
	}
	if err := em.Plain(ctx, MsgSearchingCoupon); err != nil {
		return res, werrors.NewDelivery("failed to send status", err)
	}

	w.transition(log, res, StateFetchingPostPage)
	html, err := w.fetcher.GetPostPage(ctx, session, post.Link)
	if err != nil {
		return res, err
	}

	w.transition(log, res, StateExtractingCoupon)
	res.Coupon, res.Found = w.extract(html)
	msg := MsgCouponNotFound
	if res.Found {
		msg = FormatCouponFound(res.Coupon)
	}
	if err := em.Plain(ctx, msg); err != nil {
		return res, werrors.NewDelivery("failed to send coupon result", err)
	}

	w.transition(log, res, StatePersisting)
	if err := w.store.Save(store.NewRecord(post.Link, post.Title, res.Coupon, res.Found, w.now())); err != nil {
		return res, err
	}

	w.transition(log, res, StateDone)
	return res, nil
}

// Handle is the top-level boundary for one trigger: it runs the workflow and,
// on failure, logs full diagnostics and sends a single generic error message.
func (w *Workflow) Handle(ctx context.Context, em Emitter) *Result {
	res, err := w.Run(ctx, em)
	w.observe(res)

	log := w.log.WithRunID(res.RunID)
	if err == nil {
		log.Info().
			Str("link", res.Post.Link).
			Bool("coupon_found", res.Found).
			Dur("duration", res.Duration).
			Msg("Update run finished")
		return res
	}

	event := log.Error().Err(err).Str("failed_at", string(res.FailedAt))
	if we, ok := werrors.As(err); ok {
		event = event.Str("error_type", string(we.Type)).Bool("retryable", we.IsRetryable())
	}
	event.Msg("Update run failed")

	if w.diagnostics != nil {
		w.diagnostics.LogError("workflow", err)
	}

	// the trigger may already be canceled; the user still gets an answer
	notifyCtx := WithRunID(context.WithoutCancel(ctx), res.RunID)
	if emitErr := em.Plain(notifyCtx, MsgFailed); emitErr != nil {
		log.Error().Err(emitErr).Msg("Failed to send failure notice")
	}
	return res
}

func (w *Workflow) transition(log *logger.Logger, res *Result, next State) {
	log.Debug().
		Str("from", string(res.State)).
		Str("to", string(next)).
		Msg("State transition")
	res.State = next
}

func (w *Workflow) observe(res *Result) {
	if w.observer == nil {
		return
	}
	errType := ""
	if res.Err != nil {
		errType = string(werrors.TypeOf(res.Err))
	}
	w.observer.ObserveRun(string(res.State), errType, res.Found, res.IsNew, res.Duration)
}
