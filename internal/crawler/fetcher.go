package crawler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"sjsage522/couponwatcher/helpers"
	"sjsage522/couponwatcher/logger"
	werrors "sjsage522/couponwatcher/pkg/errors"
	"sjsage522/couponwatcher/services/cache"
)

// Fetcher finds the newest post and loads post pages following a Rule
type Fetcher struct {
	Rule          *Rule
	CacheSvc      cache.CacheService
	BlockTime     time.Duration
	RenderTimeout time.Duration
	log           *logger.Logger
}

// NewFetcher creates a fetcher. A nil cacheSvc disables the rate-limit gate.
func NewFetcher(rule *Rule, cacheSvc cache.CacheService, blockTime, renderTimeout time.Duration) *Fetcher {
	return &Fetcher{
		Rule:          rule,
		CacheSvc:      cacheSvc,
		BlockTime:     blockTime,
		RenderTimeout: renderTimeout,
		log:           logger.ForFetcher().WithField("rule", rule.String()),
	}
}

// CacheKey is the rate-limit gate key for the rule's site
func (f *Fetcher) CacheKey() string {
	return "couponwatcher:" + f.Rule.Name + ":rate_limited"
}

// GetLatestPostInfo loads the listing page and extracts the first entry
func (f *Fetcher) GetLatestPostInfo(ctx context.Context, s Session) (*PostInfo, error) {
	html, err := f.load(ctx, s, f.Rule.ListingURL, f.Rule.Listing.Ready)
	if err != nil {
		return nil, err
	}

	post, err := ParseListing(html, f.Rule)
	if err != nil {
		return nil, err
	}

	f.log.Debug().
		Str("link", post.Link).
		Str("title", post.Title).
		Msg("Found latest post")
	return post, nil
}

// GetPostPage loads link and returns its rendered markup
func (f *Fetcher) GetPostPage(ctx context.Context, s Session, link string) (string, error) {
	return f.load(ctx, s, link, f.Rule.Post.Ready)
}

func (f *Fetcher) load(ctx context.Context, s Session, url, ready string) (string, error) {
	if err := f.checkGate(); err != nil {
		return "", err
	}

	if err := s.Navigate(ctx, url); err != nil {
		if errors.Is(err, helpers.ErrRateLimited) {
			f.closeGate()
			return "", werrors.NewRateLimit(url, f.BlockTime)
		}
		return "", err
	}

	if err := s.WaitFor(ctx, ready, f.RenderTimeout); err != nil {
		return "", err
	}

	return s.Content(ctx)
}

// checkGate fails fast while a previous rate limit is still in effect
func (f *Fetcher) checkGate() error {
	if f.CacheSvc == nil {
		return nil
	}
	if _, err := f.CacheSvc.Get(f.CacheKey()); err == nil {
		return werrors.NewRateLimit(f.Rule.Name, f.BlockTime)
	}
	return nil
}

func (f *Fetcher) closeGate() {
	if f.CacheSvc == nil || f.BlockTime <= 0 {
		return
	}
	value := []byte(strconv.Itoa(int(f.BlockTime / time.Second)))
	if err := f.CacheSvc.Set(f.CacheKey(), value, f.BlockTime); err != nil {
		f.log.Warn().Err(err).Msg("Failed to set rate limit gate")
		return
	}
	f.log.Warn().Dur("block_time", f.BlockTime).Msg("Rate limited, pausing requests")
}

// ParseListing extracts the first listing entry of html according to rule
func ParseListing(html string, rule *Rule) (*PostInfo, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, werrors.New(werrors.ErrorTypeStructure, "failed to parse listing page", err)
	}

	entry := doc.Find(rule.Listing.Entry).First()
	if entry.Length() == 0 {
		return nil, werrors.NewStructure(fmt.Sprintf("listing entry %q not found", rule.Listing.Entry))
	}

	linkSel := childPath(entry, rule.Listing.Link).First()
	href, ok := linkSel.Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return nil, werrors.NewStructure(fmt.Sprintf("post link %q not found", rule.Listing.Link))
	}
	link, err := helpers.ResolveURL(rule.ListingURL, href)
	if err != nil {
		return nil, werrors.New(werrors.ErrorTypeStructure, "invalid post link", err)
	}

	titleSel := linkSel
	if rule.Listing.Title != "" {
		titleSel = childPath(entry, rule.Listing.Title).First()
		if titleSel.Length() == 0 {
			return nil, werrors.NewStructure(fmt.Sprintf("post title %q not found", rule.Listing.Title))
		}
	}

	imgSel := childPath(entry, rule.Listing.Image).First()
	src := imageSource(imgSel)
	if src == "" {
		return nil, werrors.NewStructure(fmt.Sprintf("post image %q not found", rule.Listing.Image))
	}
	imageURL, err := helpers.ResolveURL(rule.ListingURL, src)
	if err != nil {
		return nil, werrors.New(werrors.ErrorTypeStructure, "invalid post image", err)
	}

	return &PostInfo{
		Link:     link,
		Title:    strings.TrimSpace(titleSel.Text()),
		ImageURL: imageURL,
	}, nil
}

// childPath follows a "a > b > c" path from sel one direct-child step at a time,
// so a matching element nested deeper in the entry is never picked up
func childPath(sel *goquery.Selection, path string) *goquery.Selection {
	for _, step := range strings.Split(path, ">") {
		sel = sel.ChildrenFiltered(strings.TrimSpace(step))
	}
	return sel
}

// imageSource prefers src and falls back to lazy-loading attributes
func imageSource(img *goquery.Selection) string {
	for _, attr := range []string{"src", "data-src", "data-lazy-src"} {
		if v, ok := img.Attr(attr); ok && strings.TrimSpace(v) != "" && !strings.HasPrefix(v, "data:") {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
