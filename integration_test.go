package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/couponwatcher/config"
	"sjsage522/couponwatcher/internal/store"
	"sjsage522/couponwatcher/internal/workflow"
	werrors "sjsage522/couponwatcher/pkg/errors"
	"sjsage522/couponwatcher/services/publisher"
)

const postHTML = `<!DOCTYPE html>
<html><body><main><article>
<h1>Season 12 Update Notes</h1>
<p>Thanks for playing! Coupon Code: <span>x</span> <b>SAVE20</b></p>
</article></main></body></html>`

const ruleTemplate = `name: smashlegends-update
version: 2
listing_url: %s/category/update/
listing:
  ready: main section article
  entry: body > div:nth-of-type(1) > div:nth-of-type(2) > main > div > section > div > div:nth-of-type(1) > article:nth-of-type(1)
  link: div:nth-of-type(2) > h2 > a
  title: div:nth-of-type(2) > h2 > a
  image: div:nth-of-type(1) > ul > li > div > a > img
post:
  ready: main article
`

// newSite serves the listing fixture and one post page
func newSite(t *testing.T, listingStatus int) *httptest.Server {
	t.Helper()
	listing, err := os.ReadFile(filepath.Join("internal", "crawler", "testdata", "listing.html"))
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.HandleFunc("/category/update/", func(w http.ResponseWriter, r *http.Request) {
		if listingStatus != http.StatusOK {
			w.WriteHeader(listingStatus)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(listing)
	})
	mux.HandleFunc("/update/season-12/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(postHTML))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

// testConfig points the application at server through a rule file in a temp data dir
func testConfig(t *testing.T, server *httptest.Server, emitter string) *config.Config {
	t.Helper()
	dataDir := t.TempDir()
	rulesFile := filepath.Join(dataDir, "rules.yaml")
	require.NoError(t, os.WriteFile(rulesFile, []byte(fmt.Sprintf(ruleTemplate, server.URL)), 0o644))

	t.Setenv("DATA_DIR", dataDir)
	t.Setenv("RECORD_FILE", "")
	t.Setenv("ERROR_LOG_FILE", "")
	t.Setenv("RULES_FILE", rulesFile)
	t.Setenv("SESSION_MODE", config.SessionModeHTTP)
	t.Setenv("EMITTER", emitter)
	t.Setenv("MEMCACHE_ADDR", "")

	cfg := config.LoadConfig()
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestUpdateEndToEnd(t *testing.T) {
	server := newSite(t, http.StatusOK)
	cfg := testConfig(t, server, config.EmitterConsole)

	var out bytes.Buffer
	require.NoError(t, runUpdate(context.Background(), cfg, &out))

	link := server.URL + "/update/season-12/"
	expected := strings.Join([]string{
		workflow.MsgSearching,
		"[image] " + server.URL + "/wp-content/uploads/season-12.jpg",
		workflow.FormatPost("Season 12 Update Notes", link),
		workflow.MsgSearchingCoupon,
		workflow.FormatCouponFound("SAVE20"),
	}, "\n") + "\n"
	assert.Equal(t, expected, out.String())

	rec, err := store.NewFileStore(cfg.RecordFile).LoadRecord()
	require.NoError(t, err)
	assert.Equal(t, link, rec.URL)
	assert.Equal(t, "Season 12 Update Notes", rec.Title)
	code, ok := rec.CouponCode()
	assert.True(t, ok)
	assert.Equal(t, "SAVE20", code)

	// status prints the same record
	out.Reset()
	require.NoError(t, runStatus(cfg, &out))
	assert.Contains(t, out.String(), `"url": "`+link+`"`)
	assert.Contains(t, out.String(), `"coupon": "SAVE20"`)
}

func TestUpdateRateLimited(t *testing.T) {
	server := newSite(t, http.StatusTooManyRequests)
	cfg := testConfig(t, server, config.EmitterConsole)

	var out bytes.Buffer
	err := runUpdate(context.Background(), cfg, &out)
	require.Error(t, err)
	assert.Equal(t, werrors.ErrorTypeRateLimit, werrors.TypeOf(err))

	assert.Equal(t, workflow.MsgSearching+"\n"+workflow.MsgFailed+"\n", out.String())

	_, err = os.Stat(cfg.RecordFile)
	assert.True(t, os.IsNotExist(err))

	diag, err := os.ReadFile(cfg.ErrorLogFile)
	require.NoError(t, err)
	assert.Contains(t, string(diag), "[workflow]")
	assert.Contains(t, string(diag), "rate_limit")
}

func TestStatusCommand(t *testing.T) {
	server := newSite(t, http.StatusOK)
	testConfig(t, server, config.EmitterConsole)

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"status"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "No update has been recorded yet\n", out.String())
}

func TestInvalidConfiguration(t *testing.T) {
	t.Setenv("SESSION_MODE", "carrier-pigeon")

	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{CommandUpdate})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, werrors.ErrorTypeConfiguration, werrors.TypeOf(err))
}

func TestUpdateThroughRedis(t *testing.T) {
	server := newSite(t, http.StatusOK)
	cfg := testConfig(t, server, config.EmitterRedis)
	cfg.RedisStream = "couponwatcher:test_e2e"

	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	defer client.Close()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skip("Redis is not available, skipping test")
	}
	client.Del(ctx, cfg.RedisStream)
	defer client.Del(ctx, cfg.RedisStream)

	require.NoError(t, runUpdate(ctx, cfg, &bytes.Buffer{}))

	entries, err := client.XRange(ctx, cfg.RedisStream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 5)

	kinds := make([]string, 0, len(entries))
	runIDs := map[string]bool{}
	for _, entry := range entries {
		raw, err := base64.StdEncoding.DecodeString(entry.Values[publisher.MessageKey].(string))
		require.NoError(t, err)

		var msg publisher.Message
		require.NoError(t, json.Unmarshal(raw, &msg))
		assert.Equal(t, CommandUpdate, msg.Command)
		kinds = append(kinds, msg.Kind)
		runIDs[msg.RunID] = true
	}
	assert.Equal(t, []string{"plain", "image", "plain", "plain", "plain"}, kinds)
	assert.Len(t, runIDs, 1)
}
