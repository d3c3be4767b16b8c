package relay

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haytac/neighbourhood-emoji/internal/config"
	"github.com/haytac/neighbourhood-emoji/internal/formatter"
	"github.com/haytac/neighbourhood-emoji/internal/notice"
	"github.com/haytac/neighbourhood-emoji/internal/scheduler"
	"github.com/haytac/neighbourhood-emoji/pkg/interfaces"
)

type fakeFetcher struct {
	mu      sync.Mutex
	results []*interfaces.FetchResult
	err     error
	calls   []string // etag seen on each call
	proxies []*config.Proxy
}

func (f *fakeFetcher) Fetch(_ context.Context, _, etag, _ string, proxy *config.Proxy) (*interfaces.FetchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, etag)
	f.proxies = append(f.proxies, proxy)
	if f.err != nil {
		return nil, f.err
	}
	r := f.results[0]
	if len(f.results) > 1 {
		f.results = f.results[1:]
	}
	return r, nil
}

type sent struct {
	token, chatID string
	parts         []interfaces.MessagePart
	proxy         *config.Proxy
}

type fakeNotifier struct {
	mu     sync.Mutex
	sent   []sent
	failOn int // 1-based send that fails, 0 never
	delay  time.Duration
}

func (n *fakeNotifier) Send(_ context.Context, botToken, chatID string, parts []interfaces.MessagePart, proxy *config.Proxy) error {
	time.Sleep(n.delay)
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failOn == len(n.sent)+1 {
		return errors.New("telegram unavailable")
	}
	n.sent = append(n.sent, sent{botToken, chatID, parts, proxy})
	return nil
}

func (n *fakeNotifier) Name() string { return "fake" }

func feedOf(items ...*gofeed.Item) *interfaces.FetchResult {
	return &interfaces.FetchResult{Feed: &gofeed.Feed{Items: items}, NewEtag: `"e1"`}
}

func testConfig() *config.AppConfig {
	return &config.AppConfig{
		Telegram:         config.TelegramConfig{BotToken: "123:abc"},
		Proxies:          []config.Proxy{{Name: "corp", Type: "http", Address: "proxy.local:3128"}},
		DefaultFeedProxy: "corp",
		SendBacklog:      true,
	}
}

var elm = &config.Source{Name: "elm", URL: "https://example.org/elm", ChatID: "-100"}

func TestRelaySendsNewNoticesOnce(t *testing.T) {
	cfg := testConfig()
	fetcher := &fakeFetcher{results: []*interfaces.FetchResult{feedOf(
		&gofeed.Item{GUID: "2", Title: "Party {{EMOJI:1F973}}"},
		&gofeed.Item{GUID: "1", Title: "Bins"},
	)}}
	notifier := &fakeNotifier{}
	w := NewWorker(cfg, notice.NewTracker(cfg.SendBacklog), fetcher, formatter.NewDefaultFormatter(), notifier)

	n, err := w.Relay(context.Background(), elm)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, notifier.sent, 2)
	assert.Equal(t, "123:abc", notifier.sent[0].token)
	assert.Equal(t, "-100", notifier.sent[0].chatID)
	assert.Nil(t, notifier.sent[0].proxy)
	assert.Equal(t, "<b>Party \U0001F973</b>", notifier.sent[1].parts[0].Text)

	n, err = w.Relay(context.Background(), elm)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, notifier.sent, 2)

	assert.Equal(t, []string{"", `"e1"`}, fetcher.calls)
	require.NotNil(t, fetcher.proxies[0])
	assert.Equal(t, "corp", fetcher.proxies[0].Name)
}

func TestRelayNotModified(t *testing.T) {
	cfg := testConfig()
	fetcher := &fakeFetcher{results: []*interfaces.FetchResult{{NewEtag: `"e1"`}}}
	notifier := &fakeNotifier{}
	w := NewWorker(cfg, notice.NewTracker(true), fetcher, formatter.NewDefaultFormatter(), notifier)

	n, err := w.Relay(context.Background(), elm)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, notifier.sent)
}

func TestRelayFetchError(t *testing.T) {
	w := NewWorker(testConfig(), notice.NewTracker(true), &fakeFetcher{err: errors.New("boom")}, formatter.NewDefaultFormatter(), &fakeNotifier{})
	_, err := w.Relay(context.Background(), elm)
	assert.ErrorContains(t, err, "fetching source elm")
}

func TestRelayStopsOnSendErrorAndRetries(t *testing.T) {
	cfg := testConfig()
	result := feedOf(&gofeed.Item{GUID: "1", Title: "a"}, &gofeed.Item{GUID: "2", Title: "b"})
	notifier := &fakeNotifier{failOn: 1}
	w := NewWorker(cfg, notice.NewTracker(true), &fakeFetcher{results: []*interfaces.FetchResult{result}}, formatter.NewDefaultFormatter(), notifier)

	_, err := w.Relay(context.Background(), elm)
	require.Error(t, err)
	assert.Empty(t, notifier.sent)

	notifier.failOn = 0
	n, err := w.Relay(context.Background(), elm)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRelayRequiresBotToken(t *testing.T) {
	cfg := testConfig()
	cfg.Telegram.BotToken = ""
	fetcher := &fakeFetcher{results: []*interfaces.FetchResult{feedOf(&gofeed.Item{GUID: "1"})}}
	w := NewWorker(cfg, notice.NewTracker(true), fetcher, formatter.NewDefaultFormatter(), &fakeNotifier{})

	_, err := w.Relay(context.Background(), elm)
	assert.ErrorIs(t, err, ErrNoBotToken)
}

func TestRelayDryRun(t *testing.T) {
	cfg := testConfig()
	cfg.DryRun = true
	cfg.Telegram.BotToken = ""
	fetcher := &fakeFetcher{results: []*interfaces.FetchResult{feedOf(&gofeed.Item{GUID: "1", Title: "x"})}}
	notifier := &fakeNotifier{}
	w := NewWorker(cfg, notice.NewTracker(true), fetcher, formatter.NewDefaultFormatter(), notifier)

	n, err := w.Relay(context.Background(), elm)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Empty(t, notifier.sent)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd...", truncate("abcdefghij", 7))
	assert.Equal(t, "ab", truncate("abcdefghij", 2))
	assert.Equal(t, "", truncate("abcdefghij", 0))
	assert.Equal(t, "", truncate("abcdefghij", -1))
}

func TestOverlappingRelaysSendEachNoticeOnce(t *testing.T) {
	cfg := testConfig()
	fetcher := &fakeFetcher{results: []*interfaces.FetchResult{feedOf(&gofeed.Item{GUID: "g1", Title: "Fete"})}}
	notifier := &fakeNotifier{delay: 200 * time.Millisecond}
	w := NewWorker(cfg, notice.NewTracker(true), fetcher, formatter.NewDefaultFormatter(), notifier)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := w.Relay(context.Background(), elm)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Len(t, notifier.sent, 1)
}

type failingFormatter struct{ calls int }

func (f *failingFormatter) FormatNotice(context.Context, *gofeed.Item, *config.Source, *config.Profile) ([]interfaces.MessagePart, error) {
	f.calls++
	return nil, errors.New("bad template")
}

func TestRelayMarksUnformattableNoticeSeen(t *testing.T) {
	cfg := testConfig()
	fetcher := &fakeFetcher{results: []*interfaces.FetchResult{feedOf(&gofeed.Item{GUID: "g1"})}}
	fmtr := &failingFormatter{}
	w := NewWorker(cfg, notice.NewTracker(true), fetcher, fmtr, &fakeNotifier{})

	n, err := w.Relay(context.Background(), elm)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = w.Relay(context.Background(), elm)
	require.NoError(t, err)
	assert.Equal(t, 1, fmtr.calls)
}

// blockingFetcher waits for cancellation before failing.
type blockingFetcher struct{ started chan struct{} }

func (f *blockingFetcher) Fetch(ctx context.Context, _, _, _ string, _ *config.Proxy) (*interfaces.FetchResult, error) {
	close(f.started)
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestScheduledRelayStopsWithContext(t *testing.T) {
	fetcher := &blockingFetcher{started: make(chan struct{})}
	w := NewWorker(testConfig(), notice.NewTracker(true), fetcher, formatter.NewDefaultFormatter(), &fakeNotifier{})

	s := scheduler.NewSourceScheduler()
	require.NoError(t, s.Add(&config.Source{Name: "elm", URL: "https://example.org/elm", FrequencySeconds: 60}, w.ProcessSource))
	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)

	select {
	case <-fetcher.started:
	case <-time.After(10 * time.Second):
		t.Fatal("relay was never started")
	}

	stopped := make(chan struct{})
	go func() {
		cancel()
		s.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop blocked on an in-flight relay after cancellation")
	}
}
