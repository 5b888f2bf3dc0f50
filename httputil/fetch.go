package httputil

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"fundaswipe/config"
)

// PageCache stores fetched page bodies keyed by normalized URL.
type PageCache interface {
	Get(key string, ttl time.Duration) (string, bool)
	Put(key, body string) error
}

// Fallback fetches a page when every relay has failed, typically by
// driving a real browser.
type Fallback interface {
	Fetch(ctx context.Context, target string) (string, error)
}

// FetchExhaustedError is returned when every relay in the rotation has
// been tried for a single request and none produced a usable body.
type FetchExhaustedError struct {
	LastRelay string
	Reason    string
}

func (e *FetchExhaustedError) Error() string {
	return fmt.Sprintf("all relays exhausted (last: %s): %s", e.LastRelay, e.Reason)
}

var botMarkers = []string{
	"captcha",
	"challenge",
	"blocked",
	"Access Denied",
}

// Detail pages must never be served from a slot another listing could
// share, so anything under these path segments skips the cache.
var cacheBypassSegments = []string{"/koop/", "/huur/"}

const (
	sessionPauseMin = 5 * time.Second
	sessionPauseMax = 10 * time.Second
	relayPauseMin   = 1500 * time.Millisecond
	relayPauseMax   = 3 * time.Second
)

// FetchClient fetches pages through a rotation of CORS relays with a
// minimum interval between network hits, a soft per-session fetch cap,
// and an optional page cache. The rotation index advances by one or
// two on every call so consecutive requests don't hammer one relay.
type FetchClient struct {
	relays   []config.Relay
	client   *http.Client
	cache    PageCache
	cacheTTL time.Duration
	fallback Fallback

	minInterval   time.Duration
	maxPerSession int

	mu        sync.Mutex
	relayIdx  int
	lastFetch time.Time
	fetched   int

	// injectable for tests
	now       func() time.Time
	after     func(time.Duration) <-chan time.Time
	randFloat func() float64
}

func NewFetchClient(cfg config.FetchConfig, relays []config.Relay, cache PageCache) *FetchClient {
	idx := 0
	if len(relays) > 0 {
		idx = rand.Intn(len(relays))
	}
	return &FetchClient{
		relays:        relays,
		client:        &http.Client{Timeout: 20 * time.Second},
		cache:         cache,
		cacheTTL:      cfg.CacheTTL,
		minInterval:   cfg.MinInterval,
		maxPerSession: cfg.MaxPerSession,
		relayIdx:      idx,
		now:           time.Now,
		after:         time.After,
		randFloat:     rand.Float64,
	}
}

// SetFallback installs a last-resort fetcher used after relay
// exhaustion.
func (f *FetchClient) SetFallback(fb Fallback) {
	f.fallback = fb
}

// ResetSession clears the per-session fetch counter.
func (f *FetchClient) ResetSession() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = 0
}

// CacheKey normalizes a URL for cache lookups by stripping the `_`
// cache-buster parameter.
func CacheKey(target string) string {
	u, err := url.Parse(target)
	if err != nil {
		return target
	}
	q := u.Query()
	q.Del("_")
	u.RawQuery = q.Encode()
	return u.String()
}

// AddCacheBuster appends a `_` timestamp parameter so intermediate
// caches (the relays run their own) never serve a stale copy.
func AddCacheBuster(target string) string {
	u, err := url.Parse(target)
	if err != nil {
		return target
	}
	q := u.Query()
	q.Set("_", fmt.Sprintf("%d", time.Now().UnixMilli()))
	u.RawQuery = q.Encode()
	return u.String()
}

func bypassesCache(target string) bool {
	u, err := url.Parse(target)
	if err != nil {
		return false
	}
	for _, seg := range cacheBypassSegments {
		if strings.Contains(u.Path, seg) {
			return true
		}
	}
	return false
}

// Get returns the body of target, from cache when fresh, otherwise
// through the relay rotation. Cache hits do not count against the
// session cap or the rate limit. Detail-page URLs always go to the
// network.
func (f *FetchClient) Get(ctx context.Context, target string) (string, error) {
	key := CacheKey(target)
	cacheable := f.cache != nil && !bypassesCache(target)
	if cacheable {
		if body, ok := f.cache.Get(key, f.cacheTTL); ok {
			return body, nil
		}
	}

	f.mu.Lock()
	if f.maxPerSession > 0 && f.fetched >= f.maxPerSession {
		f.mu.Unlock()
		log.Printf("Warning: session fetch cap reached (%d), pausing", f.maxPerSession)
		if err := f.pause(ctx, sessionPauseMin, sessionPauseMax); err != nil {
			return "", err
		}
		f.mu.Lock()
		f.fetched = 0
	}
	if wait := f.minInterval - f.now().Sub(f.lastFetch); wait > 0 {
		f.mu.Unlock()
		if err := f.pause(ctx, wait, f.minInterval); err != nil {
			return "", err
		}
		f.mu.Lock()
	}
	f.lastFetch = f.now()
	f.fetched++
	start := f.advanceRotation()
	f.mu.Unlock()

	var lastRelay, lastReason string
	for i := 0; i < len(f.relays); i++ {
		if i > 0 {
			if err := f.pause(ctx, relayPauseMin, relayPauseMax); err != nil {
				return "", err
			}
		}
		relay := f.relays[(start+i)%len(f.relays)]
		body, err := f.fetchVia(ctx, relay, target)
		if err != nil {
			log.Printf("Warning: relay %s failed for %s: %v", relay.Name, target, err)
			lastRelay, lastReason = relay.Name, err.Error()
			continue
		}

		if cacheable {
			if err := f.cache.Put(key, body); err != nil {
				log.Printf("Warning: cache write failed for %s: %v", key, err)
			}
		}
		return body, nil
	}

	if f.fallback != nil {
		log.Printf("All relays failed for %s, trying browser fallback", target)
		body, err := f.fallback.Fetch(ctx, target)
		if err == nil && !looksBlocked(body) {
			if cacheable {
				f.cache.Put(key, body)
			}
			return body, nil
		}
		if err != nil {
			lastRelay, lastReason = "browser", err.Error()
		}
	}

	return "", &FetchExhaustedError{LastRelay: lastRelay, Reason: lastReason}
}

// advanceRotation moves the relay index forward by one or two. Callers
// must hold f.mu.
func (f *FetchClient) advanceRotation() int {
	if len(f.relays) == 0 {
		return 0
	}
	step := 1
	if f.randFloat() <= 0.5 {
		step = 2
	}
	f.relayIdx = (f.relayIdx + step) % len(f.relays)
	return f.relayIdx
}

// pause waits for a duration drawn from a clamped normal distribution
// over [min, max], so request timing doesn't form a mechanical pattern.
// Cancellation interrupts the wait.
func (f *FetchClient) pause(ctx context.Context, min, max time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-f.after(f.jitter(min, max)):
		return nil
	}
}

func (f *FetchClient) jitter(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	mean := float64(min+max) / 2
	stdDev := float64(max-min) / 6

	u1 := f.randFloat()
	if u1 <= 0 {
		u1 = 1e-9
	}
	u2 := f.randFloat()
	z := math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)

	d := time.Duration(mean + z*stdDev)
	if d < min {
		return min
	}
	if d > max {
		return max
	}
	return d
}

func (f *FetchClient) fetchVia(ctx context.Context, relay config.Relay, target string) (string, error) {
	relayURL := relay.URL + url.QueryEscape(AddCacheBuster(target))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, relayURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "text/html,application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return "", fmt.Errorf("reading body: %w", err)
	}

	body := string(raw)
	if relay.JSONField != "" {
		body, err = unwrapEnvelope(raw, relay.JSONField)
		if err != nil {
			return "", fmt.Errorf("unwrapping envelope: %w", err)
		}
	}

	if !looksLikeContent(body) {
		return "", fmt.Errorf("unexpected response (%d bytes)", len(body))
	}
	if looksBlocked(body) {
		return "", fmt.Errorf("bot challenge detected")
	}

	return body, nil
}

func unwrapEnvelope(raw []byte, field string) (string, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return "", err
	}
	inner, ok := envelope[field]
	if !ok {
		return "", fmt.Errorf("field %q missing", field)
	}
	var body string
	if err := json.Unmarshal(inner, &body); err != nil {
		return "", err
	}
	return body, nil
}

// looksLikeContent requires at least a shred of evidence that the
// relay forwarded a real page rather than its own error blob.
func looksLikeContent(body string) bool {
	if len(strings.TrimSpace(body)) < 200 {
		return false
	}
	return strings.Contains(body, "<!DOCTYPE") ||
		strings.Contains(body, "<html") ||
		strings.Contains(strings.ToLower(body), "funda")
}

// looksBlocked reports whether a body reads like a bot challenge page.
// Positive evidence of real content (a euro sign or the site marker)
// overrides the markers, since listing descriptions occasionally
// mention words like "blocked".
func looksBlocked(body string) bool {
	if strings.Contains(body, "€") || strings.Contains(strings.ToLower(body), "funda") {
		return false
	}
	lower := strings.ToLower(body)
	for _, marker := range botMarkers {
		if strings.Contains(lower, strings.ToLower(marker)) {
			return true
		}
	}
	return false
}
