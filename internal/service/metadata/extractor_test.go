package metadata

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linksaver/internal/domain"
)

func createTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

// mockTransport serves every outbound request from handler and records it
type mockTransport struct {
	handler http.Handler

	mu    sync.Mutex
	calls []string
}

func (m *mockTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req.Method+" "+req.URL.String())
	m.mu.Unlock()

	rec := httptest.NewRecorder()
	m.handler.ServeHTTP(rec, req)
	if err := req.Context().Err(); err != nil {
		return nil, err
	}
	resp := rec.Result()
	resp.Request = req
	return resp, nil
}

func (m *mockTransport) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// site describes the fake internet the extractor sees
type site struct {
	pageStatus   int
	pageType     string
	pageBody     string
	liveIcons    map[string]bool
	readerBody   string
	readerStatus int
	readerDelay  time.Duration
}

func (s *site) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Host == "r.jina.ai" {
		if s.readerDelay > 0 {
			select {
			case <-r.Context().Done():
				return
			case <-time.After(s.readerDelay):
			}
		}
		if s.readerStatus != 0 {
			w.WriteHeader(s.readerStatus)
		}
		io.WriteString(w, s.readerBody)
		return
	}

	if r.Method == http.MethodHead {
		if s.liveIcons[r.URL.String()] {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
		return
	}

	contentType := s.pageType
	if contentType == "" {
		contentType = "text/html; charset=utf-8"
	}
	w.Header().Set("Content-Type", contentType)
	if s.pageStatus != 0 {
		w.WriteHeader(s.pageStatus)
	}
	io.WriteString(w, s.pageBody)
}

func newTestExtractor(s *site, opts ...Option) (*Extractor, *mockTransport) {
	transport := &mockTransport{handler: s}
	client := &http.Client{Transport: transport}
	base := []Option{
		WithHTTPClient(client),
		WithReader(NewRemoteReader(DefaultReaderBaseURL, "", client)),
	}
	return NewExtractor(createTestLogger(), append(base, opts...)...), transport
}

func TestExtractEndToEnd(t *testing.T) {
	s := &site{
		pageBody:   `<html><head><title>Example Domain</title><link rel="icon" href="/favicon.ico"></head></html>`,
		liveIcons:  map[string]bool{"https://example.com/favicon.ico": true},
		readerBody: `{"data":{"content":"This domain is for use in illustrative examples in documents.\n\nYou may use this domain in literature without prior coordination."}}`,
	}
	extractor, transport := newTestExtractor(s)

	md, err := extractor.Extract(context.Background(), "https://example.com")
	require.NoError(t, err)

	assert.Equal(t, "Example Domain", md.Title)
	require.NotNil(t, md.Favicon)
	assert.Equal(t, "https://example.com/favicon.ico", *md.Favicon)
	assert.Equal(t, "This domain is for use in illustrative examples in documents. You may use this domain in literature without prior coordination.", md.Summary)

	calls := transport.Calls()
	assert.Contains(t, calls, "GET https://example.com")
	assert.Contains(t, calls, "HEAD https://example.com/favicon.ico")
	assert.Contains(t, calls, "GET https://r.jina.ai/https%3A%2F%2Fexample.com")
}

func TestExtractInvalidURLMakesNoRequests(t *testing.T) {
	inputs := []string{"not-a-url", "", "ftp://example.com", "javascript:alert(1)", "example.com"}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			extractor, transport := newTestExtractor(&site{})

			md, err := extractor.Extract(context.Background(), input)
			assert.ErrorIs(t, err, ErrInvalidURL)
			assert.Equal(t, domain.LinkMetadata{
				Title:   "Invalid URL",
				Summary: "Failed to process this link.",
			}, md)
			assert.Empty(t, transport.Calls())
		})
	}
}

func TestExtractFetchFailures(t *testing.T) {
	tests := []struct {
		name string
		site *site
	}{
		{name: "not found", site: &site{pageStatus: http.StatusNotFound, pageBody: "<title>Missing</title>"}},
		{name: "server error", site: &site{pageStatus: http.StatusInternalServerError}},
		{name: "forbidden without renderer", site: &site{pageStatus: http.StatusForbidden}},
		{name: "not html", site: &site{pageType: "application/pdf", pageBody: "%PDF-1.4"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			extractor, transport := newTestExtractor(tt.site)

			md, err := extractor.Extract(context.Background(), "https://blog.example.com/post/1")
			require.NoError(t, err)
			assert.Equal(t, "blog.example.com", md.Title)
			assert.Nil(t, md.Favicon)
			assert.Equal(t, "Unable to generate summary for this link.", md.Summary)
			assert.Len(t, transport.Calls(), 1, "no probes or reader calls after a failed fetch")
		})
	}
}

func TestExtractHostnameTitle(t *testing.T) {
	s := &site{
		pageBody:   `<html><body><p>No head at all</p></body></html>`,
		readerBody: `{"data":{"content":"Body text."}}`,
	}
	extractor, _ := newTestExtractor(s)

	md, err := extractor.Extract(context.Background(), "https://docs.example.org/guide")
	require.NoError(t, err)
	assert.Equal(t, "docs.example.org", md.Title)
	assert.Nil(t, md.Favicon)
	assert.Equal(t, "Body text.", md.Summary)
}

func TestExtractOGTitlePrecedence(t *testing.T) {
	s := &site{
		pageBody: `<html><head><title>Different</title><meta property="og:title" content="Example Title"></head></html>`,
	}
	extractor, _ := newTestExtractor(s, WithReader(nil))

	md, err := extractor.Extract(context.Background(), "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, "Example Title", md.Title)
	assert.Equal(t, placeholder, md.Summary)
}

func TestExtractSummarizerTimeout(t *testing.T) {
	t.Run("og:description used", func(t *testing.T) {
		s := &site{
			pageBody:    `<html><head><title>T</title><meta property="og:description" content="Described by the page."></head></html>`,
			readerBody:  `{"data":{"content":"too late"}}`,
			readerDelay: time.Second,
		}
		extractor, _ := newTestExtractor(s, WithTimeouts(0, 0, 30*time.Millisecond))

		start := time.Now()
		md, err := extractor.Extract(context.Background(), "https://example.com")
		require.NoError(t, err)
		assert.Equal(t, "Described by the page.", md.Summary)
		assert.Less(t, time.Since(start), 900*time.Millisecond)
	})

	t.Run("placeholder without description", func(t *testing.T) {
		s := &site{
			pageBody:    `<html><head><title>T</title></head></html>`,
			readerDelay: time.Second,
		}
		extractor, _ := newTestExtractor(s, WithTimeouts(0, 0, 30*time.Millisecond))

		md, err := extractor.Extract(context.Background(), "https://example.com")
		require.NoError(t, err)
		assert.Equal(t, "No summary available", md.Summary)
	})
}

func TestExtractSummarizerBadResponse(t *testing.T) {
	s := &site{
		pageBody:     `<html><head><meta name="description" content="Meta description."></head></html>`,
		readerStatus: http.StatusTooManyRequests,
		readerBody:   `{"data":{"content":"ignored"}}`,
	}
	extractor, _ := newTestExtractor(s)

	md, err := extractor.Extract(context.Background(), "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, "Meta description.", md.Summary)
}

func TestExtractFaviconFallsThroughCandidates(t *testing.T) {
	s := &site{
		pageBody: `<html><head>
			<link rel="icon" href="/dead.png">
			<link rel="apple-touch-icon" href="/touch.png">
		</head></html>`,
		liveIcons: map[string]bool{"https://example.com/touch.png": true},
	}
	extractor, transport := newTestExtractor(s, WithReader(nil))

	md, err := extractor.Extract(context.Background(), "https://example.com/")
	require.NoError(t, err)
	require.NotNil(t, md.Favicon)
	assert.Equal(t, "https://example.com/touch.png", *md.Favicon)
	assert.NotContains(t, transport.Calls(), "HEAD https://example.com/favicon.ico")
}

func TestExtractNoLiveFavicon(t *testing.T) {
	s := &site{pageBody: `<html><head><link rel="icon" href="/dead.png"></head></html>`}
	extractor, _ := newTestExtractor(s, WithReader(nil))

	md, err := extractor.Extract(context.Background(), "https://example.com/")
	require.NoError(t, err)
	assert.Nil(t, md.Favicon)
}

type fakeRenderer struct {
	html  string
	err   error
	calls int
}

func (f *fakeRenderer) Render(_ context.Context, target *url.URL) (*Page, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &Page{URL: target, ContentType: "text/html", Body: []byte(f.html)}, nil
}

func TestExtractRendererFallback(t *testing.T) {
	t.Run("blocked page rendered", func(t *testing.T) {
		renderer := &fakeRenderer{html: `<title>Rendered Title</title>`}
		extractor, _ := newTestExtractor(&site{pageStatus: http.StatusForbidden}, WithRenderer(renderer), WithReader(nil))

		md, err := extractor.Extract(context.Background(), "https://example.com")
		require.NoError(t, err)
		assert.Equal(t, 1, renderer.calls)
		assert.Equal(t, "Rendered Title", md.Title)
	})

	t.Run("render failure keeps hostname fallback", func(t *testing.T) {
		renderer := &fakeRenderer{err: fmt.Errorf("chrome missing")}
		extractor, _ := newTestExtractor(&site{pageStatus: http.StatusTooManyRequests}, WithRenderer(renderer))

		md, err := extractor.Extract(context.Background(), "https://example.com")
		require.NoError(t, err)
		assert.Equal(t, "example.com", md.Title)
		assert.Equal(t, domain.SummaryUnavailable, md.Summary)
	})

	t.Run("not consulted for 404", func(t *testing.T) {
		renderer := &fakeRenderer{html: `<title>x</title>`}
		extractor, _ := newTestExtractor(&site{pageStatus: http.StatusNotFound}, WithRenderer(renderer))

		_, err := extractor.Extract(context.Background(), "https://example.com")
		require.NoError(t, err)
		assert.Zero(t, renderer.calls)
	})
}

type panicReader struct{}

func (panicReader) Read(context.Context, *url.URL, *Page) (string, error) {
	panic("reader exploded")
}

func TestExtractRecoversStagePanic(t *testing.T) {
	s := &site{pageBody: `<title>Still Here</title>`}
	extractor, _ := newTestExtractor(s, WithReader(panicReader{}))

	md, err := extractor.Extract(context.Background(), "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, "Still Here", md.Title)
	assert.Equal(t, placeholder, md.Summary)
}

func TestExtractConcurrentCalls(t *testing.T) {
	s := &site{
		pageBody:   `<html><head><title>Shared</title></head></html>`,
		liveIcons:  map[string]bool{"https://example.com/favicon.ico": true},
		readerBody: `{"data":{"content":"Shared summary."}}`,
	}
	extractor, _ := newTestExtractor(s)

	var wg sync.WaitGroup
	results := make([]domain.LinkMetadata, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = extractor.Extract(context.Background(), "https://example.com")
		}(i)
	}
	wg.Wait()

	for _, md := range results {
		assert.Equal(t, "Shared", md.Title)
		assert.Equal(t, "Shared summary.", md.Summary)
		require.NotNil(t, md.Favicon)
	}
}

func TestExtractLongTitle(t *testing.T) {
	s := &site{pageBody: `<title>` + strings.Repeat("x", 250) + `</title>`}
	extractor, _ := newTestExtractor(s, WithReader(nil))

	md, err := extractor.Extract(context.Background(), "https://example.com")
	require.NoError(t, err)
	assert.Len(t, md.Title, 200)
	assert.True(t, strings.HasSuffix(md.Title, "..."))
}
