package metadata

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"

	"linksaver/internal/domain"
	"linksaver/internal/pkg/netguard"
)

// Default stage timeouts
const (
	DefaultPageTimeout    = 8 * time.Second
	DefaultProbeTimeout   = 3 * time.Second
	DefaultSummaryTimeout = 15 * time.Second
)

const placeholder = domain.SummaryPlaceholder

// Extractor derives a title, favicon and summary for a URL.
// It holds only configuration, so one Extractor may serve any number of
// concurrent Extract calls.
type Extractor struct {
	logger     *slog.Logger
	httpClient *http.Client
	reader     Reader
	renderer   Renderer

	pageTimeout    time.Duration
	probeTimeout   time.Duration
	summaryTimeout time.Duration
}

// Option configures an Extractor
type Option func(*Extractor)

// WithHTTPClient sets the client used for the page fetch and favicon probes
func WithHTTPClient(c *http.Client) Option {
	return func(e *Extractor) { e.httpClient = c }
}

// WithReader sets the summary source. nil disables it and summaries come
// from the page description only.
func WithReader(r Reader) Option {
	return func(e *Extractor) { e.reader = r }
}

// WithRenderer enables browser rendering for pages that refuse the plain fetch
func WithRenderer(r Renderer) Option {
	return func(e *Extractor) { e.renderer = r }
}

// WithTimeouts overrides the stage timeouts; zero values keep the defaults
func WithTimeouts(page, probe, summary time.Duration) Option {
	return func(e *Extractor) {
		if page > 0 {
			e.pageTimeout = page
		}
		if probe > 0 {
			e.probeTimeout = probe
		}
		if summary > 0 {
			e.summaryTimeout = summary
		}
	}
}

// NewExtractor creates an extractor. Without options it fetches pages with an
// unrestricted client and summarizes through the hosted reader service.
func NewExtractor(logger *slog.Logger, opts ...Option) *Extractor {
	e := &Extractor{
		logger:         logger,
		httpClient:     NewHTTPClient(false),
		reader:         NewRemoteReader(DefaultReaderBaseURL, "", &http.Client{}),
		pageTimeout:    DefaultPageTimeout,
		probeTimeout:   DefaultProbeTimeout,
		summaryTimeout: DefaultSummaryTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewHTTPClient builds the client for page fetches and favicon probes.
// With blockPrivate set, connections to loopback, private and link-local
// addresses are refused, redirects included.
func NewHTTPClient(blockPrivate bool) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if blockPrivate {
		transport.Proxy = nil
		transport.DialContext = netguard.NewDialer(10 * time.Second).DialContext
	}
	return &http.Client{
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return errors.New("stopped after 10 redirects")
			}
			return nil
		},
	}
}

// Extract runs the whole pipeline. The returned metadata is always usable;
// the only error is ErrInvalidURL, which comes with the invalid-URL record.
func (e *Extractor) Extract(ctx context.Context, rawURL string) (md domain.LinkMetadata, err error) {
	target, err := Validate(rawURL)
	if err != nil {
		return InvalidURLMetadata(), err
	}

	logger := e.logger.With("url", target.String())
	fallback := UnavailableMetadata(target)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Metadata pipeline panicked", "panic", r)
			md, err = fallback, nil
		}
	}()

	page, err := e.fetch(ctx, target, logger)
	if err != nil {
		logger.Warn("Failed to fetch page", "error", err)
		return fallback, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		logger.Warn("Failed to parse page", "error", err)
		return fallback, nil
	}

	md.Title = extractTitle(doc, target.Hostname())
	description := extractDescription(doc)
	candidates := faviconCandidates(doc, page.URL)

	var g errgroup.Group
	g.Go(func() (err error) {
		defer recoverStage(logger, "favicon", &err)
		md.Favicon = e.findFavicon(ctx, candidates, logger)
		return nil
	})
	g.Go(func() (err error) {
		md.Summary = placeholder
		defer recoverStage(logger, "summary", &err)
		s := &summarizer{reader: e.reader, timeout: e.summaryTimeout}
		summary, sumErr := s.summarize(ctx, target, page, description)
		if sumErr != nil {
			logger.Info("Summarizer failed, using fallback", "error", sumErr)
		}
		md.Summary = summary
		return nil
	})
	if err := g.Wait(); err != nil {
		logger.Warn("Metadata stage failed", "error", err)
	}

	if md.Summary == "" {
		md.Summary = placeholder
	}

	logger.Debug("Metadata extracted",
		"title", md.Title,
		"has_favicon", md.Favicon != nil,
		"has_summary", md.HasSummary(),
	)
	return md, nil
}

// fetch loads the page, retrying through the renderer when the site
// refuses automated clients.
func (e *Extractor) fetch(ctx context.Context, target *url.URL, logger *slog.Logger) (*Page, error) {
	page, err := FetchPage(ctx, e.httpClient, target, e.pageTimeout)
	if err == nil {
		return page, nil
	}

	var httpErr *HTTPError
	if e.renderer == nil || !errors.As(err, &httpErr) || !httpErr.Blocked() {
		return nil, err
	}

	logger.Info("Page refused plain fetch, rendering in browser", "status", httpErr.StatusCode)

	renderCtx, cancel := context.WithTimeout(ctx, e.pageTimeout)
	defer cancel()

	page, renderErr := e.renderer.Render(renderCtx, target)
	if renderErr != nil {
		return nil, fmt.Errorf("%w (render: %v)", err, renderErr)
	}
	return page, nil
}

// findFavicon probes candidates in order and returns the first live one
func (e *Extractor) findFavicon(ctx context.Context, candidates []string, logger *slog.Logger) *string {
	for _, candidate := range candidates {
		if err := probe(ctx, e.httpClient, candidate, e.probeTimeout); err != nil {
			logger.Debug("Favicon candidate rejected", "favicon", candidate, "error", err)
			continue
		}
		favicon := candidate
		return &favicon
	}
	return nil
}

func recoverStage(logger *slog.Logger, stage string, errp *error) {
	if r := recover(); r != nil {
		logger.Error("Metadata stage panicked", "stage", stage, "panic", r)
		*errp = fmt.Errorf("%s stage panicked: %v", stage, r)
	}
}

// InvalidURLMetadata is the record returned alongside ErrInvalidURL
func InvalidURLMetadata() domain.LinkMetadata {
	return domain.LinkMetadata{
		Title:   domain.TitleInvalidURL,
		Summary: domain.SummaryInvalidURL,
	}
}

// UnavailableMetadata is the record used when the page could not be fetched
func UnavailableMetadata(target *url.URL) domain.LinkMetadata {
	return domain.LinkMetadata{
		Title:   truncate(target.Hostname(), maxTitleLen),
		Summary: domain.SummaryUnavailable,
	}
}
