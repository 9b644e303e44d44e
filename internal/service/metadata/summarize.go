package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
)

// DefaultReaderBaseURL is the hosted reader service used for summaries
const DefaultReaderBaseURL = "https://r.jina.ai"

// Reader turns a page into readable plain-ish text.
// page is the already fetched document and may be used instead of a new request.
type Reader interface {
	Read(ctx context.Context, target *url.URL, page *Page) (string, error)
}

// RemoteReader calls a reader service that renders <base>/<encoded url> as JSON
type RemoteReader struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewRemoteReader creates a reader client; an empty baseURL selects DefaultReaderBaseURL
func NewRemoteReader(baseURL, apiKey string, httpClient *http.Client) *RemoteReader {
	if baseURL == "" {
		baseURL = DefaultReaderBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &RemoteReader{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
	}
}

type readerResponse struct {
	Data *struct {
		Content *string `json:"content"`
	} `json:"data"`
}

// Read fetches the reader rendering of target
func (r *RemoteReader) Read(ctx context.Context, target *url.URL, _ *Page) (string, error) {
	endpoint := r.baseURL + "/" + encodeURIComponent(target.String())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("%w: failed to create request: %v", ErrSummarizerFailure, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-With-Generated-Alt", "true")
	req.Header.Set("X-Retain-Images", "none")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSummarizerFailure, classifyTransportError(ctx, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: %w", ErrSummarizerFailure, &HTTPError{StatusCode: resp.StatusCode})
	}

	var body readerResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(&body); err != nil {
		return "", fmt.Errorf("%w: failed to decode response: %v", ErrSummarizerFailure, err)
	}
	if body.Data == nil || body.Data.Content == nil || strings.TrimSpace(*body.Data.Content) == "" {
		return "", fmt.Errorf("%w: response has no content", ErrSummarizerFailure)
	}

	return *body.Data.Content, nil
}

// encodeURIComponent percent-encodes s for use as a single path segment
func encodeURIComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

var strictPolicy = bluemonday.StrictPolicy()

// cleanContent strips markup from reader output and leaves plain text.
// Markdown links and images keep only their text.
func cleanContent(content string) string {
	content = markdownLink.ReplaceAllString(content, "$1")
	content = html.UnescapeString(strictPolicy.Sanitize(content))
	return collapseWhitespace(content)
}

// summarizer produces the summary stage of the pipeline
type summarizer struct {
	reader  Reader
	timeout time.Duration
}

// summarize asks the reader for content and condenses it. On any reader
// failure it falls back to the page description, then to the placeholder.
func (s *summarizer) summarize(ctx context.Context, target *url.URL, page *Page, description string) (string, error) {
	if s.reader != nil {
		summary, err := s.read(ctx, target, page)
		if err == nil {
			return summary, nil
		}
		if description != "" {
			return description, err
		}
		return placeholder, err
	}
	if description != "" {
		return description, nil
	}
	return placeholder, nil
}

func (s *summarizer) read(ctx context.Context, target *url.URL, page *Page) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	content, err := s.reader.Read(ctx, target, page)
	if err != nil {
		return "", err
	}

	summary := summarizeContent(cleanContent(content))
	if summary == "" {
		return "", fmt.Errorf("%w: content empty after cleaning", ErrSummarizerFailure)
	}
	return summary, nil
}
