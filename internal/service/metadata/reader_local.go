package metadata

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
)

// LocalReader extracts the main article text from the already fetched page
// with readability, so no third-party service sees the URL.
type LocalReader struct{}

// Read runs readability over page.Body
func (LocalReader) Read(ctx context.Context, target *url.URL, page *Page) (string, error) {
	if page == nil || len(page.Body) == 0 {
		return "", fmt.Errorf("%w: no page to read", ErrSummarizerFailure)
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrSummarizerFailure, err)
	}

	base := page.URL
	if base == nil {
		base = target
	}

	article, err := readability.FromReader(bytes.NewReader(page.Body), base)
	if err != nil {
		return "", fmt.Errorf("%w: readability: %w", ErrSummarizerFailure, err)
	}
	if strings.TrimSpace(article.TextContent) == "" {
		return "", fmt.Errorf("%w: no content extracted", ErrSummarizerFailure)
	}
	return article.TextContent, nil
}
