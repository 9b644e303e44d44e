package metadata

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// probe sends a HEAD request under its own timeout.
// Any transport error or non-2xx status counts as a failed probe.
func probe(ctx context.Context, client *http.Client, target string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrProbeFailure, err)
	}
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrProbeFailure, classifyTransportError(ctx, err))
	}
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %w", ErrProbeFailure, &HTTPError{StatusCode: resp.StatusCode})
	}
	return nil
}
