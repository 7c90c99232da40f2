// Package fetch retrieves upstream collections over HTTP and decodes them as
// JSON arrays of typed records.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/vaughan-dsouza/postagg/internal/errors"
)

// maxDrain bounds how much of an error body is read before closing it.
const maxDrain = 4 << 10

// Doer sends a single HTTP request. *http.Client and *Client satisfy it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Fetch issues one GET to url and decodes the body as a JSON array of T.
// Network failures and non-2xx statuses are returned as
// apperrors.TransportError, malformed bodies as apperrors.DecodeError.
func Fetch[T any](ctx context.Context, doer Doer, source, url string) ([]T, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, apperrors.TransportError{Source: source, URL: url, Cause: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := doer.Do(req)
	if err != nil {
		return nil, apperrors.TransportError{Source: source, URL: url, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrain))
		return nil, apperrors.TransportError{Source: source, URL: url, StatusCode: resp.StatusCode}
	}

	items, err := decodeArray[T](resp.Body)
	if err != nil {
		// A body cut short by our own deadline is a transport problem, not a
		// malformed payload.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, apperrors.TransportError{Source: source, URL: url, Cause: ctxErr}
		}
		return nil, apperrors.DecodeError{Source: source, Cause: err}
	}
	return items, nil
}

// decodeArray streams a top-level JSON array element by element. Anything
// other than an array, including null, is rejected, as are null elements and
// content after the closing bracket.
func decodeArray[T any](r io.Reader) ([]T, error) {
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty body")
		}
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return nil, fmt.Errorf("expected JSON array, got %v", tok)
	}

	items := make([]T, 0)
	for dec.More() {
		var item *T
		if err := dec.Decode(&item); err != nil {
			return nil, fmt.Errorf("element %d: %w", len(items), err)
		}
		if item == nil {
			return nil, fmt.Errorf("element %d: null", len(items))
		}
		items = append(items, *item)
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("closing array: %w", err)
	}
	if tok, err := dec.Token(); !errors.Is(err, io.EOF) {
		if err != nil {
			return nil, fmt.Errorf("after array: %w", err)
		}
		return nil, fmt.Errorf("unexpected %v after array", tok)
	}
	return items, nil
}
