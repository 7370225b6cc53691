package calendar

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
)

const (
	// DefaultBatchEndpoint is Google's batch endpoint for the Calendar API.
	DefaultBatchEndpoint = "https://www.googleapis.com/batch/calendar/v3"

	// MaxBatchSize is the largest number of calls Google accepts in one
	// batch request.
	MaxBatchSize = 50

	// maxBatchResponseBytes caps how much of a batch response is read.
	maxBatchResponseBytes = 32 << 20
)

// BatchChannel sends several sub-requests in one call. Every returned
// SubResponse carries the ID of the SubRequest it answers; a sub-request the
// channel got no answer for is returned with StatusCode 0.
type BatchChannel interface {
	Do(ctx context.Context, reqs []SubRequest) ([]SubResponse, error)
}

// HTTPBatchChannel implements BatchChannel on top of Google's
// multipart/mixed batch protocol.
type HTTPBatchChannel struct {
	client   *http.Client
	endpoint string
}

// NewHTTPBatchChannel creates a batch channel that posts to endpoint using
// client, which must already carry credentials. An empty endpoint selects
// DefaultBatchEndpoint.
func NewHTTPBatchChannel(client *http.Client, endpoint string) *HTTPBatchChannel {
	if client == nil {
		client = http.DefaultClient
	}
	if endpoint == "" {
		endpoint = DefaultBatchEndpoint
	}
	return &HTTPBatchChannel{client: client, endpoint: endpoint}
}

// Do posts reqs as a single batch and demultiplexes the answer.
func (c *HTTPBatchChannel) Do(ctx context.Context, reqs []SubRequest) ([]SubResponse, error) {
	if len(reqs) == 0 {
		return nil, nil
	}
	if len(reqs) > MaxBatchSize {
		return nil, fmt.Errorf("batch of %d sub-requests exceeds the limit of %d", len(reqs), MaxBatchSize)
	}

	body, contentType, err := encodeBatch(reqs)
	if err != nil {
		return nil, fmt.Errorf("failed to encode batch request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create batch request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &FetchError{Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	limited := io.LimitReader(resp.Body, maxBatchResponseBytes)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		payload, _ := io.ReadAll(limited)
		return nil, &FetchError{
			StatusCode: resp.StatusCode,
			Message:    subResponseMessage(resp.StatusCode, payload),
		}
	}

	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		return nil, fmt.Errorf("unexpected batch response content type %q", resp.Header.Get("Content-Type"))
	}

	return decodeBatch(limited, params["boundary"], reqs)
}

func encodeBatch(reqs []SubRequest) (io.Reader, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	for _, r := range reqs {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Type", "application/http")
		h.Set("Content-ID", "<item-"+r.ID+">")

		pw, err := mw.CreatePart(h)
		if err != nil {
			return nil, "", err
		}

		method := r.Method
		if method == "" {
			method = http.MethodGet
		}
		if _, err := fmt.Fprintf(pw, "%s %s HTTP/1.1\r\nAccept: application/json\r\n\r\n", method, r.Path); err != nil {
			return nil, "", err
		}
	}

	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, "multipart/mixed; boundary=" + mw.Boundary(), nil
}

// decodeBatch matches response parts to reqs by Content-ID. Parts without a
// recognizable Content-ID fill the first unanswered slot in request order.
func decodeBatch(r io.Reader, boundary string, reqs []SubRequest) ([]SubResponse, error) {
	if boundary == "" {
		return nil, fmt.Errorf("batch response has no multipart boundary")
	}

	index := make(map[string]int, len(reqs))
	out := make([]SubResponse, len(reqs))
	for i, req := range reqs {
		index[req.ID] = i
		out[i] = SubResponse{ID: req.ID}
	}
	answered := make([]bool, len(reqs))

	mr := multipart.NewReader(r, boundary)
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read batch part: %w", err)
		}

		resp, err := http.ReadResponse(bufio.NewReader(part), nil)
		if err != nil {
			return nil, fmt.Errorf("failed to parse batch part: %w", err)
		}
		payload, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read batch part body: %w", err)
		}

		i, ok := index[contentID(part.Header.Get("Content-ID"))]
		if !ok || answered[i] {
			i = firstUnanswered(answered)
			if i < 0 {
				return nil, fmt.Errorf("batch response has more parts than the %d sub-requests sent", len(reqs))
			}
		}
		out[i].StatusCode = resp.StatusCode
		out[i].Body = payload
		answered[i] = true
	}

	return out, nil
}

// contentID strips the angle brackets and the "response-" and "item-"
// prefixes Google adds around the identifier.
func contentID(header string) string {
	id := strings.TrimSpace(header)
	id = strings.TrimPrefix(id, "<")
	id = strings.TrimSuffix(id, ">")
	id = strings.TrimPrefix(id, "response-")
	return strings.TrimPrefix(id, "item-")
}

func firstUnanswered(answered []bool) int {
	for i, done := range answered {
		if !done {
			return i
		}
	}
	return -1
}
