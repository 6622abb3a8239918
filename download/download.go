package download

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// APITimeout bounds a single provider API call. Streamed transfers are not
// subject to it.
const APITimeout = 30 * time.Second

// maxDetailLen is how much of an error response body gets copied into an
// UpstreamError.
const maxDetailLen = 512

// UpstreamError indicates that a remote server answered with a non-success
// status.
type UpstreamError struct {
	URL        string
	StatusCode int
	Status     string
	Detail     string
}

func (e *UpstreamError) Error() string {
	msg := fmt.Sprintf("upstream error: url=%s status=%q", e.URL, e.Status)
	if e.Detail != "" {
		msg += " detail=" + e.Detail
	}
	return msg
}

// checkResponse returns an UpstreamError if rsp carries a non-2xx status. In
// that case it consumes and closes the body.
func checkResponse(u string, rsp *http.Response) error {
	if rsp.StatusCode >= 200 && rsp.StatusCode < 300 {
		return nil
	}
	defer rsp.Body.Close()

	b, _ := io.ReadAll(io.LimitReader(rsp.Body, maxDetailLen))

	return &UpstreamError{
		URL:        u,
		StatusCode: rsp.StatusCode,
		Status:     rsp.Status,
		Detail:     strings.TrimSpace(string(b)),
	}
}

func addHeader(req *http.Request, header http.Header) {
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
}

// GetBody performs an http GET with url=u using the suppplied client and
// header. The caller must close the returned body.
func GetBody(ctx context.Context, hc *http.Client, u string, header http.Header) (io.ReadCloser, error) {
	log.Debugf("get: %s", u)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	addHeader(req, header)

	rsp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	err = checkResponse(u, rsp)
	if err != nil {
		return nil, err
	}

	return rsp.Body, nil
}

// Get calls GetBody(), then reads the full response and returns the result.
func Get(ctx context.Context, hc *http.Client, u string, header http.Header) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	body, err := GetBody(ctx, hc, u, header)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	return io.ReadAll(body)
}

// PostJSON sends reqBody as a JSON encoded POST to url=u and decodes the JSON
// response into rspBody. rspBody may be nil if the caller does not care about
// the response.
func PostJSON(ctx context.Context, hc *http.Client, u string, header http.Header, reqBody any, rspBody any) error {
	log.Debugf("post: %s", u)

	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	b, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to encode request: url=%s err=%w", u, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(b))
	if err != nil {
		return err
	}
	addHeader(req, header)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	rsp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}

	err = checkResponse(u, rsp)
	if err != nil {
		return err
	}
	defer rsp.Body.Close()

	if rspBody == nil {
		return nil
	}

	err = json.NewDecoder(rsp.Body).Decode(rspBody)
	if err != nil {
		return fmt.Errorf("failed to decode response: url=%s err=%w", u, err)
	}

	return nil
}
