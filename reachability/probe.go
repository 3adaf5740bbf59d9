package reachability

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ProbeResult is the outcome of one attempt.
type ProbeResult struct {
	Succeeded  bool
	StatusCode int // 0 when no response was received
	Category   StatusCategory
	Latency    time.Duration
	Err        error // nil on success; never returned to callers of the engine
}

// Prober performs one bounded-time reachability attempt.
// Implementations must not panic and never report failure as an error:
// everything is folded into ProbeResult.
type Prober interface {
	Probe(ctx context.Context, url string, timeout time.Duration) ProbeResult
}

// ClientProber probes through an HTTPClient. A probe succeeds only when the
// client returns a response with status code exactly 200.
type ClientProber struct {
	Client HTTPClient
}

// NewClientProber returns a prober over client, or over the built-in
// transport when client is nil.
func NewClientProber(client HTTPClient) *ClientProber {
	if client == nil {
		client = StdClient(nil)
	}
	return &ClientProber{Client: client}
}

// Probe issues the GET and converts every failure into an unsucceeded result.
func (p *ClientProber) Probe(ctx context.Context, url string, timeout time.Duration) (res ProbeResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res = failedResult(fmt.Errorf("panic in http client: %v", r), 0)
		}
		res.Latency = time.Since(start)
	}()

	resp, err := p.Client.Get(ctx, url, RequestOptions{Timeout: timeout})
	if err != nil {
		code := 0
		var se *StatusError
		if errors.As(err, &se) {
			code = se.Code
		}
		return failedResult(err, code)
	}
	if resp == nil {
		return failedResult(errors.New("http client returned no response"), 0)
	}
	if resp.StatusCode != http.StatusOK {
		return failedResult(&StatusError{Code: resp.StatusCode}, resp.StatusCode)
	}

	return ProbeResult{
		Succeeded:  true,
		StatusCode: resp.StatusCode,
		Category:   StatusOK,
	}
}

func failedResult(err error, code int) ProbeResult {
	return ProbeResult{
		StatusCode: code,
		Category:   classifyError(err),
		Err:        err,
	}
}
