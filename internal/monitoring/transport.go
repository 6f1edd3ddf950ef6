package monitoring

import (
	"net/http"
	"strconv"
)

// Transport is an http.RoundTripper that records the latency and outcome
// of every outbound request in the aggregator. Responses and errors pass
// through unchanged.
type Transport struct {
	base http.RoundTripper
	agg  *Aggregator
}

// NewTransport wraps base with call tracking. A nil base uses the default
// transport.
func NewTransport(base http.RoundTripper, agg *Aggregator) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{base: base, agg: agg}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := t.agg.clock()
	resp, err := t.base.RoundTrip(req)
	elapsed := t.agg.clock().Sub(start)

	if err != nil {
		t.agg.TrackAPICall(elapsed, false, true)
		t.agg.LogError(ErrorEvent{
			Code:    "TRANSPORT_ERROR",
			Message: err.Error(),
			Context: map[string]string{
				"url":    req.URL.String(),
				"method": req.Method,
			},
			Severity: SeverityMedium,
		})
		return nil, err
	}

	if resp.StatusCode >= http.StatusBadRequest {
		severity := SeverityMedium
		if resp.StatusCode >= http.StatusInternalServerError {
			severity = SeverityHigh
		}
		t.agg.TrackAPICall(elapsed, false, true)
		t.agg.LogError(ErrorEvent{
			Code:    "HTTP_" + strconv.Itoa(resp.StatusCode),
			Message: resp.Status,
			Context: map[string]string{
				"url":    req.URL.String(),
				"method": req.Method,
				"status": strconv.Itoa(resp.StatusCode),
			},
			Severity: severity,
		})
		return resp, nil
	}

	t.agg.TrackAPICall(elapsed, false, false)
	return resp, nil
}

var _ http.RoundTripper = (*Transport)(nil)
