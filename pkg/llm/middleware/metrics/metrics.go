// Package metrics provides a Prometheus-instrumented wrapper around an
// llm.Client. Every agent call is counted and timed per model and outcome.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"nestwise/pkg/llm"
	"nestwise/pkg/llm/llmerrors"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nestwise_llm_requests_total",
		Help: "LLM completion requests by agent, model and outcome.",
	}, []string{"agent", "model", "outcome"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "nestwise_llm_request_duration_seconds",
		Help:    "LLM completion latency by agent and model.",
		Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"agent", "model"})

	responseChars = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "nestwise_llm_response_chars",
		Help:    "Size of LLM completion content in characters.",
		Buckets: prometheus.ExponentialBuckets(64, 4, 8),
	}, []string{"agent", "model"})
)

// Client wraps an llm.Client and records metrics for each call.
type Client struct {
	inner llm.Client
	agent string
}

// Wrap instruments client, labeling metrics with the owning agent's id.
func Wrap(client llm.Client, agent string) *Client {
	return &Client{inner: client, agent: agent}
}

// GetModelName returns the wrapped client's model.
func (c *Client) GetModelName() string {
	return c.inner.GetModelName()
}

// Complete implements llm.Client.
func (c *Client) Complete(ctx context.Context, in llm.CompletionRequest) (llm.CompletionResponse, error) {
	model := c.inner.GetModelName()
	start := time.Now()

	resp, err := c.inner.Complete(ctx, in)

	requestDuration.WithLabelValues(c.agent, model).Observe(time.Since(start).Seconds())
	outcome := "success"
	if err != nil {
		outcome = llmerrors.TypeOf(err).String()
	} else {
		responseChars.WithLabelValues(c.agent, model).Observe(float64(len(resp.Content)))
	}
	requestsTotal.WithLabelValues(c.agent, model, outcome).Inc()

	return resp, err
}
