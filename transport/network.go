package transport

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/0glabs/0g-wallet-rpc/common/metrics"
	"github.com/0glabs/0g-wallet-rpc/common/rpc"
	"github.com/afex/hystrix-go/hystrix"
	"github.com/cenkalti/backoff/v4"
	"github.com/mcuadros/go-defaults"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const maxErrorBodyLen = 512

// Endpoint is a URL accepting JSON-RPC POST requests, along with extra HTTP headers.
type Endpoint struct {
	URL     string            `yaml:"url" validate:"required,url"`
	Headers map[string]string `yaml:"headers"`
}

type CircuitBreakerOption struct {
	Enabled                bool          `yaml:"enabled"`
	MaxConcurrentRequests  int           `yaml:"maxConcurrentRequests" default:"100"`
	RequestVolumeThreshold int           `yaml:"requestVolumeThreshold" default:"20"`
	SleepWindow            time.Duration `yaml:"sleepWindow" default:"5s"`
	ErrorPercentThreshold  int           `yaml:"errorPercentThreshold" default:"50"`
}

type Option struct {
	RequestTimeout time.Duration `yaml:"requestTimeout" default:"20s"`

	// MaxRetries is the number of retries against the same endpoint when throttled
	// (HTTP 429 or 408). Negative value disables retry.
	MaxRetries       int           `yaml:"maxRetries" default:"2"`
	RetryInterval    time.Duration `yaml:"retryInterval" default:"500ms"`
	MaxRetryInterval time.Duration `yaml:"maxRetryInterval" default:"5s"`

	// RequestsPerSecond limits requests per endpoint URL, 0 for unlimited.
	RequestsPerSecond float64 `yaml:"requestsPerSecond"`
	Burst             int     `yaml:"burst" default:"1"`

	CircuitBreaker CircuitBreakerOption `yaml:"circuitBreaker"`
}

// NetworkService posts raw JSON-RPC payloads to endpoints over HTTP.
type NetworkService struct {
	option   Option
	client   *http.Client
	limiters sync.Map // url -> *rate.Limiter
	circuits sync.Map // url -> circuit name
}

// NewNetworkService creates a network service with optional option.
func NewNetworkService(option ...Option) *NetworkService {
	var opt Option
	if len(option) > 0 {
		opt = option[0]
	}
	defaults.SetDefaults(&opt)

	return &NetworkService{
		option: opt,
		client: &http.Client{},
	}
}

// WithHTTPClient replaces the underlying HTTP client, e.g. for custom TLS settings.
func (s *NetworkService) WithHTTPClient(client *http.Client) *NetworkService {
	s.client = client
	return s
}

// Post sends body to endpoint and returns the response body on HTTP 2xx. Throttled
// requests are retried on the same endpoint with exponential backoff, honoring the
// Retry-After header. Any other non-2xx status is returned as *rpc.HTTPError.
func (s *NetworkService) Post(ctx context.Context, endpoint Endpoint, body []byte) ([]byte, error) {
	if limiter := s.limiter(endpoint.URL); limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return nil, errors.WithMessage(err, "Failed to wait for rate limiter")
		}
	}

	retryAfter := newRetryAfterBackOff(s.option)

	var policy backoff.BackOff = &backoff.StopBackOff{}
	if s.option.MaxRetries > 0 {
		policy = backoff.WithMaxRetries(retryAfter, uint64(s.option.MaxRetries))
	}

	var result []byte

	operation := func() error {
		data, err := s.postWithCircuit(ctx, endpoint, body)
		if err == nil {
			result = data
			return nil
		}

		var httpErr *rpc.HTTPError
		if errors.As(err, &httpErr) && isThrottled(httpErr.StatusCode) {
			retryAfter.hint(httpErr.RetryAfter)
			return err
		}

		return backoff.Permanent(err)
	}

	notify := func(err error, next time.Duration) {
		metrics.RpcRetriesTotal.WithLabelValues(hostOf(endpoint.URL)).Inc()
		logrus.WithError(err).WithFields(logrus.Fields{
			"url":  endpoint.URL,
			"next": next,
		}).Debug("Retry throttled RPC request")
	}

	if err := backoff.RetryNotify(operation, backoff.WithContext(policy, ctx), notify); err != nil {
		return nil, err
	}

	return result, nil
}

func (s *NetworkService) postWithCircuit(ctx context.Context, endpoint Endpoint, body []byte) ([]byte, error) {
	if !s.option.CircuitBreaker.Enabled {
		return s.post(ctx, endpoint, body)
	}

	// buffered so that a run abandoned by circuit timeout never blocks
	resultCh := make(chan postResult, 1)

	err := hystrix.DoC(ctx, s.circuit(endpoint.URL), func(ctx context.Context) error {
		data, err := s.post(ctx, endpoint, body)

		// client errors, e.g. throttled or unauthorized, are not failures of endpoint
		var httpErr *rpc.HTTPError
		if err != nil && !(errors.As(err, &httpErr) && isClientError(httpErr.StatusCode)) {
			return err
		}

		resultCh <- postResult{data, err}
		return nil
	}, nil)
	if err != nil {
		return nil, err
	}

	result := <-resultCh

	return result.data, result.err
}

func (s *NetworkService) post(ctx context.Context, endpoint Endpoint, body []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.option.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.URL, bytes.NewReader(body))
	if err != nil {
		return nil, errors.WithMessage(err, "Failed to create HTTP request")
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range endpoint.Headers {
		req.Header.Set(k, v)
	}

	host := hostOf(endpoint.URL)
	start := time.Now()

	resp, err := s.client.Do(req)
	metrics.RpcRequestDuration.WithLabelValues(host).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RpcRequestTotal.WithLabelValues(host, "error").Inc()
		return nil, err
	}
	defer resp.Body.Close()

	metrics.RpcRequestTotal.WithLabelValues(host, strconv.Itoa(resp.StatusCode)).Inc()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if len(data) > maxErrorBodyLen {
			data = data[:maxErrorBodyLen]
		}

		return nil, &rpc.HTTPError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(bytes.TrimSpace(data)),
			URL:        endpoint.URL,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	return data, nil
}

func (s *NetworkService) limiter(url string) *rate.Limiter {
	if s.option.RequestsPerSecond <= 0 {
		return nil
	}

	limiter, _ := s.limiters.LoadOrStore(url, rate.NewLimiter(rate.Limit(s.option.RequestsPerSecond), max(s.option.Burst, 1)))

	return limiter.(*rate.Limiter)
}

func (s *NetworkService) circuit(url string) string {
	if name, ok := s.circuits.Load(url); ok {
		return name.(string)
	}

	name := "rpc_" + url

	if hystrix.GetCircuitSettings()[name] == nil {
		opt := s.option.CircuitBreaker
		hystrix.ConfigureCommand(name, hystrix.CommandConfig{
			Timeout:                int(s.option.RequestTimeout.Milliseconds()),
			MaxConcurrentRequests:  opt.MaxConcurrentRequests,
			RequestVolumeThreshold: opt.RequestVolumeThreshold,
			SleepWindow:            int(opt.SleepWindow.Milliseconds()),
			ErrorPercentThreshold:  opt.ErrorPercentThreshold,
		})
	}

	s.circuits.Store(url, name)

	return name
}

type postResult struct {
	data []byte
	err  error
}

// isClientError returns true for 4xx status codes except 404, which usually means a
// wrong endpoint path.
func isClientError(statusCode int) bool {
	return statusCode >= 400 && statusCode < 500 && statusCode != http.StatusNotFound
}

func isThrottled(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || statusCode == http.StatusRequestTimeout
}

// parseRetryAfter supports both delay seconds and HTTP date.
func parseRetryAfter(value string) time.Duration {
	if len(value) == 0 {
		return 0
	}

	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}

	return 0
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || len(u.Host) == 0 {
		return "unknown"
	}

	return u.Host
}
