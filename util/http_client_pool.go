package util

import (
	"crypto/tls"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/PuerkitoBio/rehttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const httpClientTimeout = 5 * time.Minute

var httpClientPool *sync.Pool

func newConfiguredBaseTransport() *http.Transport {
	return &http.Transport{
		TLSClientConfig:     &tls.Config{},
		Proxy:               http.ProxyFromEnvironment,
		DisableCompression:  false,
		IdleConnTimeout:     20 * time.Second,
		MaxIdleConnsPerHost: 10,
		MaxIdleConns:        50,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: 10 * time.Second,
	}
}

func newBaseConfiguredHttpClient() *http.Client {
	return &http.Client{
		Timeout:   httpClientTimeout,
		Transport: newConfiguredBaseTransport(),
	}
}

func init() {
	httpClientPool = &sync.Pool{
		New: func() interface{} { return newBaseConfiguredHttpClient() },
	}
}

// GetHTTPClient returns a pooled client. Return it with PutHTTPClient when
// the caller is done with it.
func GetHTTPClient() *http.Client { return httpClientPool.Get().(*http.Client) }

func PutHTTPClient(c *http.Client) {
	c.Timeout = httpClientTimeout

	switch t := c.Transport.(type) {
	case *http.Transport:
		t.TLSClientConfig.InsecureSkipVerify = false
		httpClientPool.Put(c)
	case *rehttp.Transport:
		c.Transport = t.RoundTripper
		PutHTTPClient(c)
	case *otelhttp.Transport:
		c.Transport = newConfiguredBaseTransport()
		httpClientPool.Put(c)
	default:
		c.Transport = newConfiguredBaseTransport()
		httpClientPool.Put(c)
	}
}

// NewInstrumentedHTTPClient returns a client that is not pooled, with spans
// recorded for every outbound request.
func NewInstrumentedHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(newConfiguredBaseTransport()),
	}
}

type HTTPRetryConfiguration struct {
	MaxDelay        time.Duration
	BaseDelay       time.Duration
	MaxRetries      int
	TemporaryErrors bool
	Methods         []string
	Statuses        []int
}

func NewDefaultHTTPRetryConf() HTTPRetryConfiguration {
	return HTTPRetryConfiguration{
		MaxRetries:      3,
		TemporaryErrors: true,
		MaxDelay:        5 * time.Second,
		BaseDelay:       50 * time.Millisecond,
		Methods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
			http.MethodPatch,
		},
		Statuses: []int{
			http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout,
		},
	}
}

// RetryTransport wraps base with the retry policy described by conf.
func RetryTransport(base http.RoundTripper, conf HTTPRetryConfiguration) http.RoundTripper {
	statusRetries := []rehttp.RetryFn{}
	if len(conf.Statuses) > 0 {
		statusRetries = append(statusRetries, rehttp.RetryStatuses(conf.Statuses...))
	} else {
		conf.TemporaryErrors = true
	}

	if conf.TemporaryErrors {
		statusRetries = append(statusRetries, rehttp.RetryTemporaryErr())
	}

	retryFns := []rehttp.RetryFn{rehttp.RetryAny(statusRetries...)}

	if len(conf.Methods) > 0 {
		retryFns = append(retryFns, rehttp.RetryHTTPMethods(conf.Methods...))
	}

	if conf.MaxRetries > 0 {
		retryFns = append(retryFns, rehttp.RetryMaxRetries(conf.MaxRetries))
	}

	return rehttp.NewTransport(base,
		rehttp.RetryAll(retryFns...),
		rehttp.ExpJitterDelay(conf.BaseDelay, conf.MaxDelay))
}

// GetHTTPRetryableClient returns a pooled client that retries according to
// conf and traces each attempt.
func GetHTTPRetryableClient(conf HTTPRetryConfiguration) *http.Client {
	client := GetHTTPClient()
	client.Transport = RetryTransport(otelhttp.NewTransport(client.Transport), conf)

	return client
}

func GetDefaultHTTPRetryableClient() *http.Client {
	return GetHTTPRetryableClient(NewDefaultHTTPRetryConf())
}
