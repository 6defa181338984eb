package client

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/scrapedash/scrapedash/util"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultMaxAttempts  = 5
	defaultTimeoutStart = time.Second
	defaultTimeoutMax   = time.Minute
)

// restClient implements Client and makes requests to the API's versioned
// routes.
type restClient struct {
	serverURL    string
	maxAttempts  int
	timeoutStart time.Duration
	timeoutMax   time.Duration

	mutex      sync.RWMutex
	httpClient *http.Client
	token      string
}

// NewClient returns a Client for the API at serverURL, e.g.
// "https://scrapedash.example.com". To change the default retry behavior,
// use the SetTimeoutStart, SetTimeoutMax, and SetMaxAttempts methods.
func NewClient(serverURL, token string) Client {
	httpClient := util.GetHTTPClient()
	httpClient.Transport = otelhttp.NewTransport(httpClient.Transport)
	return &restClient{
		serverURL:    strings.TrimSuffix(serverURL, "/"),
		maxAttempts:  defaultMaxAttempts,
		timeoutStart: defaultTimeoutStart,
		timeoutMax:   defaultTimeoutMax,
		httpClient:   httpClient,
		token:        token,
	}
}

func (c *restClient) SetToken(token string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.token = token
}

// SetTimeoutStart sets the initial wait between attempts.
func (c *restClient) SetTimeoutStart(timeoutStart time.Duration) {
	c.timeoutStart = timeoutStart
}

// SetTimeoutMax sets the maximum wait between attempts.
func (c *restClient) SetTimeoutMax(timeoutMax time.Duration) {
	c.timeoutMax = timeoutMax
}

// SetMaxAttempts sets the number of attempts a request will be made.
func (c *restClient) SetMaxAttempts(attempts int) {
	c.maxAttempts = attempts
}

func (c *restClient) Close() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.httpClient != nil {
		util.PutHTTPClient(c.httpClient)
		c.httpClient = nil
	}
}
