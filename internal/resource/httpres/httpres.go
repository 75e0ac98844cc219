// Package httpres provides an HTTP user agent as the shared resource of a
// batch. Isolated contexts are sessions with their own cookie jar.
package httpres

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"sync/atomic"
	"time"

	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"

	"github.com/CZERTAINLY/Inspector/internal/model"
	"github.com/CZERTAINLY/Inspector/internal/resource"
)

const DefaultUserAgent = "inspector/0.1"

var (
	ErrClosed   = errors.New("resource closed")
	ErrTooLarge = errors.New("document too large")
)

// DefaultMaxBody caps the size of a fetched document unless
// model.Launch.MaxBodyBytes says otherwise.
const DefaultMaxBody = 16 << 20

// Fetcher is what an inspector needs from a resource.
type Fetcher interface {
	Get(ctx context.Context, url string) (*Response, error)
}

// Response is a fully read HTTP response.
type Response struct {
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Provider launches Agents.
type Provider struct {
	// Transport is shared by the agent and all its sessions. Nil means a
	// clone of http.DefaultTransport.
	Transport http.RoundTripper
}

func (p Provider) Launch(_ context.Context, cfg model.Launch) (resource.Resource, error) {
	return NewAgent(cfg, p.Transport)
}

var _ resource.Provider = Provider{}

// Agent is the root resource. It is safe for concurrent use.
type Agent struct {
	transport http.RoundTripper
	limiter   *rate.Limiter
	userAgent string
	timeout   time.Duration
	maxBody   int64
	client    *http.Client
	closed    atomic.Bool
}

func NewAgent(cfg model.Launch, transport http.RoundTripper) (*Agent, error) {
	if transport == nil {
		transport = http.DefaultTransport.(*http.Transport).Clone()
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := max(cfg.Burst, 1)

	ua := cfg.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}

	a := &Agent{
		transport: transport,
		limiter:   rate.NewLimiter(limit, burst),
		userAgent: ua,
		timeout:   cfg.Timeout,
		maxBody:   cfg.MaxBodyBytes,
	}
	if a.maxBody <= 0 {
		a.maxBody = DefaultMaxBody
	}
	client, err := a.newClient()
	if err != nil {
		return nil, err
	}
	a.client = client
	return a, nil
}

func (a *Agent) newClient() (*http.Client, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}
	return &http.Client{
		Transport: a.transport,
		Jar:       jar,
		Timeout:   a.timeout,
	}, nil
}

func (a *Agent) Get(ctx context.Context, url string) (*Response, error) {
	return a.get(ctx, a.client, url)
}

// SpawnIsolated returns a Session with an empty cookie jar. Sessions share the
// transport and the rate limit of the agent.
func (a *Agent) SpawnIsolated(context.Context) (resource.Context, error) {
	if a.closed.Load() {
		return nil, ErrClosed
	}
	client, err := a.newClient()
	if err != nil {
		return nil, err
	}
	return &Session{agent: a, client: client}, nil
}

// Close makes the agent and its sessions unusable and drops idle connections.
// Requests in flight are not interrupted.
func (a *Agent) Close() error {
	if !a.closed.CompareAndSwap(false, true) {
		return nil
	}
	if t, ok := a.transport.(interface{ CloseIdleConnections() }); ok {
		t.CloseIdleConnections()
	}
	return nil
}

func (a *Agent) get(ctx context.Context, client *http.Client, url string) (*Response, error) {
	if a.closed.Load() {
		return nil, ErrClosed
	}

	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", a.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, a.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", url, err)
	}
	if int64(len(body)) > a.maxBody {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrTooLarge, url, a.maxBody)
	}
	return &Response{
		URL:        resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

// Session is an isolated context of an Agent.
type Session struct {
	agent  *Agent
	client *http.Client
	closed atomic.Bool
}

func (s *Session) Get(ctx context.Context, url string) (*Response, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	return s.agent.get(ctx, s.client, url)
}

func (s *Session) Close() error {
	s.closed.Store(true)
	return nil
}

var (
	_ resource.Resource = (*Agent)(nil)
	_ resource.Context  = (*Session)(nil)
	_ Fetcher           = (*Agent)(nil)
	_ Fetcher           = (*Session)(nil)
)
