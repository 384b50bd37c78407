package fbsmslib

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/IMQS/log"

	"github.com/netz-ac/fbsmslib/fritzbox"
)

const (
	// DefaultSendDelay is the pause between two sends of a batch.
	DefaultSendDelay = 5 * time.Second
	DefaultLanguage  = "de"
	DefaultRegion    = "DE"
)

// Client sends and lists SMS through one router. It keeps a single session
// and a single rate limiter and is not safe for concurrent use; callers that
// share a Client between goroutines must serialise access themselves.
type Client struct {
	creds     Credentials
	rest      *fritzbox.RestClient
	auth      *Authenticator
	session   *SessionStore
	limiter   *RateLimiter
	log       *log.Logger
	lang      string
	region    string
	sendDelay time.Duration
	sleep     func(time.Duration)
}

type options struct {
	rate        RateLimit
	sendDelay   time.Duration
	httpClient  *http.Client
	logger      *log.Logger
	lang        string
	region      string
	sessionIdle time.Duration
	now         func() time.Time
	sleep       func(time.Duration)
}

// Option configures a Client.
type Option func(*options)

// WithRateLimit replaces the default quota of 10 sends per hour.
func WithRateLimit(r RateLimit) Option {
	return func(o *options) { o.rate = r }
}

// WithSendDelay sets the pause between sends of SendSMSMultiple.
func WithSendDelay(d time.Duration) Option {
	return func(o *options) { o.sendDelay = d }
}

// WithHTTPClient sets the transport. Timeouts are configured here; the
// library sets none of its own.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithLanguage sets the lang parameter sent to data.lua.
func WithLanguage(lang string) Option {
	return func(o *options) { o.lang = lang }
}

// WithRegion sets the region used to parse receivers without a country
// code.
func WithRegion(region string) Option {
	return func(o *options) { o.region = region }
}

// WithSessionIdle sets how long a session is reused without traffic.
func WithSessionIdle(d time.Duration) Option {
	return func(o *options) { o.sessionIdle = d }
}

func withClock(now func() time.Time, sleep func(time.Duration)) Option {
	return func(o *options) {
		o.now = now
		o.sleep = sleep
	}
}

// New creates a Client for the router described by creds. No request is
// made until the first operation; call Login to fail early on bad
// credentials.
func New(creds Credentials, opts ...Option) (*Client, error) {
	if strings.TrimSpace(creds.URL) == "" {
		return nil, errors.New("router URL must not be empty")
	}
	creds.URL = strings.TrimRight(creds.URL, "/")

	o := options{
		rate:        DefaultRateLimit(),
		sendDelay:   DefaultSendDelay,
		lang:        DefaultLanguage,
		region:      DefaultRegion,
		sessionIdle: DefaultSessionIdle,
		now:         time.Now,
		sleep:       time.Sleep,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.New("stdout", false)
	}

	limiter, err := NewRateLimiter(o.rate)
	if err != nil {
		return nil, err
	}
	limiter.now = o.now

	rest := fritzbox.Rest(creds.URL, o.httpClient)
	auth := NewAuthenticator(rest, creds, o.logger)
	auth.now = o.now
	auth.sleep = o.sleep
	session := NewSessionStore(o.sessionIdle)
	session.now = o.now

	return &Client{
		creds:     creds,
		rest:      rest,
		auth:      auth,
		session:   session,
		limiter:   limiter,
		log:       o.logger,
		lang:      o.lang,
		region:    o.region,
		sendDelay: o.sendDelay,
		sleep:     o.sleep,
	}, nil
}

// Login makes sure the client holds a session, logging in if needed.
func (c *Client) Login() error {
	_, err := c.ensureSession()
	return err
}

func (c *Client) ensureSession() (*Session, error) {
	if s := c.session.Get(); s != nil {
		return s, nil
	}
	s, err := c.auth.Login()
	if err != nil {
		c.log.Errorf("Login to %v failed: %v", c.creds.URL, err)
		return nil, err
	}
	c.session.Set(s)
	return s, nil
}

// do runs fn with a valid sid. When the router no longer accepts the sid,
// the session is dropped, a new one is obtained and fn runs exactly once
// more.
func (c *Client) do(fn func(sid string) error) error {
	s, err := c.ensureSession()
	if err != nil {
		return err
	}

	err = fn(s.ID)
	if !errors.Is(err, fritzbox.ErrUnauthorized) {
		return c.finish(err)
	}

	c.log.Infof("Session expired, logging in again")
	c.session.Invalidate()
	if s, err = c.ensureSession(); err != nil {
		return err
	}
	err = fn(s.ID)
	if errors.Is(err, fritzbox.ErrUnauthorized) {
		c.session.Invalidate()
		return newError(ErrAuthentication, "router rejected a fresh session, check the account's SMS permission", err)
	}
	return c.finish(err)
}

// finish renews the session on success and maps wire errors onto the
// client's error kinds.
func (c *Client) finish(err error) error {
	if err == nil {
		c.session.Touch()
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		if errors.Is(err, ErrAuthentication) || errors.Is(err, ErrUnsupportedTwoFactor) {
			c.session.Invalidate()
		}
		return err
	}
	if errors.Is(err, fritzbox.ErrMalformed) {
		return newError(ErrCommunication, "unexpected reply, firmware mismatch?", err)
	}
	return newError(ErrCommunication, "", err)
}
