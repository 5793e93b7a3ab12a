package registry

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"mastr/internal/metrics"
)

// ErrTooManyRedirects is returned when a request exceeds the redirect limit.
var ErrTooManyRedirects = errors.New("too many redirects")

// TransportOptions tune the registry HTTP client. Zero values take the
// defaults below.
type TransportOptions struct {
	Timeout      time.Duration // per attempt, default 600s
	RetryMax     int           // dial-failure retries, default 3
	RetryWait    time.Duration // fixed wait between retries, default 1s
	MaxRedirects int           // default 30
	PoolSize     int           // idle connections overall and per host, default 2000
}

func (o TransportOptions) withDefaults() TransportOptions {
	if o.Timeout <= 0 {
		o.Timeout = 600 * time.Second
	}
	if o.RetryMax <= 0 {
		o.RetryMax = 3
	}
	if o.RetryWait <= 0 {
		o.RetryWait = time.Second
	}
	if o.MaxRedirects <= 0 {
		o.MaxRedirects = 30
	}
	if o.PoolSize <= 0 {
		o.PoolSize = 2000
	}
	return o
}

// NewHTTPClient returns a client that retries failed dials only. Any HTTP
// response, 5xx included, is final; SOAP faults travel as 500s and must
// not be replayed.
func NewHTTPClient(opts TransportOptions, log *zap.SugaredLogger) *http.Client {
	opts = opts.withDefaults()

	tr := cleanhttp.DefaultPooledTransport()
	tr.MaxIdleConns = opts.PoolSize
	tr.MaxIdleConnsPerHost = opts.PoolSize

	rc := retryablehttp.NewClient()
	rc.HTTPClient = &http.Client{
		Transport: instrumentedTransport{next: tr},
		Timeout:   opts.Timeout,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= opts.MaxRedirects {
				return ErrTooManyRedirects
			}
			return nil
		},
	}
	rc.RetryMax = opts.RetryMax
	rc.RetryWaitMin = opts.RetryWait
	rc.RetryWaitMax = opts.RetryWait
	rc.Backoff = func(wait, _ time.Duration, _ int, _ *http.Response) time.Duration { return wait }
	rc.CheckRetry = retryConnectionErrors
	rc.ErrorHandler = giveUp
	rc.Logger = leveledLogger{log: log}

	return rc.StandardClient()
}

// retryConnectionErrors retries only failures to establish a connection.
// Once a request may have reached the server (read errors, timeouts
// awaiting headers, dropped connections) it is not resent.
func retryConnectionErrors(ctx context.Context, _ *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err == nil {
		return false, nil
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true, nil
	}
	return false, nil
}

// giveUp closes any partial response so the caller only sees the error.
func giveUp(resp *http.Response, err error, attempts int) (*http.Response, error) {
	if err == nil {
		return resp, nil
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	return nil, errors.Wrapf(err, "after %d attempt(s)", attempts)
}

// instrumentedTransport records one metric observation per attempt.
type instrumentedTransport struct {
	next http.RoundTripper
}

func (t instrumentedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.next.RoundTrip(req)
	code := 0
	if resp != nil {
		code = resp.StatusCode
	}
	metrics.RecordHTTP(code, time.Since(start))
	return resp, err
}

// leveledLogger adapts zap to retryablehttp.LeveledLogger.
type leveledLogger struct {
	log *zap.SugaredLogger
}

func (l leveledLogger) Error(msg string, kv ...interface{}) { l.log.Errorw(msg, kv...) }
func (l leveledLogger) Info(msg string, kv ...interface{})  { l.log.Infow(msg, kv...) }
func (l leveledLogger) Debug(msg string, kv ...interface{}) { l.log.Debugw(msg, kv...) }
func (l leveledLogger) Warn(msg string, kv ...interface{})  { l.log.Warnw(msg, kv...) }

var _ retryablehttp.LeveledLogger = leveledLogger{}
