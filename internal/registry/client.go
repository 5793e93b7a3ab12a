// Package registry talks to the MaStR SOAP API: it loads and binds the
// service description, posts SOAP 1.1 envelopes, and decodes registry
// timestamps.
package registry

import (
	"context"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"mastr/internal/credentials"
	"mastr/internal/metrics"
)

const (
	DefaultWSDLURL = "https://www.marktstammdatenregister.de/MaStRAPI/wsdl/mastr.wsdl"
	DefaultService = "Marktstammdatenregister"
	DefaultPort    = "Anlage"
)

// CredentialSource yields the registry user (MaStR number) and API token.
type CredentialSource interface {
	Get(ctx context.Context, svc credentials.Service) (credentials.Credential, error)
}

// Options configure where the WSDL comes from and which port is bound.
type Options struct {
	WSDLURL   string
	CachePath string // empty disables the WSDL cache
	CacheTTL  time.Duration
	Service   string
	Port      string
	Transport TransportOptions

	// HTTPClient replaces the retrying client built from Transport.
	HTTPClient *http.Client
}

// Client holds a parsed service description and the HTTP client used to
// reach its ports.
type Client struct {
	http *http.Client
	desc *description
	log  *zap.SugaredLogger
}

// Session is everything a registry call needs.
type Session struct {
	Client *Client
	Port   *Port
	Token  string
	User   string
}

// Open fetches registry credentials, loads the WSDL and binds the default
// service port.
func Open(ctx context.Context, creds CredentialSource, opts Options, log *zap.SugaredLogger) (_ *Session, err error) {
	start := time.Now()
	defer func() { metrics.RecordStep("registry_open", start, err) }()

	cred, err := creds.Get(ctx, credentials.Registry)
	if err != nil {
		return nil, errors.Wrap(err, "registry credentials")
	}
	c, err := NewClient(ctx, opts, log)
	if err != nil {
		return nil, err
	}
	service, port := opts.Service, opts.Port
	if service == "" {
		service = DefaultService
	}
	if port == "" {
		port = DefaultPort
	}
	p, err := c.Bind(service, port)
	if err != nil {
		c.Close()
		return nil, err
	}
	return &Session{Client: c, Port: p, Token: cred.Token, User: cred.User}, nil
}

// NewClient loads and parses the WSDL, from the cache when a fresh copy exists.
func NewClient(ctx context.Context, opts Options, log *zap.SugaredLogger) (*Client, error) {
	if opts.WSDLURL == "" {
		opts.WSDLURL = DefaultWSDLURL
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = NewHTTPClient(opts.Transport, log)
	}
	desc, err := loadWSDL(ctx, hc, opts, log)
	if err != nil {
		return nil, err
	}
	return &Client{http: hc, desc: desc, log: log}, nil
}

// Services lists the service names declared by the WSDL.
func (c *Client) Services() []string { return c.desc.serviceNames() }

// Bind selects a service port.
func (c *Client) Bind(service, port string) (*Port, error) {
	ep, err := c.desc.lookup(service, port)
	if err != nil {
		return nil, err
	}
	return &Port{ep: ep, http: c.http, log: c.log}, nil
}

func (c *Client) Close() { c.http.CloseIdleConnections() }

// loadWSDL prefers a fresh cache entry and stores newly fetched documents
// once they parse.
func loadWSDL(ctx context.Context, hc *http.Client, opts Options, log *zap.SugaredLogger) (*description, error) {
	var cache *WSDLCache
	if opts.CachePath != "" {
		var err error
		if cache, err = OpenWSDLCache(ctx, opts.CachePath, opts.CacheTTL); err != nil {
			log.Warnw("wsdl cache unavailable", "path", opts.CachePath, "err", err)
			cache = nil
		} else {
			defer cache.Close()
		}
	}

	if cache != nil {
		body, ok, err := cache.Get(ctx, opts.WSDLURL)
		switch {
		case err != nil:
			log.Warnw("wsdl cache read failed", "err", err)
		case ok:
			// A corrupt entry is refetched instead of failing the run.
			if desc, perr := parseWSDL(body); perr == nil {
				log.Debugw("wsdl cache hit", "url", opts.WSDLURL)
				return desc, nil
			}
		}
	}

	body, err := fetchWSDL(ctx, hc, opts.WSDLURL)
	if err != nil {
		return nil, err
	}
	desc, err := parseWSDL(body)
	if err != nil {
		return nil, err
	}
	if cache != nil {
		if err := cache.Put(ctx, opts.WSDLURL, body); err != nil {
			log.Warnw("wsdl cache write failed", "err", err)
		}
	}
	return desc, nil
}

func fetchWSDL(ctx context.Context, hc *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build wsdl request")
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "fetch wsdl %s", url)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "read wsdl %s", url)
	}
	if resp.StatusCode != http.StatusOK || !looksLikeXML(resp.Header.Get("Content-Type"), body) {
		return nil, newUnexpectedResponse(resp.StatusCode, body)
	}
	return body, nil
}

// Port is a bound service endpoint.
type Port struct {
	ep   endpoint
	http *http.Client
	log  *zap.SugaredLogger
}

func (p *Port) Service() string   { return p.ep.Service }
func (p *Port) Name() string      { return p.ep.Port }
func (p *Port) Address() string   { return p.ep.Address }
func (p *Port) Namespace() string { return p.ep.Namespace }

func (p *Port) Operations() []string {
	ops := make([]string, 0, len(p.ep.Operations))
	for op := range p.ep.Operations {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return ops
}
