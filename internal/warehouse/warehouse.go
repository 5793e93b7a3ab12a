// Package warehouse opens authenticated sessions against the SQL warehouse.
package warehouse

import (
	"context"
	"net"
	"net/url"
	"strconv"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"mastr/internal/credentials"
	"mastr/internal/storage"
)

// Config describes where the warehouse lives. Username and Password are
// filled from the warehouse credential unless DSN is set.
type Config struct {
	Kind     string
	Host     string
	Port     int
	Database string
	SSLMode  string
	// DSN, when set, is used verbatim and no credential is requested.
	DSN string

	Username string
	Password string
}

// ToDBConnectionURI returns the connection string for Kind. User and
// password are URL-escaped.
func (c Config) ToDBConnectionURI() string {
	if c.DSN != "" {
		return c.DSN
	}
	u := url.URL{
		User: url.UserPassword(c.Username, c.Password),
		Host: net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
	}
	q := url.Values{}
	switch c.Kind {
	case "mssql":
		u.Scheme = "sqlserver"
		q.Set("database", c.Database)
	default:
		u.Scheme = "postgres"
		u.Path = "/" + c.Database
		if c.SSLMode != "" {
			q.Set("sslmode", c.SSLMode)
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// CredentialSource yields the credential of a service.
type CredentialSource interface {
	Get(ctx context.Context, svc credentials.Service) (credentials.Credential, error)
}

// Session bundles the write handle and the metadata handle. Both are the
// same repository; Close releases it once.
type Session struct {
	Conn    storage.Repository
	Catalog storage.Catalog
}

func (s *Session) Close() {
	if s != nil && s.Conn != nil {
		s.Conn.Close()
	}
}

// Opener opens a fresh Session per call.
type Opener struct {
	creds CredentialSource
	cfg   Config
	log   *zap.SugaredLogger

	// NewRepository defaults to storage.New.
	NewRepository func(ctx context.Context, cfg storage.Config) (storage.Repository, error)
}

func NewOpener(creds CredentialSource, cfg Config, log *zap.SugaredLogger) *Opener {
	if cfg.Kind == "" {
		cfg.Kind = "postgres"
	}
	return &Opener{creds: creds, cfg: cfg, log: log, NewRepository: storage.New}
}

// Open connects without retry. Errors are wrapped but otherwise unmodified.
func (o *Opener) Open(ctx context.Context) (*Session, error) {
	cfg := o.cfg
	if cfg.DSN == "" {
		c, err := o.creds.Get(ctx, credentials.Warehouse)
		if err != nil {
			return nil, errors.Wrap(err, "warehouse credentials")
		}
		cfg.Username, cfg.Password = c.User, c.Token
	}

	dsn := cfg.ToDBConnectionURI()
	o.log.Debugw("opening warehouse", "kind", cfg.Kind, "dsn", redact(dsn))

	repo, err := o.NewRepository(ctx, storage.Config{Kind: cfg.Kind, DSN: dsn})
	if err != nil {
		return nil, errors.Wrapf(err, "open %s warehouse", cfg.Kind)
	}
	return &Session{Conn: repo, Catalog: repo}, nil
}

// Open is a one-shot convenience over NewOpener(...).Open.
func Open(ctx context.Context, creds CredentialSource, cfg Config, log *zap.SugaredLogger) (*Session, error) {
	return NewOpener(creds, cfg, log).Open(ctx)
}

func redact(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.Scheme == "" {
		return dsn
	}
	return u.Redacted()
}
