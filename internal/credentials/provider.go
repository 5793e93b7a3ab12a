package credentials

import (
	"context"
	"os/user"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Prompter asks the operator for missing values.
type Prompter interface {
	// Username asks for the user name of svc; def is offered as default
	// and may be empty.
	Username(ctx context.Context, svc Service, def string) (string, error)
	// Token asks for the token of svc without echoing it.
	Token(ctx context.Context, svc Service) (string, error)
}

// Provider resolves credentials once per service and process.
type Provider struct {
	store    *Store
	prompter Prompter
	log      *zap.SugaredLogger

	// DefaultUser returns the suggested user name for svc.
	DefaultUser func(svc Service) string

	mu    sync.Mutex
	cache map[Service]Credential
}

func NewProvider(store *Store, prompter Prompter, log *zap.SugaredLogger) *Provider {
	return &Provider{
		store:       store,
		prompter:    prompter,
		log:         log,
		DefaultUser: loginName,
		cache:       map[Service]Credential{},
	}
}

// loginName follows the warehouse's surname_name convention by offering
// the OS login name. The registry expects a MaStR number, so it gets none.
func loginName(svc Service) string {
	if svc != Warehouse {
		return ""
	}
	u, err := user.Current()
	if err != nil {
		return ""
	}
	return u.Username
}

// Get returns the credential for svc, prompting for and persisting what is
// missing. A persisted failure is returned as is; nothing is retried.
func (p *Provider) Get(ctx context.Context, svc Service) (Credential, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.cache[svc]; ok {
		return c, nil
	}

	c, err := p.store.Read(svc)
	switch {
	case err == nil:
		p.log.Infof("Hello %s, welcome back", c.User)
		p.cache[svc] = c
		return c, nil
	case errors.Is(err, ErrConfigNotFound), errors.Is(err, ErrTokenNotFound):
	default:
		return Credential{}, err
	}

	if c.User == "" {
		u, err := p.prompter.Username(ctx, svc, p.DefaultUser(svc))
		if err != nil {
			return Credential{}, errors.Wrapf(err, "%s user", svc)
		}
		c.User = u
		p.log.Infof("Hello %s", c.User)
	} else {
		p.log.Infof("Hello %s, welcome back", c.User)
	}

	token, err := p.prompter.Token(ctx, svc)
	if err != nil {
		return Credential{}, errors.Wrapf(err, "%s token", svc)
	}
	c.Token = token

	if err := p.store.Write(svc, c); err != nil {
		return Credential{}, err
	}
	p.log.Infow("config file created", "path", p.store.Path, "section", string(svc))

	p.cache[svc] = c
	return c, nil
}
