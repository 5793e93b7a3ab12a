// Package credentials resolves the user/token pairs for the registry and
// the warehouse from a YAML file, prompting once and persisting when a
// token is missing.
package credentials

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Service names a credentialed endpoint and doubles as the file section.
type Service string

const (
	Registry  Service = "registry"
	Warehouse Service = "warehouse"
)

// Credential is a user name and its API token.
type Credential struct {
	User  string `yaml:"user"`
	Token string `yaml:"token"`
}

var (
	// ErrConfigNotFound is returned when the credentials file does not exist.
	ErrConfigNotFound = errors.New("credentials file not found")
	// ErrTokenNotFound is returned when the file exists but the service has
	// no token. The returned Credential still carries the user if one is stored.
	ErrTokenNotFound = errors.New("token not found")
)

// DefaultPath is ~/.mastr/config.yaml, or a relative path when the home
// directory is unknown.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".mastr", "config.yaml")
	}
	return filepath.Join(home, ".mastr", "config.yaml")
}

// Store reads and writes the credentials file.
type Store struct {
	Fs   afero.Fs
	Path string
}

func NewStore(fs afero.Fs, path string) *Store {
	return &Store{Fs: fs, Path: path}
}

func (s *Store) load() (map[Service]Credential, error) {
	data, err := afero.ReadFile(s.Fs, s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrConfigNotFound
		}
		return nil, errors.Wrapf(err, "read %s", s.Path)
	}
	sections := map[Service]Credential{}
	if err := yaml.Unmarshal(data, &sections); err != nil {
		return nil, errors.Wrapf(err, "parse %s", s.Path)
	}
	return sections, nil
}

// Read returns the stored credential for svc.
//
// Outcomes: a complete credential; ErrConfigNotFound; ErrTokenNotFound
// (with the stored user, if any); or a hard read/parse error.
func (s *Store) Read(svc Service) (Credential, error) {
	sections, err := s.load()
	if err != nil {
		return Credential{}, err
	}
	c := sections[svc]
	if c.Token == "" {
		return Credential{User: c.User}, ErrTokenNotFound
	}
	return c, nil
}

// Write stores c under svc and keeps every other section. The file is
// created with mode 0600 inside a 0700 directory.
func (s *Store) Write(svc Service, c Credential) error {
	sections, err := s.load()
	if errors.Is(err, ErrConfigNotFound) {
		sections = map[Service]Credential{}
	} else if err != nil {
		return err
	}
	sections[svc] = c

	data, err := yaml.Marshal(sections)
	if err != nil {
		return errors.Wrap(err, "encode credentials")
	}
	if err := s.Fs.MkdirAll(filepath.Dir(s.Path), 0o700); err != nil {
		return errors.Wrapf(err, "create %s", filepath.Dir(s.Path))
	}
	if err := afero.WriteFile(s.Fs, s.Path, data, 0o600); err != nil {
		return errors.Wrapf(err, "write %s", s.Path)
	}
	// WriteFile keeps the mode of an existing file.
	if err := s.Fs.Chmod(s.Path, 0o600); err != nil {
		return errors.Wrapf(err, "chmod %s", s.Path)
	}
	return nil
}
