package credentials

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/term"
)

// ErrNonInteractive is returned when a value is missing and stdin is not
// a terminal.
var ErrNonInteractive = errors.New("credentials missing and stdin is not a terminal")

var usernamePrompts = map[Service]string{
	Warehouse: "Please provide your OEP username (default surname_name)",
	Registry:  "Please provide your MaStR Nummer",
}

// TerminalPrompter reads from a terminal; the token is read without echo.
type TerminalPrompter struct {
	In  *os.File
	Out io.Writer

	reader *bufio.Reader
}

func NewTerminalPrompter() *TerminalPrompter {
	return &TerminalPrompter{In: os.Stdin, Out: os.Stderr}
}

func (p *TerminalPrompter) interactive() bool {
	return term.IsTerminal(int(p.In.Fd()))
}

func (p *TerminalPrompter) Username(_ context.Context, svc Service, def string) (string, error) {
	if !p.interactive() {
		return "", ErrNonInteractive
	}
	msg := usernamePrompts[svc]
	if def != "" {
		msg += fmt.Sprintf(" [%s]", def)
	}
	fmt.Fprint(p.Out, msg+": ")

	if p.reader == nil {
		p.reader = bufio.NewReader(p.In)
	}
	line, err := p.reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", errors.Wrap(err, "read user")
	}
	v := strings.TrimSpace(line)
	if v == "" {
		v = def
	}
	if v == "" {
		return "", errors.Errorf("%s user is required", svc)
	}
	return v, nil
}

func (p *TerminalPrompter) Token(_ context.Context, svc Service) (string, error) {
	if !p.interactive() {
		return "", ErrNonInteractive
	}
	fmt.Fprint(p.Out, "Token: ")
	b, err := term.ReadPassword(int(p.In.Fd()))
	fmt.Fprintln(p.Out)
	if err != nil {
		return "", errors.Wrap(err, "read token")
	}
	v := strings.TrimSpace(string(b))
	if v == "" {
		return "", errors.Errorf("%s token is required", svc)
	}
	return v, nil
}
