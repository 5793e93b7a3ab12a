// Command mastr loads MaStR power-unit exports into the warehouse sandbox
// schema and checks access to the registry SOAP API.
//
// Usage:
//
//	mastr upload -data-dir ./data
//	mastr registry
//	mastr login registry
//
// Settings come from MASTR_* environment variables, optionally seeded from
// a .env file (see internal/config).
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mastr/internal/config"
	"mastr/internal/credentials"
	"mastr/internal/logging"

	// register all backends with the storage factory.
	_ "mastr/internal/storage/all"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr, defaultDeps())
	stop()
	os.Exit(code)
}

// deps are the process-level seams swapped out by tests.
type deps struct {
	lookupEnv func(string) (string, bool)
	fs        afero.Fs
	prompter  credentials.Prompter
	newLogger func(verbose bool) (*zap.SugaredLogger, error)
}

func defaultDeps() deps {
	return deps{
		lookupEnv: os.LookupEnv,
		fs:        afero.NewOsFs(),
		prompter:  credentials.NewTerminalPrompter(),
		newLogger: logging.New,
	}
}

// app is the state shared by subcommands once the root pre-run has loaded
// settings and built the logger.
type app struct {
	deps     deps
	stdout   io.Writer
	settings config.Settings
	log      *zap.SugaredLogger
	cleanup  []func()

	envFile        string
	verbose        bool
	metricsBackend string
	pushgatewayURL string
}

// runError marks failures that happen after argument and settings
// validation succeeded.
type runError struct{ err error }

func (e runError) Error() string { return e.err.Error() }
func (e runError) Unwrap() error { return e.err }

func failed(err error) error {
	if err == nil {
		return nil
	}
	return runError{err: err}
}

// run executes the command line and returns a Unix-style exit code:
//   - 0 for success
//   - 2 for usage/config errors
//   - 1 for operational/runtime errors
func run(ctx context.Context, args []string, stdout, stderr io.Writer, d deps) int {
	a := &app{deps: d, stdout: stdout}
	defer a.close()

	root := a.rootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		var re runError
		if errors.As(err, &re) {
			return 1
		}
		return 2
	}
	return 0
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "mastr",
		Short:         "Load MaStR registry exports into the warehouse",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&a.envFile, "env-file", ".env", "dotenv file seeding MASTR_* variables (missing file is ignored)")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logs")
	pf.StringVar(&a.metricsBackend, "metrics-backend", "", "metrics backend: pushgateway, datadog or none (overrides MASTR_METRICS_BACKEND)")
	pf.StringVar(&a.pushgatewayURL, "pushgateway-url", "", "Pushgateway base URL (overrides MASTR_PUSHGATEWAY_URL)")

	root.AddCommand(a.uploadCommand(), a.registryCommand(), a.loginCommand())
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	if err := config.LoadDotEnv(a.envFile); err != nil {
		return err
	}
	s, err := config.Load(a.deps.lookupEnv)
	if err != nil {
		return err
	}
	if a.metricsBackend != "" {
		s.MetricsBackend = a.metricsBackend
	}
	if a.pushgatewayURL != "" {
		s.PushgatewayURL = a.pushgatewayURL
	}
	a.settings = s

	log, err := a.deps.newLogger(a.verbose)
	if err != nil {
		return errors.Wrap(err, "init logger")
	}
	a.log = log
	undo := zap.ReplaceGlobals(log.Desugar())
	a.cleanup = append(a.cleanup, func() {
		_ = log.Sync()
		undo()
	})

	a.setupMetrics(cmd.Context(), cmd.Name())
	return nil
}

// close runs cleanups in reverse order so metrics flush before the logger
// is synced.
func (a *app) close() {
	for i := len(a.cleanup) - 1; i >= 0; i-- {
		a.cleanup[i]()
	}
}

func (a *app) credentialProvider() *credentials.Provider {
	store := credentials.NewStore(a.deps.fs, a.settings.CredentialsPath)
	return credentials.NewProvider(store, a.deps.prompter, a.log)
}
