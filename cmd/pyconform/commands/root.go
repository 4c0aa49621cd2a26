package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/codewithboateng/pyconform/internal/rules"
	"github.com/codewithboateng/pyconform/internal/rulesdsl"
	"github.com/codewithboateng/pyconform/internal/shared"
	"github.com/codewithboateng/pyconform/internal/storage"
	"github.com/codewithboateng/pyconform/internal/telemetry"
)

// Version is set at build time with -ldflags "-X .../commands.Version=...".
var Version = "dev"

const (
	exitOK         = 0
	exitViolations = 1
	exitUsage      = 2
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

func usageErr(format string, args ...any) error {
	return &ExitError{Code: exitUsage, Err: fmt.Errorf(format, args...)}
}

type app struct {
	cfgFile   string
	logLevel  string
	logFormat string

	cfg      shared.Config
	logger   *slog.Logger
	packs    []string
	shutdown func(context.Context) error

	stdout io.Writer
	stderr io.Writer
}

// Execute runs the CLI and returns the process exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := &app{stdout: stdout, stderr: stderr}
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	err := root.ExecuteContext(ctx)
	if a.shutdown != nil {
		if serr := a.shutdown(context.Background()); serr != nil {
			slog.Debug("telemetry shutdown", "err", serr)
		}
	}
	if err == nil {
		return exitOK
	}
	var ee *ExitError
	if errors.As(err, &ee) {
		if ee.Err != nil {
			fmt.Fprintln(stderr, "pyconform:", ee.Err)
		}
		return ee.Code
	}
	fmt.Fprintln(stderr, "pyconform:", err)
	return exitUsage
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "pyconform",
		Short: "Python source convention checker",
		Long: `pyconform checks Python source trees against a table of coding conventions
(absolute imports, builtin generics, postponed annotations, unquoted
annotations, sparse comments) and reports every violation it finds.`,
		Version:           Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "path to YAML config")
	pf.StringVar(&a.logLevel, "log-level", "", "log level (debug|info|warn|error)")
	pf.StringVar(&a.logFormat, "log-format", "", "log format (text|json)")

	root.AddCommand(
		a.checkCmd(),
		a.reportCmd(),
		a.diffCmd(),
		a.runsCmd(),
		a.rulesCmd(),
		a.waiverCmd(),
		a.userCmd(),
		a.serveCmd(),
		a.versionCmd(),
	)
	return root
}

// setup loads configuration and installs logging and tracing. Flags
// override config values.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := shared.LoadConfig(a.cfgFile)
	if err != nil {
		return &ExitError{Code: exitUsage, Err: err}
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Logging.Format = a.logFormat
	}
	a.cfg = cfg
	a.logger = shared.InitLogger(a.stderr, cfg.Logging.Format, cfg.Logging.Level)

	shutdown, err := telemetry.Init(cmd.Context(), Version, cfg.Telemetry.Endpoint)
	if err != nil {
		a.logger.Warn("tracing disabled", "err", err)
	} else {
		a.shutdown = shutdown
	}
	return a.applyRules(nil)
}

// applyRules installs rule settings from the config and registers the
// configured rule packs plus any extra ones.
func (a *app) applyRules(extraPacks []string) error {
	r := a.cfg.Rules
	switch strings.ToUpper(strings.TrimSpace(r.SeverityThreshold)) {
	case "", "LOW", "MEDIUM", "HIGH":
	default:
		return usageErr("unknown severity threshold %q", r.SeverityThreshold)
	}
	disabled := map[string]bool{}
	for _, id := range r.Disabled {
		disabled[id] = true
	}
	rules.SetSettings(rules.Settings{
		SeverityThreshold: r.SeverityThreshold,
		Disabled:          disabled,
		DisallowedTyping:  r.Typing.Disallowed,
		MaxCommentRatio:   r.Comments.MaxRatio,
		MinCodeLines:      r.Comments.MinCodeLines,
	})

	packs := append(append([]string{}, r.Packs...), extraPacks...)
	a.packs = a.packs[:0]
	for _, p := range packs {
		n, err := rulesdsl.LoadAndRegister(p)
		if err != nil {
			return &ExitError{Code: exitUsage, Err: err}
		}
		a.packs = append(a.packs, p)
		a.logger.Debug("rule pack loaded", "path", p, "rules", n)
	}
	return nil
}

// defaultDSN is the history database used by the history, admin and
// serve commands when neither --db nor database.dsn names one.
const defaultDSN = "./pyconform.db"

// historyDSN resolves the database a command was pointed at, or "".
func (a *app) historyDSN(flag string) string {
	if flag != "" {
		return flag
	}
	return a.cfg.Database.DSN
}

// openDB opens the run history database and ensures its schema.
func (a *app) openDB(dsn string) (*storage.DB, error) {
	if dsn = a.historyDSN(dsn); dsn == "" {
		dsn = defaultDSN
	}
	db, err := storage.OpenSQLite(dsn)
	if err != nil {
		return nil, err
	}
	if err := db.CreateSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("db schema: %w", err)
	}
	return db, nil
}

func addDBFlag(fs *pflag.FlagSet, p *string) {
	fs.StringVar(p, "db", "", "SQLite run history (default database.dsn, then "+defaultDSN+")")
}
