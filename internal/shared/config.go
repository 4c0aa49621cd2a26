package shared

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Database struct {
		Driver string `mapstructure:"driver"` // "sqlite" (default)
		DSN    string `mapstructure:"dsn"`    // empty: check keeps no history
	} `mapstructure:"database"`

	Analysis struct {
		Sources []string `mapstructure:"sources"` // ["./src"]
		Include []string `mapstructure:"include"` // [".py", ".pyi"]
		Exclude []string `mapstructure:"exclude"` // directory/file globs
		Workers int      `mapstructure:"workers"` // 0 → NumCPU
	} `mapstructure:"analysis"`

	Rules struct {
		SeverityThreshold string   `mapstructure:"severity_threshold"` // "LOW"|"MEDIUM"|"HIGH"
		Disabled          []string `mapstructure:"disabled"`
		Packs             []string `mapstructure:"packs"` // YAML rule packs

		Typing struct {
			Disallowed []string `mapstructure:"disallowed"`
		} `mapstructure:"typing"`

		Comments struct {
			MaxRatio     float64 `mapstructure:"max_ratio"`
			MinCodeLines int     `mapstructure:"min_code_lines"`
		} `mapstructure:"comments"`
	} `mapstructure:"rules"`

	Reporting struct {
		OutDir string `mapstructure:"out_dir"` // "" → no report files
		Format string `mapstructure:"format"`  // "text"|"json"|"jsonl"
	} `mapstructure:"reporting"`

	Logging struct {
		Format string `mapstructure:"format"` // "json"|"text"
		Level  string `mapstructure:"level"`  // "info"|"debug"|"warn"|"error"
	} `mapstructure:"logging"`

	Server struct {
		Addr           string   `mapstructure:"addr"`
		AllowedOrigins []string `mapstructure:"allowed_origins"`
		SessionHours   int      `mapstructure:"session_hours"`
	} `mapstructure:"server"`

	Telemetry struct {
		Endpoint string `mapstructure:"endpoint"` // OTLP HTTP; "" → discard spans
	} `mapstructure:"telemetry"`
}

func DefaultConfig() Config {
	var c Config
	c.Database.Driver = "sqlite"
	c.Analysis.Sources = []string{"."}
	c.Analysis.Include = []string{".py", ".pyi"}
	c.Analysis.Exclude = []string{".git", "__pycache__", ".venv", "venv", "node_modules", ".tox", "build", "dist"}
	c.Analysis.Workers = runtime.NumCPU()
	c.Rules.SeverityThreshold = "LOW"
	c.Rules.Disabled = []string{}
	c.Rules.Packs = []string{}
	c.Rules.Typing.Disallowed = []string{"Dict", "List", "Set", "Union", "Optional"}
	c.Rules.Comments.MaxRatio = 0.35
	c.Rules.Comments.MinCodeLines = 20
	c.Reporting.Format = "text"
	c.Logging.Format = "text"
	c.Logging.Level = "info"
	c.Server.Addr = ":8080"
	c.Server.AllowedOrigins = []string{}
	c.Server.SessionHours = 12
	return c
}

// LoadConfig layers defaults, the YAML file at path (optional) and
// PYCONFORM_* environment variables, in increasing precedence. A file
// that cannot be read is reported but the remaining layers still apply.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())
	v.SetEnvPrefix("PYCONFORM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var readErr error
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			readErr = fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return DefaultConfig(), fmt.Errorf("decode config: %w", err)
	}
	return c, readErr
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("database.driver", d.Database.Driver)
	v.SetDefault("database.dsn", d.Database.DSN)
	v.SetDefault("analysis.sources", d.Analysis.Sources)
	v.SetDefault("analysis.include", d.Analysis.Include)
	v.SetDefault("analysis.exclude", d.Analysis.Exclude)
	v.SetDefault("analysis.workers", d.Analysis.Workers)
	v.SetDefault("rules.severity_threshold", d.Rules.SeverityThreshold)
	v.SetDefault("rules.disabled", d.Rules.Disabled)
	v.SetDefault("rules.packs", d.Rules.Packs)
	v.SetDefault("rules.typing.disallowed", d.Rules.Typing.Disallowed)
	v.SetDefault("rules.comments.max_ratio", d.Rules.Comments.MaxRatio)
	v.SetDefault("rules.comments.min_code_lines", d.Rules.Comments.MinCodeLines)
	v.SetDefault("reporting.out_dir", d.Reporting.OutDir)
	v.SetDefault("reporting.format", d.Reporting.Format)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.allowed_origins", d.Server.AllowedOrigins)
	v.SetDefault("server.session_hours", d.Server.SessionHours)
	v.SetDefault("telemetry.endpoint", d.Telemetry.Endpoint)
}
