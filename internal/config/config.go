package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

var (
	ErrMissingAPIKey = errors.New("SUPADATA_API_KEY is not set")
	ErrInvalidFormat = errors.New("format must be \"text\" or \"segments\"")
	ErrInvalidStore  = errors.New("store must be \"files\" or \"sqlite\"")
	ErrInvalidDelay  = errors.New("delay must not be negative")
)

const (
	StoreFiles  = "files"
	StoreSQLite = "sqlite"

	FormatText     = "text"
	FormatSegments = "segments"
)

// Config holds application configuration. It is built once by Load and
// passed by value afterwards. Durations in the TOML file are strings like "5s".
type Config struct {
	APIKey         string        `toml:"api_key"`
	BaseURL        string        `toml:"base_url"`
	Language       string        `toml:"language"`
	Format         string        `toml:"format"`
	InputPath      string        `toml:"input"`
	OutputDir      string        `toml:"output_dir"`
	FallbackDir    string        `toml:"fallback_output_dir"`
	CompletedLog   string        `toml:"completed_log"`
	FailedLog      string        `toml:"failed_log"`
	Store          string        `toml:"store"`
	DBPath         string        `toml:"db"`
	Delay          time.Duration `toml:"delay"`
	RequestTimeout time.Duration `toml:"request_timeout"`
	StatusAddr     string        `toml:"status_addr"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		BaseURL:        "https://api.supadata.ai/v1",
		Language:       "en",
		Format:         FormatText,
		InputPath:      "youtube_url.csv",
		OutputDir:      "transcripts",
		FallbackDir:    "transcripts_fallback",
		CompletedLog:   "youtube_url_completed.txt",
		FailedLog:      "youtube_url_failed.txt",
		Store:          StoreFiles,
		DBPath:         DefaultDBPath(),
		Delay:          5 * time.Second,
		RequestTimeout: 60 * time.Second,
	}
}

// DefaultDBPath returns the default database path using XDG_CACHE_HOME.
func DefaultDBPath() string {
	cacheDir := os.Getenv("XDG_CACHE_HOME")
	if cacheDir == "" {
		home, _ := os.UserHomeDir()
		cacheDir = filepath.Join(home, ".cache")
	}
	return filepath.Join(cacheDir, "transcriber", "progress.db")
}

// DefaultConfigPath returns the config file path using XDG_CONFIG_HOME.
func DefaultConfigPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, _ := os.UserHomeDir()
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "transcriber", "config.toml")
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}

// Load builds the configuration. Later sources win:
// defaults, config file, .env, environment, flags.
// The .env file is read, never exported into the process environment.
// A help request returns flag.ErrHelp after usage has been written to out.
func Load(args []string, out io.Writer) (Config, error) {
	fs := flag.NewFlagSet("transcriber", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.Usage = func() { usage(fs) }

	def := Default()
	var fv Config
	configPath := fs.String("config", DefaultConfigPath(), "TOML config file")
	envFile := fs.String("env-file", ".env", "dotenv file with SUPADATA_API_KEY")
	fs.StringVar(&fv.Language, "language", def.Language, "Transcript language code (e.g. en, es, fr)")
	fs.StringVar(&fv.Format, "format", def.Format, "Transcript format requested from the service: text or segments")
	fs.StringVar(&fv.InputPath, "input", def.InputPath, "CSV file of id,url[,description] rows")
	fs.StringVar(&fv.OutputDir, "output", def.OutputDir, "Transcript output directory")
	fs.StringVar(&fv.FallbackDir, "fallback-output", def.FallbackDir, "Output directory used when -output is not writable")
	fs.StringVar(&fv.CompletedLog, "completed-log", def.CompletedLog, "Completed URL log")
	fs.StringVar(&fv.FailedLog, "failed-log", def.FailedLog, "Failed URL log")
	fs.StringVar(&fv.Store, "store", def.Store, "Progress store: files or sqlite")
	fs.StringVar(&fv.DBPath, "db", def.DBPath, "SQLite progress database path")
	fs.DurationVar(&fv.Delay, "delay", def.Delay, "Minimum delay between transcript requests")
	fs.DurationVar(&fv.RequestTimeout, "timeout", def.RequestTimeout, "Per-request timeout")
	fs.StringVar(&fv.StatusAddr, "status-addr", def.StatusAddr, "Serve live progress on this address (e.g. :8080)")
	fs.StringVar(&fv.BaseURL, "base-url", def.BaseURL, "Transcript service base URL")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg := def
	if err := loadFile(ExpandPath(*configPath), &cfg); err != nil {
		return Config{}, err
	}

	dotenv, err := godotenv.Read(ExpandPath(*envFile))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", *envFile, err)
	}
	err = applyEnv(&cfg, func(key string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return dotenv[key]
	})
	if err != nil {
		return Config{}, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "language":
			cfg.Language = fv.Language
		case "format":
			cfg.Format = fv.Format
		case "input":
			cfg.InputPath = fv.InputPath
		case "output":
			cfg.OutputDir = fv.OutputDir
		case "fallback-output":
			cfg.FallbackDir = fv.FallbackDir
		case "completed-log":
			cfg.CompletedLog = fv.CompletedLog
		case "failed-log":
			cfg.FailedLog = fv.FailedLog
		case "store":
			cfg.Store = fv.Store
		case "db":
			cfg.DBPath = fv.DBPath
		case "delay":
			cfg.Delay = fv.Delay
		case "timeout":
			cfg.RequestTimeout = fv.RequestTimeout
		case "status-addr":
			cfg.StatusAddr = fv.StatusAddr
		case "base-url":
			cfg.BaseURL = fv.BaseURL
		}
	})

	if cfg.Language == "" {
		cfg.Language = def.Language
	}
	cfg.InputPath = ExpandPath(cfg.InputPath)
	cfg.OutputDir = ExpandPath(cfg.OutputDir)
	cfg.FallbackDir = ExpandPath(cfg.FallbackDir)
	cfg.CompletedLog = ExpandPath(cfg.CompletedLog)
	cfg.FailedLog = ExpandPath(cfg.FailedLog)
	cfg.DBPath = ExpandPath(cfg.DBPath)

	return cfg, cfg.Validate()
}

// Validate checks the values Load cannot default.
func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return ErrMissingAPIKey
	}
	if c.Format != FormatText && c.Format != FormatSegments {
		return fmt.Errorf("%w, got %q", ErrInvalidFormat, c.Format)
	}
	if c.Store != StoreFiles && c.Store != StoreSQLite {
		return fmt.Errorf("%w, got %q", ErrInvalidStore, c.Store)
	}
	if c.Delay < 0 {
		return ErrInvalidDelay
	}
	return nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if _, err := toml.Decode(string(data), cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// applyEnv reads overrides through getenv, which consults the real
// environment before the dotenv file.
func applyEnv(cfg *Config, getenv func(string) string) error {
	if key := getenv("SUPADATA_API_KEY"); key != "" {
		cfg.APIKey = key
	}
	if lang := getenv("TRANSCRIBER_LANGUAGE"); lang != "" {
		cfg.Language = lang
	}
	if format := getenv("TRANSCRIBER_FORMAT"); format != "" {
		cfg.Format = format
	}
	if dir := getenv("TRANSCRIBER_OUTPUT_DIR"); dir != "" {
		cfg.OutputDir = dir
	}
	if store := getenv("TRANSCRIBER_STORE"); store != "" {
		cfg.Store = store
	}
	if db := getenv("TRANSCRIBER_DB"); db != "" {
		cfg.DBPath = db
	}
	if delay := getenv("TRANSCRIBER_DELAY"); delay != "" {
		d, err := time.ParseDuration(delay)
		if err != nil {
			return fmt.Errorf("TRANSCRIBER_DELAY: %w", err)
		}
		cfg.Delay = d
	}
	return nil
}

func usage(fs *flag.FlagSet) {
	w := fs.Output()
	fmt.Fprintln(w, "Usage: transcriber [options]")
	fmt.Fprintln(w, "\nFetches transcripts for every row of the input CSV, skipping rows already")
	fmt.Fprintln(w, "recorded in the completed or failed log.")
	fmt.Fprintln(w, "\nOptions:")
	fs.PrintDefaults()
	fmt.Fprintln(w, "\nExamples:")
	fmt.Fprintln(w, "  transcriber")
	fmt.Fprintln(w, "  transcriber -language es")
	fmt.Fprintln(w, "\nEnvironment:")
	fmt.Fprintln(w, "  SUPADATA_API_KEY must be set in the environment or in .env")
	fmt.Fprintln(w, "  To retry a failed video, delete its line from the failed log and rerun.")
}
