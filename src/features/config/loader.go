package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ProjectFile is the optional per-project configuration overlay, looked up in
// the watch directory.
const ProjectFile = ".latexwatch.yaml"

// Options carries the command-line surface. Zero values mean "not given";
// the project file and the built-in defaults fill the gaps.
type Options struct {
	MainFile       string
	Directory      string
	Server         string
	Debounce       float64
	CompileOnStart bool
	Verbose        bool
}

func defaultConfig() *Config {
	return &Config{
		Server:               "http://localhost:9080",
		DebounceSeconds:      1.0,
		UploadTimeoutSeconds: 120,
		ProbeTimeoutSeconds:  5,
		Logger: Logger{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load resolves the full configuration: built-in defaults, then the project
// file if present, then command-line options on top. Startup invariants (watch
// directory exists, main file exists and lies under it) are checked here so
// that nothing starts watching on a broken setup.
func Load(opts Options) (*Config, error) {
	mainFile, err := filepath.Abs(opts.MainFile)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve main file path: %w", err)
	}
	info, err := os.Stat(mainFile)
	if err != nil {
		return nil, fmt.Errorf("main file not found: %s", mainFile)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("main file is not a file: %s", mainFile)
	}

	watchDir := filepath.Dir(mainFile)
	if opts.Directory != "" {
		watchDir, err = filepath.Abs(opts.Directory)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve watch directory: %w", err)
		}
	}
	info, err = os.Stat(watchDir)
	if err != nil {
		return nil, fmt.Errorf("watch directory not found: %s", watchDir)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch directory is not a directory: %s", watchDir)
	}

	rel, err := filepath.Rel(watchDir, mainFile)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, fmt.Errorf("main file must be inside watch directory (main: %s, watch: %s)", mainFile, watchDir)
	}

	cfg := defaultConfig()
	if err := applyProjectFile(cfg, filepath.Join(watchDir, ProjectFile)); err != nil {
		return nil, err
	}

	cfg.MainFile = mainFile
	cfg.WatchDir = watchDir
	if opts.Server != "" {
		cfg.Server = opts.Server
	}
	if opts.Debounce > 0 {
		cfg.DebounceSeconds = opts.Debounce
	}
	if opts.CompileOnStart {
		cfg.CompileOnStart = true
	}
	if opts.Verbose {
		cfg.Logger.Level = "debug"
	}
	cfg.Server = strings.TrimRight(cfg.Server, "/")

	// Override with environment variables if set
	if token := os.Getenv("TELEGRAM_TOKEN"); token != "" {
		cfg.Telegram.Token = token
	}

	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func applyProjectFile(cfg *Config, path string) error {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(cfg); err != nil && err != io.EOF {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	slog.Debug("Loaded project configuration", "path", path)
	return nil
}
