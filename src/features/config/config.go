package config

// Config holds the resolved run configuration. It is built once at startup and
// passed explicitly to every component; nothing mutates it afterwards.
type Config struct {
	MainFile string `yaml:"-" validate:"required"`
	WatchDir string `yaml:"-" validate:"required"`

	Server               string  `yaml:"server" validate:"required,url"`
	DebounceSeconds      float64 `yaml:"debounce" validate:"gt=0"`
	UploadTimeoutSeconds int     `yaml:"upload_timeout" validate:"gt=0"`
	ProbeTimeoutSeconds  int     `yaml:"probe_timeout" validate:"gt=0"`
	CompileOnStart       bool    `yaml:"compile_on_start"`

	Logger   Logger   `yaml:"logger"`
	Telegram Telegram `yaml:"telegram"`
}

// Logger holds the configuration for the app logging
type Logger struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Telegram holds the configuration for build outcome notifications
type Telegram struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
	ChatID  int64  `yaml:"chat_id"`
}
