package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTP HTTPConfig `yaml:"http"`
	Mail MailConfig `yaml:"mail"`
	SMTP SMTPConfig `yaml:"smtp"`
	Log  LogConfig  `yaml:"log"`
	OTel OTelConfig `yaml:"otel"`
}

type HTTPConfig struct {
	Port            string        `yaml:"port"`
	ContactPaths    []string      `yaml:"contact_paths"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	BodyLimit       string        `yaml:"body_limit"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// MailConfig describes the fixed envelope of every relayed message.
type MailConfig struct {
	To       string `yaml:"to"`
	FromName string `yaml:"from_name"`
	// From defaults to the SMTP user when empty.
	From string `yaml:"from"`
}

type SMTPConfig struct {
	Host               string        `yaml:"host"`
	Port               int           `yaml:"port"`
	User               string        `yaml:"user"`
	Password           string        `yaml:"password"`
	TLSMode            string        `yaml:"tls_mode"`
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify"`
	Timeout            time.Duration `yaml:"timeout"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type OTelConfig struct {
	Enabled     bool              `yaml:"enabled"`
	ServiceName string            `yaml:"service_name"`
	Endpoint    string            `yaml:"endpoint"`
	Protocol    string            `yaml:"protocol"` // "grpc" or "http/protobuf"
	Headers     map[string]string `yaml:"headers"`
	Insecure    bool              `yaml:"insecure"`
	SampleRatio float64           `yaml:"sample_ratio"`
}

// Defaults returns the configuration used when neither a file nor the
// environment says otherwise.
func Defaults() Config {
	return Config{
		HTTP: HTTPConfig{
			Port:         "4000",
			ContactPaths: []string{"/", "/api/contact"},
			AllowedOrigins: []string{
				"https://hilston-will.netlify.app",
				"http://localhost:3000",
			},
			BodyLimit:       "64K",
			ShutdownTimeout: 10 * time.Second,
		},
		Mail: MailConfig{
			FromName: "Portfolio Hilston Will",
		},
		SMTP: SMTPConfig{
			Port: 587,
		},
		Log: LogConfig{
			Level:  "INFO",
			Format: "json",
		},
		OTel: OTelConfig{
			ServiceName: "contact-api",
			Protocol:    "grpc",
			SampleRatio: 1.0,
		},
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// CONTACT_CONFIG (default contact.yaml, skipped if missing), then the environment.
func Load() (Config, error) {
	return LoadFrom(envString("CONTACT_CONFIG", "contact.yaml"))
}

// LoadFrom is Load with an explicit YAML path.
func LoadFrom(path string) (Config, error) {
	cfg := Defaults()

	if err := loadFile(path, &cfg); err != nil {
		return Config{}, err
	}
	applyEnv(&cfg)

	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// applyEnv overrides cfg with any environment variables that are set. The
// MAIL_* names match the portfolio's existing .env files.
func applyEnv(cfg *Config) {
	cfg.HTTP.Port = envString("PORT", cfg.HTTP.Port)
	cfg.HTTP.ContactPaths = envList("HTTP_CONTACT_PATHS", cfg.HTTP.ContactPaths)
	cfg.HTTP.AllowedOrigins = envList("ALLOWED_ORIGINS", envList("CORS_ORIGIN", cfg.HTTP.AllowedOrigins))
	cfg.HTTP.BodyLimit = envString("HTTP_BODY_LIMIT", cfg.HTTP.BodyLimit)
	cfg.HTTP.ShutdownTimeout = envDuration("HTTP_SHUTDOWN_TIMEOUT", cfg.HTTP.ShutdownTimeout)

	cfg.Mail.To = envString("MAIL_TO", cfg.Mail.To)
	cfg.Mail.FromName = envString("MAIL_FROM_NAME", cfg.Mail.FromName)
	cfg.Mail.From = envString("MAIL_FROM", cfg.Mail.From)

	cfg.SMTP.Host = envString("MAIL_HOST", cfg.SMTP.Host)
	cfg.SMTP.Port = envInt("MAIL_PORT", cfg.SMTP.Port)
	cfg.SMTP.User = envString("MAIL_USER", cfg.SMTP.User)
	cfg.SMTP.Password = envString("MAIL_PASS", cfg.SMTP.Password)
	cfg.SMTP.TLSMode = envString("SMTP_TLS_MODE", cfg.SMTP.TLSMode)
	cfg.SMTP.InsecureSkipVerify = envBool("SMTP_INSECURE_SKIP_VERIFY", cfg.SMTP.InsecureSkipVerify)
	cfg.SMTP.Timeout = envDuration("SMTP_TIMEOUT", cfg.SMTP.Timeout)

	cfg.Log.Level = envString("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = envString("LOG_FORMAT", cfg.Log.Format)

	cfg.OTel.Enabled = envBool("OTEL_ENABLED", cfg.OTel.Enabled)
	cfg.OTel.ServiceName = envString("OTEL_SERVICE_NAME", cfg.OTel.ServiceName)
	cfg.OTel.Endpoint = envString("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OTel.Endpoint)
	cfg.OTel.Protocol = strings.ToLower(envString("OTEL_EXPORTER_OTLP_PROTOCOL", cfg.OTel.Protocol))
	if headers := parseHeaders(envString("OTEL_EXPORTER_OTLP_HEADERS", "")); headers != nil {
		cfg.OTel.Headers = headers
	}
	cfg.OTel.Insecure = envBool("OTEL_EXPORTER_OTLP_INSECURE", cfg.OTel.Insecure || defaultInsecure(cfg.OTel.Endpoint))
	cfg.OTel.SampleRatio = clamp01(envFloat("OTEL_TRACES_SAMPLE_RATIO", cfg.OTel.SampleRatio))
}

// Sender returns the From header for relayed messages, e.g.
// "Portfolio Hilston Will" <me@example.com>.
func (c Config) Sender() string {
	addr := strings.TrimSpace(c.Mail.From)
	if addr == "" {
		addr = strings.TrimSpace(c.SMTP.User)
	}
	if addr == "" {
		return ""
	}
	name := strings.TrimSpace(c.Mail.FromName)
	if name == "" {
		return addr
	}
	return fmt.Sprintf("%q <%s>", name, addr)
}

func (c Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.SMTP.Host) == "" {
		problems = append(problems, "MAIL_HOST is required")
	}
	if c.SMTP.Port <= 0 || c.SMTP.Port > 65535 {
		problems = append(problems, "MAIL_PORT must be between 1 and 65535")
	}
	if strings.TrimSpace(c.Mail.To) == "" {
		problems = append(problems, "MAIL_TO is required")
	}
	if c.Sender() == "" {
		problems = append(problems, "MAIL_FROM or MAIL_USER is required")
	}
	if len(c.HTTP.ContactPaths) == 0 {
		problems = append(problems, "at least one contact path is required")
	}
	for _, p := range c.HTTP.ContactPaths {
		if !strings.HasPrefix(p, "/") {
			problems = append(problems, fmt.Sprintf("contact path %q must start with /", p))
		}
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		problems = append(problems, "HTTP_SHUTDOWN_TIMEOUT must be positive")
	}
	if strings.TrimSpace(c.HTTP.Port) == "" {
		problems = append(problems, "PORT is required")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
