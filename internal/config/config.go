package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
)

const (
	StoreNotion   = "notion"
	StorePostgres = "postgres"

	TransportSMTP = "smtp"
	TransportSES  = "ses"
	TransportAMQP = "amqp"
)

type Config struct {
	Port   string
	AppEnv string

	Store          string
	NotionAPIKey   string
	NotionDatabase string
	NotionBaseURL  string
	DatabaseURL    string
	LeadsTable     string

	Transport  string
	SMTPHost   string
	SMTPPort   int
	SMTPUser   string
	SMTPPass   string
	NotifyTo   []string
	NotifyFrom string
	SESFrom    string
	AWSRegion  string
	AMQPURL    string

	NotifyWait          time.Duration
	LookupFailureAsMiss bool
	RateLimitPerMinute  int
	CORSAllowedOrigins  []string
}

// Load reads .env when present and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

func FromEnv(getenv func(string) string) (*Config, error) {
	env := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	smtpPort, err := intEnv(env("SMTP_PORT", "587"), "SMTP_PORT")
	if err != nil {
		return nil, err
	}
	waitMS, err := intEnv(env("NOTIFY_WAIT_MS", "300"), "NOTIFY_WAIT_MS")
	if err != nil {
		return nil, err
	}
	rateLimit, err := intEnv(env("RATE_LIMIT_PER_MINUTE", "10"), "RATE_LIMIT_PER_MINUTE")
	if err != nil {
		return nil, err
	}
	asMiss, err := strconv.ParseBool(env("LOOKUP_FAILURE_AS_MISS", "false"))
	if err != nil {
		return nil, eris.Wrap(err, "config: LOOKUP_FAILURE_AS_MISS")
	}

	cfg := &Config{
		Port:   env("PORT", "10000"),
		AppEnv: env("APP_ENV", "production"),

		Store:          strings.ToLower(env("LEAD_STORE", StoreNotion)),
		NotionAPIKey:   env("NOTION_API_KEY", ""),
		NotionDatabase: env("NOTION_LEADS_DATABASE_ID", ""),
		NotionBaseURL:  env("NOTION_BASE_URL", ""),
		DatabaseURL:    env("DATABASE_URL", ""),
		LeadsTable:     env("LEADS_TABLE", "leads"),

		Transport:  strings.ToLower(env("NOTIFY_TRANSPORT", TransportSMTP)),
		SMTPHost:   env("SMTP_HOST", ""),
		SMTPPort:   smtpPort,
		SMTPUser:   env("SMTP_USER", ""),
		SMTPPass:   env("SMTP_PASS", ""),
		NotifyTo:   splitList(env("NOTIFY_TO", "")),
		NotifyFrom: env("NOTIFY_FROM", env("SMTP_USER", "")),
		SESFrom:    env("SES_FROM_EMAIL", ""),
		AWSRegion:  env("AWS_REGION", ""),
		AMQPURL:    env("AMQP_URL", ""),

		NotifyWait:          time.Duration(waitMS) * time.Millisecond,
		LookupFailureAsMiss: asMiss,
		RateLimitPerMinute:  rateLimit,
		CORSAllowedOrigins:  splitList(env("CORS_ALLOWED_ORIGINS", "*")),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate fails when the selected store cannot be reached at all. A
// missing notification transport is allowed; intake still records leads.
func (c *Config) Validate() error {
	switch c.Store {
	case StoreNotion:
		if c.NotionAPIKey == "" || c.NotionDatabase == "" {
			return eris.New("config: NOTION_API_KEY and NOTION_LEADS_DATABASE_ID are required for the notion store")
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			return eris.New("config: DATABASE_URL is required for the postgres store")
		}
	default:
		return eris.Errorf("config: unknown LEAD_STORE %q", c.Store)
	}

	switch c.Transport {
	case TransportSMTP, TransportSES, TransportAMQP:
	default:
		return eris.Errorf("config: unknown NOTIFY_TRANSPORT %q", c.Transport)
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func intEnv(raw, key string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, eris.Errorf("config: %s must be a non-negative integer, got %q", key, raw)
	}
	return n, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
