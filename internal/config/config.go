package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig     `yaml:"server"`
	Logging   LoggingConfig    `yaml:"logging"`
	Templates TemplatesConfig  `yaml:"templates"`
	Campaigns []CampaignConfig `yaml:"campaigns"`

	// Secrets are read from the environment at load time, never from the
	// config file.
	Secrets Secrets `yaml:"-"`
}

type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	// BaseURL is the public origin tracking links are built against,
	// e.g. "https://go.example.com".
	BaseURL string `yaml:"base_url"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type TemplatesConfig struct {
	Dir string `yaml:"dir"`
}

type CampaignConfig struct {
	Name        string            `yaml:"name"`
	Database    string            `yaml:"database"`
	SMTP        SMTPConfig        `yaml:"smtp"`
	Email       EmailConfig       `yaml:"email"`
	Links       map[string]string `yaml:"links"`
	LandingPage string            `yaml:"landing_page"`
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	From     string `yaml:"from"`
	// NotifyTo receives the interested/unsubscribed notifications.
	// Defaults to From.
	NotifyTo string `yaml:"notify_to"`
}

type EmailConfig struct {
	Subject  string        `yaml:"subject"`
	Template string        `yaml:"template"`
	Delay    time.Duration `yaml:"delay"`
}

type Secrets struct {
	SMTPPassword          string
	DashboardUser         string
	DashboardPassword     string
	DashboardPasswordHash string // bcrypt, preferred over the plaintext variant
}

// Load reads the YAML config at path and the required secrets from the
// environment. A missing secret or malformed campaign definition is a
// startup error; there is no partial initialization.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.Secrets = Secrets{
		SMTPPassword:          os.Getenv("SMTP_PASSWORD"),
		DashboardUser:         os.Getenv("DASHBOARD_USER"),
		DashboardPassword:     os.Getenv("DASHBOARD_PASSWORD"),
		DashboardPasswordHash: os.Getenv("DASHBOARD_PASSWORD_HASH"),
	}

	setDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Templates.Dir == "" {
		cfg.Templates.Dir = "templates"
	}
	if cfg.Secrets.DashboardUser == "" {
		cfg.Secrets.DashboardUser = "admin"
	}
	for i := range cfg.Campaigns {
		c := &cfg.Campaigns[i]
		if c.SMTP.Port == 0 {
			c.SMTP.Port = 465
		}
		if c.SMTP.NotifyTo == "" {
			c.SMTP.NotifyTo = c.SMTP.From
		}
		if c.Email.Template == "" {
			c.Email.Template = "email.html"
		}
		if c.Email.Delay == 0 {
			c.Email.Delay = 30 * time.Second
		}
	}
}

func validate(cfg *Config) error {
	if cfg.Server.BaseURL == "" {
		return fmt.Errorf("server.base_url is required")
	}
	if len(cfg.Campaigns) == 0 {
		return fmt.Errorf("at least one campaign is required")
	}
	if cfg.Secrets.SMTPPassword == "" {
		return fmt.Errorf("SMTP_PASSWORD environment variable not set")
	}
	if cfg.Secrets.DashboardPassword == "" && cfg.Secrets.DashboardPasswordHash == "" {
		return fmt.Errorf("DASHBOARD_PASSWORD or DASHBOARD_PASSWORD_HASH environment variable not set")
	}

	seen := map[string]bool{}
	for _, c := range cfg.Campaigns {
		if c.Name == "" {
			return fmt.Errorf("campaign name is required")
		}
		if seen[c.Name] {
			return fmt.Errorf("duplicate campaign name %q", c.Name)
		}
		seen[c.Name] = true
		if c.Database == "" {
			return fmt.Errorf("campaign %s: database is required", c.Name)
		}
		if c.SMTP.Host == "" {
			return fmt.Errorf("campaign %s: smtp.host is required", c.Name)
		}
		if c.SMTP.Username == "" {
			return fmt.Errorf("campaign %s: smtp.username is required", c.Name)
		}
		if c.SMTP.From == "" {
			return fmt.Errorf("campaign %s: smtp.from is required", c.Name)
		}
		if c.Email.Subject == "" {
			return fmt.Errorf("campaign %s: email.subject is required", c.Name)
		}
	}

	return nil
}

// Campaign returns the definition for name, or nil.
func (c *Config) Campaign(name string) *CampaignConfig {
	for i := range c.Campaigns {
		if c.Campaigns[i].Name == name {
			return &c.Campaigns[i]
		}
	}
	return nil
}
