package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds everything the gateway needs to talk to its two backends.
// It is resolved once at process start and never mutated afterwards; every
// client and handler receives it by reference.
type Config struct {
	ConfluenceBaseURL string
	JiraBaseURL       string
	Email             string
	APIToken          string

	// ConfluenceCloud selects Cloud-style paths ({base}/wiki/rest/api).
	// Server/Data Center deployments use {base}/rest/api.
	ConfluenceCloud bool

	// InProgressStatus is the status name the tracker uses for in-progress
	// work. Status names are deployment-specific (and often localized), so
	// this cannot be a literal.
	InProgressStatus string

	// AuditDB is the path of the SQLite call-audit database. Empty disables
	// auditing.
	AuditDB string
}

// fileConfig mirrors the optional YAML config file. Environment variables
// override anything set here.
type fileConfig struct {
	ConfluenceBaseURL string `yaml:"confluence_base_url"`
	JiraBaseURL       string `yaml:"jira_base_url"`
	Email             string `yaml:"email"`
	APIToken          string `yaml:"api_token"`
	ConfluenceCloud   string `yaml:"confluence_cloud"`
	InProgressStatus  string `yaml:"in_progress_status"`
	AuditDB           string `yaml:"audit_db"`
}

// Load reads the optional YAML file at path (empty skips it), overlays the
// environment, and validates that every required value is present.
func Load(path string) (*Config, error) {
	var fc fileConfig
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	pick := func(envKey, fileVal string) string {
		if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
			return v
		}
		return strings.TrimSpace(fileVal)
	}

	cfg := &Config{
		ConfluenceBaseURL: strings.TrimRight(pick("CONFLUENCE_BASE_URL", fc.ConfluenceBaseURL), "/"),
		JiraBaseURL:       strings.TrimRight(pick("JIRA_BASE_URL", fc.JiraBaseURL), "/"),
		Email:             pick("ATLASSIAN_EMAIL", fc.Email),
		APIToken:          pick("ATLASSIAN_TOKEN", fc.APIToken),
		InProgressStatus:  pick("JIRA_IN_PROGRESS_STATUS", fc.InProgressStatus),
		AuditDB:           pick("ATLAS_AUDIT_DB", fc.AuditDB),
	}

	// Anything other than the literal "false" (including absence) selects
	// Cloud-style paths.
	cfg.ConfluenceCloud = pick("CONFLUENCE_CLOUD", fc.ConfluenceCloud) != "false"

	if cfg.InProgressStatus == "" {
		cfg.InProgressStatus = "In Progress"
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var missing []string
	if c.ConfluenceBaseURL == "" {
		missing = append(missing, "CONFLUENCE_BASE_URL")
	}
	if c.JiraBaseURL == "" {
		missing = append(missing, "JIRA_BASE_URL")
	}
	if c.Email == "" {
		missing = append(missing, "ATLASSIAN_EMAIL")
	}
	if c.APIToken == "" {
		missing = append(missing, "ATLASSIAN_TOKEN")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

// AuthHeader builds the Basic auth header both backends accept for the
// shared principal.
func (c *Config) AuthHeader() string {
	enc := base64.StdEncoding.EncodeToString([]byte(c.Email + ":" + c.APIToken))
	return "Basic " + enc
}
