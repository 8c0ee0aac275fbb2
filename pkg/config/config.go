package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultGenerationBaseURL = "https://api.openai.com/v1"
	DefaultModel             = "gpt-4o-mini"
)

type Config struct {
	Port int `yaml:"port"`

	SharedSecret string `yaml:"sharedSecret"`

	GitHubToken    string `yaml:"githubToken"`
	GitHubUsername string `yaml:"githubUsername"`
	GitHubAPIURL   string `yaml:"githubApiUrl"`

	GenerationAPIKey  string `yaml:"generationApiKey"`
	GenerationBaseURL string `yaml:"generationBaseUrl"`
	Model             string `yaml:"model"`
	MaxOutputTokens   int    `yaml:"maxOutputTokens"`

	LogLevel  string `yaml:"logLevel"`
	LogFormat string `yaml:"logFormat"`
	Env       string `yaml:"env"`

	NotifyMaxAttempts     int `yaml:"notifyMaxAttempts"`
	NotifyBaseDelayMillis int `yaml:"notifyBaseDelayMillis"`
	NotifyMaxDelaySeconds int `yaml:"notifyMaxDelaySeconds"`

	PagesSettleSeconds int    `yaml:"pagesSettleSeconds"`
	DefaultBranch      string `yaml:"defaultBranch"`

	TracingEnabled      bool    `yaml:"tracingEnabled"`
	TracingOTLPEndpoint string  `yaml:"tracingOtlpEndpoint"`
	TracingOTLPInsecure bool    `yaml:"tracingOtlpInsecure"`
	TracingSampleRatio  float64 `yaml:"tracingSampleRatio"`
}

// ResolveEndpoint picks the first non-empty value among an explicit setting,
// a legacy-compatible alias, and a default.
func ResolveEndpoint(explicit, legacyAlias, def string) string {
	if v := strings.TrimSpace(explicit); v != "" {
		return v
	}
	if v := strings.TrimSpace(legacyAlias); v != "" {
		return v
	}
	return def
}

// LoadConfigOptional behaves like LoadConfig but tolerates an empty path or a
// missing file, falling back to env-only configuration.
func LoadConfigOptional(filePath string) (*Config, error) {
	filePath = strings.TrimSpace(filePath)
	if filePath == "" {
		return load(nil)
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return load(nil)
		}
		return nil, err
	}
	return load(data)
}

func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return load(data)
}

func load(data []byte) (*Config, error) {
	var c Config
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &c); err != nil {
			return nil, err
		}
	}

	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Port = p
		}
	}
	if v := os.Getenv("SHARED_SECRET"); v != "" {
		c.SharedSecret = v
	}
	if v := os.Getenv("GITHUB_PAT"); v != "" {
		c.GitHubToken = v
	}
	if v := os.Getenv("GITHUB_USERNAME"); v != "" {
		c.GitHubUsername = v
	}
	if v := os.Getenv("GITHUB_API_URL"); v != "" {
		c.GitHubAPIURL = v
	}
	// Explicit keys win over the legacy aliases kept for older deployments.
	c.GenerationAPIKey = ResolveEndpoint(os.Getenv("OPENAI_API_KEY"), os.Getenv("AIPIPE_TOKEN"), c.GenerationAPIKey)
	c.GenerationBaseURL = ResolveEndpoint(os.Getenv("OPENAI_BASE_URL"), os.Getenv("AIPIPE_BASE_URL"), c.GenerationBaseURL)
	if v := os.Getenv("AI_MODEL"); v != "" {
		c.Model = v
	}
	if v := os.Getenv("MAX_OUTPUT_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxOutputTokens = n
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.LogFormat = v
	}
	if v := os.Getenv("ENV"); v != "" {
		c.Env = v
	}
	if v := os.Getenv("NOTIFY_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.NotifyMaxAttempts = n
		}
	}
	if v := os.Getenv("NOTIFY_BASE_DELAY_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.NotifyBaseDelayMillis = n
		}
	}
	if v := os.Getenv("NOTIFY_MAX_DELAY_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.NotifyMaxDelaySeconds = n
		}
	}
	if v := os.Getenv("PAGES_SETTLE_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.PagesSettleSeconds = n
		}
	}
	if v := os.Getenv("DEFAULT_BRANCH"); v != "" {
		c.DefaultBranch = v
	}
	if v := os.Getenv("TRACING_ENABLED"); v != "" {
		c.TracingEnabled = parseBool(v)
	}
	if v := os.Getenv("TRACING_OTLP_ENDPOINT"); v != "" {
		c.TracingOTLPEndpoint = v
	}
	if v := os.Getenv("TRACING_OTLP_INSECURE"); v != "" {
		c.TracingOTLPInsecure = parseBool(v)
	}
	if v := os.Getenv("TRACING_SAMPLE_RATIO"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.TracingSampleRatio = f
		}
	}

	if c.Port == 0 {
		c.Port = 3000
	}
	if c.SharedSecret == "" {
		log.Println("Warning: SHARED_SECRET not set; every request will be rejected")
	}
	if c.GitHubToken == "" {
		log.Println("Warning: GITHUB_PAT not set; publishing will fail")
	}
	if c.GitHubUsername == "" {
		log.Println("Warning: GITHUB_USERNAME not set; publishing will fail")
	}
	if c.GitHubAPIURL == "" {
		c.GitHubAPIURL = "https://api.github.com"
	}
	if c.GenerationAPIKey == "" {
		log.Println("Warning: OPENAI_API_KEY not set; generation will use the fallback artifact")
	}
	if c.GenerationBaseURL == "" {
		c.GenerationBaseURL = DefaultGenerationBaseURL
	}
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.MaxOutputTokens <= 0 {
		c.MaxOutputTokens = 8192
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "json"
	}
	if c.Env == "" {
		c.Env = "dev"
	}
	if c.NotifyMaxAttempts <= 0 {
		c.NotifyMaxAttempts = 5
	}
	if c.NotifyBaseDelayMillis <= 0 {
		c.NotifyBaseDelayMillis = 1000
	}
	if c.NotifyMaxDelaySeconds <= 0 {
		c.NotifyMaxDelaySeconds = 60
	}
	if c.PagesSettleSeconds <= 0 {
		c.PagesSettleSeconds = 10
	}
	if c.DefaultBranch == "" {
		c.DefaultBranch = "main"
	}
	if c.TracingSampleRatio <= 0 || c.TracingSampleRatio > 1 {
		c.TracingSampleRatio = 1
	}

	log.Printf("pageforge config: {Port:%d Env:%s Model:%s Branch:%s NotifyAttempts:%d}\n",
		c.Port, c.Env, c.Model, c.DefaultBranch, c.NotifyMaxAttempts)
	return &c, nil
}

func (c *Config) Validate() error {
	var errs []string
	env := strings.ToLower(strings.TrimSpace(c.Env))
	dev := env == "dev" || env == "test"

	if !dev {
		if strings.TrimSpace(c.SharedSecret) == "" {
			errs = append(errs, "sharedSecret is required in non-dev")
		}
		if strings.TrimSpace(c.GitHubToken) == "" {
			errs = append(errs, "githubToken is required in non-dev")
		}
		if strings.TrimSpace(c.GitHubUsername) == "" {
			errs = append(errs, "githubUsername is required in non-dev")
		}
	}
	for _, ep := range []struct{ name, raw string }{
		{"generationBaseUrl", c.GenerationBaseURL},
		{"githubApiUrl", c.GitHubAPIURL},
	} {
		u, err := url.Parse(ep.raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, ep.name+" must be a valid http(s) URL")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func parseBool(v string) bool {
	v = strings.TrimSpace(strings.ToLower(v))
	return v == "true" || v == "1" || v == "yes" || v == "y" || v == "on"
}
