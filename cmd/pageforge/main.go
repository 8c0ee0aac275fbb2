package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/appwright/pageforge/pkg/domain"
)

type client struct {
	baseURL    string
	httpClient *http.Client
}

type ui struct {
	title func(a ...any) string
	ok    func(a ...any) string
	info  func(a ...any) string
	warn  func(a ...any) string
	err   func(a ...any) string
}

type profile struct {
	BaseURL string `yaml:"baseUrl"`
	Secret  string `yaml:"secret"`
	Email   string `yaml:"email"`
}

type cliConfig struct {
	CurrentProfile string             `yaml:"currentProfile"`
	Profiles       map[string]profile `yaml:"profiles"`
}

func newUI() *ui {
	return &ui{
		title: color.New(color.FgHiCyan, color.Bold).SprintFunc(),
		ok:    color.New(color.FgGreen, color.Bold).SprintFunc(),
		info:  color.New(color.FgCyan).SprintFunc(),
		warn:  color.New(color.FgYellow).SprintFunc(),
		err:   color.New(color.FgRed, color.Bold).SprintFunc(),
	}
}

func (c *client) post(path string, body any) (int, []byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return 0, nil, err
	}
	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, out, nil
}

func (c *client) get(path string) (int, []byte, error) {
	resp, err := c.httpClient.Get(c.baseURL + path)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, out, nil
}

func main() {
	baseURL := getenv("PAGEFORGE_BASE_URL", "http://localhost:3000")
	secret := getenv("PAGEFORGE_SECRET", "")
	profileName := getenv("PAGEFORGE_PROFILE", "")
	ui := newUI()

	root := &cobra.Command{
		Use:   "pageforge",
		Short: "pageforge CLI",
		Long:  "pageforge CLI for submitting app-generation requests and checking the service.",
	}
	root.SilenceUsage = true

	root.PersistentFlags().StringVar(&baseURL, "base-url", baseURL, "Base URL for pageforge")
	root.PersistentFlags().StringVar(&secret, "secret", secret, "Shared secret")
	root.PersistentFlags().StringVar(&profileName, "profile", profileName, "Config profile")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, _, _ := loadConfig()
		active := resolveProfileName(profileName, cfg)
		prof := cfg.Profiles[active]

		flags := cmd.Flags()
		if !flags.Changed("base-url") {
			if v := strings.TrimSpace(os.Getenv("PAGEFORGE_BASE_URL")); v != "" {
				baseURL = v
			} else if prof.BaseURL != "" {
				baseURL = prof.BaseURL
			}
		}
		if !flags.Changed("secret") {
			if v := strings.TrimSpace(os.Getenv("PAGEFORGE_SECRET")); v != "" {
				secret = v
			} else if prof.Secret != "" {
				secret = prof.Secret
			}
		}
		return nil
	}

	root.AddCommand(initCmd(&profileName, ui))
	root.AddCommand(requestCmd(&baseURL, &secret, &profileName, ui))
	root.AddCommand(healthCmd(&baseURL, ui))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, ui.err("[ERROR]"), err.Error())
		os.Exit(1)
	}
}

func initCmd(profileName *string, ui *ui) *cobra.Command {
	var (
		baseURL  string
		secret   string
		email    string
		noPrompt bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize CLI config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, cfgPath, err := loadConfig()
			if err != nil {
				return err
			}
			active := resolveProfileName(*profileName, cfg)
			prof := cfg.Profiles[active]

			if baseURL == "" {
				baseURL = prof.BaseURL
			}
			if baseURL == "" {
				baseURL = "http://localhost:3000"
			}
			if secret == "" {
				secret = prof.Secret
			}
			if email == "" {
				email = prof.Email
			}

			if !noPrompt {
				reader := bufio.NewReader(os.Stdin)
				baseURL = prompt(reader, "Base URL", baseURL)
				secret = prompt(reader, "Shared secret", secret)
				email = prompt(reader, "Email", email)
			}

			prof.BaseURL = strings.TrimSpace(baseURL)
			prof.Secret = strings.TrimSpace(secret)
			prof.Email = strings.TrimSpace(email)

			if cfg.Profiles == nil {
				cfg.Profiles = map[string]profile{}
			}
			cfg.Profiles[active] = prof
			if cfg.CurrentProfile == "" || *profileName != "" {
				cfg.CurrentProfile = active
			}

			if err := saveConfig(cfg, cfgPath); err != nil {
				return err
			}
			fmt.Printf("%s Initialized profile '%s' at %s\n", ui.ok("[OK]"), active, cfgPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&baseURL, "base-url", "", "Base URL for pageforge")
	cmd.Flags().StringVar(&secret, "secret", "", "Shared secret")
	cmd.Flags().StringVar(&email, "email", "", "Default email for requests")
	cmd.Flags().BoolVar(&noPrompt, "no-prompt", false, "Disable interactive prompts")
	return cmd
}

func requestCmd(baseURL, secret, profileName *string, ui *ui) *cobra.Command {
	var (
		brief     string
		briefFile string
		task      string
		email     string
		round     int
		nonce     string
		callback  string
	)
	cmd := &cobra.Command{
		Use:     "request",
		Short:   "Submit an app-generation request",
		Example: `pageforge request --task sum-of-sales-a1b2c3 --brief "Build a calculator" --round 1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(task) == "" {
				return errors.New("task is required")
			}
			if briefFile != "" {
				data, err := os.ReadFile(briefFile)
				if err != nil {
					return err
				}
				brief = string(data)
			}
			if strings.TrimSpace(brief) == "" {
				return errors.New("brief is required (--brief or --brief-file)")
			}
			if strings.TrimSpace(*secret) == "" {
				return errors.New("secret is required (run `pageforge init` or set PAGEFORGE_SECRET)")
			}
			if email == "" {
				cfg, _, _ := loadConfig()
				email = cfg.Profiles[resolveProfileName(*profileName, cfg)].Email
			}
			if round <= 0 {
				round = 1
			}

			c := newClient(*baseURL)
			body := domain.GenerationRequest{
				Secret:        *secret,
				Brief:         brief,
				Task:          task,
				Email:         email,
				Round:         round,
				Nonce:         nonce,
				EvaluationURL: callback,
			}
			status, resp, err := c.post("/api-endpoint", body)
			if err != nil {
				return err
			}
			if status == http.StatusForbidden {
				return errors.New("rejected: invalid secret")
			}
			if status >= 300 {
				return fmt.Errorf("error (%d): %s", status, string(resp))
			}
			fmt.Printf("%s Request accepted for task '%s' (round %d)\n", ui.ok("[OK]"), task, round)
			fmt.Printf("%s The app will be published asynchronously; watch the repository named after the task.\n", ui.info("[INFO]"))
			return nil
		},
	}
	cmd.Flags().StringVar(&brief, "brief", "", "Application brief")
	cmd.Flags().StringVar(&briefFile, "brief-file", "", "Read the brief from a file")
	cmd.Flags().StringVar(&task, "task", "", "Task identifier (becomes the repository name)")
	cmd.Flags().StringVar(&email, "email", "", "Requester email")
	cmd.Flags().IntVar(&round, "round", 1, "Round number (2+ revises the existing repository)")
	cmd.Flags().StringVar(&nonce, "nonce", "", "Request nonce echoed in the callback")
	cmd.Flags().StringVar(&callback, "callback", "", "Evaluation callback URL")
	return cmd
}

func healthCmd(baseURL *string, ui *ui) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check service health",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient(*baseURL)
			status, resp, err := c.get("/healthz")
			if err != nil {
				return err
			}
			if status != http.StatusOK {
				return fmt.Errorf("unhealthy (%d): %s", status, string(resp))
			}
			fmt.Printf("%s %s\n", ui.ok("[OK]"), strings.TrimSpace(string(resp)))
			return nil
		},
	}
}

func newClient(baseURL string) *client {
	return &client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func getenv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func configPath() string {
	if v := strings.TrimSpace(os.Getenv("PAGEFORGE_CONFIG_DIR")); v != "" {
		return filepath.Join(v, "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.yaml"
	}
	return filepath.Join(home, ".pageforge", "config.yaml")
}

func loadConfig() (cliConfig, string, error) {
	path := configPath()
	var cfg cliConfig
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cliConfig{Profiles: map[string]profile{}}, path, nil
		}
		return cfg, path, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, path, err
	}
	if cfg.Profiles == nil {
		cfg.Profiles = map[string]profile{}
	}
	return cfg, path, nil
}

func saveConfig(cfg cliConfig, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func resolveProfileName(flag string, cfg cliConfig) string {
	if strings.TrimSpace(flag) != "" {
		return strings.TrimSpace(flag)
	}
	if v := strings.TrimSpace(os.Getenv("PAGEFORGE_PROFILE")); v != "" {
		return v
	}
	if cfg.CurrentProfile != "" {
		return cfg.CurrentProfile
	}
	return "default"
}

func prompt(r *bufio.Reader, label, def string) string {
	if def != "" {
		fmt.Printf("%s [%s]: ", label, def)
	} else {
		fmt.Printf("%s: ", label)
	}
	line, _ := r.ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" {
		return def
	}
	return line
}
