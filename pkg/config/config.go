// Package config loads the process-level configuration recognized by
// GeminiLoop (spec §6). Grounded on the teacher's pkg/core.Config
// (YAML-tagged struct, viper-bound), trimmed of the interactive setup
// wizard (charmbracelet/huh) since this system has no TUI surface, and
// extended with the rubric/model/timeout keys the orchestrator needs.
package config

import (
	"strings"

	"github.com/spf13/viper"
)

// OpenHandsMode selects the Code-Generation Adapter implementation (C8).
type OpenHandsMode string

const (
	OpenHandsModeMock  OpenHandsMode = "mock"
	OpenHandsModeLocal OpenHandsMode = "local"
)

// Config is the full set of process-level options from spec §6.
type Config struct {
	GoogleAIStudioAPIKey string `yaml:"-"`

	WorkspaceRoot  string `yaml:"workspace_root"`
	ProjectDirName string `yaml:"project_dir_name"`

	PreviewHost string `yaml:"preview_host"`
	PreviewPort int    `yaml:"preview_port"`

	TemplateRepoURL  string `yaml:"template_repo_url"`
	TemplateRef      string `yaml:"template_ref"`
	RunTemplateInit  bool   `yaml:"run_template_init"`
	PublishToSite    bool   `yaml:"publish_to_site"`

	OpenHandsMode          OpenHandsMode `yaml:"openhands_mode"`
	OpenHandsTimeoutSeconds int          `yaml:"openhands_timeout_seconds"`

	GeminiModel    string `yaml:"gemini_model"`
	EvaluatorModel string `yaml:"evaluator_model"`

	AgenticMaxSteps int `yaml:"agentic_max_steps"`
}

// Default returns the documented defaults for every key in spec §6.
func Default() *Config {
	return &Config{
		ProjectDirName:          "project",
		PreviewHost:             "127.0.0.1",
		PreviewPort:             8000,
		TemplateRef:             "main",
		OpenHandsMode:           OpenHandsModeMock,
		OpenHandsTimeoutSeconds: 600,
		GeminiModel:             "gemini-2.5-pro",
		EvaluatorModel:          "gemini-2.5-flash",
		AgenticMaxSteps:         15,
	}
}

// Load builds a Config from (in ascending priority) the compiled-in
// defaults, an optional YAML file already read into viper, and environment
// variables — mirroring the teacher's cobra/viper precedence in
// cmd/falcon/main.go.
func Load(v *viper.Viper) *Config {
	if v == nil {
		v = viper.GetViper()
	}
	bindEnv(v)

	cfg := Default()

	if s := v.GetString("workspace_root"); s != "" {
		cfg.WorkspaceRoot = s
	}
	if s := v.GetString("project_dir_name"); s != "" {
		cfg.ProjectDirName = s
	}
	if s := v.GetString("preview_host"); s != "" {
		cfg.PreviewHost = s
	}
	if p := v.GetInt("preview_port"); p != 0 {
		cfg.PreviewPort = p
	}
	cfg.TemplateRepoURL = v.GetString("template_repo_url")
	if s := v.GetString("template_ref"); s != "" {
		cfg.TemplateRef = s
	}
	cfg.RunTemplateInit = v.GetBool("run_template_init")
	cfg.PublishToSite = v.GetBool("publish_to_site")

	if mode := strings.ToLower(v.GetString("openhands_mode")); mode != "" {
		cfg.OpenHandsMode = OpenHandsMode(mode)
	}
	if t := v.GetInt("openhands_timeout_seconds"); t != 0 {
		cfg.OpenHandsTimeoutSeconds = t
	}

	if s := v.GetString("gemini_model"); s != "" {
		cfg.GeminiModel = s
	}
	if s := v.GetString("evaluator_model"); s != "" {
		cfg.EvaluatorModel = s
	}
	if s := v.GetInt("agentic_max_steps"); s != 0 {
		cfg.AgenticMaxSteps = s
	}

	cfg.GoogleAIStudioAPIKey = v.GetString("google_ai_studio_api_key")

	return cfg
}

// bindEnv wires every documented environment variable (spec §6) into viper,
// matching the teacher's cmd/falcon/main.go initConfig AutomaticEnv idiom.
func bindEnv(v *viper.Viper) {
	v.AutomaticEnv()
	binds := map[string]string{
		"google_ai_studio_api_key":  "GOOGLE_AI_STUDIO_API_KEY",
		"workspace_root":            "WORKSPACE_ROOT",
		"project_dir_name":          "PROJECT_DIR_NAME",
		"preview_host":              "PREVIEW_HOST",
		"preview_port":              "PREVIEW_PORT",
		"template_repo_url":         "TEMPLATE_REPO_URL",
		"template_ref":              "TEMPLATE_REF",
		"run_template_init":         "RUN_TEMPLATE_INIT",
		"publish_to_site":           "PUBLISH_TO_SITE",
		"openhands_mode":            "OPENHANDS_MODE",
		"openhands_timeout_seconds": "OPENHANDS_TIMEOUT_SECONDS",
		"gemini_model":              "GEMINI_MODEL",
		"evaluator_model":           "EVALUATOR_MODEL",
		"agentic_max_steps":         "AGENTIC_MAX_STEPS",
	}
	for key, env := range binds {
		_ = v.BindEnv(key, env)
	}
}
