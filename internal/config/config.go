// Package config loads service configuration from a yaml file with
// environment overrides. Orchestration knobs that influence workflow
// decisions are never read here from inside workflow code; workflows
// receive them through the GetWorkflowConfig activity so replay stays
// deterministic.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full service configuration.
type Config struct {
	Temporal      TemporalConfig      `mapstructure:"temporal"`
	Agents        AgentsConfig        `mapstructure:"agents"`
	Renderer      RendererConfig      `mapstructure:"renderer"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Reports       ReportsConfig       `mapstructure:"reports"`
	Orchestration OrchestrationConfig `mapstructure:"orchestration"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	API           APIConfig           `mapstructure:"api"`
}

type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

type AgentsConfig struct {
	// BaseURL of the LLM agent service.
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type RendererConfig struct {
	// BaseURL of the PDF rendering service. Empty disables rendering.
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type RedisConfig struct {
	Addr string `mapstructure:"addr"`
}

type ReportsConfig struct {
	// OutputDir receives markdown and PDF artifacts.
	OutputDir string `mapstructure:"output_dir"`
	// DBPath is the sqlite archive of completed runs.
	DBPath string `mapstructure:"db_path"`
}

// OrchestrationConfig carries the knobs the workflow fetches via activity.
type OrchestrationConfig struct {
	// StageMaxAttempts bounds adapter retries for the mandatory stages.
	StageMaxAttempts int `mapstructure:"stage_max_attempts"`
	// SearchMaxConcurrency bounds the search fan-out width.
	SearchMaxConcurrency int `mapstructure:"search_max_concurrency"`
	// SearchMaxAttempts bounds retries of a single search item.
	SearchMaxAttempts int `mapstructure:"search_max_attempts"`
	// SearchTimeout is the per-item start-to-close timeout.
	SearchTimeout time.Duration `mapstructure:"search_timeout"`
	// MinSuccessfulSearches gates the transition from Searching to Writing.
	MinSuccessfulSearches int `mapstructure:"min_successful_searches"`
	// MaxClarifications clamps the clarifier output.
	MaxClarifications int `mapstructure:"max_clarifications"`
	// MaxPlanItems clamps the planner output.
	MaxPlanItems int `mapstructure:"max_plan_items"`
	// RenderPDF toggles the optional rendering stage.
	RenderPDF bool `mapstructure:"render_pdf"`
	// GenerateImage toggles the parallel report illustration stage.
	GenerateImage bool `mapstructure:"generate_image"`
}

type ObservabilityConfig struct {
	Metrics struct {
		Enabled bool `mapstructure:"enabled"`
		Port    int  `mapstructure:"port"`
	} `mapstructure:"metrics"`
	Logging struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"logging"`
}

type APIConfig struct {
	Port int `mapstructure:"port"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "researchflow")
	v.SetDefault("agents.base_url", "http://llm-service:8000")
	v.SetDefault("agents.timeout", 120*time.Second)
	v.SetDefault("renderer.base_url", "http://renderer:8090")
	v.SetDefault("renderer.timeout", 30*time.Second)
	v.SetDefault("redis.addr", "redis:6379")
	v.SetDefault("reports.output_dir", "report_output")
	v.SetDefault("reports.db_path", "reports.db")
	v.SetDefault("orchestration.stage_max_attempts", 3)
	v.SetDefault("orchestration.search_max_concurrency", 5)
	v.SetDefault("orchestration.search_max_attempts", 2)
	v.SetDefault("orchestration.search_timeout", 2*time.Minute)
	v.SetDefault("orchestration.min_successful_searches", 1)
	v.SetDefault("orchestration.max_clarifications", 3)
	v.SetDefault("orchestration.max_plan_items", 20)
	v.SetDefault("orchestration.render_pdf", true)
	v.SetDefault("orchestration.generate_image", true)
	v.SetDefault("observability.metrics.enabled", true)
	v.SetDefault("observability.metrics.port", 2112)
	v.SetDefault("observability.logging.level", "info")
	v.SetDefault("observability.logging.format", "json")
	v.SetDefault("api.port", 8088)
}

// Load reads configuration from CONFIG_PATH (or ./config/researchflow.yaml
// when unset). A missing file is not an error: defaults plus env overrides
// apply. Env keys follow RESEARCHFLOW_SECTION_KEY.
func Load() (*Config, error) {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config/researchflow.yaml"
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("researchflow")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)

	v.SetConfigFile(cfgPath)
	if err := v.ReadInConfig(); err != nil {
		if _, statErr := os.Stat(cfgPath); statErr == nil {
			return nil, fmt.Errorf("read config %s: %w", cfgPath, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// bindEnvKeys maps nested keys to env vars. AutomaticEnv alone does not
// reach keys that only exist as defaults inside nested structs.
func bindEnvKeys(v *viper.Viper) {
	for _, key := range []string{
		"temporal.host_port", "temporal.namespace", "temporal.task_queue",
		"agents.base_url", "agents.timeout",
		"renderer.base_url", "renderer.timeout",
		"redis.addr",
		"reports.output_dir", "reports.db_path",
		"orchestration.stage_max_attempts", "orchestration.search_max_concurrency",
		"orchestration.search_max_attempts", "orchestration.search_timeout",
		"orchestration.min_successful_searches", "orchestration.max_clarifications",
		"orchestration.max_plan_items", "orchestration.render_pdf",
		"orchestration.generate_image",
		"observability.metrics.enabled", "observability.metrics.port",
		"observability.logging.level", "observability.logging.format",
		"api.port",
	} {
		_ = v.BindEnv(key)
	}
}

// Validate rejects configurations the orchestrator cannot run with.
func (c *Config) Validate() error {
	if c.Temporal.HostPort == "" {
		return fmt.Errorf("temporal.host_port is required")
	}
	if c.Temporal.TaskQueue == "" {
		return fmt.Errorf("temporal.task_queue is required")
	}
	if c.Agents.BaseURL == "" {
		return fmt.Errorf("agents.base_url is required")
	}
	if c.Orchestration.StageMaxAttempts < 1 {
		return fmt.Errorf("orchestration.stage_max_attempts must be >= 1, got %d", c.Orchestration.StageMaxAttempts)
	}
	if c.Orchestration.SearchMaxConcurrency < 1 {
		return fmt.Errorf("orchestration.search_max_concurrency must be >= 1, got %d", c.Orchestration.SearchMaxConcurrency)
	}
	if c.Orchestration.MinSuccessfulSearches < 1 {
		return fmt.Errorf("orchestration.min_successful_searches must be >= 1, got %d", c.Orchestration.MinSuccessfulSearches)
	}
	return nil
}
