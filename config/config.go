package config

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/spf13/viper"
)

// Config is read once at startup and never mutated afterwards.
type Config struct {
	JenkinsURL      string `mapstructure:"jenkins_url"`
	Username        string `mapstructure:"username"`
	PasswordOrToken string `mapstructure:"password_or_token"`
	Branch          string `mapstructure:"branch"`
	LogFile         string `mapstructure:"log_file"`
	MetricsListen   string `mapstructure:"metrics_listen"`

	JobList []Job `mapstructure:"jobs"`

	// Legacy two-job layout, honored only when jobs is empty.
	FirstJob  string `mapstructure:"first_job"`
	SecondJob string `mapstructure:"second_job"`

	EnablePolling     bool   `mapstructure:"enable_polling"`
	PollingURL        string `mapstructure:"polling_url"`
	WaitBetweenBuilds int    `mapstructure:"wait_between_builds"`

	Build   BuildConfig   `mapstructure:"build_config"`
	Polling PollingConfig `mapstructure:"polling_config"`
	Queue   QueueConfig   `mapstructure:"queue_config"`
}

// Job names a Jenkins job together with its extra build parameters.
type Job struct {
	Name        string            `mapstructure:"name"`
	Description string            `mapstructure:"description"`
	Parameters  map[string]string `mapstructure:"parameters"`
}

func (j Job) Validate() error {
	return validation.ValidateStruct(&j,
		validation.Field(&j.Name, validation.Required),
	)
}

// BuildConfig bounds the completion poll.
type BuildConfig struct {
	TimeoutSeconds       int `mapstructure:"timeout_seconds"`
	CheckIntervalSeconds int `mapstructure:"check_interval_seconds"`
}

// PollingConfig bounds the external endpoint poll.
type PollingConfig struct {
	MaxAttempts        int `mapstructure:"max_attempts"`
	IntervalSeconds    int `mapstructure:"interval_seconds"`
	ExpectedStatusCode int `mapstructure:"expected_status_code"`
}

// QueueConfig bounds the queue-item resolution poll.
type QueueConfig struct {
	MaxAttempts     int `mapstructure:"max_attempts"`
	IntervalSeconds int `mapstructure:"interval_seconds"`
}

// Load reads and validates the JSON config file at path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")

	v.SetDefault("branch", "master")
	v.SetDefault("log_file", "run.log")
	v.SetDefault("wait_between_builds", 30)
	v.SetDefault("build_config.timeout_seconds", 1800)
	v.SetDefault("build_config.check_interval_seconds", 30)
	v.SetDefault("polling_config.max_attempts", 60)
	v.SetDefault("polling_config.interval_seconds", 30)
	v.SetDefault("polling_config.expected_status_code", 200)
	v.SetDefault("queue_config.max_attempts", 30)
	v.SetDefault("queue_config.interval_seconds", 2)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.JenkinsURL, validation.Required, is.URL),
		validation.Field(&c.Username, validation.Required),
		validation.Field(&c.PasswordOrToken, validation.Required),
		validation.Field(&c.PollingURL,
			validation.Required.When(c.EnablePolling).Error("required when enable_polling is set")),
		validation.Field(&c.JobList, validation.Each()),
	)
}

// Jobs resolves the execution list. The jobs field wins; otherwise the
// legacy first_job/second_job pair is used, skipping an empty or duplicate
// second entry.
func (c *Config) Jobs() []Job {
	if len(c.JobList) > 0 {
		jobs := make([]Job, 0, len(c.JobList))
		for _, j := range c.JobList {
			if j.Description == "" {
				j.Description = j.Name
			}
			if j.Parameters == nil {
				j.Parameters = map[string]string{}
			}
			jobs = append(jobs, j)
		}
		return jobs
	}

	var jobs []Job
	if c.FirstJob != "" {
		jobs = append(jobs, Job{Name: c.FirstJob, Description: c.FirstJob, Parameters: map[string]string{}})
	}
	if c.SecondJob != "" && c.SecondJob != c.FirstJob {
		jobs = append(jobs, Job{Name: c.SecondJob, Description: c.SecondJob, Parameters: map[string]string{}})
	}
	return jobs
}
