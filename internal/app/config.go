package app

import "errors"

// Config carries everything an App needs to run a campaign.
type Config struct {
	PlanPath string // hcl file or directory

	LogFormat       string
	LogLevel        string
	DryRun          bool
	HealthcheckPort int
}

// NewConfig rejects configurations that cannot possibly run.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.PlanPath == "" {
		return nil, errors.New("PlanPath must point at a plan file or directory")
	}

	return &cfg, nil
}
