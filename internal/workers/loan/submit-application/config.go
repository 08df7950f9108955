// internal/workers/loan/submit-application/config.go
package submitapplication

import (
	"time"

	"loan-api/internal/common/config"
)

type Config struct {
	Timeout time.Duration
}

// LoadConfig reads the worker's job timeout from the workers section.
func LoadConfig(cfg *config.Config) *Config {
	wc := config.GetWorkerConfig(cfg, TaskType)
	return &Config{
		Timeout: config.GetDuration(wc.Timeout),
	}
}
