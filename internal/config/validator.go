package config

import (
	"fmt"
	"strings"
)

// ValidationResult holds validation results
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

// AddError adds an error to the validation result
func (vr *ValidationResult) AddError(format string, args ...interface{}) {
	vr.Valid = false
	vr.Errors = append(vr.Errors, fmt.Sprintf(format, args...))
}

// AddWarning adds a warning to the validation result
func (vr *ValidationResult) AddWarning(format string, args ...interface{}) {
	vr.Warnings = append(vr.Warnings, fmt.Sprintf(format, args...))
}

// HasErrors returns true if there are any errors
func (vr *ValidationResult) HasErrors() bool {
	return !vr.Valid || len(vr.Errors) > 0
}

// Error returns a formatted error message
func (vr *ValidationResult) Error() string {
	if !vr.HasErrors() {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("configuration validation failed:\n")
	for _, err := range vr.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err))
	}

	if len(vr.Warnings) > 0 {
		sb.WriteString("\nwarnings:\n")
		for _, warn := range vr.Warnings {
			sb.WriteString(fmt.Sprintf("  - %s\n", warn))
		}
	}

	return sb.String()
}

// Validate checks every section and collects all problems at once
func (c *Config) Validate() *ValidationResult {
	result := &ValidationResult{Valid: true}

	c.validateStorage(result)
	c.validateIdentity(result)
	c.validateRecommender(result)
	c.validateCache(result)
	c.validateGraph(result)

	return result
}

func (c *Config) validateStorage(result *ValidationResult) {
	s := c.Storage
	switch s.Type {
	case "sqlite":
		if s.LocalPath == "" {
			result.AddError("storage.local_path is required for sqlite storage")
		}
	case "postgres":
		if s.PostgresHost == "" {
			result.AddError("storage.postgres_host is required for postgres storage")
		}
		if s.PostgresDB == "" {
			result.AddError("storage.postgres_db is required for postgres storage")
		}
		if s.PostgresPort <= 0 || s.PostgresPort > 65535 {
			result.AddError("storage.postgres_port %d is out of range", s.PostgresPort)
		}
		if s.PostgresDriver != "pgx" && s.PostgresDriver != "postgres" {
			result.AddError("storage.postgres_driver must be \"pgx\" or \"postgres\", got %q", s.PostgresDriver)
		}
		if s.PostgresPassword == "" && !s.UseKeychain {
			result.AddWarning("no postgres password configured and use_keychain is off")
		}
	default:
		result.AddError("storage.type must be \"sqlite\" or \"postgres\", got %q", s.Type)
	}

	if s.BatchSize <= 0 {
		result.AddError("storage.batch_size must be positive, got %d", s.BatchSize)
	}
	if s.WritesPerSecond < 0 {
		result.AddError("storage.writes_per_second cannot be negative")
	}
}

func (c *Config) validateIdentity(result *ValidationResult) {
	id := c.Identity
	if id.AutoMediumThreshold <= 0 || id.AutoMediumThreshold > 1 {
		result.AddError("identity.auto_medium_threshold must be in (0, 1], got %.2f", id.AutoMediumThreshold)
	}
	if id.AutoHighThreshold <= 0 || id.AutoHighThreshold > 1 {
		result.AddError("identity.auto_high_threshold must be in (0, 1], got %.2f", id.AutoHighThreshold)
	}
	if id.AutoHighThreshold < id.AutoMediumThreshold {
		result.AddError("identity.auto_high_threshold (%.2f) is below auto_medium_threshold (%.2f)",
			id.AutoHighThreshold, id.AutoMediumThreshold)
	}
}

func (c *Config) validateRecommender(result *ValidationResult) {
	r := c.Recommender
	switch r.Strategy {
	case "chrev", "turnover":
	default:
		result.AddError("recommender.strategy must be \"chrev\" or \"turnover\", got %q", r.Strategy)
	}
	if r.LookbackDays <= 0 {
		result.AddError("recommender.lookback_days must be positive")
	}
	if r.WorkloadDays <= 0 {
		result.AddError("recommender.workload_days must be positive")
	}
	w := r.Weights
	for name, v := range map[string]float64{
		"c1_turnover":  w.C1Turnover,
		"c2_turnover":  w.C2Turnover,
		"c1_retention": w.C1Retention,
		"c2_retention": w.C2Retention,
	} {
		if v < 0 {
			result.AddError("recommender.weights.%s cannot be negative", name)
		}
	}
	if r.TopN < 0 {
		result.AddWarning("recommender.top_n is negative; the full ranking will be returned")
	}
}

func (c *Config) validateCache(result *ValidationResult) {
	switch c.Cache.Type {
	case "", "none":
	case "bolt":
		if c.Cache.Path == "" {
			result.AddError("cache.path is required for bolt cache")
		}
	case "redis":
		if c.Cache.RedisAddr == "" {
			result.AddError("cache.redis_addr is required for redis cache")
		}
	default:
		result.AddError("cache.type must be none, bolt or redis, got %q", c.Cache.Type)
	}
	if c.Cache.TTL < 0 {
		result.AddError("cache.ttl cannot be negative")
	}
}

func (c *Config) validateGraph(result *ValidationResult) {
	if !c.Graph.Enabled {
		return
	}
	if c.Graph.URI == "" {
		result.AddError("graph.uri is required when graph sync is enabled")
	}
	if c.Graph.Password == "" {
		result.AddWarning("graph.password is empty; set NEO4J_PASSWORD")
	}
}
