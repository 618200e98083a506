package config

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is surfaced to the operator but does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding.
//
// Path is the environment key the finding relates to. Message is
// human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Validate lints a loaded Config. It does not mutate cfg.
func Validate(cfg *Config) []Issue {
	var issues []Issue

	issues = append(issues, validateSource(cfg)...)
	issues = append(issues, validateWarehouse(cfg.Warehouse)...)
	issues = append(issues, validateRuntime(cfg)...)

	switch cfg.MetricsBackend {
	case "", "none":
	case "pushgateway":
		if strings.TrimSpace(cfg.PushgatewayURL) == "" {
			issues = append(issues, Issue{SeverityWarning, "PUSHGATEWAY_URL", "empty; metrics will be disabled"})
		}
	case "datadog":
		if strings.TrimSpace(cfg.DatadogAddr) == "" {
			issues = append(issues, Issue{SeverityWarning, "DATADOG_ADDR", "empty; metrics will be disabled"})
		}
	default:
		issues = append(issues, Issue{SeverityWarning, "METRICS_BACKEND", fmt.Sprintf("unknown backend %q; metrics will be disabled", cfg.MetricsBackend)})
	}

	return issues
}

func validateSource(cfg *Config) []Issue {
	var issues []Issue
	if strings.TrimSpace(cfg.SourceDSN) == "" {
		issues = append(issues, Issue{SeverityError, "SOURCE_DSN", "must not be empty"})
	}
	switch cfg.SourceDialect {
	case DialectPostgres, DialectSQLServer:
	default:
		issues = append(issues, Issue{SeverityError, "SOURCE_DIALECT", fmt.Sprintf("unsupported dialect %q (want postgres or sqlserver)", cfg.SourceDialect)})
	}
	return issues
}

func validateWarehouse(w Warehouse) []Issue {
	var issues []Issue
	for _, name := range w.missing() {
		issues = append(issues, Issue{SeverityError, name, "required"})
	}
	if w.Port <= 0 || w.Port > 65535 {
		issues = append(issues, Issue{SeverityError, "SUPERSET_PORT", fmt.Sprintf("invalid port %d", w.Port)})
	}
	switch w.Kind {
	case "postgres", "mssql", "mysql", "sqlite":
	default:
		issues = append(issues, Issue{SeverityError, "WAREHOUSE_KIND", fmt.Sprintf("unsupported kind %q", w.Kind)})
	}
	if w.Kind == "sqlite" && strings.TrimSpace(w.DSN) == "" {
		issues = append(issues, Issue{SeverityError, "WAREHOUSE_DSN", "sqlite warehouse needs a DSN (file path)"})
	}
	return issues
}

func validateRuntime(cfg *Config) []Issue {
	var issues []Issue
	switch cfg.PublishStrategy {
	case StrategySwap:
	case StrategyReplace:
		issues = append(issues, Issue{SeverityWarning, "PUBLISH_STRATEGY", "replace drops the live table before loading; a failed load leaves it empty"})
	default:
		issues = append(issues, Issue{SeverityError, "PUBLISH_STRATEGY", fmt.Sprintf("unsupported strategy %q (want swap or replace)", cfg.PublishStrategy)})
	}
	if cfg.LoadBatchSize <= 0 {
		issues = append(issues, Issue{SeverityError, "LOAD_BATCH_SIZE", "must be > 0"})
	}
	if cfg.PageSize <= 0 {
		issues = append(issues, Issue{SeverityError, "PAGE_SIZE", "must be > 0"})
	}
	for name, n := range cfg.PageSizes {
		if n <= 0 {
			key := pageSizeEnvPrefix + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
			issues = append(issues, Issue{SeverityError, key, "must be a positive integer"})
		}
	}
	if cfg.ScheduleCron != "" {
		if _, err := cron.ParseStandard(cfg.ScheduleCron); err != nil {
			issues = append(issues, Issue{SeverityError, "SCHEDULE_CRON", err.Error()})
		}
	}
	return issues
}
