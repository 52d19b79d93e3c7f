/*
config.go - File and environment configuration

PURPOSE:
  Loads the engine configuration from a YAML file, applies defaults, and
  validates the result. The config carries the server settings, the
  database path, the attendance defaults, and the seed definitions for
  the tardiness and disciplinary rule tables.

PRECEDENCE:
  defaults < YAML file < command-line flags (applied in cmd/server).

VALIDATION:
  Struct-tag validation via go-playground/validator. A config that names
  an unknown rule role or action type fails at startup, not at the first
  check-in that needs it.

SEE ALSO:
  - cmd/server/main.go: flag overrides and rule seeding
  - store/sqlite: SeedTardinessRules / SeedDisciplinaryRules
*/
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/atlashr/discipline-engine/discipline"
	"github.com/atlashr/discipline-engine/tardiness"
)

type ServerConfig struct {
	Port        int      `yaml:"port" validate:"required,min=1,max=65535"`
	CORSOrigins []string `yaml:"cors_origins"`
}

type DatabaseConfig struct {
	Path string `yaml:"path" validate:"required"`
}

type AttendanceConfig struct {
	// GraceMinutes is the default grace applied when a request supplies a
	// check-in time without an explicit grace value.
	GraceMinutes int `yaml:"grace_minutes" validate:"min=0"`
}

// TardinessRuleConfig seeds one row of the tardiness rule table.
type TardinessRuleConfig struct {
	ID                      string `yaml:"id" validate:"required"`
	Role                    string `yaml:"role" validate:"required,oneof=normal_late_arrival post_first_tardiness direct_tardiness"`
	Name                    string `yaml:"name" validate:"required"`
	Type                    string `yaml:"type" validate:"required,oneof=late_arrival direct_tardiness"`
	AccumulationCount       int    `yaml:"accumulation_count" validate:"min=1"`
	EquivalentFormalTardies int    `yaml:"equivalent_formal_tardies" validate:"min=1"`
}

// DisciplinaryRuleConfig seeds one row of the disciplinary rule table.
type DisciplinaryRuleConfig struct {
	ID               string `yaml:"id" validate:"required"`
	Name             string `yaml:"name" validate:"required"`
	TriggerType      string `yaml:"trigger_type" validate:"required,oneof=formal_tardies administrative_acts unjustified_absences"`
	TriggerCount     int    `yaml:"trigger_count" validate:"min=1"`
	PeriodDays       int    `yaml:"period_days" validate:"min=0"`
	ActionType       string `yaml:"action_type" validate:"required,oneof=administrative_act suspension termination warning written_warning"`
	SuspensionDays   int    `yaml:"suspension_days" validate:"min=0"`
	RequiresApproval bool   `yaml:"requires_approval"`
	Active           bool   `yaml:"active"`
}

type RulesConfig struct {
	Tardiness    []TardinessRuleConfig    `yaml:"tardiness" validate:"required,min=3,dive"`
	Disciplinary []DisciplinaryRuleConfig `yaml:"disciplinary" validate:"dive"`
}

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Attendance AttendanceConfig `yaml:"attendance"`
	Rules      RulesConfig      `yaml:"rules"`
}

// Default returns the canonical configuration: four minor late arrivals
// convert to one formal tardy, an administrative act at five formal
// tardies in a month, and a termination proposal at three acts within a
// rolling 90 days.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        8080,
			CORSOrigins: []string{"*"},
		},
		Database: DatabaseConfig{
			Path: "discipline.db",
		},
		Attendance: AttendanceConfig{
			GraceMinutes: 0,
		},
		Rules: RulesConfig{
			Tardiness: []TardinessRuleConfig{
				{
					ID:                      "tard-late-arrival",
					Role:                    "normal_late_arrival",
					Name:                    "Minor late arrival accumulation",
					Type:                    "late_arrival",
					AccumulationCount:       4,
					EquivalentFormalTardies: 1,
				},
				{
					ID:                      "tard-post-first",
					Role:                    "post_first_tardiness",
					Name:                    "Late arrival after first formal tardy",
					Type:                    "late_arrival",
					AccumulationCount:       1,
					EquivalentFormalTardies: 1,
				},
				{
					ID:                      "tard-direct",
					Role:                    "direct_tardiness",
					Name:                    "Direct tardiness (over 15 minutes)",
					Type:                    "direct_tardiness",
					AccumulationCount:       1,
					EquivalentFormalTardies: 1,
				},
			},
			Disciplinary: []DisciplinaryRuleConfig{
				{
					ID:               "disc-admin-act",
					Name:             "Administrative act at five formal tardies",
					TriggerType:      "formal_tardies",
					TriggerCount:     5,
					ActionType:       "administrative_act",
					RequiresApproval: false,
					Active:           true,
				},
				{
					ID:               "disc-termination",
					Name:             "Termination proposal at three administrative acts",
					TriggerType:      "administrative_acts",
					TriggerCount:     3,
					PeriodDays:       90,
					ActionType:       "termination",
					RequiresApproval: true,
					Active:           true,
				},
			},
		},
	}
}

// Load reads the YAML file at path over the defaults and validates the
// merged result. An empty path returns the validated defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	roles := make(map[string]bool, len(c.Rules.Tardiness))
	for _, r := range c.Rules.Tardiness {
		if roles[r.Role] {
			return fmt.Errorf("invalid config: duplicate tardiness rule for role %s", r.Role)
		}
		roles[r.Role] = true
	}
	for _, role := range []string{"normal_late_arrival", "post_first_tardiness", "direct_tardiness"} {
		if !roles[role] {
			return fmt.Errorf("invalid config: missing tardiness rule for role %s", role)
		}
	}
	return nil
}

// TardinessRules converts the seed definitions to domain rules.
func (c *Config) TardinessRules() []tardiness.Rule {
	rules := make([]tardiness.Rule, 0, len(c.Rules.Tardiness))
	for _, r := range c.Rules.Tardiness {
		rules = append(rules, tardiness.Rule{
			ID:                      tardiness.RuleID(r.ID),
			Role:                    tardiness.RuleRole(r.Role),
			Name:                    r.Name,
			Type:                    tardiness.RuleType(r.Type),
			AccumulationCount:       r.AccumulationCount,
			EquivalentFormalTardies: r.EquivalentFormalTardies,
		})
	}
	return rules
}

// DisciplinaryRules converts the seed definitions to domain rules.
func (c *Config) DisciplinaryRules() []discipline.Rule {
	rules := make([]discipline.Rule, 0, len(c.Rules.Disciplinary))
	for _, r := range c.Rules.Disciplinary {
		rules = append(rules, discipline.Rule{
			ID:               r.ID,
			Name:             r.Name,
			TriggerType:      discipline.TriggerType(r.TriggerType),
			TriggerCount:     r.TriggerCount,
			PeriodDays:       r.PeriodDays,
			ActionType:       discipline.ActionType(r.ActionType),
			SuspensionDays:   r.SuspensionDays,
			RequiresApproval: r.RequiresApproval,
			Active:           r.Active,
		})
	}
	return rules
}

// ShutdownTimeout bounds graceful server shutdown.
const ShutdownTimeout = 30 * time.Second
