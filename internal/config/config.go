// Package config resolves the router's runtime configuration from CLI
// flags, environment variables, and compiled-in defaults, in that
// precedence order (flag highest, default lowest).
package config

import (
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Config is the immutable result of resolution, passed by value into the
// router's constructor.
type Config struct {
	RepairAPIKey  string
	RepairBaseURL string

	DisableAutoReview bool

	AnthropicAPIKey string
	AnthropicModel  string

	CodeHostToken   string
	CodeHostBaseURL string

	DefaultRepo string
	MinSeverity string

	MaxRequestsPerHour int
	DedupWindow        time.Duration
	PRMergeCooldown    time.Duration

	DatabasePath            string
	HistoryMaxAttemptsShown int
}

// RegisterFlags adds every tunable to cmd's flag set and binds it into
// viper under its ERRORPILOT_-prefixed environment name. DEVIN_API_KEY,
// DISABLE_DEVIN_AUTO_REVIEW, ANTHROPIC_API_KEY, and GITHUB_TOKEN are a
// fixed external contract and are read unprefixed (see bindExternalEnv),
// never shadowed by a flag of the same name.
func RegisterFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("repair-base-url", "https://api.devin.ai/v1", "base URL of the repair service")
	f.String("anthropic-model", "claude-3-5-haiku-latest", "Anthropic model used for duplicate classification")
	f.String("codehost-base-url", "https://api.github.com", "base URL of the code-hosting REST API")
	f.String("default-repo", "", "default owner/repo used when an error report does not specify one")
	f.String("min-severity", "ERROR", "minimum severity that is eligible for routing")
	f.Int("max-requests-per-hour", 10, "rolling hourly quota for repair dispatches")
	f.Duration("dedup-window", time.Hour, "window within which an identical fingerprint is suppressed")
	f.Duration("pr-merge-cooldown", 5*time.Minute, "suppression window after a fingerprint's fix is merged")
	f.String("db-path", "", "path to a SQLite database for durable cooldown/history state; empty means in-memory")
	f.Int("history-max-attempts-shown", 5, "number of recent attempts injected into the repair prompt")

	bindFlag := func(key, flag string) { _ = viper.BindPFlag(key, f.Lookup(flag)) }
	bindFlag("repair_base_url", "repair-base-url")
	bindFlag("anthropic_model", "anthropic-model")
	bindFlag("codehost_base_url", "codehost-base-url")
	bindFlag("default_repo", "default-repo")
	bindFlag("min_severity", "min-severity")
	bindFlag("max_requests_per_hour", "max-requests-per-hour")
	bindFlag("dedup_window", "dedup-window")
	bindFlag("pr_merge_cooldown", "pr-merge-cooldown")
	bindFlag("db_path", "db-path")
	bindFlag("history_max_attempts_shown", "history-max-attempts-shown")

	viper.SetEnvPrefix("ERRORPILOT")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	bindExternalEnv()
}

// bindExternalEnv wires the four variables whose names are a fixed
// contract with the host platform, not this expansion's own prefix.
func bindExternalEnv() {
	_ = viper.BindEnv("repair_api_key", "DEVIN_API_KEY")
	_ = viper.BindEnv("disable_auto_review_raw", "DISABLE_DEVIN_AUTO_REVIEW")
	_ = viper.BindEnv("anthropic_api_key", "ANTHROPIC_API_KEY")
	_ = viper.BindEnv("codehost_token", "GITHUB_TOKEN")
}

// Load reads the resolved values out of viper after flags have been
// parsed. Missing RepairAPIKey is not a load-time error; it surfaces at
// dispatch time as a configuration RoutingResult.
func Load() Config {
	return Config{
		RepairAPIKey:  viper.GetString("repair_api_key"),
		RepairBaseURL: viper.GetString("repair_base_url"),

		DisableAutoReview: parseBoolLoosely(viper.GetString("disable_auto_review_raw")),

		AnthropicAPIKey: viper.GetString("anthropic_api_key"),
		AnthropicModel:  viper.GetString("anthropic_model"),

		CodeHostToken:   viper.GetString("codehost_token"),
		CodeHostBaseURL: viper.GetString("codehost_base_url"),

		DefaultRepo: viper.GetString("default_repo"),
		MinSeverity: viper.GetString("min_severity"),

		MaxRequestsPerHour: viper.GetInt("max_requests_per_hour"),
		DedupWindow:        viper.GetDuration("dedup_window"),
		PRMergeCooldown:    viper.GetDuration("pr_merge_cooldown"),

		DatabasePath:            viper.GetString("db_path"),
		HistoryMaxAttemptsShown: viper.GetInt("history_max_attempts_shown"),
	}
}

// parseBoolLoosely matches DISABLE_DEVIN_AUTO_REVIEW's contract values
// {true, 1, yes}, case-insensitively; strconv.ParseBool alone would reject
// "yes".
func parseBoolLoosely(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes":
		return true
	default:
		return false
	}
}
