package cli

import (
	"fmt"
	"strings"

	"github.com/zeromicro/go-zero/core/logx"

	"tokenwatch/internal/config"
	"tokenwatch/pkg/confkit"
)

// ConfigSummaryLines renders the loaded app config as human readable lines,
// one per concern, with credentials reduced to present/absent.
func ConfigSummaryLines(cfg *config.Config) []string {
	if cfg == nil {
		return []string{"Configuration: <nil>"}
	}

	lines := make([]string, 0, 8)
	add := func(label, value string) {
		lines = append(lines, label+": "+value)
	}

	add("Environment", cfg.Env)
	if cfg.Host != "" || cfg.Port != 0 {
		add("Listen", fmt.Sprintf("%s:%d", cfg.Host, cfg.Port))
	}
	add("Postgres", presence(cfg.Postgres.DSN != ""))
	add("Redis", presence(strings.TrimSpace(cfg.Redis.Host) != ""))
	add("TTL (short/medium/long)", fmt.Sprintf("%ds / %ds / %ds", cfg.TTL.Short, cfg.TTL.Medium, cfg.TTL.Long))
	add("Market config", sectionSource(cfg.Market))
	add("Watch config", sectionSource(cfg.Watch))
	add("Paper config", sectionSource(cfg.Paper))
	return lines
}

// LogConfigSummary emits the configuration summary through logx.
func LogConfigSummary(cfg *config.Config) {
	logx.Info("loaded configuration:")
	for _, line := range ConfigSummaryLines(cfg) {
		logx.Infof("config • %s", line)
	}
}

func presence(configured bool) string {
	if configured {
		return "configured"
	}
	return "not configured"
}

// sectionSource names where a split config section came from.
func sectionSource[T any](section confkit.Section[T]) string {
	switch {
	case strings.TrimSpace(section.File) != "":
		return section.File
	case section.Value != nil:
		return "inline"
	default:
		return "not configured"
	}
}
