package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"pingbot/internal/secrets"
)

// ExportEnvConfig controls ExportEnvFile.
type ExportEnvConfig struct {
	OutputPath  string
	Environment string
	SSM         *SSMManager
	Stderr      io.Writer

	// IncludeLocalDefaults adds settings for running the bot on a developer
	// machine (APP_ENV=local and friends).
	IncludeLocalDefaults bool
}

// ssmToEnvMapping maps SSM category/key paths to the variable the bot reads.
var ssmToEnvMapping = map[string]string{
	tokenCategoryKey: secrets.DiscordTokenKey,
}

// localDefaults are written when IncludeLocalDefaults is set. APP_ENV=local
// keeps the bot from calling SSM on startup.
var localDefaults = map[string]string{
	"APP_ENV":         "local",
	"LOG_LEVEL":       "debug",
	"METRICS_ENABLED": "false",
}

// ExportEnvFile reads every mapped parameter back from SSM and writes them
// to a .env file with 0600 permissions. Parameters that cannot be read are
// reported and left out; the export fails only if nothing could be read.
func ExportEnvFile(ctx context.Context, cfg ExportEnvConfig) error {
	values := make(map[string]string, len(ssmToEnvMapping)+len(localDefaults))
	var missing []string

	for key, envVar := range ssmToEnvMapping {
		path := cfg.SSM.SSMPath(key)
		value, err := cfg.SSM.GetParameterValue(ctx, path, true)
		if err != nil {
			fmt.Fprintf(cfg.Stderr, "  Warning: could not read %s: %v\n", path, err)
			missing = append(missing, envVar)
			continue
		}
		values[envVar] = value
	}

	if len(values) == 0 {
		return fmt.Errorf("no parameters could be read from %s", ssmPrefix(cfg.Environment))
	}

	if cfg.IncludeLocalDefaults {
		for k, v := range localDefaults {
			if _, ok := values[k]; !ok {
				values[k] = v
			}
		}
	}

	body, err := godotenv.Marshal(values)
	if err != nil {
		return fmt.Errorf("encoding .env content: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("# Auto-generated by bootstrap --export-env\n")
	fmt.Fprintf(&sb, "# Environment: %s\n", cfg.Environment)
	fmt.Fprintf(&sb, "# Generated: %s\n", time.Now().UTC().Format(time.RFC3339))
	sb.WriteString("# SECURITY WARNING: this file contains secrets. Do not commit it.\n\n")
	sb.WriteString(body)
	sb.WriteString("\n")

	if err := os.WriteFile(cfg.OutputPath, []byte(sb.String()), 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", cfg.OutputPath, err)
	}
	// WriteFile keeps the mode of an existing file.
	if err := os.Chmod(cfg.OutputPath, 0o600); err != nil {
		return fmt.Errorf("restricting permissions on %s: %w", cfg.OutputPath, err)
	}

	fmt.Fprintf(cfg.Stderr, "  Wrote %d variables to %s\n", len(values), cfg.OutputPath)
	if len(missing) > 0 {
		fmt.Fprintf(cfg.Stderr, "  Missing: %s\n", strings.Join(missing, ", "))
	}
	return nil
}
