package main

import (
	"flag"
	"fmt"
	"os"
)

// CLIConfig holds command-line configuration.
type CLIConfig struct {
	ConfigPath  string
	LogLevel    string
	LogFormat   string
	MetricsPort int
	Validate    bool
	ShowVersion bool
	ShowHelp    bool
	Query       []string
}

func parseFlags() *CLIConfig {
	cfg := &CLIConfig{}

	flag.StringVar(&cfg.ConfigPath, "config",
		getEnv("BIOQUERY_CONFIG", ""),
		"Path to YAML configuration file (env: BIOQUERY_CONFIG)")

	flag.StringVar(&cfg.LogLevel, "log-level", "",
		"Log level: debug, info, warn, error (overrides config)")

	flag.StringVar(&cfg.LogFormat, "log-format", "",
		"Log format: text, json (overrides config)")

	flag.IntVar(&cfg.MetricsPort, "metrics-port", 0,
		"Prometheus metrics port, 0 to disable")

	flag.BoolVar(&cfg.Validate, "validate", false,
		"Validate the configuration and exit")

	flag.BoolVar(&cfg.ShowVersion, "version", false,
		"Print version and exit")

	flag.BoolVar(&cfg.ShowHelp, "help", false,
		"Print usage and exit")

	flag.Parse()
	cfg.Query = flag.Args()
	return cfg
}

func validateFlags(cfg *CLIConfig) error {
	switch cfg.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", cfg.LogLevel)
	}
	switch cfg.LogFormat {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", cfg.LogFormat)
	}
	if cfg.MetricsPort < 0 || cfg.MetricsPort > 65535 {
		return fmt.Errorf("metrics port %d out of range", cfg.MetricsPort)
	}
	return nil
}

func printHelp() {
	fmt.Printf(`%s %s - federated biomedical query tool

Usage:
  %s [flags] QUERY...

The query uses the unified syntax, e.g.:
  %s 'gene:BRAF AND disease:melanoma'
  %s 'trials.condition:melanoma AND NOT trials.status:terminated'
  %s 'nct:NCT04267848'

Flags:
`, appName, Version, appName, appName, appName, appName)
	flag.PrintDefaults()
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
