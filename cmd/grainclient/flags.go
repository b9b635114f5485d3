package main

import (
	"flag"
	"fmt"
	"os"
)

// cliConfig holds parsed command-line flags.
type cliConfig struct {
	configPath  string
	logLevel    string
	logFormat   string
	metricsPort int
	showVersion bool
}

// parseFlags parses CLI flags, returning shouldExit=true for -version.
func parseFlags() (cliConfig, bool) {
	var cfg cliConfig

	flag.StringVar(&cfg.configPath, "config", "client.yaml", "path to the client configuration file")
	flag.StringVar(&cfg.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flag.StringVar(&cfg.logFormat, "log-format", "text", "log format (text, json)")
	flag.IntVar(&cfg.metricsPort, "metrics-port", 0, "override the metrics port from the config file")
	flag.BoolVar(&cfg.showVersion, "version", false, "print version and exit")
	flag.Parse()

	if cfg.showVersion {
		fmt.Fprintf(os.Stdout, "%s %s (built %s)\n", appName, Version, BuildTime)
		return cfg, true
	}
	return cfg, false
}
