package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/FabioSangalli/nTLCanalyzer/internal/config"
	"github.com/FabioSangalli/nTLCanalyzer/internal/logger"
	"github.com/FabioSangalli/nTLCanalyzer/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// EnvConfig names the environment variable holding the default config path.
const EnvConfig = "TLC_MCP_CONFIG"

func main() {
	configPath := os.Getenv(EnvConfig)

	args := os.Args[1:]
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--version", "-v", "version":
			fmt.Printf("tlc-mcp %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			printHelp()
			return
		case "--config", "-c":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--config needs a path")
				os.Exit(2)
			}
			i++
			configPath = args[i]
		default:
			fmt.Fprintf(os.Stderr, "unknown option %q (see --help)\n", args[i])
			os.Exit(2)
		}
	}

	cfg := config.DefaultConfig()
	if configPath != "" {
		var err error
		if cfg, err = config.LoadConfig(configPath); err != nil {
			logger.WithError(err).WithField("path", configPath).Fatal("failed to load configuration")
		}
	}

	logger.WithFields(logrus.Fields{
		"version":    Version,
		"build_time": BuildTime,
		"commit":     GitCommit,
		"config":     configPath,
	}).Debug("starting TLC MCP server")

	server.Version = Version
	srv := server.New(cfg)
	if err := srv.Run(); err != nil {
		logger.WithError(err).Fatal("server error")
	}
}

func printHelp() {
	fmt.Println("tlc-mcp - MCP server for thin-layer chromatography plate analysis")
	fmt.Println()
	fmt.Println("Usage: tlc-mcp [options]")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --config, -c PATH  Load the YAML configuration at PATH")
	fmt.Println("  --version, -v      Print version information")
	fmt.Println("  --help, -h         Print this help message")
	fmt.Println()
	fmt.Println("Environment variables:")
	fmt.Println("  TLC_MCP_LOG_LEVEL=debug    Log level (debug, info, warn, error)")
	fmt.Println("  TLC_MCP_CONFIG=PATH        Configuration used when --config is not given")
	fmt.Println()
	fmt.Println("This server communicates via MCP protocol over stdin/stdout.")
	fmt.Println("Configure it in your MCP client (e.g., Claude Desktop).")
}
