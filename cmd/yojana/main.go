// -----------------------------------------------------------------------
// Last Modified: Friday, 16th October 2026 11:32:05 am
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/yojana/internal/app"
	"github.com/ternarybob/yojana/internal/common"
	"github.com/ternarybob/yojana/internal/server"
)

const shutdownTimeout = 10 * time.Second

// configPaths is a custom flag type that allows multiple -config flags
type configPaths []string

func (c *configPaths) String() string {
	return fmt.Sprintf("%v", *c)
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	configFiles  configPaths
	serverPort   = flag.Int("port", 0, "Server port (overrides config)")
	serverPortP  = flag.Int("p", 0, "Server port (shorthand, overrides config)")
	serverHost   = flag.String("host", "", "Server host (overrides config)")
	ingestPath   = flag.String("ingest", "", "Ingest the documents listed in a YAML manifest, then exit")
	showVersion  = flag.Bool("version", false, "Print version information")
	showVersionV = flag.Bool("v", false, "Print version information (shorthand)")
)

func init() {
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times, later files override earlier ones)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
}

func main() {
	common.InstallCrashHandler("logs")
	defer common.RecoverWithCrashFile()

	flag.Parse()

	if *showVersion || *showVersionV {
		fmt.Println(common.GetFullVersion())
		os.Exit(0)
	}

	finalPort := *serverPort
	if *serverPortP != 0 {
		finalPort = *serverPortP
	}

	// Order matters: config (defaults, files, env), CLI overrides, logger, banner
	if len(configFiles) == 0 {
		configFiles = discoverConfig()
	}

	config, err := common.LoadFromFiles(configFiles...)
	if err != nil {
		tempLogger := arbor.NewLogger()
		if len(configFiles) == 0 {
			tempLogger.Fatal().Err(err).Msg("Failed to load configuration")
		} else {
			tempLogger.Fatal().Strs("paths", configFiles).Err(err).Msg("Failed to load configuration files")
		}
		os.Exit(1)
	}

	common.ApplyFlagOverrides(config, finalPort, *serverHost)

	logger := common.SetupLogger(config)

	common.PrintBanner(config, logger)

	logger.Debug().
		Str("badger_path", config.Storage.Badger.Path).
		Str("log_level", config.Logging.Level).
		Strs("log_output", config.Logging.Output).
		Strs("config_files", configFiles).
		Msg("Resolved configuration (sanitized)")

	application, err := app.New(config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize application")
		os.Exit(1)
	}
	defer application.Close()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	if *ingestPath != "" {
		os.Exit(runIngest(application, *ingestPath, sigChan))
	}

	runServer(application, sigChan)
}

// discoverConfig looks for a config file in the working directory, then in
// the local deployment folder
func discoverConfig() []string {
	for _, candidate := range []string{"yojana.toml", "deployments/local/yojana.toml"} {
		if _, err := os.Stat(candidate); err == nil {
			return []string{candidate}
		}
	}
	return nil
}

// runServer serves HTTP until a signal arrives, then drains in-flight
// requests for up to shutdownTimeout
func runServer(application *app.App, sigChan <-chan os.Signal) {
	logger := application.Logger
	srv := server.New(application)

	common.SafeGo(logger, "http-server", func() {
		if err := srv.Start(); err != nil {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	})

	logger.Info().
		Str("url", fmt.Sprintf("http://%s:%d", application.Config.Server.Host, application.Config.Server.Port)).
		Str("mode", "serve").
		Msg("Server ready - Press Ctrl+C to stop")

	sig := <-sigChan
	logger.Info().Str("signal", sig.String()).Msg("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Server shutdown failed")
	}

	logger.Info().Msg("Server stopped")
}

// runIngest ingests a manifest and returns the process exit code.
// An interrupt cancels the run between documents.
func runIngest(application *app.App, path string, sigChan <-chan os.Signal) int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		select {
		case <-sigChan:
			application.Logger.Warn().Msg("Interrupt received, cancelling ingest")
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := application.IngestManifest(ctx, path); err != nil {
		application.Logger.Error().Err(err).Str("manifest", path).Msg("Manifest ingest failed")
		application.Close()
		return 1
	}
	application.Close()
	return 0
}
