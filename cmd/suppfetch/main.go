// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the suppfetch CLI.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/pdiddy/suppfetch/internal/logging"
	"github.com/pdiddy/suppfetch/internal/secrets"
	"github.com/pdiddy/suppfetch/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	// logger is replaced in PersistentPreRunE once configuration is read.
	logger    = zerolog.Nop()
	logCloser io.Closer

	// loadedSecrets holds credentials read from .secrets/ at startup.
	loadedSecrets secrets.Secrets
)

// rootCmd is the base command for the suppfetch CLI.
var rootCmd = &cobra.Command{
	Use:   "suppfetch",
	Short: "Harvest supplementary-material links from PubMed Central",
	Long: `suppfetch searches PubMed Central for articles matching a phrase, extracts
the links to each article's supplementary material, and writes them to
per-article link files under a date-keyed output directory.

The referenced files can then be downloaded, zip archives unpacked, and
anything that is not a document pruned. Each stage is a subcommand; harvest
runs them in sequence.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		l, closer, err := logging.New(cfg.Logging, os.Stderr)
		if err != nil {
			return err
		}
		logger, logCloser = l, closer

		s, err := secrets.Load(secrets.DefaultDir, logger)
		if err != nil {
			return err
		}
		loadedSecrets = s
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./suppfetch.yaml or ~/.config/suppfetch/suppfetch.yaml)")
	pf.String("output-dir", "output", "base directory for date-keyed run folders")
	pf.Duration("download-delay", 0, "delay between consecutive downloads (default 500ms)")
	pf.String("log-level", "info", "console log level (debug, info, warn, error)")

	bindFlag("collector.output_dir", pf.Lookup("output-dir"))
	bindFlag("collector.download_delay", pf.Lookup("download-delay"))
	bindFlag("logging.level", pf.Lookup("log-level"))

	def := logging.DefaultConfig()
	viper.SetDefault("logging.format", def.Format)
	viper.SetDefault("logging.dir", def.Dir)
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("suppfetch")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "suppfetch"))
		}
	}

	viper.SetEnvPrefix("SUPPFETCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// bindFlag binds a flag to a config key. Binding only fails for a nil flag,
// which means a typo in the flag name.
func bindFlag(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("binding flag for %s: %v", key, err))
	}
}

// loadConfig assembles the stage configuration from flags, environment and
// the optional config file.
func loadConfig() types.Config {
	return types.Config{
		Source: types.SourceConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   viper.GetDuration("source.timeout"),
				UserAgent: viper.GetString("source.user_agent"),
			},
			Name:           viper.GetString("source.name"),
			BaseURL:        viper.GetString("source.base_url"),
			FetchTimeout:   viper.GetDuration("source.fetch_timeout"),
			MaxResults:     viper.GetInt("source.max_results"),
			BatchSize:      viper.GetInt("source.batch_size"),
			BatchDelay:     viper.GetDuration("source.batch_delay"),
			OpenAccessOnly: viper.GetBool("source.open_access_only"),
			APIKey:         viper.GetString("source.api_key"),
			Email:          viper.GetString("source.email"),
			DebugDir:       viper.GetString("source.debug_dir"),
		},
		Collector: types.CollectorConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout: viper.GetDuration("collector.timeout"),
			},
			OutputDir:          viper.GetString("collector.output_dir"),
			DownloadDelay:      viper.GetDuration("collector.download_delay"),
			MinHTMLBytes:       viper.GetInt64("collector.min_html_bytes"),
			DocumentExtensions: viper.GetStringSlice("collector.document_extensions"),
		},
		Logging: types.LoggingConfig{
			Level:  viper.GetString("logging.level"),
			Format: viper.GetString("logging.format"),
			Dir:    viper.GetString("logging.dir"),
		},
	}
}

// errorLogHint names where to look after an unexpected failure.
func errorLogHint() string {
	if p := logging.ErrorLogPath(loadConfig().Logging); p != "" {
		return p
	}
	return "the log output"
}

func run() (code int) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error().
				Interface("panic", r).
				Str("stack", string(debug.Stack())).
				Msg("unexpected failure")
			fmt.Fprintf(os.Stderr, "unexpected failure, see %s\n", errorLogHint())
			code = 2
		}
		if logCloser != nil {
			logCloser.Close()
		}
	}()

	if err := rootCmd.Execute(); err != nil {
		if logCloser == nil {
			// Failed before the logger was built.
			fmt.Fprintln(os.Stderr, "Error:", err)
		} else {
			logger.Error().Err(err).Msg("command failed")
		}
		return 1
	}
	return 0
}

func main() {
	os.Exit(run())
}
