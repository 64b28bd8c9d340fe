package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"rgehrsitz/nvm/internal/config"
)

var (
	configPath string
	logLevel   string
	noColor    bool

	cfg *config.Config
)

func main() {
	root := &cobra.Command{
		Use:               "nvmfile",
		Short:             "Install and inspect NVM program images",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setup,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "configuration file (TOML)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (overrides config)")
	root.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	root.AddCommand(newLoadCmd(), newInspectCmd(), newResolveCmd())

	if err := root.Execute(); err != nil {
		fatal(err)
	}
}

// setup loads the configuration and configures the global logger.
func setup(cmd *cobra.Command, args []string) error {
	if noColor {
		color.NoColor = true
	}

	var err error
	if configPath != "" {
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
	} else {
		cfg = config.Default()
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	level, err := cfg.LogLevel()
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: color.NoColor})
	return nil
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "%s\n", color.RedString(err.Error()))
	os.Exit(1)
}
