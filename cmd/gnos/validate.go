package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/gnos/config"
	"github.com/jpalmerr/gnos/internal/ingest"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a gnos configuration file without starting the server.

This command parses the YAML, expands environment variables, validates all
fields, expands modeler grids and parses the seed file.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  gnos validate -c gnos.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	modelers, err := config.BuildModelers(cfg)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	gridModelers := len(modelers) - len(cfg.Modelers)

	seedFacts := 0
	if cfg.SeedFile != "" {
		seed, err := ingest.LoadSeed(cfg.SeedFile)
		if err != nil {
			return fmt.Errorf("invalid seed file: %w", err)
		}
		seedFacts = len(seed.Facts)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config is valid!\n")
	fmt.Fprintf(out, "  Port:          %d\n", cfg.Port)
	fmt.Fprintf(out, "  Poll interval: %s\n", cfg.PollInterval.Duration())
	fmt.Fprintf(out, "  Modelers:      %d direct + %d from grids = %d total\n",
		len(cfg.Modelers), gridModelers, len(modelers))
	if cfg.SeedFile != "" {
		fmt.Fprintf(out, "  Seed facts:    %d\n", seedFacts)
	}

	return nil
}
