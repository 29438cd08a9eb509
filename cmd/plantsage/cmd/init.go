package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/plantsage/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a PlantSage config in the current directory",
	Long: `Create .plantsage/config.yaml with the default settings.

The Gemini API key is read from GOOGLE_API_KEY or PLANTSAGE_GEMINI_API_KEY,
so it does not need to be written to the file.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

var initForce bool

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite existing configuration")
}

func runInit(cmd *cobra.Command, _ []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}
	configPath := filepath.Join(cwd, config.ProjectConfigPath)

	if _, err := os.Stat(configPath); err == nil && !initForce {
		return fmt.Errorf("configuration already exists at %s, use --force to overwrite", config.ProjectConfigPath)
	}

	if err := config.AtomicWrite(configPath, []byte(config.DefaultConfigYAML)); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Initialized PlantSage in", cwd)
	fmt.Fprintln(out, "Configuration file:", config.ProjectConfigPath)
	fmt.Fprintln(out, "Run 'plantsage doctor' to verify setup")
	return nil
}
