package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/fpang/hedra-batch/internal/auth"
	"github.com/fpang/hedra-batch/internal/batch"
	"github.com/fpang/hedra-batch/internal/config"
	"github.com/fpang/hedra-batch/internal/hedra"
	"github.com/fpang/hedra-batch/internal/logging"
)

// CLI flags
var (
	inputFolderFlag  string
	promptFlag       string
	outputFolderFlag string
	apiKeyFlag       string
	configFlag       string
)

// rootCmd is the main Cobra command for the hedra-batch CLI.
var rootCmd = &cobra.Command{
	Use:   "hedra-batch",
	Short: "Batch talking-head video generation via the Hedra Character 3 API",
	Long: `Hedra Batch pairs the single character image in a folder with every audio
clip found next to it and generates one video per clip through the Hedra
Character 3 API. Files are processed one at a time, in name order; the first
failure stops the run.

A run log (hedra_batch.log) is written into the output folder alongside the
generated videos.

Examples:
  hedra-batch --input-folder ./takes --prompt "talking head"
  hedra-batch -i ./takes -p "talking head" -o ./videos
  hedra-batch -i ./takes -p "talking head" --api-key hk_...
  hedra-batch config sample > hedra.toml`,
	Run: runMain,
}

// configCmd groups configuration helpers.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration helpers",
}

// configSampleCmd prints the built-in sample configuration file.
var configSampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Print a sample configuration file with all defaults",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Print(config.Sample())
	},
}

func init() {
	rootCmd.Flags().StringVarP(&inputFolderFlag, "input-folder", "i", "", "Folder containing the character image and audio clips")
	rootCmd.Flags().StringVarP(&promptFlag, "prompt", "p", "", "Prompt to use for video generation")
	rootCmd.Flags().StringVarP(&outputFolderFlag, "output-folder", "o", "", "Output folder for generated videos (default: input folder)")
	rootCmd.Flags().StringVar(&apiKeyFlag, "api-key", "", "Hedra API key (optional if "+config.EnvAPIKey+" is set)")
	rootCmd.Flags().StringVar(&configFlag, "config", "", "Optional TOML configuration file")
	rootCmd.MarkFlagRequired("input-folder")
	rootCmd.MarkFlagRequired("prompt")

	configCmd.AddCommand(configSampleCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// runMain is the main execution logic called by Cobra.
func runMain(cmd *cobra.Command, args []string) {
	if err := runBatch(); err != nil {
		os.Exit(1)
	}
}

// runBatch wires config, auth, logging, client, and runner together and
// executes one batch run. Errors are reported before returning; the caller
// only translates a non-nil error into the exit status.
func runBatch() error {
	cfg, err := config.Load(configFlag)
	if err != nil {
		return failEarly(err)
	}

	apiKey, err := auth.ResolveAPIKey(apiKeyFlag)
	if err != nil {
		return failEarly(err)
	}

	inputFolder, err := filepath.Abs(inputFolderFlag)
	if err != nil {
		return failEarly(fmt.Errorf("resolve input folder: %w", err))
	}
	info, err := os.Stat(inputFolder)
	if err != nil || !info.IsDir() {
		return failEarly(fmt.Errorf("input folder does not exist: %s", inputFolder))
	}

	// The run log lives in the output folder, so it has to exist before the
	// logger can be built.
	outputFolder := inputFolder
	if outputFolderFlag != "" {
		outputFolder, err = filepath.Abs(outputFolderFlag)
		if err != nil {
			return failEarly(fmt.Errorf("resolve output folder: %w", err))
		}
	}
	if err := os.MkdirAll(outputFolder, 0o755); err != nil {
		return failEarly(fmt.Errorf("create output folder %s: %w", outputFolder, err))
	}

	runID := uuid.NewString()
	logger, closeLog, err := logging.New(outputFolder, cfg.Logging, runID)
	if err != nil {
		return failEarly(err)
	}
	defer closeLog()

	logger.Info().
		Str("input_folder", inputFolder).
		Str("output_folder", outputFolder).
		Msg("Starting Hedra batch video generator")

	client, err := hedra.NewClient(apiKey, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create Hedra client")
		return err
	}

	runner := batch.NewRunner(client, cfg, logger)
	results, runErr := runner.Run(context.Background(), inputFolder, outputFolder, promptFlag)
	if len(results) > 0 {
		fmt.Println(renderSummary(results))
	}
	if runErr != nil {
		logger.Error().Err(runErr).Msg("Batch processing failed")
		return runErr
	}

	return nil
}

// failEarly reports errors raised before the run logger exists.
func failEarly(err error) error {
	fmt.Fprintln(os.Stderr, "hedra-batch:", err)
	return err
}
