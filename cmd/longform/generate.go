package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ternarybob/longform/internal/app"
	"github.com/ternarybob/longform/internal/models"
	"github.com/ternarybob/longform/internal/services/generation"
)

var (
	briefPath  string
	outPath    string
	userID     string
	jsonOutput bool
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a script from a brief file",
	Long:  `Runs the full pipeline for one brief, debits credits on success and writes the script to --out or stdout.`,
	RunE:  runGenerate,
}

func init() {
	generateCmd.Flags().StringVarP(&briefPath, "brief", "b", "", "Brief file (.yaml, .toml or .json)")
	generateCmd.Flags().StringVarP(&outPath, "out", "o", "", "Write the script here instead of stdout")
	generateCmd.Flags().StringVarP(&userID, "user", "u", "", "Override the brief's user_id")
	generateCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the full result as JSON")
	_ = generateCmd.MarkFlagRequired("brief")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	brief, err := loadBrief(briefPath)
	if err != nil {
		return err
	}
	if userID != "" {
		brief.UserID = userID
	}

	application, err := app.New(config, logger, app.Options{})
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stderr := cmd.ErrOrStderr()
	result, err := application.GenerationService.Generate(ctx, &generation.Request{
		Brief: *brief,
		Progress: func(event models.ProgressEvent) {
			if event.ChunkIndex > 0 {
				fmt.Fprintf(stderr, "[%s] chunk %d %s\n", event.Stage, event.ChunkIndex, event.Message)
				return
			}
			fmt.Fprintf(stderr, "[%s] %s\n", event.Stage, event.Message)
		},
	})
	if err != nil {
		if ge, ok := generation.AsError(err); ok {
			return fmt.Errorf("%s failure (status %d, retry %t): %w", ge.Kind, ge.Status, ge.Retry, err)
		}
		return err
	}

	if jsonOutput {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(result)
	}

	if outPath != "" {
		if err := os.WriteFile(outPath, []byte(result.Script), 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", outPath, err)
		}
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), result.Script)
	}

	scriptID := "(not persisted)"
	if result.ScriptID != nil {
		scriptID = *result.ScriptID
	}
	fmt.Fprintf(stderr, "words: %d  credits: %d  script: %s\n", result.WordCount, result.CreditsUsed, scriptID)
	return nil
}
