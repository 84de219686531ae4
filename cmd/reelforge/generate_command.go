package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"reelforge/internal/deps"
	"reelforge/internal/pipeline"
)

func newGenerateCommand(ctx *commandContext) *cobra.Command {
	var images []string
	var mock bool

	cmd := &cobra.Command{
		Use:   "generate <prompt>",
		Short: "Run the full generation pipeline for a prompt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, cleanup, err := ctx.openResources()
			if err != nil {
				return err
			}
			defer cleanup()

			if mock {
				res.cfg.Services.MockGeneration = true
			}
			if !res.cfg.Services.MockGeneration {
				if err := checkRequired(res.cfg.FFmpegBinary()); err != nil {
					return err
				}
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			outcome, err := res.pipeline().Run(runCtx, pipeline.RunRequest{
				Prompt:     strings.TrimSpace(args[0]),
				AssetPaths: images,
			})
			out := cmd.OutOrStdout()
			if outcome != nil {
				fmt.Fprintf(out, "Run %s: %s\n", outcome.RunID, outcome.Status)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Output: %s\n", outcome.FinalPath)
			if rounds := outcome.Result.TotalReworkRounds(); rounds > 0 {
				fmt.Fprintf(out, "Quality gates sent %d rework round(s)\n", rounds)
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&images, "image", "i", nil, "Reference image path (repeatable)")
	cmd.Flags().BoolVar(&mock, "mock", false, "Use deterministic mock generation backends")
	_ = cmd.MarkFlagRequired("image")
	return cmd
}

func checkRequired(ffmpegBinary string) error {
	for _, status := range deps.CheckBinaries(deps.Default(ffmpegBinary)) {
		if !status.Available && !status.Optional {
			return fmt.Errorf("missing required dependency %s: %s (run `reelforge doctor`)", status.Name, status.Detail)
		}
	}
	return nil
}
