package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"reelforge/internal/deps"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check external dependencies and configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			for _, line := range renderSectionHeader("Dependencies", colorize) {
				fmt.Fprintln(out, line)
			}
			missing := 0
			for _, status := range deps.CheckBinaries(deps.Default(cfg.FFmpegBinary())) {
				kind := statusOK
				message := status.Command
				if !status.Available {
					message = status.Detail
					if status.Optional {
						kind = statusWarn
					} else {
						kind = statusError
						missing++
					}
				}
				fmt.Fprintln(out, renderStatusLine(status.Name, kind, message, colorize))
			}

			for _, line := range renderSectionHeader("Services", colorize) {
				fmt.Fprintln(out, line)
			}
			if cfg.Services.MockGeneration {
				fmt.Fprintln(out, renderStatusLine("Generation", statusWarn, "mock backends enabled", colorize))
			} else {
				fmt.Fprintln(out, renderStatusLine("Qwen", keyStatus(cfg.Services.Qwen.APIKey), keyDetail(cfg.Services.Qwen.APIKey), colorize))
				fmt.Fprintln(out, renderStatusLine("DeepSeek", keyStatus(cfg.Services.DeepSeek.APIKey), keyDetail(cfg.Services.DeepSeek.APIKey), colorize))
				fmt.Fprintln(out, renderStatusLine("Jimeng", keyStatus(cfg.Services.Jimeng.APIKey), keyDetail(cfg.Services.Jimeng.APIKey), colorize))
			}

			if missing > 0 && !cfg.Services.MockGeneration {
				return fmt.Errorf("%d required dependency(ies) missing", missing)
			}
			return nil
		},
	}
}

func keyStatus(apiKey string) statusKind {
	if apiKey == "" {
		return statusError
	}
	return statusOK
}

func keyDetail(apiKey string) string {
	if apiKey == "" {
		return "api key not configured"
	}
	return "api key set"
}
