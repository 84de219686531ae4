package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"reelforge/internal/runs"
)

func newRunsCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent generation runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, cleanup, err := ctx.openResources()
			if err != nil {
				return err
			}
			defer cleanup()

			records, err := res.registry.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(out, "No runs recorded yet")
				return nil
			}

			rows := make([][]string, 0, len(records))
			for _, rec := range records {
				rows = append(rows, []string{
					rec.RunID,
					rec.Status,
					strconv.Itoa(rec.SegmentCount),
					rec.CreatedAt.Local().Format(time.DateTime),
					truncate(rec.Prompt, 48),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"RUN ID", "STATUS", "SEGMENTS", "CREATED", "PROMPT"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to list")
	return cmd
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run's record and manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, cleanup, err := ctx.openResources()
			if err != nil {
				return err
			}
			defer cleanup()

			rec, err := res.registry.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printRecord(cmd, rec)
			return nil
		},
	}
}

func printRecord(cmd *cobra.Command, rec *runs.Record) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	for _, line := range renderSectionHeader("Run "+rec.RunID, colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out, renderStatusLine("Status", statusKindFor(rec.Status), rec.Status, colorize))
	fmt.Fprintf(out, "  %-*s %s\n", statusLabelWidth, "Prompt:", rec.Prompt)
	fmt.Fprintf(out, "  %-*s %ds @ %d fps, %d segments\n", statusLabelWidth, "Target:",
		rec.TargetDurationSec, rec.FPS, rec.SegmentCount)
	fmt.Fprintf(out, "  %-*s %s\n", statusLabelWidth, "Created:", rec.CreatedAt.Local().Format(time.DateTime))
	if rec.FailedStep != "" {
		fmt.Fprintf(out, "  %-*s %s\n", statusLabelWidth, "Failed step:", rec.FailedStep)
	}
	if rec.Error != "" {
		fmt.Fprintf(out, "  %-*s %s\n", statusLabelWidth, "Error:", rec.Error)
	}

	if rec.Manifest == nil {
		return
	}
	manifest := rec.Manifest
	fmt.Fprintf(out, "  %-*s %s\n", statusLabelWidth, "Output:", manifest.FinalPath)
	fmt.Fprintf(out, "  %-*s %s\n", statusLabelWidth, "Final artifact:", manifest.FinalArtifactID)
	if len(manifest.ConsistencyFlags) > 0 {
		fmt.Fprintf(out, "  %-*s %v\n", statusLabelWidth, "Locked flags:", manifest.ConsistencyFlags)
	}

	rows := make([][]string, 0, len(manifest.Segments))
	for _, seg := range manifest.Segments {
		rows = append(rows, []string{
			strconv.Itoa(seg.Index),
			fmt.Sprintf("%.1fs", seg.DurationSec),
			shortID(seg.VideoArtifactID),
			shortID(seg.StartBoundaryID),
			shortID(seg.EndBoundaryID),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"#", "DURATION", "VIDEO", "START FRAME", "END FRAME"},
		rows,
		[]columnAlignment{alignRight, alignRight, alignLeft, alignLeft, alignLeft},
	))
}

func statusKindFor(status string) statusKind {
	switch status {
	case runs.StatusSucceeded:
		return statusOK
	case runs.StatusRunning:
		return statusInfo
	case runs.StatusCancelled:
		return statusWarn
	default:
		return statusError
	}
}

func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	if max <= 3 {
		return value[:max]
	}
	return value[:max-3] + "..."
}

func shortID(id string) string {
	const width = 12
	if len(id) <= width {
		return id
	}
	return id[:width]
}
