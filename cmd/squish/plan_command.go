package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"squish/internal/cascade"
	"squish/internal/planner"
)

const (
	planFormatText = "text"
	planFormatYAML = "yaml"
	planFormatJSON = "json"
)

func newPlanCommand(ctx *commandContext) *cobra.Command {
	var profileFlag string
	var format string

	cmd := &cobra.Command{
		Use:   "plan <image>",
		Short: "Fetch and print the cascade plan for an image without compressing it",
		Long: "Fetch and print the cascade plan for an image without compressing it.\n\n" +
			"--format yaml prints a document that planner.provider = \"file\" can read back.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			profile, err := cascade.ParseProfile(profileFlag)
			if err != nil {
				return err
			}
			format = strings.ToLower(strings.TrimSpace(format))
			switch format {
			case planFormatText, planFormatYAML, planFormatJSON:
			default:
				return fmt.Errorf("unknown format %q (expected text, yaml, or json)", format)
			}

			logger, err := ctx.logger()
			if err != nil {
				return err
			}
			provider, err := planner.NewFromConfig(cfg, logger)
			if err != nil {
				return err
			}

			name := filepath.Base(args[0])
			plan, err := provider.FetchPlan(cmd.Context(), name, profile)
			if err != nil {
				return err
			}
			if err := planner.Validate(plan); err != nil {
				return err
			}

			switch format {
			case planFormatJSON:
				return writeJSON(cmd, plan)
			case planFormatYAML:
				encoded, err := planner.MarshalPlan(plan)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(encoded)
				return err
			default:
				out := cmd.OutOrStdout()
				printPlan(out, name, profile, plan, shouldColorize(out))
				return nil
			}
		},
	}

	cmd.Flags().StringVarP(&profileFlag, "profile", "p", string(cascade.ProfileBalanced), "Quality profile (archive, balanced, super-small)")
	cmd.Flags().StringVarP(&format, "format", "f", planFormatText, "Output format (text, yaml, json)")
	return cmd
}

func printPlan(out io.Writer, name string, profile cascade.Profile, plan cascade.Plan, colorize bool) {
	for _, line := range renderSectionHeader(fmt.Sprintf("%s (%s)", name, profile.Label()), colorize) {
		fmt.Fprintln(out, line)
	}
	for _, line := range planSummaryLines(plan) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out, renderPlanTable(plan))
}

func planSummaryLines(plan cascade.Plan) []string {
	title := cases.Title(language.English, cases.NoLower)
	field := func(value string) string {
		value = strings.TrimSpace(value)
		if value == "" {
			return "-"
		}
		return title.String(value)
	}

	lines := []string{}
	if floor := strings.TrimSpace(plan.QualityFloorInfo); floor != "" {
		lines = append(lines, fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Quality floor:", floor))
	}
	summary := plan.Summary
	lines = append(lines,
		fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "File type:", field(summary.FileType)),
		fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Complexity:", field(summary.Complexity)),
		fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Visual focus:", field(summary.VisualFocus)),
		fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Texture:", field(summary.TextureProfile)),
	)
	return lines
}

func renderPlanTable(plan cascade.Plan) string {
	rows := make([][]string, 0, len(plan.Cascade))
	for i, strategy := range plan.Cascade {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			strategy.Name,
			strategy.Tool,
			strategy.Parameters.String(),
			strategy.Rationale,
		})
	}
	return renderTable(
		[]string{"#", "Strategy", "Tool", "Parameters", "Rationale"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
	)
}
