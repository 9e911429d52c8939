package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/spf13/cobra"

	"github.com/rezkam/tutorplan/internal/domain"
	"github.com/rezkam/tutorplan/internal/recurring"
)

func expandCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "expand",
		Short: "List the dates a rule file expands to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("rule")
			asJSON, _ := cmd.Flags().GetBool("json")

			rf, err := loadRuleFile(path)
			if err != nil {
				return err
			}
			rule, anchor, err := rf.rule(civil.DateOf(time.Now()))
			if err != nil {
				return err
			}
			return runExpand(cmd.OutOrStdout(), rule, anchor, asJSON)
		},
	}

	cmd.Flags().StringP("rule", "r", "", "Path to a YAML rule file")
	cmd.Flags().BoolP("json", "j", false, "Output as JSON")
	_ = cmd.MarkFlagRequired("rule")

	return cmd
}

func runExpand(out io.Writer, rule *domain.RecurrenceRule, anchor civil.Date, asJSON bool) error {
	occurrences := recurring.Expand(rule, anchor)

	var rr string
	if rule.Repeats() {
		s, err := recurring.RRuleString(rule)
		if err != nil {
			return err
		}
		rr = s
	}

	if asJSON {
		if occurrences == nil {
			occurrences = []domain.Occurrence{}
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Occurrences []domain.Occurrence    `json:"occurrences"`
			Rule        *domain.RecurrenceRule `json:"rule"`
			RRule       string                 `json:"rrule,omitempty"`
		}{occurrences, rule, rr})
	}

	if rr != "" {
		fmt.Fprintf(out, "RRULE:%s\n", rr)
	}
	for _, o := range occurrences {
		fmt.Fprintf(out, "%3d  %s  %s\n", o.SequenceIndex, o.Date, o.Date.Weekday().String()[:3])
	}
	fmt.Fprintf(out, "%d occurrence(s)\n", len(occurrences))
	return nil
}

func gridCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "grid YEAR MONTH",
		Short: "Print a Sunday-first month grid",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			year, err := strconv.Atoi(args[0])
			if err != nil || year < 1 || year > 9999 {
				return fmt.Errorf("invalid year %q", args[0])
			}
			month, err := strconv.Atoi(args[1])
			if err != nil || month < 1 || month > 12 {
				return fmt.Errorf("%w: %q", domain.ErrInvalidMonth, args[1])
			}
			printGrid(cmd.OutOrStdout(), year, time.Month(month))
			return nil
		},
	}
}

func printGrid(out io.Writer, year int, month time.Month) {
	fmt.Fprintf(out, "%s %d\n", month, year)
	fmt.Fprintln(out, "Su Mo Tu We Th Fr Sa")

	cells := recurring.BuildGrid(year, month)
	var row []string
	for _, c := range cells {
		if c.IsBlank() {
			row = append(row, "  ")
		} else {
			row = append(row, fmt.Sprintf("%2d", c.Date.Day))
		}
		if len(row) == 7 {
			fmt.Fprintln(out, strings.Join(row, " "))
			row = row[:0]
		}
	}
	if len(row) > 0 {
		fmt.Fprintln(out, strings.Join(row, " "))
	}
}
