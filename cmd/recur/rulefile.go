package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"gopkg.in/yaml.v3"

	"github.com/rezkam/tutorplan/internal/domain"
)

// ruleFile is the YAML form of a rule:
//
//	anchor: 2026-02-02
//	type: weekly
//	weekdays: [mon, wed]
//	range_end: 2026-03-01
//
// Weekdays accept numbers (0 = Sunday) or English names and abbreviations.
type ruleFile struct {
	Anchor     string   `yaml:"anchor"`
	Type       string   `yaml:"type"`
	Weekdays   []string `yaml:"weekdays"`
	DayOfMonth int      `yaml:"day_of_month"`
	RangeStart string   `yaml:"range_start"`
	RangeEnd   string   `yaml:"range_end"`
}

func loadRuleFile(path string) (*ruleFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule file: %w", err)
	}
	return parseRuleFile(data)
}

func parseRuleFile(data []byte) (*ruleFile, error) {
	var rf ruleFile
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(&rf); err != nil {
		return nil, fmt.Errorf("invalid rule file: %w", err)
	}
	return &rf, nil
}

// rule builds the domain rule and its anchor. A missing anchor defaults to today.
func (rf *ruleFile) rule(today civil.Date) (*domain.RecurrenceRule, civil.Date, error) {
	anchor := today
	if rf.Anchor != "" {
		d, err := domain.ParseDate(rf.Anchor)
		if err != nil {
			return nil, civil.Date{}, fmt.Errorf("anchor: %w", err)
		}
		anchor = d
	}

	rt, err := domain.NewRecurrenceType(rf.Type)
	if err != nil {
		return nil, civil.Date{}, err
	}

	opts := domain.RuleOptions{DayOfMonth: rf.DayOfMonth}
	if rf.Weekdays != nil {
		opts.Weekdays = make([]time.Weekday, 0, len(rf.Weekdays))
		for _, s := range rf.Weekdays {
			wd, err := parseWeekday(s)
			if err != nil {
				return nil, civil.Date{}, err
			}
			opts.Weekdays = append(opts.Weekdays, wd)
		}
	}
	if opts.RangeStart, err = optionalDate("range_start", rf.RangeStart); err != nil {
		return nil, civil.Date{}, err
	}
	if opts.RangeEnd, err = optionalDate("range_end", rf.RangeEnd); err != nil {
		return nil, civil.Date{}, err
	}

	rule, err := domain.NewRecurrenceRule(rt, anchor, opts)
	if err != nil {
		return nil, civil.Date{}, err
	}
	return rule, anchor, nil
}

func optionalDate(field, s string) (*civil.Date, error) {
	if s == "" {
		return nil, nil
	}
	d, err := domain.ParseDate(s)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	return &d, nil
}

func parseWeekday(s string) (time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 || n > 6 {
			return 0, fmt.Errorf("%w: %d", domain.ErrInvalidWeekday, n)
		}
		return time.Weekday(n), nil
	}
	if len(s) >= 2 {
		for wd := time.Sunday; wd <= time.Saturday; wd++ {
			if strings.HasPrefix(strings.ToLower(wd.String()), s) {
				return wd, nil
			}
		}
	}
	return 0, fmt.Errorf("%w: %q", domain.ErrInvalidWeekday, s)
}
