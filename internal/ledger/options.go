package ledger

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Options lists the activities and time slots a caller may choose from.
type Options struct {
	Activities []string `yaml:"activities" json:"activities"`
	TimeSlots  []string `yaml:"timeSlots" json:"timeSlots"`
}

// OptionsSource is the read-only listing of valid options.
type OptionsSource interface {
	Options(ctx context.Context) (Options, error)
}

// OptionsFromRows reads a two-column configuration range (activity, time
// slot) with a header row. Blank cells are skipped and duplicates collapsed
// in first-seen order.
func OptionsFromRows(rows [][]string) Options {
	if len(rows) <= 1 {
		return Options{Activities: []string{}, TimeSlots: []string{}}
	}
	var activities, slots []string
	for _, r := range rows[1:] {
		if len(r) > 0 {
			activities = append(activities, r[0])
		}
		if len(r) > 1 {
			slots = append(slots, r[1])
		}
	}
	return Options{Activities: uniqueNonBlank(activities), TimeSlots: uniqueNonBlank(slots)}
}

func uniqueNonBlank(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// StaticOptions serves a fixed list, typically from the environment.
type StaticOptions Options

func (s StaticOptions) Options(context.Context) (Options, error) {
	return Options{
		Activities: uniqueNonBlank(s.Activities),
		TimeSlots:  uniqueNonBlank(s.TimeSlots),
	}, nil
}

// FileOptions reads options from a YAML file on every call, so edits are
// picked up by the next catalog refresh.
type FileOptions struct {
	Path string
}

func (f FileOptions) Options(context.Context) (Options, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return Options{}, fmt.Errorf("read options file: %w", err)
	}
	return ParseOptionsYAML(data)
}

func ParseOptionsYAML(data []byte) (Options, error) {
	var opts Options
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return Options{}, fmt.Errorf("parse options yaml: %w", err)
	}
	return Options{
		Activities: uniqueNonBlank(opts.Activities),
		TimeSlots:  uniqueNonBlank(opts.TimeSlots),
	}, nil
}
