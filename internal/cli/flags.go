package cli

import (
	"flag"
	"fmt"
	"sort"
	"strings"
	"time"
)

// optionFlag collects repeated -O key=value extra options.
type optionFlag map[string]string

func (o optionFlag) String() string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + o[k]
	}
	return strings.Join(parts, ",")
}

func (o optionFlag) Set(v string) error {
	k, val, ok := strings.Cut(v, "=")
	if !ok || k == "" {
		return fmt.Errorf("want key=value, got %q", v)
	}
	o[k] = val
	return nil
}

// Short and long spellings share a variable.

func stringFlag(fs *flag.FlagSet, p *string, short, long, def, usage string) {
	fs.StringVar(p, long, def, usage)
	if short != "" {
		fs.StringVar(p, short, def, "shorthand for -"+long)
	}
}

func boolFlag(fs *flag.FlagSet, p *bool, short, long string, def bool, usage string) {
	fs.BoolVar(p, long, def, usage)
	if short != "" {
		fs.BoolVar(p, short, def, "shorthand for -"+long)
	}
}

func durationFlag(fs *flag.FlagSet, p *time.Duration, long string, def time.Duration, usage string) {
	fs.DurationVar(p, long, def, usage)
}
