package whisper

import (
	"sort"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/obiente/whisperbridge/internal/apperr"
)

// optionDef describes one extra option understood by both backends: how it
// lands in NativeParams and which whisper-cli flag carries it.
type optionDef struct {
	flag  string
	apply func(p *NativeParams, bufs *NativeCallBuffers, v string) error
	args  func(flag, v string) ([]string, error)
}

var extraOptions = map[string]optionDef{
	"threads":         intOption("--threads", 1, func(p *NativeParams, n int) { p.Threads = n }),
	"offset_ms":       intOption("--offset-t", 0, func(p *NativeParams, n int) { p.OffsetMs = n }),
	"duration_ms":     intOption("--duration", 0, func(p *NativeParams, n int) { p.DurationMs = n }),
	"max_len":         intOption("--max-len", 0, func(p *NativeParams, n int) { p.MaxLen = n }),
	"best_of":         intOption("--best-of", 1, func(p *NativeParams, n int) { p.GreedyBestOf = n }),
	"audio_ctx":       intOption("--audio-ctx", 0, func(p *NativeParams, n int) { p.AudioCtx = n }),
	"split_on_word":   boolOption("--split-on-word", func(p *NativeParams, b bool) { p.SplitOnWord = b }),
	"suppress_nst":    boolOption("--suppress-nst", func(p *NativeParams, b bool) { p.SuppressNST = b }),
	"no_timestamps":   boolOption("--no-timestamps", func(p *NativeParams, b bool) { p.NoTimestamps = b }),
	"print_special":   boolOption("--print-special", func(p *NativeParams, b bool) { p.PrintSpecial = b }),
	"temperature":     floatOption("--temperature", func(p *NativeParams, f float32) { p.Temperature = f }),
	"temperature_inc": floatOption("--temperature-inc", func(p *NativeParams, f float32) { p.TemperatureInc = f }),
	"entropy_thold":   floatOption("--entropy-thold", func(p *NativeParams, f float32) { p.EntropyThold = f }),
	"logprob_thold":   floatOption("--logprob-thold", func(p *NativeParams, f float32) { p.LogprobThold = f }),
	"no_speech_thold": floatOption("--no-speech-thold", func(p *NativeParams, f float32) { p.NoSpeechThold = f }),
	"initial_prompt": {
		flag: "--prompt",
		apply: func(p *NativeParams, bufs *NativeCallBuffers, v string) error {
			ptr, err := bufs.CString(v)
			if err != nil {
				return err
			}
			p.InitialPrompt = ptr
			return nil
		},
		args: func(flag, v string) ([]string, error) { return []string{flag, v}, nil },
	},
}

// OptionKeys lists the recognised extra option keys.
func OptionKeys() []string {
	keys := make([]string, 0, len(extraOptions))
	for k := range extraOptions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func applyOptions(cfg Config, p *NativeParams, bufs *NativeCallBuffers) error {
	for _, key := range cfg.optionKeys() {
		spec, ok := extraOptions[key]
		if !ok {
			log.Debug().Str("option", key).Msg("whisper: ignoring unknown option")
			continue
		}
		v, _ := cfg.Option(key)
		if err := spec.apply(p, bufs, v); err != nil {
			return err
		}
	}
	return nil
}

// optionArgs renders the extra options as whisper-cli flags.
func optionArgs(cfg Config) ([]string, error) {
	var out []string
	for _, key := range cfg.optionKeys() {
		spec, ok := extraOptions[key]
		if !ok {
			log.Debug().Str("option", key).Msg("whisper: ignoring unknown option")
			continue
		}
		v, _ := cfg.Option(key)
		args, err := spec.args(spec.flag, v)
		if err != nil {
			return nil, err
		}
		out = append(out, args...)
	}
	return out, nil
}

func invalidOption(flag, v, want string) error {
	return apperr.Initialization("option %s: %q is not %s", flag, v, want)
}

func parseIntOption(flag, v string, lo int) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil || n < lo {
		return 0, invalidOption(flag, v, "an integer >= "+strconv.Itoa(lo))
	}
	return n, nil
}

func intOption(flag string, lo int, set func(*NativeParams, int)) optionDef {
	return optionDef{
		flag: flag,
		apply: func(p *NativeParams, _ *NativeCallBuffers, v string) error {
			n, err := parseIntOption(flag, v, lo)
			if err != nil {
				return err
			}
			set(p, n)
			return nil
		},
		args: func(flag, v string) ([]string, error) {
			n, err := parseIntOption(flag, v, lo)
			if err != nil {
				return nil, err
			}
			return []string{flag, strconv.Itoa(n)}, nil
		},
	}
}

func boolOption(flag string, set func(*NativeParams, bool)) optionDef {
	return optionDef{
		flag: flag,
		apply: func(p *NativeParams, _ *NativeCallBuffers, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return invalidOption(flag, v, "a boolean")
			}
			set(p, b)
			return nil
		},
		args: func(flag, v string) ([]string, error) {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return nil, invalidOption(flag, v, "a boolean")
			}
			if !b {
				return nil, nil
			}
			return []string{flag}, nil
		},
	}
}

func floatOption(flag string, set func(*NativeParams, float32)) optionDef {
	return optionDef{
		flag: flag,
		apply: func(p *NativeParams, _ *NativeCallBuffers, v string) error {
			f, err := strconv.ParseFloat(v, 32)
			if err != nil {
				return invalidOption(flag, v, "a number")
			}
			set(p, float32(f))
			return nil
		},
		args: func(flag, v string) ([]string, error) {
			f, err := strconv.ParseFloat(v, 32)
			if err != nil {
				return nil, invalidOption(flag, v, "a number")
			}
			return []string{flag, strconv.FormatFloat(f, 'f', -1, 32)}, nil
		},
	}
}
