package whisper

import (
	"maps"
	"sort"

	"github.com/obiente/whisperbridge/internal/transcript"
)

// LanguageAuto asks the engine to detect the spoken language.
const LanguageAuto = "auto"

// Config is an immutable transcription configuration. Build it with
// NewConfig; the zero value behaves like NewConfig().Build().
type Config struct {
	language  string
	translate bool
	format    string
	options   map[string]string
}

// Language returns the ISO code or LanguageAuto.
func (c Config) Language() string {
	if c.language == "" {
		return LanguageAuto
	}
	return c.language
}

func (c Config) Translate() bool { return c.translate }

// FormatName returns the output format selector as given.
func (c Config) FormatName() string {
	if c.format == "" {
		return "text"
	}
	return c.format
}

// OutputFormat parses the format selector.
func (c Config) OutputFormat() (transcript.Format, error) {
	return transcript.ParseFormat(c.FormatName())
}

// Option looks up an extra engine option.
func (c Config) Option(key string) (string, bool) {
	v, ok := c.options[key]
	return v, ok
}

// Options returns a copy of the extra options.
func (c Config) Options() map[string]string {
	return maps.Clone(c.options)
}

// optionKeys returns the extra option keys in a stable order.
func (c Config) optionKeys() []string {
	keys := make([]string, 0, len(c.options))
	for k := range c.options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ConfigBuilder assembles a Config fluently.
type ConfigBuilder struct {
	cfg Config
}

func NewConfig() *ConfigBuilder {
	return &ConfigBuilder{cfg: Config{language: LanguageAuto, format: "text"}}
}

// Language sets the ISO language code; "" and "auto" select detection.
// Region and case variants are reduced to the whisper code.
func (b *ConfigBuilder) Language(lang string) *ConfigBuilder {
	b.cfg.language = CanonicalLanguage(lang)
	return b
}

// Translate enables translation to English.
func (b *ConfigBuilder) Translate(v bool) *ConfigBuilder {
	b.cfg.translate = v
	return b
}

// OutputFormat sets the format selector. It is validated when the config
// is used, not here.
func (b *ConfigBuilder) OutputFormat(format string) *ConfigBuilder {
	b.cfg.format = format
	return b
}

// Option sets an extra engine option such as "threads" or "initial_prompt".
func (b *ConfigBuilder) Option(key, value string) *ConfigBuilder {
	if b.cfg.options == nil {
		b.cfg.options = make(map[string]string)
	}
	b.cfg.options[key] = value
	return b
}

// Options merges several extra options.
func (b *ConfigBuilder) Options(opts map[string]string) *ConfigBuilder {
	for k, v := range opts {
		b.Option(k, v)
	}
	return b
}

// Build returns the Config. The builder can keep being used; later changes
// do not affect configs already built.
func (b *ConfigBuilder) Build() Config {
	cfg := b.cfg
	cfg.options = maps.Clone(b.cfg.options)
	return cfg
}
