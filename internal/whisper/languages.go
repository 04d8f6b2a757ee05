package whisper

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Languages lists the language codes whisper.cpp understands, in the
// engine's id order.
var Languages = []string{
	"en", "zh", "de", "es", "ru", "ko", "fr", "ja", "pt", "tr",
	"pl", "ca", "nl", "ar", "sv", "it", "id", "hi", "fi", "vi",
	"he", "uk", "el", "ms", "cs", "ro", "da", "hu", "ta", "no",
	"th", "ur", "hr", "bg", "lt", "la", "mi", "ml", "cy", "sk",
	"te", "fa", "lv", "bn", "sr", "az", "sl", "kn", "et", "mk",
	"br", "eu", "is", "hy", "ne", "mn", "bs", "kk", "sq", "sw",
	"gl", "mr", "pa", "si", "km", "sn", "yo", "so", "af", "oc",
	"ka", "be", "tg", "sd", "gu", "am", "yi", "lo", "uz", "fo",
	"ht", "ps", "tk", "nn", "mt", "sa", "lb", "my", "bo", "tl",
	"mg", "as", "tt", "haw", "ln", "ha", "ba", "jw", "su", "yue",
}

var languageSet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(Languages))
	for _, l := range Languages {
		m[l] = struct{}{}
	}
	return m
}()

// ValidLanguage reports whether lang is LanguageAuto or a code in Languages.
func ValidLanguage(lang string) bool {
	if lang == LanguageAuto {
		return true
	}
	_, ok := languageSet[lang]
	return ok
}

// CanonicalLanguage maps spellings such as "ES", "es-ES" or "zh_TW" onto
// the whisper code. Input it cannot map is returned unchanged so that
// validation reports it as given.
func CanonicalLanguage(lang string) string {
	lang = strings.TrimSpace(lang)
	if lang == "" || strings.EqualFold(lang, LanguageAuto) {
		return LanguageAuto
	}
	if _, ok := languageSet[lang]; ok {
		return lang
	}
	tag, err := language.Parse(strings.ReplaceAll(lang, "_", "-"))
	if err != nil {
		return lang
	}
	base, _ := tag.Base()
	code := base.String()
	if code == "jv" {
		code = "jw"
	}
	if _, ok := languageSet[code]; ok {
		return code
	}
	return lang
}

// LanguageName returns the English display name of a whisper language code,
// falling back to the code itself.
func LanguageName(code string) string {
	switch code {
	case LanguageAuto:
		return "Auto-detect"
	case "jw":
		// whisper keeps the withdrawn ISO code for Javanese.
		code = "jv"
	}
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	if name := display.English.Languages().Name(tag); name != "" {
		return name
	}
	return code
}
