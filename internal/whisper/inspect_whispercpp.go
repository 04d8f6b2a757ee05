//go:build whisper_cpp

package whisper

import (
	"github.com/rs/zerolog/log"

	whisperpkg "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/obiente/whisperbridge/internal/apperr"
)

// Inspect loads the model through the whisper.cpp Go bindings and reports
// its language support.
func Inspect(path string) (ModelInfo, error) {
	if err := apperr.CheckFile(path, apperr.ModelNotFound); err != nil {
		return ModelInfo{}, err
	}
	m, err := whisperpkg.New(path)
	if err != nil {
		return ModelInfo{}, apperr.ModelLoad(path, err.Error())
	}
	defer func() {
		if err := m.Close(); err != nil {
			log.Warn().Err(err).Str("model", path).Msg("whisper: close model")
		}
	}()

	info := ModelInfo{
		Path:         path,
		Multilingual: m.IsMultilingual(),
		Languages:    m.Languages(),
	}
	log.Debug().Str("model", path).Bool("multilingual", info.Multilingual).Int("languages", len(info.Languages)).Msg("whisper: model inspected")
	return info, nil
}
