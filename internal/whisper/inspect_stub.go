//go:build !whisper_cpp

package whisper

import "github.com/obiente/whisperbridge/internal/apperr"

func Inspect(path string) (ModelInfo, error) {
	if err := apperr.CheckFile(path, apperr.ModelNotFound); err != nil {
		return ModelInfo{}, err
	}
	return ModelInfo{}, &apperr.Error{Kind: apperr.KindInitialization, Message: "model inspection unavailable", Err: ErrNativeUnavailable}
}
