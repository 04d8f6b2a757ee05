package whisper

// ModelInfo describes a model file as reported by the engine.
type ModelInfo struct {
	Path         string
	Multilingual bool
	Languages    []string
}
