//go:build !whisper_cpp

package whisper

// Default stub (no cgo) so the project builds without the whisper_cpp tag.
// The subprocess backend still works.

func NativeAvailable() bool { return false }

func NewNative() (Native, error) { return nil, ErrNativeUnavailable }
