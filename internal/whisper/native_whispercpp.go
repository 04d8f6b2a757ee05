//go:build whisper_cpp

package whisper

/*
#cgo CFLAGS: -I${SRCDIR}/../../third_party/whisper.cpp/include -I${SRCDIR}/../../third_party/whisper.cpp/ggml/include
#cgo LDFLAGS: -L${SRCDIR}/../../third_party/whisper.cpp/build/src -L${SRCDIR}/../../third_party/whisper.cpp/build/ggml/src -Wl,-rpath,${SRCDIR}/../../third_party/whisper.cpp/build/src -lwhisper -lggml -lggml-base -lggml-cpu -lstdc++ -lm
#cgo darwin LDFLAGS: -framework Accelerate -framework Metal -framework Foundation

#include <stdlib.h>
#include <whisper.h>
*/
import "C"

import (
	"runtime"
	"unsafe"
)

func NativeAvailable() bool { return true }

// NewNative returns the cgo entry-point table.
func NewNative() (Native, error) { return cgoNative{}, nil }

type cgoNative struct{}

func cctx(ctx Context) *C.struct_whisper_context {
	return (*C.struct_whisper_context)(unsafe.Pointer(ctx))
}

func (cgoNative) InitFromFile(path *byte, opts ContextOptions) Context {
	cp := C.whisper_context_default_params()
	cp.use_gpu = C.bool(opts.UseGPU)
	cp.gpu_device = C.int(opts.GPUDevice)
	cp.flash_attn = C.bool(opts.FlashAttn)
	ctx := C.whisper_init_from_file_with_params((*C.char)(unsafe.Pointer(path)), cp)
	runtime.KeepAlive(path)
	return Context(unsafe.Pointer(ctx))
}

func (cgoNative) Free(ctx Context) {
	C.whisper_free(cctx(ctx))
}

func (cgoNative) DefaultParams(strategy Strategy) NativeParams {
	p := C.whisper_full_default_params(C.enum_whisper_sampling_strategy(strategy))
	// String pointers are not mirrored; the caller decides them.
	return NativeParams{
		Strategy:        strategy,
		Threads:         int(p.n_threads),
		OffsetMs:        int(p.offset_ms),
		DurationMs:      int(p.duration_ms),
		Translate:       bool(p.translate),
		NoContext:       bool(p.no_context),
		NoTimestamps:    bool(p.no_timestamps),
		SingleSegment:   bool(p.single_segment),
		PrintSpecial:    bool(p.print_special),
		PrintProgress:   bool(p.print_progress),
		PrintRealtime:   bool(p.print_realtime),
		PrintTimestamps: bool(p.print_timestamps),
		TokenTimestamps: bool(p.token_timestamps),
		MaxLen:          int(p.max_len),
		SplitOnWord:     bool(p.split_on_word),
		MaxTokens:       int(p.max_tokens),
		AudioCtx:        int(p.audio_ctx),
		DetectLanguage:  bool(p.detect_language),
		SuppressBlank:   bool(p.suppress_blank),
		SuppressNST:     bool(p.suppress_nst),
		Temperature:     float32(p.temperature),
		TemperatureInc:  float32(p.temperature_inc),
		EntropyThold:    float32(p.entropy_thold),
		LogprobThold:    float32(p.logprob_thold),
		NoSpeechThold:   float32(p.no_speech_thold),
		GreedyBestOf:    int(p.greedy.best_of),
	}
}

func (cgoNative) Full(ctx Context, call *NativeCall, samples []float32) int {
	np := &call.Params
	p := C.whisper_full_default_params(C.enum_whisper_sampling_strategy(np.Strategy))
	p.n_threads = C.int(np.Threads)
	p.offset_ms = C.int(np.OffsetMs)
	p.duration_ms = C.int(np.DurationMs)
	p.translate = C.bool(np.Translate)
	p.no_context = C.bool(np.NoContext)
	p.no_timestamps = C.bool(np.NoTimestamps)
	p.single_segment = C.bool(np.SingleSegment)
	p.print_special = C.bool(np.PrintSpecial)
	p.print_progress = C.bool(np.PrintProgress)
	p.print_realtime = C.bool(np.PrintRealtime)
	p.print_timestamps = C.bool(np.PrintTimestamps)
	p.token_timestamps = C.bool(np.TokenTimestamps)
	p.max_len = C.int(np.MaxLen)
	p.split_on_word = C.bool(np.SplitOnWord)
	p.max_tokens = C.int(np.MaxTokens)
	p.audio_ctx = C.int(np.AudioCtx)
	p.initial_prompt = (*C.char)(unsafe.Pointer(np.InitialPrompt))
	p.language = (*C.char)(unsafe.Pointer(np.Language))
	p.detect_language = C.bool(np.DetectLanguage)
	p.suppress_blank = C.bool(np.SuppressBlank)
	p.suppress_nst = C.bool(np.SuppressNST)
	p.temperature = C.float(np.Temperature)
	p.temperature_inc = C.float(np.TemperatureInc)
	p.entropy_thold = C.float(np.EntropyThold)
	p.logprob_thold = C.float(np.LogprobThold)
	p.no_speech_thold = C.float(np.NoSpeechThold)
	p.greedy.best_of = C.int(np.GreedyBestOf)

	var data *C.float
	if len(samples) > 0 {
		data = (*C.float)(unsafe.Pointer(&samples[0]))
	}
	ret := C.whisper_full(cctx(ctx), p, data, C.int(len(samples)))

	// The string pointers in p reference call.Buffers.
	runtime.KeepAlive(call)
	runtime.KeepAlive(samples)
	return int(ret)
}

func (cgoNative) SegmentCount(ctx Context) int {
	return int(C.whisper_full_n_segments(cctx(ctx)))
}

func (cgoNative) SegmentText(ctx Context, i int) string {
	return C.GoString(C.whisper_full_get_segment_text(cctx(ctx), C.int(i)))
}

func (cgoNative) SegmentSpan(ctx Context, i int) (int64, int64) {
	t0 := C.whisper_full_get_segment_t0(cctx(ctx), C.int(i))
	t1 := C.whisper_full_get_segment_t1(cctx(ctx), C.int(i))
	return int64(t0), int64(t1)
}

func (cgoNative) DetectedLanguage(ctx Context) string {
	id := C.whisper_full_lang_id(cctx(ctx))
	if id < 0 {
		return ""
	}
	return C.GoString(C.whisper_lang_str(id))
}
