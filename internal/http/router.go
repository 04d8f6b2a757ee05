package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/obiente/whisperbridge/internal/apperr"
	"github.com/obiente/whisperbridge/internal/service"
	"github.com/obiente/whisperbridge/internal/ws"
)

// NewRouter serves health, multipart transcription and the transcription
// socket. maxUploadMB caps one upload; 0 means no cap.
func NewRouter(svc service.Transcriber, maxUploadMB int) http.Handler {
	maxBytes := int64(maxUploadMB) << 20

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"ok": true})
	})
	mux.Handle("POST /v1/transcribe", &transcribeHandler{svc: svc, maxBytes: maxBytes})
	wss := ws.NewServer(svc, maxBytes)
	mux.HandleFunc("/ws/transcribe", wss.Handle)
	return logRequests(mux)
}

type transcribeHandler struct {
	svc      service.Transcriber
	maxBytes int64
}

func (h *transcribeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeJSONError(w, http.StatusRequestEntityTooLarge, "upload_too_large", err.Error())
			return
		}
		writeJSONError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, hdr, err := r.FormFile("audio")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "bad_request", `missing multipart file field "audio"`)
		return
	}
	defer file.Close()

	b := h.svc.Defaults()
	if v := r.FormValue("language"); v != "" {
		b.Language(v)
	}
	if v := r.FormValue("format"); v != "" {
		b.OutputFormat(v)
	}
	if v := r.FormValue("translate"); v != "" {
		t, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, apperr.Initialization("translate: %q is not a boolean", v))
			return
		}
		b.Translate(t)
	}
	for _, kv := range r.MultipartForm.Value["option"] {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			writeError(w, apperr.Initialization("option %q: want key=value", kv))
			return
		}
		b.Option(k, v)
	}
	cfg := b.Build()

	path, cleanup, err := service.Stage("", hdr.Filename, file)
	if err != nil {
		writeError(w, err)
		return
	}
	defer cleanup()

	tr, err := h.svc.Transcribe(r.Context(), service.Job{
		Model:     r.FormValue("model"),
		Confined:  true,
		AudioPath: path,
		Config:    cfg,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	format, _ := cfg.OutputFormat()
	body, err := tr.Render(format)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	if tr.Language != "" {
		w.Header().Set("Content-Language", tr.Language)
	}
	w.Write(body)
}

// StatusFor maps an error onto an HTTP status by its kind.
func StatusFor(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindModelNotFound, apperr.KindAudioNotFound:
		return http.StatusNotFound
	case apperr.KindUnsupportedAudioFormat, apperr.KindUnsupportedOutputFormat, apperr.KindInitialization:
		return http.StatusBadRequest
	case apperr.KindEngineProtocol:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status >= 500 {
		log.Error().Err(err).Msg("http: transcription failed")
	}
	writeJSONError(w, status, apperr.KindOf(err).String(), err.Error())
}

func writeJSONError(w http.ResponseWriter, status int, kind, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"error": msg, "kind": kind})
}
