package ws

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/obiente/whisperbridge/internal/apperr"
	"github.com/obiente/whisperbridge/internal/service"
	"github.com/obiente/whisperbridge/internal/transcript"
	"github.com/obiente/whisperbridge/internal/whisper"
)

const readTimeout = 60 * time.Second

// Server runs one batch transcription per "transcribe" message and streams
// the invocation states back before the result.
type Server struct {
	svc      service.Transcriber
	upgrader websocket.Upgrader
	maxAudio int64
}

// NewServer returns a socket handler. maxAudio bounds the decoded audio of
// one message in bytes; 0 means no limit.
func NewServer(svc service.Transcriber, maxAudio int64) *Server {
	return &Server{
		svc: svc,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024 * 16,
			WriteBufferSize: 1024 * 16,
		},
		maxAudio: maxAudio,
	}
}

type request struct {
	Type      string            `json:"type"`
	ID        string            `json:"id,omitempty"`
	TS        any               `json:"ts,omitempty"`
	Audio     string            `json:"audio"`
	Filename  string            `json:"filename"`
	Model     string            `json:"model"`
	Language  string            `json:"language"`
	Translate bool              `json:"translate"`
	Format    string            `json:"format"`
	Options   map[string]string `json:"options"`
}

type segment struct {
	StartMs int64  `json:"start_ms"`
	EndMs   int64  `json:"end_ms"`
	Text    string `json:"text"`
}

func (s *Server) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()
	if s.maxAudio > 0 {
		// base64 grows the payload by a third; leave room for the envelope.
		conn.SetReadLimit(s.maxAudio*4/3 + 64*1024)
	}

	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error { _ = conn.SetReadDeadline(time.Now().Add(readTimeout)); return nil })

	log.Info().Str("remote", r.RemoteAddr).Msg("ws: client connected")
	defer log.Info().Str("remote", r.RemoteAddr).Msg("ws: client disconnected")

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Msg("ws read error")
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		if mt != websocket.TextMessage {
			continue
		}

		var msg request
		if err := json.Unmarshal(data, &msg); err != nil {
			_ = conn.WriteJSON(map[string]any{"type": "error", "detail": "invalid json"})
			continue
		}
		switch msg.Type {
		case "ping":
			_ = conn.WriteJSON(map[string]any{"type": "pong", "ts": msg.TS})
		case "transcribe":
			s.transcribe(r.Context(), conn, msg)
			// Transcription may outlast the read deadline.
			_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		case "stop":
			_ = conn.WriteJSON(map[string]any{"type": "stopped"})
			return
		default:
			_ = conn.WriteJSON(map[string]any{"type": "error", "detail": "unknown message type"})
		}
	}
}

func (s *Server) transcribe(ctx context.Context, conn *websocket.Conn, msg request) {
	raw, err := base64.StdEncoding.DecodeString(msg.Audio)
	if err != nil || len(raw) == 0 {
		_ = conn.WriteJSON(map[string]any{"type": "error", "id": msg.ID, "kind": apperr.KindUnsupportedAudioFormat.String(), "detail": "invalid base64 audio"})
		return
	}
	if s.maxAudio > 0 && int64(len(raw)) > s.maxAudio {
		_ = conn.WriteJSON(map[string]any{"type": "error", "id": msg.ID, "kind": apperr.KindUnsupportedAudioFormat.String(), "detail": "audio too large"})
		return
	}

	path, cleanup, err := service.Stage("", msg.Filename, bytes.NewReader(raw))
	if err != nil {
		s.writeError(conn, msg.ID, err)
		return
	}
	defer cleanup()

	b := s.svc.Defaults()
	if msg.Language != "" {
		b.Language(msg.Language)
	}
	if msg.Format != "" {
		b.OutputFormat(msg.Format)
	}
	cfg := b.Translate(msg.Translate).Options(msg.Options).Build()

	start := time.Now()
	tr, err := s.svc.Transcribe(ctx, service.Job{
		Model:     msg.Model,
		Confined:  true,
		AudioPath: path,
		Config:    cfg,
		Observer: func(st whisper.State) {
			_ = conn.WriteJSON(map[string]any{"type": "state", "id": msg.ID, "state": st.String()})
		},
	})
	if err != nil {
		s.writeError(conn, msg.ID, err)
		return
	}

	format, _ := cfg.OutputFormat()
	rendered, err := tr.Render(format)
	if err != nil {
		s.writeError(conn, msg.ID, err)
		return
	}
	log.Info().Str("id", msg.ID).Int("segments", tr.Len()).Dur("took", time.Since(start)).Msg("ws: transcription sent")
	_ = conn.WriteJSON(map[string]any{
		"type":     "result",
		"id":       msg.ID,
		"format":   format.String(),
		"language": tr.Language,
		"text":     tr.Text(),
		"output":   string(rendered),
		"segments": segments(tr),
	})
}

func (s *Server) writeError(conn *websocket.Conn, id string, err error) {
	log.Warn().Err(err).Str("id", id).Msg("ws: transcription failed")
	_ = conn.WriteJSON(map[string]any{
		"type":   "error",
		"id":     id,
		"kind":   apperr.KindOf(err).String(),
		"detail": err.Error(),
	})
}

func segments(tr *transcript.Transcript) []segment {
	segs := tr.Segments()
	out := make([]segment, len(segs))
	for i, seg := range segs {
		out[i] = segment{StartMs: seg.Start.Milliseconds(), EndMs: seg.End.Milliseconds(), Text: strings.TrimSpace(seg.Text)}
	}
	return out
}
