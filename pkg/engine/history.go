package engine

import (
	"encoding/json"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

type historyEvent struct {
	Time      time.Time `json:"time"`
	Event     string    `json:"event"`
	RequestID uint64    `json:"request_id"`
	URI       string    `json:"uri,omitempty"`
}

// fileHistoryRecorder appends request lifecycle events as json lines to a
// size-rotated history file.
type fileHistoryRecorder struct {
	mu  sync.Mutex
	enc *json.Encoder
	out *lumberjack.Logger
}

func NewHistoryRecorder(filename string) HistoryRecorder {
	out := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    50, // megabytes
		MaxBackups: 5,
	}
	return &fileHistoryRecorder{
		enc: json.NewEncoder(out),
		out: out,
	}
}

func (h *fileHistoryRecorder) RecordEvent(event string, id RequestID, uri string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	// encode failures only lose a history line, never fail the request
	_ = h.enc.Encode(historyEvent{
		Time:      time.Now().UTC(),
		Event:     event,
		RequestID: uint64(id),
		URI:       uri,
	})
}

func (h *fileHistoryRecorder) Close() error {
	return h.out.Close()
}

type noopHistoryRecorder struct{}

// NewNoopHistoryRecorder is used when history recording is disabled.
func NewNoopHistoryRecorder() HistoryRecorder {
	return noopHistoryRecorder{}
}

func (noopHistoryRecorder) RecordEvent(string, RequestID, string) {}

func (noopHistoryRecorder) Close() error { return nil }
