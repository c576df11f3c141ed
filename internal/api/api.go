// Package api serves the panel's JSON status and control endpoints.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/verte-zerg/fanpanel/internal/panel"
)

// Panel is the part of the panel the API drives.
type Panel interface {
	Snapshot() panel.Snapshot
	Send(ctx context.Context, cmd panel.Command) error
}

// Status is the JSON form of a panel snapshot.
type Status struct {
	State       string            `json:"state"`
	Connected   bool              `json:"connected"`
	Streaming   bool              `json:"streaming"`
	DeviceName  string            `json:"device_name,omitempty"`
	DeviceID    string            `json:"device_id,omitempty"`
	Values      map[string]string `json:"values"`
	LastVoltage string            `json:"last_voltage,omitempty"`
	PowerOn     bool              `json:"power_on"`
	Turbo       bool              `json:"turbo"`
	OnSince     *time.Time        `json:"on_since,omitempty"`
	Usage       Usage             `json:"usage"`
	Status      Message           `json:"status"`
}

// Usage holds the minute totals.
type Usage struct {
	Today     int `json:"today"`
	Yesterday int `json:"yesterday"`
}

// Message is the status line.
type Message struct {
	Text  string `json:"text"`
	Level string `json:"level,omitempty"`
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// NewStatus converts a snapshot.
func NewStatus(s panel.Snapshot) Status {
	values := make(map[string]string, len(s.Values))
	for ch, v := range s.Values {
		values[string(ch)] = v
	}
	st := Status{
		State:       s.State.String(),
		Connected:   s.Connected(),
		Streaming:   s.Streaming,
		DeviceName:  s.DeviceName,
		DeviceID:    s.DeviceID,
		Values:      values,
		LastVoltage: s.LastVoltage,
		PowerOn:     s.Flags.On,
		Turbo:       s.Flags.Turbo,
		Usage:       Usage{Today: s.Usage.Today, Yesterday: s.Usage.Yesterday},
		Status:      Message{Text: s.Status.Text, Level: string(s.Status.Level)},
	}
	if !s.OnSince.IsZero() {
		since := s.OnSince
		st.OnSince = &since
	}
	return st
}

// Register mounts the API routes on mux.
func Register(mux interface {
	Handle(pattern string, h http.Handler)
}, p Panel, onCommand func(cmd string, err error), logger zerolog.Logger) {
	logger = logger.With().Str("component", "api").Logger()
	mux.Handle("/api/status", LoggingMiddleware(logger)(StatusHandler(p)))
	mux.Handle("/api/control", LoggingMiddleware(logger)(ControlHandler(p, onCommand)))
}

// StatusHandler answers GET with the current snapshot.
func StatusHandler(p Panel) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			WriteError(w, http.StatusMethodNotAllowed, "use GET")
			return
		}
		WriteJSON(w, http.StatusOK, NewStatus(p.Snapshot()))
	})
}

// ControlHandler accepts POST /api/control?cmd=power|standard|turbo.
func ControlHandler(p Panel, onCommand func(cmd string, err error)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			WriteError(w, http.StatusMethodNotAllowed, "use POST")
			return
		}
		cmd, err := panel.ParseCommand(r.URL.Query().Get("cmd"))
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		if !p.Snapshot().Connected() {
			WriteError(w, http.StatusConflict, "not connected")
			return
		}
		err = p.Send(r.Context(), cmd)
		if onCommand != nil {
			onCommand(string(cmd), err)
		}
		if err != nil {
			status := http.StatusBadGateway
			if errors.Is(err, panel.ErrUnknownCommand) {
				status = http.StatusBadRequest
			}
			WriteError(w, status, err.Error())
			return
		}
		WriteJSON(w, http.StatusOK, NewStatus(p.Snapshot()))
	})
}

// WriteJSON writes a JSON response.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		http.Error(w, `{"error":"Internal Server Error","message":"Failed to encode response"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, _ = w.Write(buf.Bytes())
}

// WriteError writes an error response.
func WriteError(w http.ResponseWriter, statusCode int, message string) {
	WriteJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}

// LoggingMiddleware logs each request at debug level.
func LoggingMiddleware(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)
			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", wrapped.statusCode).
				Dur("duration", time.Since(start)).
				Msg("API request")
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriter) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
