package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/ac-controller/db"
	"github.com/thatsimonsguy/ac-controller/internal/dispatcher"
	"github.com/thatsimonsguy/ac-controller/internal/metrics"
	"github.com/thatsimonsguy/ac-controller/internal/model"
)

const maxBodyBytes = 4096

type StatusSource interface {
	Last() (model.StatusMessage, bool)
}

type Submitter interface {
	Submit(msg dispatcher.Message) error
}

type EventSource interface {
	Recent(limit int) ([]db.Event, error)
}

type Connectivity interface {
	IsConnected() bool
}

type SensorHealth interface {
	Healthy() bool
}

// Server exposes the controller over HTTP. Commands are not applied here; they are
// queued for the control loop exactly like MQTT commands.
type Server struct {
	status   StatusSource
	submit   Submitter
	events   EventSource
	mqtt     Connectivity
	sensor   SensorHealth
	setTopic string
	newID    func() string
}

type SubmitResponse struct {
	MessageID string `json:"messageId"`
}

type HealthResponse struct {
	Status            string `json:"status"`
	MQTTConnected     bool   `json:"mqtt_connected"`
	PowerSenseHealthy bool   `json:"power_sense_healthy"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func NewServer(status StatusSource, submit Submitter, events EventSource, mqtt Connectivity, sensor SensorHealth, setTopic string) *Server {
	return &Server{
		status:   status,
		submit:   submit,
		events:   events,
		mqtt:     mqtt,
		sensor:   sensor,
		setTopic: setTopic,
		newID:    func() string { return uuid.NewString() },
	}
}

func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/state", s.getState).Methods(http.MethodGet)
	r.HandleFunc("/api/state", s.putState).Methods(http.MethodPut)
	r.HandleFunc("/api/events", s.getEvents).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.getHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	return r
}

// Handler wraps the router with CORS and access logging.
func (s *Server) Handler() http.Handler {
	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPut, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)
	return handlers.LoggingHandler(accessLog{}, cors(s.Router()))
}

// Start serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf("0.0.0.0:%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("address", srv.Addr).Msg("Starting REST API server")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) getState(w http.ResponseWriter, r *http.Request) {
	msg, ok := s.status.Last()
	if !ok {
		s.writeError(w, http.StatusServiceUnavailable, "No status published yet")
		return
	}
	s.writeJSON(w, http.StatusOK, msg.Status)
}

func (s *Server) putState(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Failed to read body")
		return
	}
	if len(body) > maxBodyBytes {
		s.writeError(w, http.StatusRequestEntityTooLarge, "Body too large")
		return
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
		s.writeError(w, http.StatusBadRequest, "Body must be a JSON object of status fields")
		return
	}

	id := s.newID()
	payload, err := json.Marshal(struct {
		MessageID string                     `json:"messageId"`
		Status    map[string]json.RawMessage `json:"status"`
	}{id, fields})
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to encode command")
		return
	}

	if err := s.submit.Submit(dispatcher.Message{Topic: s.setTopic, Payload: payload}); err != nil {
		log.Warn().Err(err).Str("message_id", id).Msg("Failed to queue API command")
		s.writeError(w, http.StatusServiceUnavailable, "Controller busy, try again")
		return
	}

	log.Info().Str("message_id", id).Int("fields", len(fields)).Msg("Queued API command")
	s.writeJSON(w, http.StatusAccepted, SubmitResponse{MessageID: id})
}

func (s *Server) getEvents(w http.ResponseWriter, r *http.Request) {
	limit := db.DefaultEventLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 1000 {
			s.writeError(w, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		limit = n
	}

	if s.events == nil {
		s.writeJSON(w, http.StatusOK, []db.Event{})
		return
	}
	events, err := s.events.Recent(limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read event history")
		s.writeError(w, http.StatusInternalServerError, "Failed to read events")
		return
	}
	s.writeJSON(w, http.StatusOK, events)
}

func (s *Server) getHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", PowerSenseHealthy: true}
	if s.mqtt != nil {
		resp.MQTTConnected = s.mqtt.IsConnected()
	}
	if s.sensor != nil {
		resp.PowerSenseHealthy = s.sensor.Healthy()
	}
	if !resp.MQTTConnected || !resp.PowerSenseHealthy {
		resp.Status = "degraded"
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	s.writeJSON(w, statusCode, ErrorResponse{Error: message})
}

// accessLog forwards gorilla's access log lines to zerolog at debug level.
type accessLog struct{}

func (accessLog) Write(p []byte) (int, error) {
	log.Debug().Str("component", "api").Msg(string(trimNewline(p)))
	return len(p), nil
}

func trimNewline(p []byte) []byte {
	if n := len(p); n > 0 && p[n-1] == '\n' {
		return p[:n-1]
	}
	return p
}
