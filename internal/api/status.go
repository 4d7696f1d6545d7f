package api

import (
	"fmt"
	"net/http"
	"strconv"

	"can-mqtt-bridge/internal/dbc"
	"can-mqtt-bridge/internal/mqtt"
	"can-mqtt-bridge/internal/pipeline"
)

const (
	defaultRowLimit = 50
	maxRowLimit     = 1000
)

type pipelineResponse struct {
	Pipeline pipeline.Stats `json:"pipeline"`
	MQTT     *mqtt.Stats    `json:"mqtt,omitempty"`
}

// GET /api/pipeline
func (s *Server) handlePipeline(w http.ResponseWriter, r *http.Request) {
	if s.deps.Pipeline == nil {
		respondWithError(w, http.StatusServiceUnavailable, "pipeline not running")
		return
	}

	resp := pipelineResponse{Pipeline: s.deps.Pipeline.Stats()}
	if s.deps.Publisher != nil {
		stats := s.deps.Publisher.Stats()
		resp.MQTT = &stats
	}
	respondWithJSON(w, http.StatusOK, resp)
}

// GET /api/bus
func (s *Server) handleBus(w http.ResponseWriter, r *http.Request) {
	if s.deps.Bus == nil {
		respondWithError(w, http.StatusServiceUnavailable, "interface statistics are disabled")
		return
	}
	stats, ok := s.deps.Bus.Latest()
	if !ok {
		respondWithError(w, http.StatusServiceUnavailable, "no interface statistics collected yet")
		return
	}
	respondWithJSON(w, http.StatusOK, stats)
}

// GET /api/rows?limit=50
func (s *Server) handleRows(w http.ResponseWriter, r *http.Request) {
	if s.deps.Rows == nil {
		respondWithError(w, http.StatusServiceUnavailable, "display history is disabled")
		return
	}

	limit := defaultRowLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		n, err := strconv.Atoi(limitStr)
		if err != nil || n <= 0 {
			respondWithError(w, http.StatusBadRequest, "invalid limit format")
			return
		}
		limit = min(n, maxRowLimit)
	}

	respondWithJSON(w, http.StatusOK, s.deps.Rows.Tail(limit))
}

type signalInfo struct {
	Name      string  `json:"name"`
	StartBit  uint8   `json:"start_bit"`
	Length    uint8   `json:"length"`
	BigEndian bool    `json:"big_endian"`
	Signed    bool    `json:"signed"`
	Scale     float64 `json:"scale"`
	Offset    float64 `json:"offset"`
	Unit      string  `json:"unit,omitempty"`
	Mux       string  `json:"mux"`
	MuxValue  *uint64 `json:"mux_value,omitempty"`
}

type messageInfo struct {
	ID       uint32       `json:"id"`
	IDHex    string       `json:"id_hex"`
	Extended bool         `json:"extended"`
	Name     string       `json:"name"`
	Size     int          `json:"size"`
	Signals  []signalInfo `json:"signals"`
}

func newMessageInfo(msg dbc.MessageDefinition) messageInfo {
	info := messageInfo{
		ID:       msg.ID,
		IDHex:    fmt.Sprintf("0x%X", msg.ID),
		Extended: msg.Extended,
		Name:     msg.Name,
		Size:     msg.Size,
		Signals:  make([]signalInfo, 0, len(msg.Signals)),
	}
	for _, sig := range msg.Signals {
		si := signalInfo{
			Name:      sig.Name,
			StartBit:  sig.StartBit,
			Length:    sig.Length,
			BigEndian: sig.BigEndian,
			Signed:    sig.Signed,
			Scale:     sig.Scale,
			Offset:    sig.Offset,
			Unit:      sig.Unit,
			Mux:       sig.Mux.String(),
		}
		if sig.Mux == dbc.MuxValue {
			v := sig.MuxSwitchValue
			si.MuxValue = &v
		}
		info.Signals = append(info.Signals, si)
	}
	return info
}

// GET /api/messages
func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	if s.deps.Messages == nil {
		respondWithError(w, http.StatusServiceUnavailable, "no database loaded")
		return
	}

	msgs := s.deps.Messages.Messages()
	out := make([]messageInfo, 0, len(msgs))
	for _, msg := range msgs {
		out = append(out, newMessageInfo(msg))
	}
	respondWithJSON(w, http.StatusOK, map[string]any{
		"source":   s.deps.Messages.Source(),
		"count":    len(out),
		"messages": out,
	})
}
