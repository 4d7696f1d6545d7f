package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"can-mqtt-bridge/internal/models"
)

const (
	defaultQueryLimit = 100
	maxQueryLimit     = 10000
)

// parseQueryParams reads the history filters from the request query
func parseQueryParams(r *http.Request) (models.QueryParams, error) {
	q := r.URL.Query()
	params := models.QueryParams{
		Limit:     defaultQueryLimit,
		Interface: q.Get("interface"),
	}

	var err error
	if params.StartTime, err = optionalTime(q, "start_time"); err != nil {
		return params, err
	}
	if params.EndTime, err = optionalTime(q, "end_time"); err != nil {
		return params, err
	}
	if params.StartTime != nil && params.EndTime != nil && params.EndTime.Before(*params.StartTime) {
		return params, fmt.Errorf("end_time is before start_time")
	}

	if s := q.Get("can_id"); s != "" {
		id, err := parseCANID(s)
		if err != nil {
			return params, err
		}
		params.CANID = &id
	}

	if s := q.Get("limit"); s != "" {
		n, err := nonNegative("limit", s)
		if err != nil {
			return params, err
		}
		params.Limit = min(n, maxQueryLimit)
	}
	if s := q.Get("offset"); s != "" {
		if params.Offset, err = nonNegative("offset", s); err != nil {
			return params, err
		}
	}

	return params, nil
}

// RFC 3339 timestamps
func optionalTime(q url.Values, key string) (*time.Time, error) {
	s := q.Get(key)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, fmt.Errorf("invalid %s format: %v", key, err)
	}
	return &t, nil
}

// parseCANID accepts decimal or 0x-prefixed hex
func parseCANID(s string) (uint32, error) {
	var id uint64
	var err error
	if hex, ok := strings.CutPrefix(strings.ToLower(s), "0x"); ok {
		id, err = strconv.ParseUint(hex, 16, 32)
	} else {
		id, err = strconv.ParseUint(s, 10, 32)
	}
	if err != nil {
		return 0, fmt.Errorf("invalid can_id format: %v", err)
	}
	return uint32(id), nil
}

func nonNegative(key, s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s format: %q", key, s)
	}
	return n, nil
}

// respondWithError sends an error response
func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

// respondWithJSON sends a JSON response
func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")

	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"Failed to marshal response"}`))
		return
	}

	w.WriteHeader(code)
	w.Write(response)
}
