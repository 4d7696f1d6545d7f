package models

import "time"

// QueryParams represents common query parameters
type QueryParams struct {
	StartTime *time.Time
	EndTime   *time.Time
	CANID     *uint32
	Interface string
	Limit     int
	Offset    int
}

// FrameRecord is one archived frame returned by history queries
type FrameRecord struct {
	Timestamp time.Time          `json:"timestamp"`
	Interface string             `json:"interface"`
	CANID     uint32             `json:"can_id"`
	CANIDHex  string             `json:"can_id_hex"`
	Name      string             `json:"name"`
	DLC       uint8              `json:"dlc"`
	Data      []uint8            `json:"data"`
	Signals   map[string]float64 `json:"signals,omitempty"`
}
