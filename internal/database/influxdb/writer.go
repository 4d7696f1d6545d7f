// Package influxdb writes decoded signal values as InfluxDB 3 points.
package influxdb

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"can-mqtt-bridge/internal/database"
	"can-mqtt-bridge/internal/models"

	"github.com/InfluxCommunity/influxdb3-go/v2/influxdb3"
)

const measurement = "can_signals"

// Writer handles writing signal values to InfluxDB
type Writer struct {
	*database.Batcher

	client *influxdb3.Client
}

var _ database.Writer = (*Writer)(nil)

// New creates a new InfluxDB writer
func New(config Config) (*Writer, error) {
	client, err := influxdb3.New(influxdb3.ClientConfig{
		Host:     config.URL,
		Token:    config.Token,
		Database: config.Database,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create InfluxDB client: %w", err)
	}

	w := &Writer{client: client}
	w.Batcher = database.NewBatcher("influxdb", config.BatchSize, time.Second, w.flush)

	slog.Info("influxdb writer ready", "url", config.URL, "database", config.Database)
	return w, nil
}

// Write queues frames that carry signal values; others have nothing to store
func (w *Writer) Write(frame models.DecodedFrame) {
	if len(frame.Signals) == 0 {
		return
	}
	w.Batcher.Write(frame)
}

// Consume lets the writer be registered as a pipeline consumer
func (w *Writer) Consume(frame models.DecodedFrame) {
	w.Write(frame)
}

func pointTags(frame models.DecodedFrame) map[string]string {
	return map[string]string{
		"interface": frame.Bus,
		"can_id":    fmt.Sprintf("0x%X", frame.PlainID),
		"message":   frame.Name,
	}
}

func pointFields(frame models.DecodedFrame) map[string]any {
	fields := make(map[string]any, len(frame.Signals))
	for name, value := range frame.Signals {
		fields[name] = value
	}
	return fields
}

func newPoint(frame models.DecodedFrame) *influxdb3.Point {
	return influxdb3.NewPoint(measurement, pointTags(frame), pointFields(frame), frame.Received)
}

// flush writes the current batch to InfluxDB
func (w *Writer) flush(ctx context.Context, frames []models.DecodedFrame) error {
	points := make([]*influxdb3.Point, 0, len(frames))
	for _, frame := range frames {
		points = append(points, newPoint(frame))
	}

	if err := w.client.WritePoints(ctx, points); err != nil {
		return fmt.Errorf("failed to write points: %w", err)
	}
	return nil
}

// Close flushes pending points and closes the client
func (w *Writer) Close() error {
	w.Batcher.Close()
	if w.client != nil {
		return w.client.Close()
	}
	return nil
}
