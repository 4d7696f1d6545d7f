// Package clickhouse archives decoded frames in a ClickHouse MergeTree table
// and answers history queries over it.
package clickhouse

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"can-mqtt-bridge/internal/database"
	"can-mqtt-bridge/internal/models"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// Writer handles writing decoded frames to ClickHouse
type Writer struct {
	*database.Batcher

	conn   driver.Conn
	config Config
}

var _ database.Writer = (*Writer)(nil)

// New connects, verifies the connection and creates the table if needed
func New(ctx context.Context, config Config) (*Writer, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", config.Host, config.Port)},
		Auth: clickhouse.Auth{
			Database: config.Database,
			Username: config.Username,
			Password: config.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout: 5 * time.Second,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	if err := conn.Exec(ctx, createTableQuery(config.Table)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	w := &Writer{conn: conn, config: config}
	w.Batcher = database.NewBatcher("clickhouse", config.BatchSize, time.Second, w.flush)

	slog.Info("clickhouse writer ready", "addr", fmt.Sprintf("%s:%d", config.Host, config.Port), "table", config.Table)
	return w, nil
}

func createTableQuery(table string) string {
	return fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			timestamp DateTime64(6),
			interface String,
			can_id UInt32,
			name String,
			dlc UInt8,
			data Array(UInt8),
			signals Map(String, Float64)
		) ENGINE = MergeTree()
		ORDER BY (timestamp, can_id)
		PARTITION BY toYYYYMMDD(timestamp)
		TTL toDateTime(timestamp) + INTERVAL 1 MONTH
		SETTINGS index_granularity = 8192
	`, table)
}

// frameValues returns the column values for one frame in table order
func frameValues(frame models.DecodedFrame) []any {
	signals := map[string]float64(frame.Signals)
	if signals == nil {
		signals = map[string]float64{}
	}
	data := make([]uint8, len(frame.Frame.Data))
	copy(data, frame.Frame.Data)

	return []any{
		frame.Received,
		frame.Bus,
		frame.PlainID,
		frame.Name,
		uint8(frame.Frame.DLC()),
		data,
		signals,
	}
}

// flush writes the current batch to ClickHouse
func (w *Writer) flush(ctx context.Context, frames []models.DecodedFrame) error {
	batch, err := w.conn.PrepareBatch(ctx, fmt.Sprintf("INSERT INTO %s", w.config.Table))
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	for _, frame := range frames {
		if err := batch.Append(frameValues(frame)...); err != nil {
			batch.Abort()
			return fmt.Errorf("failed to append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	return nil
}

// buildHistoryQuery builds the filtered SELECT for Query
func buildHistoryQuery(table string, params models.QueryParams) (string, []any) {
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT timestamp, interface, can_id, name, dlc, data, signals FROM %s WHERE 1=1", table)
	args := []any{}

	if params.StartTime != nil {
		b.WriteString(" AND timestamp >= ?")
		args = append(args, *params.StartTime)
	}
	if params.EndTime != nil {
		b.WriteString(" AND timestamp <= ?")
		args = append(args, *params.EndTime)
	}
	if params.CANID != nil {
		b.WriteString(" AND can_id = ?")
		args = append(args, *params.CANID)
	}
	if params.Interface != "" {
		b.WriteString(" AND interface = ?")
		args = append(args, params.Interface)
	}

	b.WriteString(" ORDER BY timestamp DESC")

	if params.Limit > 0 {
		b.WriteString(" LIMIT ?")
		args = append(args, params.Limit)
	}
	if params.Offset > 0 {
		b.WriteString(" OFFSET ?")
		args = append(args, params.Offset)
	}
	return b.String(), args
}

// Query returns archived frames matching params, newest first
func (w *Writer) Query(ctx context.Context, params models.QueryParams) ([]models.FrameRecord, error) {
	query, args := buildHistoryQuery(w.config.Table, params)

	rows, err := w.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	records := []models.FrameRecord{}
	for rows.Next() {
		var rec models.FrameRecord
		if err := rows.Scan(&rec.Timestamp, &rec.Interface, &rec.CANID, &rec.Name, &rec.DLC, &rec.Data, &rec.Signals); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		rec.CANIDHex = fmt.Sprintf("0x%X", rec.CANID)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	return records, nil
}

// Close flushes pending frames and closes the connection
func (w *Writer) Close() error {
	w.Batcher.Close()
	if w.conn != nil {
		return w.conn.Close()
	}
	return nil
}
