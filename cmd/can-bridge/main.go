package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"can-mqtt-bridge/internal/api"
	"can-mqtt-bridge/internal/can"
	"can-mqtt-bridge/internal/config"
	"can-mqtt-bridge/internal/database/clickhouse"
	"can-mqtt-bridge/internal/database/influxdb"
	"can-mqtt-bridge/internal/dbc"
	"can-mqtt-bridge/internal/display"
	"can-mqtt-bridge/internal/logging"
	"can-mqtt-bridge/internal/mqtt"
	"can-mqtt-bridge/internal/pipeline"
)

const shutdownTimeout = 5 * time.Second

func main() {
	configPath := flag.String("config", "conf/config.yaml", "Path to YAML configuration file")
	dbcFile := flag.String("dbc", "", "DBC file, overrides dbc.file")
	channel := flag.String("channel", "", "CAN channel, overrides can.channel")
	noDisplay := flag.Bool("no-display", false, "Disable the terminal display")
	flag.Parse()

	cfg, err := config.Load(*configPath, func(c *config.Config) {
		if *dbcFile != "" {
			c.DBC.File = *dbcFile
		}
		if *channel != "" {
			c.CAN.Channel = *channel
		}
		if *noDisplay {
			c.Display.Enabled = false
		}
	})
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logs, err := logging.Setup(cfg.Log, !cfg.Display.Enabled)
	if err != nil {
		slog.Error("failed to set up logging", "error", err)
		os.Exit(1)
	}

	err = run(cfg)
	if err != nil {
		slog.Error("bridge failed", "error", err)
	}
	logs.Close()
	if err != nil {
		os.Exit(1)
	}
}

// closer is shut down in reverse registration order
type closer struct {
	name string
	fn   func() error
}

func run(cfg *config.Config) error {
	bus := cfg.CAN.BusName()
	slog.Info("starting CAN MQTT bridge", "backend", cfg.CAN.Backend, "channel", cfg.CAN.Channel, "bus", bus, "dbc", cfg.DBC.File)

	db, err := dbc.Load(cfg.DBC.File)
	if err != nil {
		return err
	}
	slog.Info("loaded signal database", "source", db.Source(), "messages", db.Len())

	filters, err := cfg.CAN.FilterIDs()
	if err != nil {
		return err
	}
	ch, err := can.NewChannel(cfg.CAN.Backend, can.Options{
		Bitrate:     cfg.CAN.Bitrate,
		FD:          cfg.CAN.FD,
		Filters:     filters,
		ReadTimeout: cfg.CAN.ReadTimeout(),
	})
	if err != nil {
		return err
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()
	// once shutdown starts, a second signal terminates the process
	context.AfterFunc(ctx, stop)

	if err := ch.Open(cfg.CAN.Channel); err != nil {
		return err
	}
	can.CloseOnDone(ctx, ch)

	var closers []closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i].fn(); err != nil {
				slog.Warn("shutdown step failed", "component", closers[i].name, "error", err)
			}
		}
	}()
	// also closed on cancellation, Close is idempotent
	closers = append(closers, closer{"channel", ch.Close})

	p := pipeline.New(ch, db, bus)
	deps := api.Deps{Pipeline: p, Messages: db}

	var rows *display.RowBuffer
	var tui *display.TUI
	if cfg.Display.Enabled {
		rows = display.NewRowBuffer(cfg.Display.History)
		tui = display.NewTUI(rows)
		deps.Rows = rows
		if err := p.Register("display", tui); err != nil {
			return err
		}
	}

	var background sync.WaitGroup
	if cfg.Stats.IntervalS > 0 && cfg.CAN.Backend != "pcan" {
		collector := can.NewStatsCollector(cfg.CAN.Channel, cfg.Stats.Interval())
		background.Add(1)
		go func() {
			defer background.Done()
			collector.Run(ctx)
		}()
		deps.Bus = collector
		if tui != nil {
			tui.SetBusStats(collector)
		}
	}

	if cfg.MQTT.Enabled {
		publisher := mqtt.NewPublisher(mqtt.Options{
			URI:       cfg.MQTT.URI,
			ClientID:  cfg.MQTT.ClientID,
			KeepAlive: cfg.MQTT.KeepAliveDuration(),
			QoS:       byte(cfg.MQTT.QoS),
		})
		if err := publisher.Connect(ctx); err != nil {
			return err
		}
		closers = append(closers, closer{"mqtt", func() error { publisher.Disconnect(); return nil }})

		queue := pipeline.NewAsync("mqtt", mqtt.NewSink(publisher), cfg.MQTT.QueueSize)
		closers = append(closers, closer{"mqtt queue", queue.Close})
		if err := p.Register("mqtt", queue); err != nil {
			return err
		}
		deps.Publisher = publisher
	}

	if cfg.ClickHouse.Enabled {
		w, err := clickhouse.New(ctx, clickhouse.Config{
			Host:      cfg.ClickHouse.Host,
			Port:      cfg.ClickHouse.Port,
			Database:  cfg.ClickHouse.Database,
			Username:  cfg.ClickHouse.Username,
			Password:  cfg.ClickHouse.Password,
			Table:     cfg.ClickHouse.Table,
			BatchSize: cfg.ClickHouse.BatchSize,
		})
		if err != nil {
			return err
		}
		closers = append(closers, closer{"clickhouse", w.Close})
		w.Start()
		if err := p.Register("clickhouse", w); err != nil {
			return err
		}
		deps.History = w
	}

	if cfg.InfluxDB.Enabled {
		w, err := influxdb.New(influxdb.Config{
			URL:       cfg.InfluxDB.URL,
			Token:     cfg.InfluxDB.Token,
			Database:  cfg.InfluxDB.Database,
			BatchSize: cfg.InfluxDB.BatchSize,
		})
		if err != nil {
			return err
		}
		closers = append(closers, closer{"influxdb", w.Close})
		w.Start()
		if err := p.Register("influxdb", w); err != nil {
			return err
		}
	}

	if cfg.API.Port > 0 {
		server := api.NewServer(cfg.API.Port, deps)
		go func() {
			if err := server.Start(); err != nil {
				slog.Error("API server failed", "error", err)
			}
		}()
		closers = append(closers, closer{"api", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return server.Stop(ctx)
		}})
	}

	if tui != nil {
		if err := tui.Start(); err != nil {
			return err
		}
		closers = append(closers, closer{"display", func() error { tui.Stop(); return nil }})
	}

	done := make(chan error, 1)
	go func() {
		done <- p.Run(ctx)
		cancel()
	}()
	slog.Info("bridge started", "consumers", len(p.Stats().Consumers))

	if tui != nil {
		renderLoop(ctx, cancel, tui, cfg.Display.Interval())
	} else {
		statusLoop(ctx, p)
	}

	err = <-done
	cancel()
	background.Wait()

	final := p.Stats()
	slog.Info("bridge stopped", "frames", final.FramesRead, "resolved", final.Resolved, "unresolved", final.Unresolved)

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// renderLoop redraws the display until ctx ends or the user quits
func renderLoop(ctx context.Context, cancel context.CancelFunc, tui *display.TUI, interval time.Duration) {
	sampler := display.NewUsageSampler()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !tui.PollInput() {
				slog.Info("quit requested from display")
				cancel()
				return
			}
			tui.Render(sampler.Sample())
		}
	}
}

// statusLoop logs pipeline counters while running headless
func statusLoop(ctx context.Context, p *pipeline.Pipeline) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := p.Stats()
			slog.Info("pipeline status", "state", s.State, "frames", s.FramesRead, "resolved", s.Resolved, "unresolved", s.Unresolved)
			for _, c := range s.Consumers {
				if c.Dropped > 0 {
					slog.Warn("consumer dropping frames", "consumer", c.Name, "dropped", c.Dropped)
				}
			}
		}
	}
}
