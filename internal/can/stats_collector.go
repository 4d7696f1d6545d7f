package can

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"can-mqtt-bridge/internal/models"
)

var (
	reFlags       = regexp.MustCompile(`<([^>]+)>`)
	reMTU         = regexp.MustCompile(`mtu (\d+)`)
	reBitrate     = regexp.MustCompile(`bitrate (\d+)`)
	reBusState    = regexp.MustCompile(`can (?:<[^>]*> )?state ([A-Z-]+)`)
	reBerrCounter = regexp.MustCompile(`berr-counter tx (\d+) rx (\d+)`)
	reRestartMS   = regexp.MustCompile(`restart-ms (\d+)`)
)

// StatsCollector periodically samples `ip -details -statistics link show`
// for a SocketCAN interface and keeps the latest snapshot.
type StatsCollector struct {
	interfaceName string
	interval      time.Duration
	sample        func(ctx context.Context, ifname string) (string, error)

	mu     sync.RWMutex
	latest models.SocketCANStats
	ok     bool
}

// NewStatsCollector creates a new statistics collector
func NewStatsCollector(interfaceName string, interval time.Duration) *StatsCollector {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &StatsCollector{
		interfaceName: interfaceName,
		interval:      interval,
		sample:        runIPCommand,
	}
}

// Run collects until ctx is cancelled
func (sc *StatsCollector) Run(ctx context.Context) {
	ticker := time.NewTicker(sc.interval)
	defer ticker.Stop()

	// Collect immediately on start
	sc.collect(ctx)

	for {
		select {
		case <-ticker.C:
			sc.collect(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Latest returns the most recent snapshot, false if none was collected yet
func (sc *StatsCollector) Latest() (models.SocketCANStats, bool) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.latest, sc.ok
}

func (sc *StatsCollector) collect(ctx context.Context) {
	output, err := sc.sample(ctx, sc.interfaceName)
	if err != nil {
		slog.Warn("failed to collect interface stats", "interface", sc.interfaceName, "error", err)
		return
	}

	stats := parseIPOutput(output)
	stats.Timestamp = time.Now()
	stats.Interface = sc.interfaceName

	sc.mu.Lock()
	sc.latest = stats
	sc.ok = true
	sc.mu.Unlock()
}

func runIPCommand(ctx context.Context, ifname string) (string, error) {
	cmd := exec.CommandContext(ctx, "ip", "-details", "-statistics", "link", "show", ifname)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("failed to execute ip command: %w (output: %s)", err, strings.TrimSpace(string(output)))
	}
	return string(output), nil
}

// parseIPOutput parses the text output from the ip command
func parseIPOutput(output string) models.SocketCANStats {
	stats := models.SocketCANStats{}
	lines := strings.Split(output, "\n")

	for i, raw := range lines {
		line := strings.TrimSpace(raw)

		if i == 0 {
			// "3: can0: <NOARP,UP,LOWER_UP,ECHO> mtu 16 qdisc pfifo_fast state UP ..."
			if m := reFlags.FindStringSubmatch(line); m != nil {
				stats.State = "DOWN"
				for _, flag := range strings.Split(m[1], ",") {
					if flag == "UP" {
						stats.State = "UP"
					}
				}
			}
			if m := reMTU.FindStringSubmatch(line); m != nil {
				stats.MTU, _ = strconv.Atoi(m[1])
			}
			continue
		}

		if m := reBitrate.FindStringSubmatch(line); m != nil && strings.HasPrefix(line, "bitrate") {
			stats.Bitrate, _ = strconv.Atoi(m[1])
		}

		// "can state ERROR-ACTIVE (berr-counter tx 0 rx 0) restart-ms 0"
		if strings.HasPrefix(line, "can ") {
			if m := reBusState.FindStringSubmatch(line); m != nil {
				stats.BusState = m[1]
			}
			if m := reBerrCounter.FindStringSubmatch(line); m != nil {
				stats.TXErrorCounter, _ = strconv.Atoi(m[1])
				stats.RXErrorCounter, _ = strconv.Atoi(m[2])
			}
			if m := reRestartMS.FindStringSubmatch(line); m != nil {
				stats.RestartMS, _ = strconv.Atoi(m[1])
			}
		}

		// "re-started bus-errors arbit-lost error-warn error-pass bus-off"
		if strings.HasPrefix(line, "re-started") && i+1 < len(lines) {
			f := strings.Fields(lines[i+1])
			if len(f) >= 6 {
				stats.BusOffRestarts, _ = strconv.ParseUint(f[0], 10, 64)
				stats.ErrorWarning, _ = strconv.ParseUint(f[3], 10, 64)
				stats.ErrorPassive, _ = strconv.ParseUint(f[4], 10, 64)
				stats.BusOff, _ = strconv.ParseUint(f[5], 10, 64)
			}
		}

		// "RX:  bytes packets errors dropped ..." with the values on the next line
		if strings.HasPrefix(line, "RX:") && i+1 < len(lines) {
			f := strings.Fields(lines[i+1])
			if len(f) >= 4 {
				stats.RXBytes, _ = strconv.ParseUint(f[0], 10, 64)
				stats.RXPackets, _ = strconv.ParseUint(f[1], 10, 64)
				stats.RXErrors, _ = strconv.ParseUint(f[2], 10, 64)
				stats.RXDropped, _ = strconv.ParseUint(f[3], 10, 64)
			}
		}

		if strings.HasPrefix(line, "TX:") && i+1 < len(lines) {
			f := strings.Fields(lines[i+1])
			if len(f) >= 4 {
				stats.TXBytes, _ = strconv.ParseUint(f[0], 10, 64)
				stats.TXPackets, _ = strconv.ParseUint(f[1], 10, 64)
				stats.TXErrors, _ = strconv.ParseUint(f[2], 10, 64)
				stats.TXDropped, _ = strconv.ParseUint(f[3], 10, 64)
			}
		}
	}

	return stats
}
