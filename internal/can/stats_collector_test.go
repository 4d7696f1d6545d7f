package can

import (
	"context"
	"errors"
	"testing"
	"time"
)

const sampleIPOutput = `3: can0: <NOARP,UP,LOWER_UP,ECHO> mtu 16 qdisc pfifo_fast state UP mode DEFAULT group default qlen 10
    link/can  promiscuity 0 minmtu 0 maxmtu 0
    can state ERROR-ACTIVE (berr-counter tx 3 rx 7) restart-ms 100
	  bitrate 500000 sample-point 0.875
	  tq 125 prop-seg 6 phase-seg1 7 phase-seg2 2 sjw 1 brp 1
	  clock 8000000
	  re-started bus-errors arbit-lost error-warn error-pass bus-off
	  2          0          0          4          1          2
    RX:  bytes packets errors dropped  missed   mcast
        123456     789      1       5       0       0
    TX:  bytes packets errors dropped carrier collsns
        654321     987      0       2       0       0
`

func TestParseIPOutput(t *testing.T) {
	stats := parseIPOutput(sampleIPOutput)

	checks := []struct {
		name     string
		got      interface{}
		expected interface{}
	}{
		{"state", stats.State, "UP"},
		{"mtu", stats.MTU, 16},
		{"bitrate", stats.Bitrate, 500000},
		{"bus state", stats.BusState, "ERROR-ACTIVE"},
		{"tx error counter", stats.TXErrorCounter, 3},
		{"rx error counter", stats.RXErrorCounter, 7},
		{"restart ms", stats.RestartMS, 100},
		{"restarts", stats.BusOffRestarts, uint64(2)},
		{"error warning", stats.ErrorWarning, uint64(4)},
		{"error passive", stats.ErrorPassive, uint64(1)},
		{"bus off", stats.BusOff, uint64(2)},
		{"rx bytes", stats.RXBytes, uint64(123456)},
		{"rx packets", stats.RXPackets, uint64(789)},
		{"rx errors", stats.RXErrors, uint64(1)},
		{"rx dropped", stats.RXDropped, uint64(5)},
		{"tx bytes", stats.TXBytes, uint64(654321)},
		{"tx packets", stats.TXPackets, uint64(987)},
		{"tx dropped", stats.TXDropped, uint64(2)},
	}

	for _, c := range checks {
		if c.got != c.expected {
			t.Errorf("%s: expected %v, got %v", c.name, c.expected, c.got)
		}
	}
}

func TestParseIPOutputDown(t *testing.T) {
	stats := parseIPOutput("4: vcan0: <NOARP> mtu 72 qdisc noop state DOWN mode DEFAULT group default qlen 1000\n")
	if stats.State != "DOWN" {
		t.Errorf("Expected DOWN, got %q", stats.State)
	}
	if stats.MTU != 72 {
		t.Errorf("Expected mtu 72, got %d", stats.MTU)
	}
}

func TestStatsCollectorLatest(t *testing.T) {
	sc := NewStatsCollector("can0", time.Hour)
	if _, ok := sc.Latest(); ok {
		t.Fatal("Expected no snapshot before the first collection")
	}

	sc.sample = func(ctx context.Context, ifname string) (string, error) {
		return sampleIPOutput, nil
	}
	sc.collect(context.Background())

	stats, ok := sc.Latest()
	if !ok {
		t.Fatal("Expected a snapshot after collection")
	}
	if stats.Interface != "can0" {
		t.Errorf("Expected interface can0, got %q", stats.Interface)
	}
	if stats.RXPackets != 789 {
		t.Errorf("Expected 789 rx packets, got %d", stats.RXPackets)
	}

	// A failed sample keeps the previous snapshot
	sc.sample = func(ctx context.Context, ifname string) (string, error) {
		return "", errors.New("ip: not found")
	}
	sc.collect(context.Background())
	if stats, _ := sc.Latest(); stats.RXPackets != 789 {
		t.Errorf("Expected previous snapshot to be kept, got %d rx packets", stats.RXPackets)
	}
}
