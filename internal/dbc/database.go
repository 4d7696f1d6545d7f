// Package dbc holds the vehicle signal database: message and signal
// definitions loaded once from a DBC file, the identifier matching cascade
// and the payload decoder.
//
// A Database is immutable after Load returns and is safe for concurrent
// use by any number of goroutines without locking.
package dbc

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"can-mqtt-bridge/internal/models"

	"go.einride.tech/can/pkg/dbc"
)

var (
	// ErrUnreadable is returned when the description source cannot be opened or read.
	ErrUnreadable = errors.New("dbc source unreadable")

	// ErrMalformed is returned when the description source cannot be parsed.
	ErrMalformed = errors.New("dbc source malformed")
)

const (
	messageIDExtendedFlag    uint32 = 0x80000000
	messageIDIndependentSigs uint32 = 0xC0000000
)

// MuxRole is the multiplexer role of a signal
type MuxRole int

const (
	MuxNone MuxRole = iota
	MuxSwitch
	MuxValue
)

func (r MuxRole) String() string {
	switch r {
	case MuxSwitch:
		return "switch"
	case MuxValue:
		return "value"
	default:
		return "none"
	}
}

// SignalDefinition describes where a signal lives in the payload and how
// its raw value maps to a physical one.
type SignalDefinition struct {
	Name      string
	StartBit  uint8
	Length    uint8
	BigEndian bool
	Signed    bool
	Scale     float64
	Offset    float64
	Unit      string

	Mux MuxRole
	// MuxSwitchValue is the switch value this signal is valid for when Mux is MuxValue
	MuxSwitchValue uint64
}

// MessageDefinition is one BO_ entry of the database
type MessageDefinition struct {
	// ID is the plain identifier (extended flag removed)
	ID       uint32
	Extended bool
	Name     string
	Size     int
	Signals  []SignalDefinition

	switchIndex int
}

// Switch returns the multiplexer switch signal, if the message declares one
func (m *MessageDefinition) Switch() (SignalDefinition, bool) {
	if m.switchIndex < 0 {
		return SignalDefinition{}, false
	}
	return m.Signals[m.switchIndex], true
}

// Database is a parsed, read-only set of message definitions
type Database struct {
	source   string
	messages []MessageDefinition
	index    resolverIndex
}

// Load reads and parses a DBC file. No state is retained on failure.
func Load(path string) (*Database, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadable, err)
	}
	return Parse(path, data)
}

// Parse builds a Database from DBC source text. name is used in error positions.
func Parse(name string, data []byte) (*Database, error) {
	p := dbc.NewParser(name, data)
	if err := p.Parse(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	db := &Database{source: name}
	for _, def := range p.Defs() {
		msgDef, ok := def.(*dbc.MessageDef)
		if !ok {
			continue
		}
		if uint32(msgDef.MessageID) == messageIDIndependentSigs {
			continue
		}

		msg, err := newMessageDefinition(msgDef)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		db.messages = append(db.messages, msg)
	}

	db.index = buildIndex(db.messages)
	return db, nil
}

func newMessageDefinition(def *dbc.MessageDef) (MessageDefinition, error) {
	raw := uint32(def.MessageID)
	msg := MessageDefinition{
		ID:          raw &^ messageIDExtendedFlag,
		Extended:    raw&messageIDExtendedFlag != 0,
		Name:        string(def.Name),
		Size:        int(def.Size),
		Signals:     make([]SignalDefinition, 0, len(def.Signals)),
		switchIndex: -1,
	}

	for _, sigDef := range def.Signals {
		if !fitsWorkingBuffer(sigDef.StartBit, sigDef.Size, sigDef.IsBigEndian) {
			slog.Warn("skipping signal outside the 8-byte payload window",
				"message", msg.Name,
				"signal", string(sigDef.Name),
				"start_bit", sigDef.StartBit,
				"length", sigDef.Size)
			continue
		}

		sig := SignalDefinition{
			Name:      string(sigDef.Name),
			StartBit:  uint8(sigDef.StartBit),
			Length:    uint8(sigDef.Size),
			BigEndian: sigDef.IsBigEndian,
			Signed:    sigDef.IsSigned,
			Scale:     sigDef.Factor,
			Offset:    sigDef.Offset,
			Unit:      sigDef.Unit,
		}

		switch {
		case sigDef.IsMultiplexerSwitch:
			if msg.switchIndex >= 0 {
				return MessageDefinition{}, fmt.Errorf("message %s (0x%X) declares more than one multiplexer switch", msg.Name, msg.ID)
			}
			sig.Mux = MuxSwitch
			msg.switchIndex = len(msg.Signals)
		case sigDef.IsMultiplexed:
			sig.Mux = MuxValue
			sig.MuxSwitchValue = sigDef.MultiplexerSwitch
		}

		msg.Signals = append(msg.Signals, sig)
	}

	return msg, nil
}

// fitsWorkingBuffer reports whether a signal can be extracted from an
// 8-byte buffer. Big-endian start bits use the DBC sawtooth numbering
// where the start bit is the most significant bit.
func fitsWorkingBuffer(start, length uint64, bigEndian bool) bool {
	if length == 0 || length > 64 || start > 63 {
		return false
	}
	if !bigEndian {
		return start+length <= 64
	}
	msb := (7-start/8)*8 + start%8
	return length <= msb+1
}

// Source returns the name the database was loaded from
func (db *Database) Source() string {
	return db.source
}

// Messages returns the definitions in declaration order. The slice must not be modified.
func (db *Database) Messages() []MessageDefinition {
	return db.messages
}

// Len returns the number of message definitions
func (db *Database) Len() int {
	return len(db.messages)
}

// LookupByID resolves a plain identifier through the matching cascade.
// It returns nil when no tier matches.
func (db *Database) LookupByID(id uint32) *MessageDefinition {
	return db.Resolve(id).Message
}

// MessageName returns the resolved message name, or "" when unresolved
func (db *Database) MessageName(id uint32) string {
	if msg := db.LookupByID(id); msg != nil {
		return msg.Name
	}
	return ""
}

// Decode resolves a plain identifier and decodes the payload against the
// matched message. ok is false when nothing matched or no signal applied.
func (db *Database) Decode(id uint32, payload []byte) (values models.SignalValues, ok bool) {
	msg := db.LookupByID(id)
	if msg == nil {
		return nil, false
	}
	values = DecodeMessage(msg, payload)
	return values, len(values) > 0
}
