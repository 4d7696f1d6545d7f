package dbc

import (
	"can-mqtt-bridge/internal/models"

	"go.einride.tech/can"
)

// DecodeMessage decodes payload against msg. Payloads shorter than eight
// bytes are treated as zero-padded and bytes past the eighth are ignored.
//
// When the message has a multiplexer switch, multiplexed signals are only
// included if their switch value equals the decoded switch. The result may
// be empty; that is not an error.
func DecodeMessage(msg *MessageDefinition, payload []byte) models.SignalValues {
	var data can.Data
	copy(data[:], payload)

	var (
		muxActive bool
		muxValue  uint64
	)
	if sw, ok := msg.Switch(); ok {
		muxActive = true
		muxValue = sw.rawUnsigned(&data)
	}

	out := make(models.SignalValues, len(msg.Signals))
	for i := range msg.Signals {
		sig := &msg.Signals[i]
		if sig.Mux == MuxValue && muxActive && sig.MuxSwitchValue != muxValue {
			continue
		}
		out[sig.Name] = sig.Physical(&data)
	}
	return out
}

// Physical extracts the signal from data and applies scale and offset
func (s *SignalDefinition) Physical(data *can.Data) float64 {
	return s.raw(data)*s.Scale + s.Offset
}

func (s *SignalDefinition) raw(data *can.Data) float64 {
	if !s.Signed {
		return float64(s.rawUnsigned(data))
	}
	if s.BigEndian {
		return float64(data.SignedBitsBigEndian(s.StartBit, s.Length))
	}
	return float64(data.SignedBitsLittleEndian(s.StartBit, s.Length))
}

func (s *SignalDefinition) rawUnsigned(data *can.Data) uint64 {
	if s.BigEndian {
		return data.UnsignedBitsBigEndian(s.StartBit, s.Length)
	}
	return data.UnsignedBitsLittleEndian(s.StartBit, s.Length)
}
