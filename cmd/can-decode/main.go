package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pterm/pterm"

	"can-mqtt-bridge/internal/dbc"
	"can-mqtt-bridge/internal/models"
	"can-mqtt-bridge/internal/mqtt"
)

func main() {
	dbcFile := flag.String("dbc", "", "DBC file to decode against")
	idStr := flag.String("id", "", "Frame identifier, hex with 0x prefix or decimal")
	dataStr := flag.String("data", "", `Payload bytes in hex, e.g. "00 11 22" or "001122"`)
	ext := flag.Bool("ext", false, "Treat the identifier as 29-bit extended")
	bus := flag.String("bus", "offline", "Bus name used in the JSON document")
	asJSON := flag.Bool("json", false, "Print the MQTT payload document instead of a table")
	flag.Parse()

	if *dbcFile == "" || *idStr == "" {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(*dbcFile, *idStr, *dataStr, *ext, *bus, *asJSON); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

func run(dbcFile, idStr, dataStr string, ext bool, bus string, asJSON bool) error {
	db, err := dbc.Load(dbcFile)
	if err != nil {
		return err
	}

	frame, err := parseFrame(idStr, dataStr, ext)
	if err != nil {
		return err
	}

	decoded, tier := decode(db, frame, bus)
	if asJSON {
		payload, err := mqtt.NewMessage(decoded).Marshal()
		if err != nil {
			return err
		}
		fmt.Println(string(payload))
		return nil
	}

	return printTable(decoded, tier)
}

func decode(db *dbc.Database, frame models.Frame, bus string) (models.DecodedFrame, dbc.Tier) {
	decoded := models.DecodedFrame{
		Frame:    frame,
		Bus:      bus,
		PlainID:  frame.PlainID(),
		Received: time.Now(),
	}
	match := db.Resolve(decoded.PlainID)
	if match.Message != nil {
		decoded.Name = match.Message.Name
		decoded.Signals = dbc.DecodeMessage(match.Message, frame.Data)
	}
	return decoded, match.Tier
}

// parseFrame builds a raw frame. Identifiers above 0x7FF are extended
// even without -ext.
func parseFrame(idStr, dataStr string, ext bool) (models.Frame, error) {
	var id uint64
	var err error
	if hex, ok := strings.CutPrefix(strings.ToLower(idStr), "0x"); ok {
		id, err = strconv.ParseUint(hex, 16, 32)
	} else {
		id, err = strconv.ParseUint(idStr, 10, 32)
	}
	if err != nil {
		return models.Frame{}, fmt.Errorf("invalid id %q: %w", idStr, err)
	}
	if id > uint64(models.CANEffMask) {
		return models.Frame{}, fmt.Errorf("invalid id %q: exceeds 29 bits", idStr)
	}

	raw := uint32(id)
	if ext || raw > models.CANSffMask {
		raw |= models.CANEffFlag
	}

	data, err := parseData(dataStr)
	if err != nil {
		return models.Frame{}, err
	}
	return models.Frame{ID: raw, Data: data}, nil
}

func parseData(s string) ([]byte, error) {
	hex := strings.Join(strings.Fields(s), "")
	if len(hex)%2 != 0 {
		return nil, errors.New("invalid data: odd number of hex digits")
	}
	if len(hex)/2 > models.MaxFDDataLength {
		return nil, fmt.Errorf("invalid data: more than %d bytes", models.MaxFDDataLength)
	}

	data := make([]byte, 0, len(hex)/2)
	for i := 0; i < len(hex); i += 2 {
		b, err := strconv.ParseUint(hex[i:i+2], 16, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid data byte %q: %w", hex[i:i+2], err)
		}
		data = append(data, byte(b))
	}
	return data, nil
}

func printTable(decoded models.DecodedFrame, tier dbc.Tier) error {
	if !decoded.Resolved() {
		pterm.Warning.Printfln("%s: no matching message", decoded.IDHex())
		return nil
	}

	pterm.Info.Printfln("%s -> %s (%s match, %d bytes: %s)",
		decoded.IDHex(), decoded.Name, tier, decoded.Frame.DLC(), mqtt.FormatRaw(decoded.Frame.Data))

	if len(decoded.Signals) == 0 {
		pterm.Warning.Println("no signal could be decoded from the payload")
		return nil
	}

	names := make([]string, 0, len(decoded.Signals))
	for name := range decoded.Signals {
		names = append(names, name)
	}
	sort.Strings(names)

	data := pterm.TableData{{"Signal", "Value"}}
	for _, name := range names {
		data = append(data, []string{name, strconv.FormatFloat(decoded.Signals[name], 'f', -1, 64)})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}
