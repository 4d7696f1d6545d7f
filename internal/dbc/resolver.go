package dbc

const (
	sourceAddressMask uint32 = 0xFFFFFF00
	pgnMask           uint32 = 0x3FFFF
)

// Tier identifies which stage of the matching cascade produced a match
type Tier int

const (
	TierNone Tier = iota
	TierExact
	TierSourceAddress
	TierPGN
)

func (t Tier) String() string {
	switch t {
	case TierExact:
		return "exact"
	case TierSourceAddress:
		return "source-address"
	case TierPGN:
		return "pgn"
	default:
		return "none"
	}
}

// Match is the outcome of resolving one identifier
type Match struct {
	Message *MessageDefinition
	Tier    Tier
}

// withoutSourceAddress drops the J1939 source address byte
func withoutSourceAddress(id uint32) uint32 {
	return id & sourceAddressMask
}

// pgnOf extracts the 18-bit parameter group window above the source address
func pgnOf(id uint32) uint32 {
	return (id >> 8) & pgnMask
}

// resolverIndex keeps, per tier, the first definition in declaration order
// for each key. Lookups return exactly what a linear first-match scan of
// the definitions would.
type resolverIndex struct {
	exact  map[uint32]int
	masked map[uint32]int
	pgn    map[uint32]int
}

func buildIndex(messages []MessageDefinition) resolverIndex {
	idx := resolverIndex{
		exact:  make(map[uint32]int, len(messages)),
		masked: make(map[uint32]int, len(messages)),
		pgn:    make(map[uint32]int, len(messages)),
	}

	for i, msg := range messages {
		if _, ok := idx.exact[msg.ID]; !ok {
			idx.exact[msg.ID] = i
		}
		if _, ok := idx.masked[withoutSourceAddress(msg.ID)]; !ok {
			idx.masked[withoutSourceAddress(msg.ID)] = i
		}
		if _, ok := idx.pgn[pgnOf(msg.ID)]; !ok {
			idx.pgn[pgnOf(msg.ID)] = i
		}
	}

	return idx
}

// Resolve runs the cascade for a plain identifier: exact match, then
// source-address-masked match, then PGN-only match. The first tier that
// matches wins.
func (db *Database) Resolve(id uint32) Match {
	if i, ok := db.index.exact[id]; ok {
		return Match{Message: &db.messages[i], Tier: TierExact}
	}
	if i, ok := db.index.masked[withoutSourceAddress(id)]; ok {
		return Match{Message: &db.messages[i], Tier: TierSourceAddress}
	}
	if i, ok := db.index.pgn[pgnOf(id)]; ok {
		return Match{Message: &db.messages[i], Tier: TierPGN}
	}
	return Match{Tier: TierNone}
}
