package opcode

// Raw opcode values per expansion. Later expansions are built as the union
// of the earlier table and their own entries; an entry for an existing
// canonical opcode overrides the inherited raw value.

var classicRaw = map[Opcode]uint32{
	ClientCharCreate:           0x036,
	ClientCharEnum:             0x037,
	ClientCharDelete:           0x038,
	ServerCharCreate:           0x03A,
	ServerCharEnum:             0x03B,
	ServerCharDelete:           0x03C,
	ClientPlayerLogin:          0x03D,
	ServerCharacterLoginFailed: 0x041,
	ClientLogoutRequest:        0x04B,
	ServerLogoutResponse:       0x04C,
	ServerLogoutComplete:       0x04D,
	ClientNameQuery:            0x050,
	ServerNameQueryResponse:    0x051,
	ClientMessageChat:          0x095,
	ServerMessageChat:          0x096,
	ClientPing:                 0x1DC,
	ServerPong:                 0x1DD,
	ServerAuthChallenge:        0x1EC,
	ClientAuthSession:          0x1ED,
	ServerAuthResponse:         0x1EE,
	ServerAccountDataTimes:     0x209,
	ServerLoginVerifyWorld:     0x236,
	ServerAddonCheck:           0x2E6,
	ClientAddonCheck:           0x2E7,
	ServerAddonInfo:            0x2EF,
}

var firstExpansionRaw = map[Opcode]uint32{
	ServerRealmSplit:       0x38B,
	ClientRealmSplit:       0x38C,
	ServerTimeSyncRequest:  0x390,
	ClientTimeSyncResponse: 0x391,
}

var secondExpansionRaw = map[Opcode]uint32{
	ServerMotd:                     0x33D,
	ServerFeatureSystemStatus:      0x3C9,
	ServerClientCacheVersion:       0x4AB,
	ClientReadyForAccountDataTimes: 0x4FF,
}

// expansionTables is indexed by version.Expansion.
var expansionTables = []map[Opcode]uint32{
	classicRaw,
	firstExpansionRaw,
	secondExpansionRaw,
}
