// Package opcode maps version-specific wire opcodes to canonical opcodes.
//
// Handlers are written once against canonical opcodes; the table translates
// the raw numbers of each supported build in both directions.
package opcode

import "fmt"

// Opcode is a version-independent message identifier.
type Opcode uint16

// Unknown is returned for raw values the table has no entry for.
const Unknown Opcode = 0

const (
	// auth handshake
	ServerAuthChallenge Opcode = iota + 1
	ClientAuthSession
	ServerAuthResponse

	// keepalive
	ClientPing
	ServerPong

	// addon verification
	ServerAddonCheck
	ClientAddonCheck
	ServerAddonInfo

	// character screen
	ClientCharEnum
	ServerCharEnum
	ClientCharCreate
	ServerCharCreate
	ClientCharDelete
	ServerCharDelete
	ClientPlayerLogin
	ServerLoginVerifyWorld
	ServerCharacterLoginFailed

	ClientLogoutRequest
	ServerLogoutResponse
	ServerLogoutComplete

	ClientNameQuery
	ServerNameQueryResponse
	ClientMessageChat
	ServerMessageChat

	ServerAccountDataTimes
	ClientRealmSplit
	ServerRealmSplit

	// first expansion
	ServerTimeSyncRequest
	ClientTimeSyncResponse

	// second expansion
	ServerMotd
	ServerFeatureSystemStatus
	ServerClientCacheVersion
	ClientReadyForAccountDataTimes

	opcodeCount
)

var names = [opcodeCount]string{
	Unknown:                        "Unknown",
	ServerAuthChallenge:            "ServerAuthChallenge",
	ClientAuthSession:              "ClientAuthSession",
	ServerAuthResponse:             "ServerAuthResponse",
	ClientPing:                     "ClientPing",
	ServerPong:                     "ServerPong",
	ServerAddonCheck:               "ServerAddonCheck",
	ClientAddonCheck:               "ClientAddonCheck",
	ServerAddonInfo:                "ServerAddonInfo",
	ClientCharEnum:                 "ClientCharEnum",
	ServerCharEnum:                 "ServerCharEnum",
	ClientCharCreate:               "ClientCharCreate",
	ServerCharCreate:               "ServerCharCreate",
	ClientCharDelete:               "ClientCharDelete",
	ServerCharDelete:               "ServerCharDelete",
	ClientPlayerLogin:              "ClientPlayerLogin",
	ServerLoginVerifyWorld:         "ServerLoginVerifyWorld",
	ServerCharacterLoginFailed:     "ServerCharacterLoginFailed",
	ClientLogoutRequest:            "ClientLogoutRequest",
	ServerLogoutResponse:           "ServerLogoutResponse",
	ServerLogoutComplete:           "ServerLogoutComplete",
	ClientNameQuery:                "ClientNameQuery",
	ServerNameQueryResponse:        "ServerNameQueryResponse",
	ClientMessageChat:              "ClientMessageChat",
	ServerMessageChat:              "ServerMessageChat",
	ServerAccountDataTimes:         "ServerAccountDataTimes",
	ClientRealmSplit:               "ClientRealmSplit",
	ServerRealmSplit:               "ServerRealmSplit",
	ServerTimeSyncRequest:          "ServerTimeSyncRequest",
	ClientTimeSyncResponse:         "ClientTimeSyncResponse",
	ServerMotd:                     "ServerMotd",
	ServerFeatureSystemStatus:      "ServerFeatureSystemStatus",
	ServerClientCacheVersion:       "ServerClientCacheVersion",
	ClientReadyForAccountDataTimes: "ClientReadyForAccountDataTimes",
}

func (o Opcode) String() string {
	if o < opcodeCount {
		return names[o]
	}
	return fmt.Sprintf("Opcode(%d)", uint16(o))
}
