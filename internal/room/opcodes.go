package room

// Client command opcodes (spec.md §4.3.3). DISCONNECT is fixed at 2 by
// scenario S1 ("send DISCONNECT (opcode 2)"); the rest are assigned in
// table order. A leading byte with its high nibble set to 0xF is never a
// command opcode: it is a framed tunnel passthrough byte, and its low
// nibble selects one of the 16 tunnels (see dispatchTunnelByte).
const (
	OpRomIdentify         = 1
	OpDisconnect          = 2
	OpFontSpecCommon      = 3
	OpFontSpecify         = 4
	OpCheckRSVP           = 5
	OpJoinMatch           = 6
	OpReqMatchSimple      = 7
	OpCheckMatchReady     = 8
	OpSendMatchReady      = 9
	OpPlayerInfoSimple    = 10
	OpBreather            = 11
	OpSetMTU              = 12
	OpCheckMTU            = 13
	OpExchangeIP          = 14
	OpJoinRoom            = 15
	OpHostUnusedRoom      = 16
	OpKickPlayer          = 17
	OpSetRoomName         = 18
	OpSetRoomPassword     = 19
	OpSetRoomGameOptions  = 20
	OpGetActiveRooms      = 21
	OpGetFilteredRooms    = 22
	OpSubscribePlayer     = 23
	OpBroadcast           = 24
	OpUnicast             = 25
	OpPingRequest         = 26
	OpSetTimer            = 27
	OpGetFileChunk        = 28
	OpStartService        = 29
	OpFlushBuffer         = 30
)

// tunnelOpMask identifies a framed tunnel byte: high nibble 0xF.
const tunnelOpMask = 0xF0

// argLen returns the number of argument bytes following the opcode byte for
// fixed-size commands, or -1 for commands whose length is itself encoded in
// the argument block (a length-prefixed byte for variable payloads).
func argLen(opcode byte) int {
	switch opcode {
	case OpDisconnect, OpBreather, OpCheckMTU, OpGetActiveRooms:
		return 0
	case OpCheckRSVP, OpSetMTU, OpCheckMatchReady, OpPingRequest:
		return 2
	case OpJoinRoom, OpKickPlayer, OpSubscribePlayer:
		return 2
	case OpExchangeIP:
		return 6
	case OpSetTimer:
		return 5
	case OpGetFileChunk:
		return 6
	case OpPlayerInfoSimple:
		return 2
	case OpFontSpecCommon:
		return 1
	case OpFontSpecify:
		return 96
	case OpSendMatchReady:
		return 2
	case OpRomIdentify:
		return 8
	case OpJoinMatch:
		return 2
	case OpReqMatchSimple:
		return -1 // 1-byte ROM name length prefix, then name, then password byte
	case OpHostUnusedRoom:
		return -1 // 1-byte room name length prefix, then name
	case OpSetRoomName, OpSetRoomPassword:
		return -1 // 1-byte length prefix, then string
	case OpSetRoomGameOptions:
		return 5
	case OpGetFilteredRooms:
		return 1
	case OpBroadcast, OpUnicast:
		return -1 // 2-byte target + 1-byte length prefix, then payload
	case OpStartService:
		return -1 // 1-byte tunnel index + 1-byte name length prefix, then name
	case OpFlushBuffer:
		return 0
	default:
		return -1
	}
}
