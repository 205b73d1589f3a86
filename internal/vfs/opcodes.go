package vfs

// Command opcodes carried in Data tunnel frames (spec.md §4.4). Byte
// values are assigned in the order the spec's table lists them; the spec
// names the opcodes but not their wire values.
const (
	OpMount     = 1
	OpReaddir   = 2
	OpOpen      = 3
	OpRead      = 4
	OpLseek     = 5
	OpClose     = 6
	OpOpts      = 7
	OpGetopt    = 8
	OpHashIndex = 9
	OpStat      = 10
	OpTime      = 11
	OpRename    = 12
	OpCreate    = 13
	OpWrite     = 14
	OpDelete    = 15
	OpMkdir     = 16
	OpRmdir     = 17
	OpTruncate  = 18
	OpLabel     = 19
	OpFreespace = 20
)

// Flag bits set/read by OPTS/GETOPT.
const (
	OptLFN  = 0x01
	OptCRC  = 0x02
	OptHash = 0x04
)

// Status bytes used across responses.
const (
	StatusOK               = 0x00
	StatusFail             = 0x01
	StatusQuotaBytes       = 0xFC
	StatusLengthExceeded   = 0xFD
	StatusQuotaFileCount   = 0xFE
	StatusOtherFailure     = 0xFF
	maxReadLen             = 512
	handshakeGreeting      = "UFS-HANDSHAKE-READY"
)
