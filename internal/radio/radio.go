// Package radio implements the station-selection and PCM relay side of the
// radio transcoder tunnel service (spec.md §4.6/§5.6). The real station
// decode (shelling out to FFmpeg against a live stream URL) is out of
// scope; Decoder is the narrow seam a real implementation would plug into.
package radio

import "context"

// Decoder turns a station URL into a channel of raw audio chunks. A real
// implementation invokes FFmpeg and streams its stdout; that integration is
// out of scope here; Decoder is the interface it would satisfy.
type Decoder interface {
	Decode(ctx context.Context, stationURL string) (<-chan []byte, error)
}

// Client->server message tags.
const (
	MsgSelectStation byte = 1
	MsgStop          byte = 2
)

// Server->client message tags.
const (
	RespChunk byte = 1
	RespError byte = 2
	RespStopped byte = 3
)

const maxStationURLLen = 255
