package radio

import (
	"context"
	"encoding/binary"
	"math"
	"time"
)

const (
	sineSampleRate = 8000
	sineFrameMs    = 20
	sineFrameLen   = sineSampleRate * sineFrameMs / 1000
	sineToneHz     = 440.0
)

// SineDecoder is a test double standing in for a real FFmpeg-backed
// Decoder, grounded on the teacher's testbot.go idiom of a periodic
// synthetic audio source feeding a real transport: instead of embedding
// pre-encoded frames, it generates a 440 Hz tone's 16-bit PCM samples on
// the fly so no embedded asset is needed.
type SineDecoder struct{}

func (SineDecoder) Decode(ctx context.Context, stationURL string) (<-chan []byte, error) {
	out := make(chan []byte, 4)
	go func() {
		defer close(out)
		ticker := time.NewTicker(sineFrameMs * time.Millisecond)
		defer ticker.Stop()

		var sampleIdx int
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			frame := make([]byte, sineFrameLen*2)
			for i := 0; i < sineFrameLen; i++ {
				t := float64(sampleIdx) / sineSampleRate
				sample := int16(math.Sin(2*math.Pi*sineToneHz*t) * 0.25 * math.MaxInt16)
				binary.BigEndian.PutUint16(frame[i*2:], uint16(sample))
				sampleIdx++
			}

			select {
			case out <- frame:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
