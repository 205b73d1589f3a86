package fujinet

import (
	"testing"

	"go.uber.org/zap"
)

func TestDeviceStatusReturnsCapabilityByte(t *testing.T) {
	srv := NewServer(zap.NewNop())
	resp := srv.handleData([]byte{OpDeviceStatus})
	if len(resp) != 2 || resp[0] != OpDeviceStatus || resp[1] != capabilityByte {
		t.Fatalf("handleData(DEVICE_STATUS) = %v", resp)
	}
}

func TestOtherPayloadsAreEchoed(t *testing.T) {
	srv := NewServer(zap.NewNop())
	payload := []byte{0x01, 0x02, 0x03}
	resp := srv.handleData(payload)
	if len(resp) != len(payload) {
		t.Fatalf("echo length mismatch: got %d, want %d", len(resp), len(payload))
	}
	for i := range payload {
		if resp[i] != payload[i] {
			t.Fatalf("echo mismatch at %d: got %#x, want %#x", i, resp[i], payload[i])
		}
	}
}
