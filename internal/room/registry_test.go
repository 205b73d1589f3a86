package room

import "testing"

func TestAllocFreePlayer(t *testing.T) {
	reg := NewRegistry(nil, nil)

	p, err := reg.AllocPlayer()
	if err != nil {
		t.Fatalf("AllocPlayer: %v", err)
	}
	if p.ID == 0 {
		t.Fatalf("expected non-zero player id")
	}
	if _, ok := reg.GetPlayer(p.ID); !ok {
		t.Fatalf("GetPlayer should find the freshly allocated player")
	}

	reg.FreePlayer(p.ID)
	if _, ok := reg.GetPlayer(p.ID); ok {
		t.Fatalf("GetPlayer should miss after FreePlayer")
	}
}

func TestRegistryFullRejectsAlloc(t *testing.T) {
	reg := NewRegistry(nil, nil)
	for i := 0; i < MaxPlayers; i++ {
		if _, err := reg.AllocPlayer(); err != nil {
			t.Fatalf("AllocPlayer #%d: %v", i, err)
		}
	}
	if _, err := reg.AllocPlayer(); err != ErrRegistryFull {
		t.Fatalf("expected ErrRegistryFull, got %v", err)
	}
}

func TestStrikeWithoutStoreTracksInMemory(t *testing.T) {
	reg := NewRegistry(nil, nil)
	var denied bool
	var err error
	for i := 0; i < IPStrikeLimit; i++ {
		denied, err = reg.Strike("198.51.100.7", int64(i))
		if err != nil {
			t.Fatalf("Strike: %v", err)
		}
	}
	if !denied {
		t.Fatalf("expected denied after %d strikes", IPStrikeLimit)
	}
	if !reg.IsDenied("198.51.100.7") {
		t.Fatalf("IsDenied should report true")
	}
	if reg.IsDenied("203.0.113.1") {
		t.Fatalf("unrelated ip should not be denied")
	}
}
