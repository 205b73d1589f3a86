package lichess

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// mockchallenge stands in for the real Lichess API in tests, the same way
// the teacher's testbot.go stands a virtual client in for a real one: no
// network, deterministic, driven entirely by the calls the Session makes.
type MockChallengeClient struct {
	mu    sync.Mutex
	games map[string]*mockGame
}

type mockGame struct {
	moves []string
	subs  []chan GameEvent
}

// NewMockChallenge returns a ChallengeClient usable in tests; games are
// minted with google/uuid and moves are echoed straight back on the
// stream, letting a test assert the full client<->adapter<->"Lichess" loop
// without reaching the network.
func NewMockChallenge() *MockChallengeClient {
	return &MockChallengeClient{games: make(map[string]*mockGame)}
}

func (m *MockChallengeClient) CreateOpenChallenge(ctx context.Context, minutes, increment int) (string, error) {
	id := uuid.NewString()[:8]
	m.mu.Lock()
	m.games[id] = &mockGame{}
	m.mu.Unlock()
	return id, nil
}

func (m *MockChallengeClient) StreamGame(ctx context.Context, gameID string) (<-chan GameEvent, error) {
	ch := make(chan GameEvent, historyRing)
	m.mu.Lock()
	g, ok := m.games[gameID]
	if ok {
		g.subs = append(g.subs, ch)
	}
	m.mu.Unlock()
	if !ok {
		close(ch)
		return ch, nil
	}
	go func() {
		<-ctx.Done()
	}()
	return ch, nil
}

func (m *MockChallengeClient) SendMove(ctx context.Context, gameID, uci string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.games[gameID]
	if !ok {
		return nil
	}
	g.moves = append(g.moves, uci)
	ev := GameEvent{Moves: strings.Join(g.moves, " "), Status: "started"}
	for _, sub := range g.subs {
		select {
		case sub <- ev:
		default:
		}
	}
	return nil
}

// InjectOpponentMove lets a test push an opponent's reply into the stream
// as if Lichess itself had echoed it, without going through SendMove.
func (m *MockChallengeClient) InjectOpponentMove(gameID, uci string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.games[gameID]
	if !ok {
		return
	}
	g.moves = append(g.moves, uci)
	ev := GameEvent{Moves: strings.Join(g.moves, " "), Status: "started"}
	for _, sub := range g.subs {
		select {
		case sub <- ev:
		default:
		}
	}
}

// EndGame pushes a terminal status onto every subscriber of gameID.
func (m *MockChallengeClient) EndGame(gameID, status, winner string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.games[gameID]
	if !ok {
		return
	}
	ev := GameEvent{Moves: strings.Join(g.moves, " "), Status: status, Winner: winner}
	for _, sub := range g.subs {
		select {
		case sub <- ev:
		default:
		}
	}
}
