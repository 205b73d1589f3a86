package lichess

import "context"

// GameEvent is one line of a Lichess game stream: either a moves-so-far
// update or a terminal status.
type GameEvent struct {
	Moves  string // space-separated UCI moves applied so far, e.g. "e2e4 e7e5"
	Status string // "started", "resign", "mate", "draw", "aborted", "outoftime", ...
	Winner string // "white", "black", or "" if not decided
}

// ChallengeClient is the only boundary Session has to the outside world.
// stdhttp backs production use against the real Lichess API; mockchallenge
// backs tests.
type ChallengeClient interface {
	CreateOpenChallenge(ctx context.Context, minutes, increment int) (gameID string, err error)
	StreamGame(ctx context.Context, gameID string) (<-chan GameEvent, error)
	SendMove(ctx context.Context, gameID, uci string) error
}
