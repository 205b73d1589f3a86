package lichess

import (
	"fmt"
)

// Move is a decoded client move: from/to are 0..63 square indices packed
// file-low/rank-high per spec.md §4.5.1, promo is a promotion piece letter
// byte (0 for none).
type Move struct {
	From  byte
	To    byte
	Promo byte
}

var promoLetters = map[byte]byte{
	'q': 'q', 'r': 'r', 'b': 'b', 'n': 'n',
}

// decodeMove validates from/to/promo and returns the UCI string Lichess
// expects ("e2e4", "e7e8q", ...). Any byte out of range fails the decode,
// per spec.md §4.5.1.
func decodeMove(from, to, promo byte) (string, error) {
	if from > 63 || to > 63 {
		return "", fmt.Errorf("square index out of range: from=%d to=%d", from, to)
	}
	uci := squareUCI(from) + squareUCI(to)
	if promo != 0 {
		letter, ok := promoLetters[promo]
		if !ok {
			return "", fmt.Errorf("invalid promotion byte %#x", promo)
		}
		uci += string(letter)
	}
	return uci, nil
}

func squareUCI(sq byte) string {
	file := sq & 0x07
	rank := (sq >> 3) & 0x07
	return string([]byte{'a' + file, '1' + rank})
}

// encodeMove is the inverse of decodeMove, used to turn a UCI move string
// echoed back by Lichess into the from/to/promo triple an OPP_MOVE carries.
func encodeMove(uci string) (Move, error) {
	if len(uci) != 4 && len(uci) != 5 {
		return Move{}, fmt.Errorf("malformed uci move %q", uci)
	}
	from, err := squareFromUCI(uci[0:2])
	if err != nil {
		return Move{}, err
	}
	to, err := squareFromUCI(uci[2:4])
	if err != nil {
		return Move{}, err
	}
	var promo byte
	if len(uci) == 5 {
		promo = uci[4]
		if _, ok := promoLetters[promo]; !ok {
			return Move{}, fmt.Errorf("invalid promotion letter %q", uci[4])
		}
	}
	return Move{From: from, To: to, Promo: promo}, nil
}

func squareFromUCI(s string) (byte, error) {
	if len(s) != 2 {
		return 0, fmt.Errorf("malformed square %q", s)
	}
	file := s[0]
	rank := s[1]
	if file < 'a' || file > 'h' || rank < '1' || rank > '8' {
		return 0, fmt.Errorf("malformed square %q", s)
	}
	return (rank - '1') << 3 | (file - 'a'), nil
}
