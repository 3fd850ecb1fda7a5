// Package game holds the parity game's decision rule and its random draw.
package game

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/igornazarenko434/LLM-Agent-Orchestration-HW7-sub001/models"
)

const (
	DrawMin = 1
	DrawMax = 10
)

// DrawFunc produces the single random draw of a match. Injectable so tests
// can fix the draw; production code uses CryptoDraw.
type DrawFunc func() (int, error)

// CryptoDraw draws uniformly from [DrawMin, DrawMax] using crypto/rand, so
// a participant cannot predict draws from earlier matches.
func CryptoDraw() (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(DrawMax-DrawMin+1))
	if err != nil {
		return 0, fmt.Errorf("draw: %w", err)
	}
	return DrawMin + int(n.Int64()), nil
}

// DrawParity returns the parity of a drawn number.
func DrawParity(draw int) models.Parity {
	if draw%2 == 0 {
		return models.ParityEven
	}
	return models.ParityOdd
}

// Resolve applies the decision table: a participant whose choice matches the
// drawn parity wins; if both match or both miss, the match is a draw.
func Resolve(choiceA, choiceB models.Parity, draw int) models.Outcome {
	p := DrawParity(draw)
	aHit := choiceA == p
	bHit := choiceB == p
	switch {
	case aHit == bHit:
		return models.OutcomeDraw
	case aHit:
		return models.OutcomeWinA
	default:
		return models.OutcomeWinB
	}
}
