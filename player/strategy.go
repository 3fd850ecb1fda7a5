package player

import (
	"context"
	"crypto/rand"
	"fmt"

	"github.com/igornazarenko434/LLM-Agent-Orchestration-HW7-sub001/models"
)

// Strategy picks a parity for one match.
type Strategy interface {
	Choose(ctx context.Context, matchID string) (models.Parity, error)
}

// RandomStrategy flips a crypto-random coin.
type RandomStrategy struct{}

func (RandomStrategy) Choose(context.Context, string) (models.Parity, error) {
	var b [1]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("random choice: %w", err)
	}
	if b[0]%2 == 0 {
		return models.ParityEven, nil
	}
	return models.ParityOdd, nil
}

// FixedStrategy always answers the same parity.
type FixedStrategy models.Parity

func (s FixedStrategy) Choose(context.Context, string) (models.Parity, error) {
	return models.Parity(s), nil
}

// StrategyForName resolves a tournament-file strategy name.
func StrategyForName(name string) (Strategy, error) {
	switch name {
	case "", "random":
		return RandomStrategy{}, nil
	case "even":
		return FixedStrategy(models.ParityEven), nil
	case "odd":
		return FixedStrategy(models.ParityOdd), nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", name)
	}
}
