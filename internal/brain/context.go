package brain

import (
	"fmt"

	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/pkg/types"
)

// trimToBudget drops the oldest turns until the remainder fits the token
// budget. The current user utterance (the last user turn, mid-loop it sits
// before the round's tool results) and everything after it are never dropped,
// and the window never starts with an orphaned tool result: dropping an
// assistant turn drags its paired results along so the call/result pairing
// the model sees stays intact.
func (e *Engine) trimToBudget(turns []types.Turn) ([]types.Turn, error) {
	if e.cfg.TokenBudget <= 0 || len(turns) == 0 {
		return turns, nil
	}

	// cur is the index of the current turn's user utterance; nothing from
	// cur onward may be dropped.
	cur := len(turns) - 1
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == types.RoleUser {
			cur = i
			break
		}
	}

	for cur > 0 {
		tokens, err := e.model.CountTokens(turns)
		if err != nil {
			return nil, fmt.Errorf("brain: count tokens: %w", err)
		}
		if tokens <= e.cfg.TokenBudget {
			break
		}
		turns = turns[1:]
		cur--
		for cur > 0 && turns[0].Role == types.RoleTool {
			turns = turns[1:]
			cur--
		}
	}
	return turns, nil
}
