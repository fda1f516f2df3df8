package llm

import (
	"context"
	"strings"
)

// Scripted replays a fixed sequence of deltas. Test seam for handler and
// server tests; never constructed in production wiring.
type Scripted struct {
	Chunks []string
	Err    error // returned after all chunks are delivered
}

func (s *Scripted) StreamChat(ctx context.Context, messages []Message, onDelta func(text string)) (string, error) {
	var full strings.Builder
	for _, chunk := range s.Chunks {
		if err := ctx.Err(); err != nil {
			return full.String(), err
		}
		full.WriteString(chunk)
		if onDelta != nil {
			onDelta(chunk)
		}
	}
	if s.Err != nil {
		return full.String(), s.Err
	}
	return full.String(), nil
}
