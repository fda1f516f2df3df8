package llm

import (
	"context"
	"errors"
	"testing"
)

func TestScriptedStreamsChunksInOrder(t *testing.T) {
	p := &Scripted{Chunks: []string{"He", "llo", " there"}}

	var got []string
	full, err := p.StreamChat(context.Background(), nil, func(text string) {
		got = append(got, text)
	})
	if err != nil {
		t.Fatalf("StreamChat: %v", err)
	}
	if full != "Hello there" {
		t.Fatalf("full = %q", full)
	}
	if len(got) != 3 || got[0] != "He" || got[2] != " there" {
		t.Fatalf("deltas = %v", got)
	}
}

func TestScriptedReturnsErrAfterChunks(t *testing.T) {
	wantErr := errors.New("upstream blew up")
	p := &Scripted{Chunks: []string{"partial"}, Err: wantErr}

	full, err := p.StreamChat(context.Background(), nil, nil)
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v", err)
	}
	if full != "partial" {
		t.Fatalf("full = %q", full)
	}
}

func TestScriptedHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := &Scripted{Chunks: []string{"never"}}
	if _, err := p.StreamChat(ctx, nil, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
}
