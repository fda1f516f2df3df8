package engage

import (
	"io"
	"strings"
	"testing"
)

// chunkedReadCloser yields the underlying bytes in fixed-size chunks so
// tests can split frames at arbitrary byte boundaries, including mid-line.
type chunkedReadCloser struct {
	data  []byte
	chunk int
	pos   int
}

func (r *chunkedReadCloser) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	n := r.chunk
	if n > len(p) {
		n = len(p)
	}
	if r.pos+n > len(r.data) {
		n = len(r.data) - r.pos
	}
	copy(p, r.data[r.pos:r.pos+n])
	r.pos += n
	return n, nil
}

func (r *chunkedReadCloser) Close() error { return nil }

func drainStream(t *testing.T, body io.ReadCloser) (string, chatFrame) {
	t.Helper()
	reader := newChatStreamReader(body)
	defer reader.Close()

	var assembled strings.Builder
	for {
		frame, err := reader.Next()
		if err == io.EOF {
			t.Fatal("stream ended without a done frame")
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if frame.Done {
			return assembled.String(), frame
		}
		assembled.WriteString(frame.Content)
	}
}

const wellFormedStream = "data: {\"content\":\"He\"}\n\n" +
	"data: {\"content\":\"llo\"}\n\n" +
	"data: {\"done\":true,\"fullContent\":\"Hello\"}\n\n"

func TestChatStreamReader_ChunkingIdempotence(t *testing.T) {
	// The assembled message must not depend on how the byte stream is
	// chunked across reads.
	for chunk := 1; chunk <= len(wellFormedStream); chunk++ {
		body := &chunkedReadCloser{data: []byte(wellFormedStream), chunk: chunk}
		assembled, done := drainStream(t, body)
		if assembled != "Hello" {
			t.Fatalf("chunk=%d: assembled %q, want %q", chunk, assembled, "Hello")
		}
		if done.FullContent != "Hello" {
			t.Fatalf("chunk=%d: fullContent %q, want %q", chunk, done.FullContent, "Hello")
		}
	}
}

func TestChatStreamReader_PartialLineSafety(t *testing.T) {
	// A data line broken across two reads must never yield a truncated or
	// duplicated fragment.
	body := &chunkedReadCloser{data: []byte(wellFormedStream), chunk: 7}
	assembled, _ := drainStream(t, body)
	if assembled != "Hello" {
		t.Fatalf("assembled %q, want %q", assembled, "Hello")
	}
}

func TestChatStreamReader_SkipsMalformedFrames(t *testing.T) {
	stream := "data: {\"content\":\"He\"}\n\n" +
		"data: {not json at all\n\n" +
		": comment line\n" +
		"event: noise\n" +
		"data: {\"content\":\"llo\"}\n\n" +
		"data: {\"done\":true,\"fullContent\":\"Hello\"}\n\n"
	assembled, _ := drainStream(t, io.NopCloser(strings.NewReader(stream)))
	if assembled != "Hello" {
		t.Fatalf("assembled %q, want %q", assembled, "Hello")
	}
}

func TestChatStreamReader_DoneWithoutFullContent(t *testing.T) {
	stream := "data: {\"content\":\"Hi\"}\n\n" +
		"data: {\"done\":true}\n\n"
	assembled, done := drainStream(t, io.NopCloser(strings.NewReader(stream)))
	if assembled != "Hi" {
		t.Fatalf("assembled %q, want %q", assembled, "Hi")
	}
	if done.FullContent != "" {
		t.Fatalf("fullContent %q, want empty", done.FullContent)
	}
}

func TestChatStreamReader_UnterminatedTrailingLineDropped(t *testing.T) {
	stream := "data: {\"content\":\"Hi\"}\n\n" +
		"data: {\"content\":\"trunc" // no newline, stream cut mid-frame
	reader := newChatStreamReader(io.NopCloser(strings.NewReader(stream)))
	defer reader.Close()

	frame, err := reader.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if frame.Content != "Hi" {
		t.Fatalf("content %q, want %q", frame.Content, "Hi")
	}

	if _, err := reader.Next(); err != io.EOF {
		t.Fatalf("expected EOF for unterminated trailing line, got %v", err)
	}
}

func TestChatStreamReader_EOFWithoutDone(t *testing.T) {
	stream := "data: {\"content\":\"Hi\"}\n\n"
	reader := newChatStreamReader(io.NopCloser(strings.NewReader(stream)))
	defer reader.Close()

	if _, err := reader.Next(); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if _, err := reader.Next(); err != io.EOF {
		t.Fatalf("expected EOF, got %v", err)
	}
}
