package engage

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"
)

// chatFrame is one decoded event from the chat completion stream: either a
// content fragment or the terminal done marker carrying the full assembled
// reply.
type chatFrame struct {
	Content     string `json:"content"`
	Done        bool   `json:"done"`
	FullContent string `json:"fullContent"`
}

// chatStreamReader incrementally decodes the gateway's chat stream: lines of
// the form "data: {json}" separated by blank lines. Reads never process an
// incomplete line; bufio buffers partial trailing lines across chunks, so a
// frame split at any byte boundary is reassembled before decoding. Lines
// that are not data frames, and data frames that fail to decode, are
// skipped rather than aborting the stream.
type chatStreamReader struct {
	reader *bufio.Reader
	body   io.Closer
}

func newChatStreamReader(body io.ReadCloser) *chatStreamReader {
	return &chatStreamReader{
		reader: bufio.NewReader(body),
		body:   body,
	}
}

// Next returns the next well-formed frame, io.EOF at end of stream.
func (s *chatStreamReader) Next() (chatFrame, error) {
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return chatFrame{}, err
		}

		if err == io.EOF {
			// ReadString only returns io.EOF when no newline was found, so
			// whatever is in line is an unterminated trailing fragment.
			// Never decode an incomplete line.
			return chatFrame{}, io.EOF
		}

		trimmed := strings.TrimRight(line, "\r\n")
		if payload, ok := strings.CutPrefix(trimmed, "data:"); ok {
			payload = strings.TrimSpace(payload)
			var frame chatFrame
			if json.Unmarshal([]byte(payload), &frame) == nil {
				return frame, nil
			}
			// Malformed frame: skip, keep reading.
		}
	}
}

func (s *chatStreamReader) Close() error {
	if s.body != nil {
		return s.body.Close()
	}
	return nil
}
