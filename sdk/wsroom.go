package engage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsConnectTimeout = 15 * time.Second
	wsWriteTimeout   = 5 * time.Second
	wsEventBuffer    = 64
)

// wsRoom implements RoomTransport over a websocket signaling channel to the
// media server: JSON frames for track lifecycle, active-speaker rosters,
// data messages and connection state.
type wsRoom struct {
	opts   RoomOptions
	logger *slog.Logger

	conn      *websocket.Conn
	events    chan RoomEvent
	stop      chan struct{}
	done      chan struct{}
	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    atomic.Bool

	identityMu    sync.Mutex
	localIdentity string
}

// NewWSRoomDialer returns a TransportDialer backed by a gorilla/websocket
// signaling connection.
func NewWSRoomDialer(logger *slog.Logger) TransportDialer {
	if logger == nil {
		logger = slog.Default()
	}
	return func(opts RoomOptions) RoomTransport {
		return &wsRoom{
			opts:   opts,
			logger: logger,
			events: make(chan RoomEvent, wsEventBuffer),
			stop:   make(chan struct{}),
			done:   make(chan struct{}),
		}
	}
}

// wsFrame is the signaling wire format, a superset of all frame types.
type wsFrame struct {
	Type        string          `json:"type"`
	Participant string          `json:"participant,omitempty"`
	TrackID     string          `json:"track_id,omitempty"`
	Kind        string          `json:"kind,omitempty"`
	Speakers    []string        `json:"speakers,omitempty"`
	State       string          `json:"state,omitempty"`
	Identity    string          `json:"identity,omitempty"`
	Enabled     bool            `json:"enabled,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`

	// Hello fields.
	AdaptiveStream bool `json:"adaptive_stream,omitempty"`
	Dynacast       bool `json:"dynacast,omitempty"`
}

func (r *wsRoom) Connect(ctx context.Context, url, token string) error {
	if r.conn != nil {
		return errors.New("room already connected")
	}

	dialCtx, cancel := context.WithTimeout(ctx, wsConnectTimeout)
	defer cancel()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, resp, err := websocket.DefaultDialer.DialContext(dialCtx, url, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial room (status %d): %w", resp.StatusCode, err)
		}
		return fmt.Errorf("dial room: %w", err)
	}
	r.conn = conn

	hello := wsFrame{
		Type:           "hello",
		AdaptiveStream: r.opts.AdaptiveStream,
		Dynacast:       r.opts.Dynacast,
	}
	if err := r.writeJSON(hello); err != nil {
		conn.Close()
		return fmt.Errorf("send hello: %w", err)
	}

	// The server acks with the local participant identity before any room
	// events flow.
	conn.SetReadDeadline(time.Now().Add(wsConnectTimeout))
	var ack wsFrame
	if err := conn.ReadJSON(&ack); err != nil {
		conn.Close()
		return fmt.Errorf("read hello ack: %w", err)
	}
	if ack.Type != "hello_ack" || ack.Identity == "" {
		conn.Close()
		return fmt.Errorf("unexpected hello ack frame %q", ack.Type)
	}
	conn.SetReadDeadline(time.Time{})

	r.identityMu.Lock()
	r.localIdentity = ack.Identity
	r.identityMu.Unlock()

	go r.readLoop()
	return nil
}

func (r *wsRoom) Events() <-chan RoomEvent {
	return r.events
}

func (r *wsRoom) LocalIdentity() string {
	r.identityMu.Lock()
	defer r.identityMu.Unlock()
	return r.localIdentity
}

func (r *wsRoom) SetMicEnabled(enabled bool) error {
	return r.writeJSON(wsFrame{Type: "mic", Enabled: enabled})
}

func (r *wsRoom) SendData(payload []byte) error {
	return r.writeJSON(wsFrame{Type: "data", Payload: json.RawMessage(payload)})
}

func (r *wsRoom) writeJSON(v any) error {
	if r.closed.Load() {
		return errors.New("room is closed")
	}
	if r.conn == nil {
		return errors.New("room is not connected")
	}
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	r.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return r.conn.WriteJSON(v)
}

func (r *wsRoom) Close() error {
	r.closeOnce.Do(func() {
		r.closed.Store(true)
		close(r.stop)
		if r.conn != nil {
			r.writeMu.Lock()
			_ = r.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(2*time.Second))
			r.writeMu.Unlock()
			_ = r.conn.Close()
			<-r.done
		} else {
			close(r.events)
		}
	})
	return nil
}

func (r *wsRoom) readLoop() {
	defer close(r.done)
	defer close(r.events)

	for {
		var frame wsFrame
		if err := r.conn.ReadJSON(&frame); err != nil {
			if !r.closed.Load() && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				r.logger.Warn("room read", "error", err)
			}
			r.emit(ConnectionStateChangedEvent{State: ConnectionDisconnected})
			return
		}

		ev := decodeRoomFrame(frame)
		if ev == nil {
			// Unknown frame types are dropped, not escalated.
			continue
		}
		r.emit(ev)
	}
}

func (r *wsRoom) emit(ev RoomEvent) {
	select {
	case r.events <- ev:
	case <-r.stop:
	}
}

func decodeRoomFrame(frame wsFrame) RoomEvent {
	switch frame.Type {
	case "track_published":
		return TrackPublishedEvent{
			ParticipantIdentity: frame.Participant,
			TrackID:             frame.TrackID,
			Kind:                TrackKind(frame.Kind),
		}
	case "track_unpublished":
		return TrackUnpublishedEvent{
			ParticipantIdentity: frame.Participant,
			TrackID:             frame.TrackID,
			Kind:                TrackKind(frame.Kind),
		}
	case "speakers_changed":
		return SpeakersChangedEvent{Identities: frame.Speakers}
	case "data":
		return DataReceivedEvent{Payload: append([]byte(nil), frame.Payload...)}
	case "connection_state":
		return ConnectionStateChangedEvent{State: ConnectionState(frame.State)}
	case "participant_joined":
		return ParticipantJoinedEvent{Identity: frame.Identity}
	}
	return nil
}
