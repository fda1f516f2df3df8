package engage

import "context"

// RoomTransport is the realtime media room the avatar call runs over. It is
// an external collaborator: the SDK only consumes the event stream and the
// small control surface below. Implementations must deliver all events on a
// single channel so the session controller can dispatch them from one place.
type RoomTransport interface {
	// Connect establishes the room connection with the server-provided URL
	// and client access token.
	Connect(ctx context.Context, url, token string) error

	// Events yields room events until the transport closes, at which point
	// the channel is closed.
	Events() <-chan RoomEvent

	// LocalIdentity returns the local participant's identity, known after
	// Connect.
	LocalIdentity() string

	// SetMicEnabled enables or disables the local microphone track.
	SetMicEnabled(enabled bool) error

	// SendData publishes an out-of-band data message to the room.
	SendData(payload []byte) error

	// Close disconnects and releases the transport. Idempotent.
	Close() error
}

// TransportDialer constructs a transport for one session. The session
// controller calls it after session activation, configured for adaptive
// streaming and selective (dynacast) publishing.
type TransportDialer func(opts RoomOptions) RoomTransport

// RoomOptions configures a room connection.
type RoomOptions struct {
	AdaptiveStream bool
	Dynacast       bool
}

// TrackKind distinguishes remote media tracks.
type TrackKind string

const (
	TrackAudio TrackKind = "audio"
	TrackVideo TrackKind = "video"
)

// RoomEvent is the tagged union of everything a transport can report.
type RoomEvent interface {
	roomEventType() string
}

// TrackPublishedEvent fires when a remote track becomes available.
type TrackPublishedEvent struct {
	ParticipantIdentity string
	TrackID             string
	Kind                TrackKind
}

func (e TrackPublishedEvent) roomEventType() string { return "track_published" }

// TrackUnpublishedEvent fires when a remote track goes away.
type TrackUnpublishedEvent struct {
	ParticipantIdentity string
	TrackID             string
	Kind                TrackKind
}

func (e TrackUnpublishedEvent) roomEventType() string { return "track_unpublished" }

// SpeakersChangedEvent carries the current active-speaker roster.
type SpeakersChangedEvent struct {
	Identities []string
}

func (e SpeakersChangedEvent) roomEventType() string { return "speakers_changed" }

// DataReceivedEvent carries an out-of-band JSON data message.
type DataReceivedEvent struct {
	Payload []byte
}

func (e DataReceivedEvent) roomEventType() string { return "data_received" }

// ConnectionState is the transport's connection lifecycle state.
type ConnectionState string

const (
	ConnectionConnected    ConnectionState = "connected"
	ConnectionReconnecting ConnectionState = "reconnecting"
	ConnectionDisconnected ConnectionState = "disconnected"
)

// ConnectionStateChangedEvent fires on connection lifecycle transitions.
type ConnectionStateChangedEvent struct {
	State ConnectionState
}

func (e ConnectionStateChangedEvent) roomEventType() string { return "connection_state_changed" }

// ParticipantJoinedEvent fires when a remote participant joins the room.
type ParticipantJoinedEvent struct {
	Identity string
}

func (e ParticipantJoinedEvent) roomEventType() string { return "participant_joined" }

// VideoSink is where remote video tracks render. The session owns exactly
// one visible video surface; successive video tracks replace each other.
type VideoSink interface {
	Attach(participantIdentity, trackID string)
	Detach(trackID string)
}

// AudioSink is one autoplaying audio output. The session creates one sink
// per remote audio track, keyed by participant identity and track ID, so
// simultaneous tracks from different participants never collide.
type AudioSink interface {
	Attach(participantIdentity, trackID string)
	Detach()
}

// AudioSinkFactory creates the sink for a newly published audio track.
type AudioSinkFactory func(key string) AudioSink

type nopVideoSink struct{}

func (nopVideoSink) Attach(string, string) {}
func (nopVideoSink) Detach(string)         {}

type nopAudioSink struct{}

func (nopAudioSink) Attach(string, string) {}
func (nopAudioSink) Detach()               {}
