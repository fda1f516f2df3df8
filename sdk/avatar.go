package engage

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/meridianfx/engage/pkg/core/transcript"
	"github.com/meridianfx/engage/pkg/core/turn"
)

// CallState is the live avatar call lifecycle state. Transitions are
// strictly forward-moving except active -> idle/finished on termination;
// starting from idle always passes through connecting.
type CallState int

const (
	CallIdle CallState = iota
	CallConnecting
	CallActive
	CallFinished
)

// String returns a human-readable state name.
func (s CallState) String() string {
	switch s {
	case CallIdle:
		return "idle"
	case CallConnecting:
		return "connecting"
	case CallActive:
		return "active"
	case CallFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// AvatarSession drives one live avatar call end-to-end: credential issuance,
// session activation, the realtime room connection, half-duplex turn-taking
// between the user and the avatar, transcript assembly, and teardown with
// server-side cleanup.
//
// The microphone starts enabled: the user opens the conversation, and the
// arbiter gates the mic off the instant the avatar takes the floor.
//
// The transport connection, its event goroutine, the arbiter's hold-off
// timer and the audio sink registry are owned exclusively by the session.
type AvatarSession struct {
	client *Client
	logger *slog.Logger
	dial   TransportDialer

	language       string
	holdoff        time.Duration
	clientIdentity string
	videoSink      VideoSink
	audioSinks     AudioSinkFactory
	onFinish       func(messages []transcript.Message)
	onClose        func()

	mu           sync.Mutex
	state        CallState
	epoch        int
	closed       bool
	sessionID    string
	sessionToken string
	startedAt    time.Time
	transport    RoomTransport
	arbiter      *turn.Arbiter
	messages     []transcript.Message
	sinks        map[string]AudioSink
	videoTrackID string
}

// AvatarOption customizes an AvatarSession.
type AvatarOption func(*AvatarSession)

// WithLanguage sets the avatar's spoken language passed to token issuance.
func WithLanguage(language string) AvatarOption {
	return func(s *AvatarSession) {
		if language != "" {
			s.language = language
		}
	}
}

// WithHoldoff overrides the turn-arbitration silence hold-off.
func WithHoldoff(d time.Duration) AvatarOption {
	return func(s *AvatarSession) { s.holdoff = d }
}

// WithClientIdentity sets the transport's synthetic client placeholder
// identity, excluded from the active-speaker roster check.
func WithClientIdentity(identity string) AvatarOption {
	return func(s *AvatarSession) { s.clientIdentity = identity }
}

// WithVideoSink sets the single visible video surface.
func WithVideoSink(sink VideoSink) AvatarOption {
	return func(s *AvatarSession) {
		if sink != nil {
			s.videoSink = sink
		}
	}
}

// WithAudioSinkFactory sets the factory for per-track audio sinks.
func WithAudioSinkFactory(factory AudioSinkFactory) AvatarOption {
	return func(s *AvatarSession) {
		if factory != nil {
			s.audioSinks = factory
		}
	}
}

// WithOnFinish registers the completion callback handed the accumulated
// ordered transcript when the session finishes.
func WithOnFinish(fn func(messages []transcript.Message)) AvatarOption {
	return func(s *AvatarSession) { s.onFinish = fn }
}

// WithOnClose registers the callback fired once when the session closes.
func WithOnClose(fn func()) AvatarOption {
	return func(s *AvatarSession) { s.onClose = fn }
}

// NewAvatarSession creates an idle session. dial is invoked during Start to
// construct the realtime transport; a nil dial uses the websocket room
// transport.
func NewAvatarSession(client *Client, dial TransportDialer, opts ...AvatarOption) *AvatarSession {
	s := &AvatarSession{
		client:     client,
		logger:     client.logger,
		dial:       dial,
		language:   "en",
		holdoff:    turn.DefaultHoldoff,
		videoSink:  nopVideoSink{},
		audioSinks: func(string) AudioSink { return nopAudioSink{} },
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.dial == nil {
		s.dial = NewWSRoomDialer(s.logger)
	}
	return s
}

// State returns the current lifecycle state.
func (s *AvatarSession) State() CallState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Transcript returns a copy of the utterances captured so far.
func (s *AvatarSession) Transcript() []transcript.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]transcript.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// AvatarTalking reports whether the avatar currently holds the floor.
func (s *AvatarSession) AvatarTalking() bool {
	s.mu.Lock()
	arb := s.arbiter
	s.mu.Unlock()
	return arb != nil && arb.AvatarTalking()
}

// MicEnabled reports the derived microphone state.
func (s *AvatarSession) MicEnabled() bool {
	s.mu.Lock()
	arb := s.arbiter
	s.mu.Unlock()
	return arb != nil && arb.MicEnabled()
}

// SetMuted applies the user's manual mute toggle. A no-op returning false
// while the avatar is talking; only honored while the avatar is silent.
func (s *AvatarSession) SetMuted(muted bool) bool {
	s.mu.Lock()
	arb := s.arbiter
	s.mu.Unlock()
	if arb == nil {
		return false
	}
	return arb.SetManualMute(muted)
}

type credential struct {
	SessionID    string `json:"session_id"`
	SessionToken string `json:"session_token"`
}

type startResponse struct {
	Data struct {
		LivekitURL         string `json:"livekit_url"`
		LivekitClientToken string `json:"livekit_client_token"`
	} `json:"data"`
}

// Start acquires a session credential, activates the session, connects the
// realtime transport and transitions to active. Any setup failure returns
// the session to idle (not finished) so the user may retry, after releasing
// whatever was partially acquired.
func (s *AvatarSession) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed || s.state != CallIdle {
		s.mu.Unlock()
		return ErrSessionState
	}
	s.state = CallConnecting
	epoch := s.epoch
	s.mu.Unlock()

	var cred credential
	if err := s.client.postJSON(ctx, tokenPath, map[string]string{"language": s.language}, &cred); err != nil {
		s.backToIdle(epoch)
		return &CredentialError{Err: err}
	}
	if cred.SessionID == "" || cred.SessionToken == "" {
		s.backToIdle(epoch)
		return &CredentialError{Err: errors.New("token response missing session id or session token")}
	}

	var conn startResponse
	if err := s.client.postJSON(ctx, startPath, map[string]string{"session_token": cred.SessionToken}, &conn); err != nil {
		s.backToIdle(epoch)
		return &ActivationError{Err: err}
	}
	if conn.Data.LivekitURL == "" || conn.Data.LivekitClientToken == "" {
		s.backToIdle(epoch)
		return &ActivationError{Err: errors.New("start response missing connection parameters")}
	}

	rt := s.dial(RoomOptions{AdaptiveStream: true, Dynacast: true})
	if err := rt.Connect(ctx, conn.Data.LivekitURL, conn.Data.LivekitClientToken); err != nil {
		_ = rt.Close()
		// The server-side session was activated; invalidate the credential
		// pair best-effort before giving the user a retry path.
		s.stopRemote(ctx, cred.SessionID, cred.SessionToken)
		s.backToIdle(epoch)
		return &TransportError{Op: "connect", Err: err}
	}

	arb := turn.New(turn.Config{
		LocalIdentity:  rt.LocalIdentity(),
		ClientIdentity: s.clientIdentity,
		Holdoff:        s.holdoff,
	})
	arb.SetOnChange(func(_ turn.Turn, micEnabled bool) {
		if err := rt.SetMicEnabled(micEnabled); err != nil {
			s.logger.Warn("set mic state", "enabled", micEnabled, "error", err)
		}
	})

	s.mu.Lock()
	// The session may have been closed while a fetch was in flight; the
	// late result is discarded, not applied.
	if s.closed || s.epoch != epoch {
		s.mu.Unlock()
		arb.Cancel()
		_ = rt.Close()
		s.stopRemote(ctx, cred.SessionID, cred.SessionToken)
		return ErrSessionState
	}
	s.sessionID = cred.SessionID
	s.sessionToken = cred.SessionToken
	s.transport = rt
	s.arbiter = arb
	s.startedAt = time.Now()
	s.sinks = make(map[string]AudioSink)
	s.state = CallActive
	s.mu.Unlock()

	// The initial mic state is set before any room events are dispatched;
	// a roster arriving during startup can therefore only tighten it, never
	// be overwritten by it.
	if err := rt.SetMicEnabled(arb.MicEnabled()); err != nil {
		s.logger.Warn("enable mic", "error", err)
	}

	go s.dispatchLoop(rt, epoch)
	return nil
}

// backToIdle returns a failed setup to idle unless the session moved on.
func (s *AvatarSession) backToIdle(epoch int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch == epoch && s.state == CallConnecting {
		s.state = CallIdle
	}
}

// dispatchLoop consumes transport events until the channel closes. It is the
// single writer for media attachment and transcript state.
func (s *AvatarSession) dispatchLoop(rt RoomTransport, epoch int) {
	for ev := range rt.Events() {
		s.dispatch(ev, epoch)
	}
}

func (s *AvatarSession) dispatch(ev RoomEvent, epoch int) {
	// Snapshot under lock; effects that mutate session state re-check the
	// epoch so late events after teardown are dropped.
	s.mu.Lock()
	if s.epoch != epoch || s.state != CallActive {
		s.mu.Unlock()
		return
	}
	arb := s.arbiter
	s.mu.Unlock()

	switch e := ev.(type) {
	case TrackPublishedEvent:
		s.attachTrack(e, epoch)
	case TrackUnpublishedEvent:
		s.detachTrack(e, epoch)
	case SpeakersChangedEvent:
		arb.HandleSpeakers(e.Identities)
	case DataReceivedEvent:
		s.handleData(e.Payload, arb, epoch)
	case ConnectionStateChangedEvent:
		if e.State == ConnectionDisconnected {
			// Transport dropped out from under the call; run the normal
			// finish path off the dispatch goroutine.
			go func() {
				if err := s.Finish(context.Background()); err != nil && !errors.Is(err, ErrSessionState) {
					s.logger.Warn("finish after disconnect", "error", err)
				}
			}()
		}
	case ParticipantJoinedEvent:
		s.logger.Debug("participant joined", "identity", e.Identity)
	}
}

func sinkKey(identity, trackID string) string {
	return identity + "-" + trackID
}

func (s *AvatarSession) attachTrack(e TrackPublishedEvent, epoch int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch || s.state != CallActive {
		return
	}
	switch e.Kind {
	case TrackVideo:
		s.videoTrackID = e.TrackID
		s.videoSink.Attach(e.ParticipantIdentity, e.TrackID)
	case TrackAudio:
		key := sinkKey(e.ParticipantIdentity, e.TrackID)
		sink := s.audioSinks(key)
		s.sinks[key] = sink
		sink.Attach(e.ParticipantIdentity, e.TrackID)
	}
}

func (s *AvatarSession) detachTrack(e TrackUnpublishedEvent, epoch int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch || s.state != CallActive {
		return
	}
	switch e.Kind {
	case TrackVideo:
		if s.videoTrackID == e.TrackID {
			s.videoTrackID = ""
		}
		s.videoSink.Detach(e.TrackID)
	case TrackAudio:
		key := sinkKey(e.ParticipantIdentity, e.TrackID)
		if sink, ok := s.sinks[key]; ok {
			sink.Detach()
			delete(s.sinks, key)
		}
	}
}

// dataMessage is an out-of-band signaling event. Transcription events carry
// the utterance under message or text depending on the sender.
type dataMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Text    string `json:"text"`
}

func (s *AvatarSession) handleData(payload []byte, arb *turn.Arbiter, epoch int) {
	var msg dataMessage
	if err := json.Unmarshal(payload, &msg); err != nil || msg.Type == "" {
		// Malformed signaling messages are dropped, not escalated.
		s.logger.Debug("dropping malformed data message")
		return
	}

	if arb.HandleSignal(msg.Type) {
		return
	}

	sender, ok := transcriptSender(msg.Type)
	if !ok {
		s.logger.Debug("ignoring data message", "type", msg.Type)
		return
	}
	text := msg.Message
	if text == "" {
		text = msg.Text
	}
	if text == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch || s.state != CallActive {
		return
	}
	s.messages = append(s.messages, transcript.NewMessage(sender, text, s.startedAt))
}

// transcriptSender maps transcription event types to the utterance sender,
// tolerating naming variants.
func transcriptSender(eventType string) (transcript.Sender, bool) {
	switch eventType {
	case "avatar_talking_message", "avatar_message", "avatar_transcript":
		return transcript.SenderAvatar, true
	case "user_talking_message", "user_message", "user_transcript":
		return transcript.SenderUser, true
	}
	return "", false
}

// Finish ends an active call: best-effort server-side stop and transcript
// persistence, the completion callback, then local resource release. An
// individual network failure is logged and never blocks the teardown.
func (s *AvatarSession) Finish(ctx context.Context) error {
	s.mu.Lock()
	if s.state != CallActive {
		s.mu.Unlock()
		return ErrSessionState
	}
	s.state = CallFinished
	s.epoch++
	id, token := s.sessionID, s.sessionToken
	rt, arb := s.transport, s.arbiter
	sinks := s.sinks
	messages := make([]transcript.Message, len(s.messages))
	copy(messages, s.messages)
	s.sessionID, s.sessionToken = "", ""
	s.transport, s.arbiter, s.sinks = nil, nil, nil
	videoTrackID := s.videoTrackID
	s.videoTrackID = ""
	s.mu.Unlock()

	s.stopRemote(ctx, id, token)
	if err := s.client.postJSON(ctx, endPath(id), map[string]string{"session_token": token}, nil); err != nil {
		s.logger.Warn("end session", "session_id", id, "error", err)
	}

	if s.onFinish != nil {
		s.onFinish(messages)
	}

	s.release(rt, arb, sinks, videoTrackID)
	return nil
}

// stopRemote notifies the stop interface. Best-effort.
func (s *AvatarSession) stopRemote(ctx context.Context, id, token string) {
	if id == "" {
		return
	}
	payload := map[string]string{"session_id": id, "session_token": token}
	if err := s.client.postJSON(ctx, stopPath, payload, nil); err != nil {
		s.logger.Warn("stop session", "session_id", id, "error", err)
	}
}

// release tears down local resources synchronously: debounce timer, media
// sinks, transport. Never waits on network acknowledgment.
func (s *AvatarSession) release(rt RoomTransport, arb *turn.Arbiter, sinks map[string]AudioSink, videoTrackID string) {
	if arb != nil {
		arb.Cancel()
	}
	for _, sink := range sinks {
		sink.Detach()
	}
	if videoTrackID != "" {
		s.videoSink.Detach(videoTrackID)
	}
	if rt != nil {
		if err := rt.Close(); err != nil {
			s.logger.Warn("close transport", "error", err)
		}
	}
}

// Close shuts the session down. If the call is active it runs the full
// finish sequence first; local resources are always released. Idempotent:
// a second Close is a no-op and the close callback fires exactly once.
func (s *AvatarSession) Close(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	active := s.state == CallActive
	var (
		rt           RoomTransport
		arb          *turn.Arbiter
		sinks        map[string]AudioSink
		videoTrackID string
	)
	if !active {
		// Invalidate any in-flight Start so its late result is discarded.
		s.epoch++
		if s.state == CallConnecting {
			s.state = CallFinished
		}
		rt, arb = s.transport, s.arbiter
		sinks = s.sinks
		videoTrackID = s.videoTrackID
		s.transport, s.arbiter, s.sinks = nil, nil, nil
		s.videoTrackID = ""
	}
	s.mu.Unlock()

	if active {
		if err := s.Finish(ctx); err != nil && !errors.Is(err, ErrSessionState) {
			s.logger.Warn("finish during close", "error", err)
		}
	} else {
		s.release(rt, arb, sinks, videoTrackID)
	}

	if s.onClose != nil {
		s.onClose()
	}
}
