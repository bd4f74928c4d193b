package room

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	pion "github.com/pion/webrtc/v4"

	"github.com/sprintroom/sprintroom-cli/internal/media"
	"github.com/sprintroom/sprintroom-cli/internal/session"
	"github.com/sprintroom/sprintroom-cli/internal/signaling"
)

const recordingTimeout = 15 * time.Second

// Signaler is the slice of the signaling client the reconciler consumes.
type Signaler interface {
	Connect() error
	SendMessage(msg *signaling.Message)
	Incoming() <-chan *signaling.Message
	Close()
}

// Capture is the device capture manager contract.
type Capture interface {
	Acquire(constraints media.Constraints) error
	SetAudioEnabled(enabled bool)
	SetVideoEnabled(enabled bool)
	AcquireScreen(mode media.ShareAudioMode, loopbackDeviceID string) (*media.ScreenCapture, error)
	Release()
}

// Sessions is the peer session manager contract.
type Sessions interface {
	EnsureSession(peerID string) error
	HandleSignal(from string, payload signaling.SignalPayload)
	CloseSession(peerID string)
	CloseAll()
	AttachScreen(screen *media.ScreenCapture) error
	DetachScreen()
	BroadcastSpeaking(speaking bool)
	Events() <-chan session.Event
}

// Recorder is the external recording backend.
type Recorder interface {
	Start(ctx context.Context, roomID string) error
	Stop(ctx context.Context, roomID string) error
}

// Options carry the session identity and capture selection. Identity is
// injected here, never read from ambient state.
type Options struct {
	RoomID         string
	LocalID        string
	Constraints    media.Constraints
	LoopbackDevice string
}

// Internal results of operations running off the reconciler goroutine.
// They re-enter the loop as messages like every other event.
type asyncResult interface {
	isResult()
}

type recordingResult struct {
	start bool
	err   error
}

type shareResult struct {
	seq    uint64
	screen *media.ScreenCapture
	err    error
}

func (recordingResult) isResult() {}
func (shareResult) isResult()     {}

// Reconciler is the single authoritative actor that merges local intents
// and asynchronous network/media events into one consistent room view
// model. All canonical state lives on its goroutine; callbacks dispatch
// messages into it instead of closing over shared mutable cells.
type Reconciler struct {
	opts     Options
	sig      Signaler
	capture  Capture
	sessions Sessions
	recorder Recorder
	speaking <-chan bool

	state       *roomState
	localScreen *media.ScreenCapture
	shareSeq    uint64

	intents   chan Intent
	results   chan asyncResult
	snapshots chan Snapshot

	quit     chan struct{}
	quitOnce sync.Once
	wg       sync.WaitGroup
}

// New wires a reconciler. The speaking channel (local voice-activity
// transitions) may be nil when audio capture is disabled.
func New(sig Signaler, capture Capture, sessions Sessions, recorder Recorder, speaking <-chan bool, opts Options) *Reconciler {
	return &Reconciler{
		opts:      opts,
		sig:       sig,
		capture:   capture,
		sessions:  sessions,
		recorder:  recorder,
		speaking:  speaking,
		state:     newRoomState(opts.LocalID),
		intents:   make(chan Intent, 16),
		results:   make(chan asyncResult, 8),
		snapshots: make(chan Snapshot, 1),
		quit:      make(chan struct{}),
	}
}

// Connect opens the signaling channel and begins device capture, then
// starts the reconciler loop. Capture failure degrades the session rather
// than aborting it; only a signaling failure is fatal.
func (r *Reconciler) Connect() error {
	r.state.status = StatusConnecting
	r.state.localMuted = !r.opts.Constraints.AudioEnabled
	r.state.localCameraOff = !r.opts.Constraints.VideoEnabled
	r.state.participants[r.opts.LocalID] = struct{}{}
	r.publish()

	if err := r.sig.Connect(); err != nil {
		r.state.status = StatusIdle
		r.publish()
		return err
	}

	if err := r.capture.Acquire(r.opts.Constraints); err != nil {
		// Degrade: the session continues without local media and the UI
		// shows the placeholder state.
		slog.Warn("device capture failed, joining without local media", "err", err)
		r.state.localMuted = true
		r.state.localCameraOff = true
	}

	r.wg.Add(1)
	go r.run()
	return nil
}

// Dispatch enqueues a UI intent. Non-blocking: a full queue drops the
// intent, matching the at-most-once semantics of a button press during
// overload.
func (r *Reconciler) Dispatch(intent Intent) {
	select {
	case r.intents <- intent:
	default:
		slog.Warn("intent dropped", "kind", intent.Kind)
	}
}

// Snapshots returns the latest-wins view-model channel. It holds at most
// one pending snapshot; a slow consumer sees the newest state, never a
// backlog. Closed once the session reaches Idle.
func (r *Reconciler) Snapshots() <-chan Snapshot {
	return r.snapshots
}

// Disconnect tears the session down: all peer sessions closed, capture
// released, channel closed. Idempotent, and safe while negotiations are in
// flight (they are cancelled, not left as zombie sessions).
func (r *Reconciler) Disconnect() {
	r.quitOnce.Do(func() {
		close(r.quit)
	})
	r.wg.Wait()
}

func (r *Reconciler) run() {
	defer r.wg.Done()

	incoming := r.sig.Incoming()
	sessionEvents := r.sessions.Events()

	for {
		select {
		case <-r.quit:
			r.teardown()
			return

		case intent := <-r.intents:
			if leave := r.applyIntent(intent); leave {
				r.teardown()
				return
			}

		case msg, ok := <-incoming:
			if !ok {
				// Connection lost. Displayed status downgrades but
				// established peer media is kept until Disconnect;
				// reconnection is the caller's policy, not ours.
				incoming = nil
				r.state.connectionLost = true
				r.publish()
				continue
			}
			if leave := r.applySignaling(msg); leave {
				r.teardown()
				return
			}

		case ev := <-sessionEvents:
			r.applySession(ev)

		case speaking := <-r.speaking:
			r.applyLocalSpeaking(speaking)

		case res := <-r.results:
			r.applyResult(res)
		}
	}
}

func (r *Reconciler) teardown() {
	r.state.status = StatusLeaving
	r.publish()

	if r.localScreen != nil {
		r.sessions.DetachScreen()
		r.localScreen.Release()
		r.localScreen = nil
	}
	r.shareSeq++ // cancel any in-flight share acquisition

	r.sessions.CloseAll()
	r.capture.Release()
	r.sig.Close()

	r.state.status = StatusIdle
	r.publish()
	close(r.snapshots)
}

// applyIntent handles one named UI action. Returns true when the session
// should leave.
func (r *Reconciler) applyIntent(intent Intent) bool {
	s := r.state

	switch intent.Kind {
	case IntentEnd:
		if msg, err := signaling.NewMessage(signaling.MessageTypeEndCall, signaling.EndCallPayload{}); err == nil {
			msg.From = s.localID
			r.sig.SendMessage(msg)
		}
		return true

	case IntentSidebarToggle:
		s.sidebarOpen = !s.sidebarOpen

	case IntentPin:
		if s.pinned == intent.ParticipantID {
			s.pinned = ""
		} else {
			s.pinned = intent.ParticipantID
		}

	case IntentMute:
		if s.status != StatusJoined {
			return false
		}
		// Optimistic: local state flips immediately, the broadcast catches
		// remote views up asynchronously.
		s.localMuted = !s.localMuted
		r.capture.SetAudioEnabled(!s.localMuted)
		r.broadcastStatus()

	case IntentCamera:
		if s.status != StatusJoined {
			return false
		}
		s.localCameraOff = !s.localCameraOff
		r.capture.SetVideoEnabled(!s.localCameraOff)
		r.broadcastStatus()

	case IntentShareNone:
		r.startShare(media.ShareAudioNone)
	case IntentShareMic:
		r.startShare(media.ShareAudioMic)
	case IntentShareSystem:
		r.startShare(media.ShareAudioSystem)
	case IntentShareStop:
		r.stopShare()

	case IntentRecord:
		r.toggleRecording()

	case IntentSendChat:
		r.sendChat(intent.Text)

	default:
		// Unrecognized actions are ignored.
		return false
	}

	r.publish()
	return false
}

// startShare begins (or mode-switches) the local screen share. A switch is
// stop-then-start: the current capture is torn down before the new
// combination is acquired. The sequence number cancels a stale pending
// acquisition so a slow permission prompt cannot clobber a newer intent.
func (r *Reconciler) startShare(mode media.ShareAudioMode) {
	s := r.state
	if s.status != StatusJoined {
		return
	}

	if r.localScreen != nil {
		r.sessions.DetachScreen()
		r.localScreen.Release()
		r.localScreen = nil
	}

	r.shareSeq++
	seq := r.shareSeq

	// Optimistic: the slot is claimed immediately; a failed acquisition
	// rolls it back.
	s.sharingBy = s.localID
	s.shareMode = mode

	loopback := r.opts.LoopbackDevice
	go func() {
		screen, err := r.capture.AcquireScreen(mode, loopback)
		select {
		case r.results <- shareResult{seq: seq, screen: screen, err: err}:
		case <-r.quit:
			if screen != nil {
				screen.Release()
			}
		}
	}()
}

func (r *Reconciler) stopShare() {
	s := r.state
	r.shareSeq++ // cancels any pending acquisition

	if r.localScreen != nil {
		r.sessions.DetachScreen()
		r.localScreen.Release()
		r.localScreen = nil
	}
	if s.sharingBy == s.localID {
		s.sharingBy = ""
		s.shareMode = ""
	}
}

func (r *Reconciler) toggleRecording() {
	s := r.state
	if s.status != StatusJoined || s.isRecordingLoading {
		return
	}

	start := !s.isRecording
	s.isRecordingLoading = true
	roomID := r.opts.RoomID

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), recordingTimeout)
		defer cancel()

		var err error
		if start {
			err = r.recorder.Start(ctx, roomID)
		} else {
			err = r.recorder.Stop(ctx, roomID)
		}

		select {
		case r.results <- recordingResult{start: start, err: err}:
		case <-r.quit:
		}
	}()
}

func (r *Reconciler) sendChat(text string) {
	s := r.state
	if s.status != StatusJoined || text == "" {
		return
	}

	now := time.Now()
	// The server broadcasts chat to everyone except the sender, so the
	// local log appends immediately.
	s.chat = append(s.chat, ChatMessage{
		ID:        uuid.NewString(),
		SenderID:  s.localID,
		Text:      text,
		Timestamp: now,
	})

	msg, err := signaling.NewMessage(signaling.MessageTypeChatToServer, signaling.ChatPayload{
		From:      s.localID,
		Text:      text,
		Timestamp: now.Format(time.RFC3339),
	})
	if err != nil {
		return
	}
	msg.From = s.localID
	r.sig.SendMessage(msg)
}

// applySignaling decodes and applies one wire message. Malformed or unknown
// messages are dropped; they never crash the dispatcher. Returns true when
// the meeting ended.
func (r *Reconciler) applySignaling(msg *signaling.Message) bool {
	s := r.state

	ev, err := signaling.DecodeEvent(msg)
	if err != nil {
		slog.Debug("malformed signaling message dropped", "type", msg.Type, "err", err)
		return false
	}
	if ev == nil {
		slog.Debug("unknown signaling message ignored", "type", msg.Type)
		return false
	}

	switch ev := ev.(type) {
	case signaling.NegotiationEvent:
		// Opaque to the reconciler; no state change, no publish.
		r.sessions.HandleSignal(ev.From, ev.Payload)
		return false

	case signaling.InitialStateEvent:
		joined, left := s.replaceParticipants(ev.Participants)
		s.sharedContent = ev.SharedContent
		r.markJoined()
		r.reconcilePresence(joined, left)

	case signaling.PresenceEvent:
		joined, left := s.replaceParticipants(ev.Participants)
		r.markJoined()
		r.reconcilePresence(joined, left)

	case signaling.StatusEvent:
		// Last write wins on the whole entry; out-of-order broadcasts may
		// show a stale state until the next one arrives.
		if ev.ParticipantID != s.localID {
			s.peerStatus[ev.ParticipantID] = PeerStatus{
				IsMuted:     ev.IsMuted,
				IsCameraOff: ev.IsCameraOff,
			}
		}

	case signaling.SpeakingEvent:
		if ev.ParticipantID != s.localID {
			s.speakers[ev.ParticipantID] = ev.Speaking
		}

	case signaling.ChatEvent:
		s.chat = append(s.chat, ChatMessage{
			ID:        uuid.NewString(),
			SenderID:  ev.From,
			Text:      ev.Text,
			Timestamp: ev.Timestamp,
		})

	case signaling.ContentEvent:
		s.sharedContent = ev.Content

	case signaling.ProgressEvent:
		progress := ev.Progress
		s.progress = &progress

	case signaling.RecordingEvent:
		// Remote recording state; a pending local request keeps priority
		// until it resolves.
		if !s.isRecordingLoading {
			s.isRecording = ev.IsRecording
			s.recordingBy = ev.By
		}

	case signaling.EndCallEvent:
		s.endReason = ev.Reason
		return true
	}

	r.publish()
	return false
}

// markJoined completes the Connecting phase on the first room snapshot and
// announces the local status.
func (r *Reconciler) markJoined() {
	if r.state.status != StatusConnecting {
		return
	}
	r.state.status = StatusJoined
	r.broadcastStatus()
}

// reconcilePresence creates sessions for newcomers and closes sessions of
// departed peers. Presence and media remain independently tracked: a new
// peer has no stream until its negotiation completes.
func (r *Reconciler) reconcilePresence(joined, left []string) {
	for _, id := range left {
		r.sessions.CloseSession(id)
		r.state.dropPeer(id)
	}
	for _, id := range joined {
		if err := r.sessions.EnsureSession(id); err != nil {
			slog.Warn("create peer session", "peer", id, "err", err)
		}
	}
}

func (r *Reconciler) applySession(ev session.Event) {
	s := r.state

	switch ev := ev.(type) {
	case session.TrackEvent:
		if ev.Screen {
			r.applyScreenTrack(ev)
		} else {
			stream := s.remoteStream[ev.PeerID]
			if stream == nil {
				stream = &RemoteStream{}
				s.remoteStream[ev.PeerID] = stream
			}
			if ev.Track.Kind() == pion.RTPCodecTypeAudio {
				stream.Audio = ev.Track
			} else {
				stream.Video = ev.Track
			}
		}

	case session.PeerConnectedEvent:
		slog.Debug("peer media connected", "peer", ev.PeerID)
		return

	case session.PeerUnreachableEvent:
		// Media failed, participant did not leave: streams go, presence
		// stays until an explicit presence update removes it.
		r.sessions.CloseSession(ev.PeerID)
		s.dropPeerMedia(ev.PeerID)

	case session.SpeakingPulseEvent:
		s.speakers[ev.PeerID] = ev.Speaking
	}

	r.publish()
}

// applyScreenTrack gives the arriving share the exclusive slot. A remote
// share pre-empts a local one (last share wins; the previous owner is
// cleared first, never both at once).
func (r *Reconciler) applyScreenTrack(ev session.TrackEvent) {
	s := r.state

	stream := s.remoteScreen[ev.PeerID]
	if stream == nil {
		stream = &RemoteStream{}
		s.remoteScreen[ev.PeerID] = stream
	}
	if ev.Track.Kind() == pion.RTPCodecTypeAudio {
		stream.Audio = ev.Track
	} else {
		stream.Video = ev.Track
	}

	if s.sharingBy != ev.PeerID {
		if s.sharingBy == s.localID && r.localScreen != nil {
			r.shareSeq++
			r.sessions.DetachScreen()
			r.localScreen.Release()
			r.localScreen = nil
		}
		s.sharingBy = ev.PeerID
		s.shareMode = ""
	}
}

func (r *Reconciler) applyLocalSpeaking(speaking bool) {
	s := r.state
	if s.status != StatusJoined {
		return
	}

	s.speakers[s.localID] = speaking

	if msg, err := signaling.NewMessage(signaling.MessageTypeSpeakingUpdate, signaling.SpeakingPayload{
		ParticipantID: s.localID,
		Speaking:      speaking,
	}); err == nil {
		msg.From = s.localID
		r.sig.SendMessage(msg)
	}
	r.sessions.BroadcastSpeaking(speaking)

	r.publish()
}

func (r *Reconciler) applyResult(res asyncResult) {
	s := r.state

	switch res := res.(type) {
	case recordingResult:
		s.isRecordingLoading = false
		if res.err != nil {
			// Transient: the flag reverts, the session is unaffected.
			s.lastError = res.err.Error()
			slog.Warn("recording request failed", "start", res.start, "err", res.err)
		} else {
			s.isRecording = res.start
			if res.start {
				s.recordingBy = s.localID
			} else {
				s.recordingBy = ""
			}
			r.broadcastRecording()
		}

	case shareResult:
		if res.seq != r.shareSeq || s.sharingBy != s.localID {
			// A newer intent superseded this acquisition; drop it.
			if res.screen != nil {
				res.screen.Release()
			}
			return
		}
		if res.err != nil {
			s.sharingBy = ""
			s.shareMode = ""
			s.lastError = res.err.Error()
			slog.Warn("screen share failed", "err", res.err)
			break
		}
		r.localScreen = res.screen
		if err := r.sessions.AttachScreen(res.screen); err != nil {
			slog.Warn("attach screen share", "err", err)
		}
	}

	r.publish()
}

func (r *Reconciler) broadcastStatus() {
	s := r.state
	msg, err := signaling.NewMessage(signaling.MessageTypeStatusUpdate, signaling.StatusPayload{
		ParticipantID: s.localID,
		IsMuted:       s.localMuted,
		IsCameraOff:   s.localCameraOff,
	})
	if err != nil {
		return
	}
	msg.From = s.localID
	r.sig.SendMessage(msg)
}

func (r *Reconciler) broadcastRecording() {
	s := r.state
	msg, err := signaling.NewMessage(signaling.MessageTypeRecordingUpdate, signaling.RecordingPayload{
		IsRecording: s.isRecording,
		By:          s.recordingBy,
	})
	if err != nil {
		return
	}
	msg.From = s.localID
	r.sig.SendMessage(msg)
}

// publish replaces the pending snapshot with the current state: the
// consumer always reads the newest view, never a backlog.
func (r *Reconciler) publish() {
	snap := r.state.snapshot()
	for {
		select {
		case r.snapshots <- snap:
			return
		default:
			select {
			case <-r.snapshots:
			default:
			}
		}
	}
}
