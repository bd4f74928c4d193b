package room

// IntentKind enumerates the named actions UI surfaces may dispatch. The
// reconciler ignores anything outside this set.
type IntentKind string

const (
	IntentMute          IntentKind = "mute"
	IntentCamera        IntentKind = "camera"
	IntentShareNone     IntentKind = "share-none"
	IntentShareMic      IntentKind = "share-mic"
	IntentShareSystem   IntentKind = "share-system"
	IntentShareStop     IntentKind = "share-stop"
	IntentRecord        IntentKind = "record"
	IntentEnd           IntentKind = "end"
	IntentSidebarToggle IntentKind = "sidebar-toggle"
	IntentSendChat      IntentKind = "send-chat"
	IntentPin           IntentKind = "pin"
)

// Intent is one UI action. Text is set for send-chat, ParticipantID for
// pin; both are ignored otherwise.
type Intent struct {
	Kind          IntentKind
	Text          string
	ParticipantID string
}
