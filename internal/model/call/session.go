package call

import "time"

// Context distinguishes the embedded demo widget from the full call page.
type Context string

const (
	ContextWidget Context = "widget"
	ContextPage   Context = "page"
)

// DefaultContactName is used when a call is started without a contact.
const DefaultContactName = "John"

// ParseContext validates a context coming from a client; empty means page.
func ParseContext(raw string) (Context, bool) {
	switch Context(raw) {
	case "":
		return ContextPage, true
	case ContextWidget, ContextPage:
		return Context(raw), true
	default:
		return "", false
	}
}

// Session captures a simulated video call in a room.
type Session struct {
	RoomID           string    `json:"roomId"`
	ContactName      string    `json:"contactName"`
	Context          Context   `json:"context"`
	Active           bool      `json:"active"`
	MicEnabled       bool      `json:"micEnabled"`
	VideoEnabled     bool      `json:"videoEnabled"`
	DeviceActive     bool      `json:"deviceActive"`
	NeedsDevice      bool      `json:"needsDevice"`
	Transcript       []string  `json:"transcript"`
	NextMessageIndex int       `json:"nextMessageIndex"`
	AssetRef         string    `json:"assetRef"`
	Notice           string    `json:"notice,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
}

// Event types pushed to call subscribers.
const (
	EventState   = "state"
	EventMessage = "message"
	EventEnded   = "ended"
)

// Event is pushed to call subscribers.
type Event struct {
	Type    string  `json:"type"`
	Session Session `json:"session"`
	Message string  `json:"message,omitempty"`
}
