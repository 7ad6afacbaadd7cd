package flow

import "time"

// State is the lifecycle position of a demo flow.
type State string

const (
	StateIdle            State = "idle"
	StateDeviceRequested State = "device_requested"
	StateRecording       State = "recording"
	StateProcessing      State = "processing"
	StateResult          State = "result"
)

// Kind names an independent demo flow.
type Kind string

const (
	KindSignToText Kind = "sign-to-text"
	KindTextToSign Kind = "text-to-sign"
	KindVoice      Kind = "voice"
)

// Device is the capture device a flow needs before it can record.
type Device string

const (
	DeviceNone       Device = ""
	DeviceCamera     Device = "camera"
	DeviceMicrophone Device = "microphone"
)

// ParseKind validates a kind coming from a client.
func ParseKind(raw string) (Kind, bool) {
	switch Kind(raw) {
	case KindSignToText, KindTextToSign, KindVoice:
		return Kind(raw), true
	default:
		return "", false
	}
}

// Device reports which capture device the kind requires.
func (k Kind) Device() Device {
	switch k {
	case KindSignToText:
		return DeviceCamera
	case KindVoice:
		return DeviceMicrophone
	default:
		return DeviceNone
	}
}

// TranslationResult is produced when processing completes.
type TranslationResult struct {
	Text          string  `json:"text"`
	Confidence    float64 `json:"confidence"`
	LanguageLabel string  `json:"languageLabel"`
}

// Notification is a user-facing message, e.g. a permission error.
type Notification struct {
	Level     string    `json:"level"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// Snapshot is a point-in-time copy of a flow.
type Snapshot struct {
	ID            string             `json:"id"`
	Kind          Kind               `json:"kind"`
	State         State              `json:"state"`
	Device        Device             `json:"device,omitempty"`
	DeviceActive  bool               `json:"deviceActive"`
	Input         string             `json:"input,omitempty"`
	Result        *TranslationResult `json:"result,omitempty"`
	AssetRef      string             `json:"assetRef"`
	Notifications []Notification     `json:"notifications,omitempty"`
	UpdatedAt     time.Time          `json:"updatedAt"`
}

// Event types pushed to flow subscribers.
const (
	EventState  = "state"
	EventSpeak  = "speak"
	EventClosed = "closed"
)

// Event is pushed to subscribers on every transition and on speak requests.
// EventClosed is the last event a subscriber receives.
type Event struct {
	Type     string   `json:"type"`
	Snapshot Snapshot `json:"snapshot"`
	Speech   string   `json:"speech,omitempty"`
}
