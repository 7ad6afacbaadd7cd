package call

// HistoryEntry is a contact the user has joined a call with.
type HistoryEntry struct {
	ContactName string `json:"contactName"`
}

// CustomSign is a user-defined gesture shown on the dashboard.
type CustomSign struct {
	Gesture string `json:"gesture"`
	Meaning string `json:"meaning"`
}

// SeedCustomSigns lists the gestures every dashboard starts with.
func SeedCustomSigns() []CustomSign {
	return []CustomSign{
		{Gesture: "👌", Meaning: "I understand"},
		{Gesture: "👍", Meaning: "Yes, that's correct"},
		{Gesture: "✌️", Meaning: "Peace, I'm friendly"},
	}
}
