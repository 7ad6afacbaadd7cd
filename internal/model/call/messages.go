package call

// demoMessages is what the simulated contact says during a call.
var demoMessages = []string{
	"Hi there! How can I help you today?",
	"I understand. Could you tell me more about your needs?",
	"That's interesting. Let me check what options we have.",
	"I think we can definitely assist with that.",
	"Let me know if you have any other questions.",
	"Is there anything else you'd like to discuss?",
}

// widgetMessageCount limits the landing-page widget to lines the avatar can sign.
const widgetMessageCount = 4

// Sequence returns a copy of the predetermined messages for a context.
func Sequence(ctx Context) []string {
	n := len(demoMessages)
	if ctx == ContextWidget {
		n = widgetMessageCount
	}
	return append([]string(nil), demoMessages[:n]...)
}
