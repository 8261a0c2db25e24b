// Package capture provides microphone capture devices for the recorder: a
// synthetic tone device, a device that drives an external recorder command, and
// a client for a capture daemon speaking NDJSON over a Unix socket.
package capture

// Daemon error codes carried in Response.Code.
const (
	CodePermissionDenied = "permission_denied"
	CodeNoDevice         = "no_device"
)

// Command is sent from the client to the capture daemon.
type Command struct {
	Cmd        string   `json:"cmd"`
	Format     string   `json:"format,omitempty"`
	SampleRate int      `json:"sampleRate,omitempty"`
	SessionID  string   `json:"sessionId,omitempty"`
	Events     []string `json:"events,omitempty"`
}

// Response is returned by the daemon after processing a command.
type Response struct {
	OK        bool   `json:"ok"`
	SessionID string `json:"sessionId,omitempty"`
	Recording *bool  `json:"recording,omitempty"`
	Path      string `json:"path,omitempty"`
	Error     string `json:"error,omitempty"`
	Code      string `json:"code,omitempty"`
}

// Event is streamed from the daemon to subscribed clients.
type Event struct {
	Event     string   `json:"event"`
	SessionID string   `json:"sessionId,omitempty"`
	Message   string   `json:"message,omitempty"`
	Level     *float32 `json:"level,omitempty"`
}
