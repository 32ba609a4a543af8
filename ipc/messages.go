package ipc

// Envelope types. Input and line arrive from the peer; send and info are
// written back.
const (
	TypeInput = "input" // typed by the user
	TypeLine  = "line"  // received from the game server
	TypeSend  = "send"  // outbound command
	TypeInfo  = "info"  // client-local output, never sent to the server
)

const (
	InputPrefix = "> "
	InfoPrefix  = "# "
)
