package protocol

// Limits on inbound frames.
const (
	// MaxMessageSize is the largest frame Decode accepts. The server also
	// sets it as the connection read limit.
	MaxMessageSize = 16 * 1024

	// MaxPathLength bounds every path field.
	MaxPathLength = 2048

	// MaxParams bounds the params of a navigate request.
	MaxParams = 64
)
