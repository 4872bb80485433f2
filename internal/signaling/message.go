package signaling

// messageType identifies the kind of signaling message.
type messageType string

const (
	msgTypeHandshake messageType = "handshake"
	msgTypeOffer     messageType = "offer"
	msgTypeAnswer    messageType = "answer"
	msgTypeCandidate messageType = "candidate"
)

// message is the JSON structure exchanged over the WebSocket during signaling.
type message struct {
	Type messageType `json:"type"`

	// handshake
	Raw   string `json:"raw,omitempty"` // hex canonical handshake JSON
	Sig   string `json:"sig,omitempty"` // hex BRC-77 signature over Raw
	Mode  string `json:"mode,omitempty"`
	Suite string `json:"suite,omitempty"`

	// offer / answer / candidate
	SDP       string `json:"sdp,omitempty"`
	Candidate string `json:"candidate,omitempty"` // JSON-encoded ICECandidateInit
}
