package irisfast

// Message is one chat event pushed by Iris over the WebSocket.
type Message struct {
	Msg    string       `json:"msg"`
	Room   string       `json:"room"`
	Sender *string      `json:"sender,omitempty"`
	JSON   *MessageJSON `json:"json,omitempty"`
}

// MessageJSON is the raw KakaoTalk record attached to a Message.
type MessageJSON struct {
	UserID string `json:"user_id"`
	ChatID string `json:"chat_id,omitempty"`
}

// UserID prefers the numeric KakaoTalk id and falls back to the sender name.
func (m *Message) UserID() string {
	if m.JSON != nil && m.JSON.UserID != "" {
		return m.JSON.UserID
	}
	return m.SenderName()
}

func (m *Message) SenderName() string {
	if m.Sender == nil {
		return ""
	}
	return *m.Sender
}

// ReplyRequest is the body of POST /reply and of WS reply frames.
type ReplyRequest struct {
	Type string `json:"type"`
	Room string `json:"room"`
	Data string `json:"data"`
}

// Config is the subset of GET /config the health check reports.
type Config struct {
	Port              int    `json:"port"`
	PollingSpeed      int    `json:"polling_speed"`
	MessageRate       int    `json:"message_rate"`
	WebserverEndpoint string `json:"web_server_endpoint"`
}

type WebSocketState string

const (
	WSStateDisconnected WebSocketState = "disconnected"
	WSStateConnecting   WebSocketState = "connecting"
	WSStateConnected    WebSocketState = "connected"
	WSStateReconnecting WebSocketState = "reconnecting"
	WSStateFailed       WebSocketState = "failed"
)
