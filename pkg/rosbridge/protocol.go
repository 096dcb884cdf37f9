package rosbridge

import "encoding/json"

// Operation names from the rosbridge v2 protocol.
const (
	OpSubscribe   = "subscribe"
	OpUnsubscribe = "unsubscribe"
	OpPublish     = "publish"
	OpStatus      = "status"
)

// Status levels sent by the server in status operations.
const (
	StatusError   = "error"
	StatusWarning = "warning"
	StatusInfo    = "info"
	StatusNone    = "none"
)

// envelope is the part common to every operation. Msg is kept raw because
// its shape depends on Op: a ROS message for publish, a string for status.
type envelope struct {
	Op    string          `json:"op"`
	ID    string          `json:"id,omitempty"`
	Topic string          `json:"topic,omitempty"`
	Level string          `json:"level,omitempty"`
	Msg   json.RawMessage `json:"msg,omitempty"`
}

type subscribeOp struct {
	Op           string `json:"op"`
	ID           string `json:"id"`
	Topic        string `json:"topic"`
	Type         string `json:"type,omitempty"`
	QueueLength  int    `json:"queue_length,omitempty"`
	ThrottleRate int    `json:"throttle_rate,omitempty"`
}

type unsubscribeOp struct {
	Op    string `json:"op"`
	ID    string `json:"id"`
	Topic string `json:"topic"`
}

// statusText extracts a status message, which servers send as a string.
func statusText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
