package relay

import (
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Event names on the wire.
const (
	EventJoin           = "join_exchange"
	EventLeave          = "leave_exchange"
	EventSend           = "send_message"
	EventReceive        = "receive_message"
	EventExchangeStatus = "exchange_status"
	EventError          = "error"
)

// Envelope is one WebSocket frame: an event name and its payload.
type Envelope struct {
	Event string              `json:"event"`
	Data  jsoniter.RawMessage `json:"data,omitempty"`
}

// Encode marshals an event with its payload into a frame.
func Encode(event string, data interface{}) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}

// Decode parses a frame.
func Decode(frame []byte) (Envelope, error) {
	var env Envelope
	err := json.Unmarshal(frame, &env)
	return env, err
}

// roomID accepts the join payload either as a bare string or as
// {"exchangeId": "..."}.
func roomID(data jsoniter.RawMessage) string {
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		return id
	}
	var obj struct {
		ExchangeID string `json:"exchangeId"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		return obj.ExchangeID
	}
	return ""
}
