package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// RawStreamMessage is one inbound frame from the market data hub after
// envelope extraction, before channel-specific decoding.
type RawStreamMessage struct {
	Channel   ChannelID
	Timestamp time.Time
	Content   []byte
}

// StreamEnvelope is the tagged wire envelope delivered by the hub. Content is
// usually a JSON-encoded string carrying the channel-specific payload, but
// some gateway versions deliver it as a nested object.
type StreamEnvelope struct {
	DataType string          `json:"DataType"`
	Content  json.RawMessage `json:"Content"`
}

// ParseEnvelope extracts the channel tag and the nested payload bytes from an
// inbound frame.
func ParseEnvelope(frame []byte) (ChannelID, []byte, error) {
	var env StreamEnvelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return "", nil, fmt.Errorf("decode envelope: %w", err)
	}
	if env.DataType == "" {
		return "", nil, fmt.Errorf("envelope missing DataType tag")
	}
	content := []byte(env.Content)
	// unwrap string-encoded payloads
	if len(content) > 0 && content[0] == '"' {
		var inner string
		if err := json.Unmarshal(content, &inner); err != nil {
			return "", nil, fmt.Errorf("decode envelope content: %w", err)
		}
		content = []byte(inner)
	}
	return ChannelID(env.DataType), content, nil
}

// OrderNotification is one event from the trading notification hub: an order
// state transition or an account event for one account, sequenced by
// NotifyID. The gateway replays events after the last acknowledged id, so
// consumers track the highest id they have seen.
type OrderNotification struct {
	NotifyID int64           `json:"notifyId"`
	Type     string          `json:"type"`
	Data     json.RawMessage `json:"data"`
}
