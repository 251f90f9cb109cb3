package mcpserver

import (
	"encoding/json"

	"github.com/Nijal-AI/brest-mcp-server/internal/domain"
)

// ChangeNotificationMethod is the JSON-RPC method of change event notifications.
const ChangeNotificationMethod = "notifications/feed/changed"

type notification struct {
	JSONRPC string             `json:"jsonrpc"`
	Method  string             `json:"method"`
	Params  domain.ChangeEvent `json:"params"`
}

// EncodeChangeNotification renders ev as the frame pushed on session streams.
// The hub encodes each event once and shares the bytes with every subscriber.
func EncodeChangeNotification(ev domain.ChangeEvent) ([]byte, error) {
	return json.Marshal(notification{JSONRPC: "2.0", Method: ChangeNotificationMethod, Params: ev})
}
