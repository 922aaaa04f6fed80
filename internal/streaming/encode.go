package streaming

import (
	"bytes"
	"encoding/json"
)

// heartbeatLine is the exact wire text of a heartbeat comment, per spec §6:
// "comment lines (`: heartbeat`) and carry no `type`."
const heartbeatLine = ": heartbeat\n\n"

// Encode renders one Frame as the SSE-shaped wire text spec §6 describes:
// a JSON object prefixed `data: ` and terminated `\n\n` for data frames, or
// the heartbeat comment line for heartbeats.
func Encode(f Frame) ([]byte, error) {
	if f.IsHeartbeat() {
		return []byte(heartbeatLine), nil
	}
	body, err := json.Marshal(f.Event)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteString("data: ")
	buf.Write(body)
	buf.WriteString("\n\n")
	return buf.Bytes(), nil
}

// EncodeAll drains frames from ch, encoding each via Encode, until ch
// closes. A transport adapter typically ranges over Frames() itself to
// write incrementally; EncodeAll is a convenience for tests and batch
// consumers that want the full rendered text.
func EncodeAll(frames <-chan Frame) ([]byte, error) {
	var buf bytes.Buffer
	for f := range frames {
		b, err := Encode(f)
		if err != nil {
			return nil, err
		}
		buf.Write(b)
	}
	return buf.Bytes(), nil
}
