// internal/engine/envelope.go
package engine

import "encoding/json"

// Envelope wraps one cached or freshly fetched response: the payload, the
// upstream response metadata (rate-limit counters, etag) and the accounting
// cost consumed producing it. Headers and cost are merged in place only
// during the pipeline's own merge step; an envelope handed to a caller is
// never mutated afterwards.
type Envelope struct {
	Data    interface{}       `json:"data"`
	Headers map[string]string `json:"headers,omitempty"`
	Cost    float64           `json:"cost,omitempty"`
}

// MergeHeaders accumulates response metadata. Later values win per key.
func (e *Envelope) MergeHeaders(headers map[string]string) {
	if len(headers) == 0 {
		return
	}
	if e.Headers == nil {
		e.Headers = make(map[string]string, len(headers))
	}
	for k, v := range headers {
		e.Headers[k] = v
	}
}

// AddCost accumulates accounting cost.
func (e *Envelope) AddCost(cost float64) {
	e.Cost += cost
}

func encodeEnvelope(e *Envelope) ([]byte, error) {
	return json.Marshal(e)
}

func decodeEnvelope(raw []byte) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// envelopeShapeKeys are the only keys an envelope-shaped map may carry.
var envelopeShapeKeys = map[string]bool{
	"data":    true,
	"headers": true,
	"cost":    true,
}

// asNestedEnvelope detects the contract violation of an envelope nested
// inside another envelope's data field: a map carrying a data key and
// nothing beyond envelope fields. Data is never wrapped more than one level,
// so an adapter handing us this shape made a mistake.
func asNestedEnvelope(v interface{}) (interface{}, bool) {
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, false
	}
	if _, hasData := m["data"]; !hasData {
		return nil, false
	}
	for k := range m {
		if !envelopeShapeKeys[k] {
			return nil, false
		}
	}
	return m["data"], true
}
