package service

import "encoding/json"

// canonicalJSON serializes v deterministically: map keys are emitted in
// lexicographic order, so equal inputs always produce byte-equal
// output. Request payloads are built as maps for exactly this reason.
func canonicalJSON(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// combineRequestJSON bundles the compression and evaluation request
// records under stable keys. Either part may be empty when the
// corresponding call never completed; it is recorded as null.
func combineRequestJSON(compressionJSON, evaluationJSON string) (string, error) {
	doc := map[string]interface{}{
		"compression": rawOrNull(compressionJSON),
		"evaluation":  rawOrNull(evaluationJSON),
	}
	return canonicalJSON(doc)
}

func rawOrNull(s string) json.RawMessage {
	if s == "" {
		return json.RawMessage("null")
	}
	return json.RawMessage(s)
}
