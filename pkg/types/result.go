package types

import "encoding/json"

// ActionResult is the normalized outcome of executing one tool call against
// the browser backend. It is produced once per call and never mutated after
// being serialized into a tool-result message; history compaction may later
// replace the stored message content with a shorter summary.
type ActionResult struct {
	// OK reports whether the action succeeded.
	OK bool `json:"ok"`

	// Output is the textual result, already capped to the configured
	// maximum size with a truncation marker when exceeded.
	Output string `json:"output"`

	// Metadata carries optional structured extras, e.g. element refs
	// discovered by a snapshot.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Failure creates a failed ActionResult carrying the given message.
func Failure(msg string) *ActionResult {
	return &ActionResult{OK: false, Output: msg}
}

// Success creates a successful ActionResult with the given output.
func Success(output string) *ActionResult {
	return &ActionResult{OK: true, Output: output}
}

// JSON renders the result as the JSON payload fed back to the model.
// Marshaling a result can only fail on unserializable metadata; in that
// case the metadata is dropped rather than losing the output.
func (r *ActionResult) JSON() string {
	b, err := json.Marshal(r)
	if err != nil {
		b, _ = json.Marshal(&ActionResult{OK: r.OK, Output: r.Output})
	}
	return string(b)
}
