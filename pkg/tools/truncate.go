package tools

import "fmt"

// MaxOutputSize caps the output of any single action result, in characters.
const MaxOutputSize = 50000

// truncationMarker is appended when output exceeds the cap. It reports the
// original length so the model knows content was dropped.
const truncationMarker = "\n\n[Output truncated: %d total characters]"

// Truncate caps output at max characters, appending a marker carrying the
// original length. Truncating output already under the cap is a no-op, so
// the operation is idempotent for capped-and-under-limit strings.
func Truncate(output string, max int) string {
	if len(output) <= max {
		return output
	}
	return output[:max] + fmt.Sprintf(truncationMarker, len(output))
}

// TruncateDefault caps output at MaxOutputSize.
func TruncateDefault(output string) string {
	return Truncate(output, MaxOutputSize)
}
