package types

// ToolSpec declares one catalog action advertised to the model: a name, a
// human-readable description, and a JSON-schema parameter object. The set of
// specs is the complete tool contract the model sees and must match the
// executor's dispatch table one to one.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]any
}
