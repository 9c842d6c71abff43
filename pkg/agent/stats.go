package agent

// SessionStats tracks token usage for one controller instance. Lifetime
// counters accumulate across tasks; task counters reset when a new task
// begins. All access happens on the controller's task goroutine.
type SessionStats struct {
	LifetimePromptTokens     int
	LifetimeCompletionTokens int
	TaskPromptTokens         int
	TaskCompletionTokens     int
}

// AddUsage folds one usage report into both the lifetime and per-task
// counters.
func (s *SessionStats) AddUsage(promptTokens, completionTokens int) {
	s.LifetimePromptTokens += promptTokens
	s.LifetimeCompletionTokens += completionTokens
	s.TaskPromptTokens += promptTokens
	s.TaskCompletionTokens += completionTokens
}

// BeginTask resets the per-task counters.
func (s *SessionStats) BeginTask() {
	s.TaskPromptTokens = 0
	s.TaskCompletionTokens = 0
}

// Reset clears all counters.
func (s *SessionStats) Reset() {
	*s = SessionStats{}
}

// LifetimeTotal returns prompt plus completion tokens across all tasks.
func (s *SessionStats) LifetimeTotal() int {
	return s.LifetimePromptTokens + s.LifetimeCompletionTokens
}
