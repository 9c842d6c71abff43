package browser

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManagerDefaults(t *testing.T) {
	m := NewManager()

	assert.True(t, m.headless)
	assert.Equal(t, DefaultTimeout, m.timeout)
	assert.Equal(t, io.Discard, m.driverOut)
	assert.False(t, m.HasSession())
}

func TestWithDriverOutputRoutesDriverLogs(t *testing.T) {
	var buf bytes.Buffer
	m := NewManager(WithDriverOutput(&buf))

	assert.Same(t, &buf, m.driverOut)
}

func TestWithDriverOutputNilKeepsDiscard(t *testing.T) {
	m := NewManager(WithDriverOutput(nil))
	assert.Equal(t, io.Discard, m.driverOut)
}

func TestWithOperationTimeoutIgnoresNonPositive(t *testing.T) {
	m := NewManager(WithOperationTimeout(-5))
	assert.Equal(t, DefaultTimeout, m.timeout)
}

func TestActiveSessionRequiresInitialize(t *testing.T) {
	m := NewManager()

	_, err := m.ActiveSession()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not initialized")
}

func TestCloseSessionWithoutSession(t *testing.T) {
	m := NewManager()
	assert.NoError(t, m.CloseSession())
}

func TestDebugLogInitialized(t *testing.T) {
	require.NotNil(t, debugLog)
	assert.NotEmpty(t, debugLog.SessionID())
}
