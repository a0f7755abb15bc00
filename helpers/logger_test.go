package helpers

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogger(t *testing.T) {
	// the directory does not exist yet
	tmpFile := filepath.Join(t.TempDir(), "nested", "error.log")

	l := NewLogger(tmpFile)

	root := errors.New("net::ERR_CONNECTION_RESET")
	l.LogError("workflow", fmt.Errorf("navigate to listing: %w", root))

	data, err := os.ReadFile(tmpFile)
	assert.NoError(t, err)
	assert.Contains(t, string(data), "[workflow]")
	assert.Contains(t, string(data), "navigate to listing: net::ERR_CONNECTION_RESET")
	assert.Contains(t, string(data), "caused by: *errors.errorString: net::ERR_CONNECTION_RESET")

	// a second failure is appended
	l.LogError("workflow", errors.New("second failure"))
	data, err = os.ReadFile(tmpFile)
	assert.NoError(t, err)
	assert.Contains(t, string(data), "navigate to listing")
	assert.Contains(t, string(data), "second failure")

	// nil errors are ignored
	l.LogError("workflow", nil)

	l.LogInfo("Test info message: %s", "hello")
}
