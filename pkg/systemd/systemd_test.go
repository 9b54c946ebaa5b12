package systemd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifyWithoutSocketIsNoop(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", "")

	for _, fn := range []func() (bool, error){Ready, Stopping, Reloading, func() (bool, error) { return Status("idle") }} {
		sent, err := fn()
		require.NoError(t, err)
		assert.False(t, sent)
	}
}
