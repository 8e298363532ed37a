package watchdog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unklstewy/flightportal/internal/logging"
)

func TestNoopCountsFeeds(t *testing.T) {
	var w Noop
	w.Feed()
	w.Feed()
	assert.EqualValues(t, 2, w.Feeds())
	assert.NoError(t, w.Close())
}

func TestDeviceFeedAndClose(t *testing.T) {
	// A regular file stands in for the character device
	path := filepath.Join(t.TempDir(), "watchdog")
	require.NoError(t, os.WriteFile(path, nil, 0600))

	d, err := Open(path, logging.Discard())
	require.NoError(t, err)

	d.Feed()
	d.Feed()
	require.NoError(t, d.Close())

	// Feeding after close is ignored
	d.Feed()
	require.NoError(t, d.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 'V'}, data)
}

func TestOpenMissingDevice(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "absent"), nil)
	assert.Error(t, err)
}

func TestImplementsWatchdog(t *testing.T) {
	var _ Watchdog = (*Noop)(nil)
	var _ Watchdog = (*Device)(nil)
}
