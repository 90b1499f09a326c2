//go:build unix

package link

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockDevice_Exclusive(t *testing.T) {
	name := filepath.Join(t.TempDir(), "ttyFAKE")
	require.NoError(t, os.WriteFile(name, nil, 0o600))

	first, err := lockDevice(name)
	require.NoError(t, err)

	_, err = lockDevice(name)
	require.ErrorIs(t, err, ErrPortLocked)

	first.release()
	first.release()

	second, err := lockDevice(name)
	require.NoError(t, err)
	second.release()
	assert.Nil(t, second.f)
}
