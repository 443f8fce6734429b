package browser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVideoRecorder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "videos", "v.mjpeg")
	r, err := newVideoRecorder(path)
	require.NoError(t, err)

	require.NoError(t, r.writeFrame([]byte{0xff, 0xd8, 0x01, 0xff, 0xd9}))
	require.NoError(t, r.writeFrame(nil))
	require.NoError(t, r.writeFrame([]byte{0xff, 0xd8, 0x02, 0xff, 0xd9}))
	assert.Equal(t, 2, r.frameCount())

	require.NoError(t, r.finalize())
	require.NoError(t, r.finalize(), "finalize is idempotent")

	require.NoError(t, r.writeFrame([]byte{0xff}), "late frames are dropped")
	assert.Equal(t, 2, r.frameCount())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xd8, 0x01, 0xff, 0xd9, 0xff, 0xd8, 0x02, 0xff, 0xd9}, data)
}
