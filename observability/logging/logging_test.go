package logging

import (
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	require.Equal(t, slog.LevelWarn, ParseLevel(" warning "))
	require.Equal(t, slog.LevelError, ParseLevel("error"))
	require.Equal(t, slog.LevelInfo, ParseLevel(""))
}

func TestMaskField(t *testing.T) {
	require.Equal(t, "stake", MaskField("operation", "stake").Value.String())
	require.Equal(t, RedactedValue, MaskField("remote", "10.0.0.1:5555").Value.String())
	require.Equal(t, "", MaskField("remote", "").Value.String())
	require.Equal(t, "7", MaskField("Seq", "7").Value.String())
}

func TestMaskRemoteKeepsNetworkOnly(t *testing.T) {
	require.Equal(t, "10.1.2.0/24", MaskRemote("remote", "10.1.2.3:5555").Value.String())
	require.Equal(t, "192.168.7.0/24", MaskRemote("remote", "192.168.7.9").Value.String())
	require.Equal(t, "2001:db8:1::/48", MaskRemote("remote", "[2001:db8:1:2::5]:443").Value.String())
	require.Equal(t, "10.1.2.0/24", MaskRemote("remote", "[::ffff:10.1.2.3]:80").Value.String())
	require.Equal(t, RedactedValue, MaskRemote("remote", "pipe").Value.String())
}

func TestSetupWithFileWritesRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "portald.log")
	logger, closer := SetupWithFile("portald", "test", "debug", FileOptions{Path: path, MaxSizeMB: 1})
	logger.Debug("hello")
	require.NoError(t, closer.Close())
	require.FileExists(t, path)
}
