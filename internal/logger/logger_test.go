package logger

import (
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestPrepareLogger(t *testing.T) {
	t.Cleanup(func() { log.SetLevel(log.WarnLevel) })

	require.NoError(t, PrepareLogger(Config{Level: "DEBUG"}))
	require.Equal(t, log.DebugLevel, log.GetLevel())

	require.NoError(t, PrepareLogger(Config{Level: "error", Format: "json"}))
	require.Equal(t, log.ErrorLevel, log.GetLevel())

	require.Error(t, PrepareLogger(Config{Level: "LOUD"}))
	require.Error(t, PrepareLogger(Config{Level: "info", Format: "xml"}))
}
