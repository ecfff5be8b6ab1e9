package logging

import (
	"context"
	"runtime/pprof"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestDoAnnotate(t *testing.T) {
	DoAnnotate(context.Background(), func(ctx context.Context) {
		value, ok := pprof.Label(ctx, "mailbox")
		require.True(t, ok)
		require.Equal(t, "INBOX", value)

		fn, ok := pprof.Label(ctx, "fn")
		require.True(t, ok)
		require.Contains(t, fn, "TestDoAnnotate")
	}, Labels{"mailbox": "INBOX"})
}

func TestSetLevel(t *testing.T) {
	prev := logrus.GetLevel()
	defer logrus.SetLevel(prev)

	require.NoError(t, SetLevel("debug"))
	require.Equal(t, logrus.DebugLevel, logrus.GetLevel())

	require.Error(t, SetLevel("loud"))
}

func TestWithMailbox(t *testing.T) {
	entry := WithMailbox("/var/mail/INBOX")
	require.Equal(t, "/var/mail/INBOX", entry.Data["mailbox"])
}
