package log

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/sensible/internal/pubsub"
)

func TestLog_FormatsFields(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, LevelDebug)
	t.Cleanup(func() { defaultLogger = nil })

	Info(CatParse, "parsed timestamp", "raw", "2011-09-26", "ok", true)

	line := buf.String()
	require.Contains(t, line, "[INFO] [parse] parsed timestamp raw=2011-09-26 ok=true")
	require.True(t, len(line) > 0 && line[len(line)-1] == '\n')
}

func TestLog_OrphanField(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, LevelDebug)
	t.Cleanup(func() { defaultLogger = nil })

	Warn(CatRender, "odd fields", "key")

	require.Contains(t, buf.String(), "key=<missing>")
}

func TestLog_MinLevel(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, LevelWarn)
	t.Cleanup(func() { defaultLogger = nil })

	Debug(CatRefresh, "hidden")
	Info(CatRefresh, "hidden")
	ErrorErr(CatRefresh, "shown", errors.New("boom"))

	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), "[ERROR] [refresh] shown error=boom")
}

func TestLog_NoLoggerIsNoop(t *testing.T) {
	defaultLogger = nil
	require.NotPanics(t, func() { Info(CatUI, "nothing") })
	require.Nil(t, NewListener(context.Background()))
}

func TestLog_PublishesEntries(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, LevelDebug)
	t.Cleanup(func() { defaultLogger = nil })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	listener := NewListener(ctx)
	require.NotNil(t, listener)

	Info(CatCache, "cache miss", "key", "a")

	msgCh := make(chan any, 1)
	go func() { msgCh <- listener.Listen()() }()

	select {
	case msg := <-msgCh:
		event, ok := msg.(LogEvent)
		require.True(t, ok, "got %T", msg)
		require.Equal(t, pubsub.LoggedEvent, event.Type)
		require.Contains(t, event.Payload, "cache miss key=a")
	case <-time.After(100 * time.Millisecond):
		require.Fail(t, "timeout waiting for log event")
	}
}
