package logging

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestSetup_Level(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	Setup("debug", false)
	require.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())

	Setup("nonsense", false)
	require.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}

func TestBadger_FiltersBelowWarn(t *testing.T) {
	var buf bytes.Buffer
	b := &badgerLogger{lg: zerolog.New(&buf).Level(zerolog.WarnLevel)}

	b.Infof("opened %s\n", "db")
	b.Debugf("noise")
	require.Zero(t, buf.Len())

	b.Warningf("value log %d discarded\n", 3)
	require.Contains(t, buf.String(), "value log 3 discarded")
	require.Contains(t, buf.String(), `"level":"warn"`)
}
