package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIs_ThroughWrapping(t *testing.T) {
	base := ErrInvalidParameter.New("percentile 1.5 outside [0, 1]")
	wrapped := fmt.Errorf("aggregate nestCount: %w", base)

	require.True(t, Is(base, ErrInvalidParameter))
	require.True(t, Is(wrapped, ErrInvalidParameter))
	require.False(t, Is(wrapped, ErrConfiguration))
	require.Contains(t, wrapped.Error(), "percentile 1.5")
}

func TestKindOf(t *testing.T) {
	require.Equal(t, ErrConfiguration, KindOf(ErrConfiguration.New("unknown frequency \"X\"")))
	require.Equal(t, ErrDataIntegrity, KindOf(fmt.Errorf("load: %w", ErrDataIntegrity.New("row 3"))))
	require.Nil(t, KindOf(errors.New("plain")))
	require.Nil(t, KindOf(nil))
}

func TestName(t *testing.T) {
	for _, k := range Kinds {
		require.NotEmpty(t, Name(k))
	}
	require.Equal(t, "invalid_parameter", Name(ErrInvalidParameter))
}
