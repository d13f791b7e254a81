package app

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	_ "github.com/ledgerline/ledgerline/testing"
)

func TestTestModeFlagSetUnderGoTest(t *testing.T) {
	require.Equal(t, "1", os.Getenv("LEDGERLINE_TEST_MODE"))
	require.True(t, InTestMode())
}

func TestRefreshTestModeTracksEnvironment(t *testing.T) {
	t.Setenv("LEDGERLINE_TEST_MODE", "0")
	RefreshTestMode()
	require.False(t, InTestMode())

	t.Setenv("LEDGERLINE_TEST_MODE", "1")
	RefreshTestMode()
	require.True(t, InTestMode())
}
