package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	_ "github.com/odyssey-erp/freightledger/testing"

	"github.com/odyssey-erp/freightledger/internal/app"
)

func TestMainSkipsStartupInTestMode(t *testing.T) {
	app.RefreshTestMode()
	require.True(t, app.InTestMode())
	require.NotPanics(t, main)
}
