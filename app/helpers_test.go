package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	timeoutShort = 2 * time.Second
	tick         = 10 * time.Millisecond
)

// waitSubmissions blocks until every order sent in the background has
// published its outcome.
func waitSubmissions(t *testing.T, a *App) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeoutShort)
	defer cancel()
	require.NoError(t, a.Orders().Wait(ctx))
}
