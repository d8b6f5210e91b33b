package net

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"skoll/internal/engine"
	"skoll/internal/utils"
)

func TestRun_ReturnsOnContextCancel(t *testing.T) {
	reg := testRegistry(t)
	eng := engine.New(reg)
	_, err := eng.RegisterBook("AAPL")
	require.NoError(t, err)
	placer := engine.NewPlacer(eng, utils.RealClock{})

	srv := NewServer("127.0.0.1", 0, 2, eng, placer, utils.RealClock{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		srv.Run(ctx)
		close(done)
	}()

	// Let the listener come up, then cancel while Accept is blocked.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}
