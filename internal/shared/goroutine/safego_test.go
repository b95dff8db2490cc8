package goroutine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/orris-inc/livedesk/internal/shared/logger"
)

func TestRun_RecoversPanic(t *testing.T) {
	ok := Run(logger.NewNopLogger(), "boom", func() { panic("kaboom") })
	assert.False(t, ok)

	ok = Run(logger.NewNopLogger(), "fine", func() {})
	assert.True(t, ok)
}

func TestSafeGo_RunsFunction(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(1)
	ran := false
	SafeGo(logger.NewNopLogger(), "worker", func() {
		defer wg.Done()
		ran = true
	})
	wg.Wait()
	assert.True(t, ran)
}
