package pool

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimerPool(t *testing.T) {
	assert := assert.New(t)

	t.Run("Get and Put", func(t *testing.T) {
		timer1 := GetTimer(10 * time.Millisecond)
		assert.NotNil(timer1)
		PutTimer(timer1)

		timer2 := GetTimer(20 * time.Millisecond)
		assert.NotNil(timer2)
		<-timer2.C
		PutTimer(timer2)
	})

	t.Run("Reused timer does not fire early", func(t *testing.T) {
		timer1 := GetTimer(time.Millisecond)
		time.Sleep(5 * time.Millisecond) // let it fire without draining
		PutTimer(timer1)

		timer2 := GetTimer(200 * time.Millisecond)
		defer PutTimer(timer2)

		select {
		case <-timer2.C:
			t.Fatal("timer fired with a stale tick")
		case <-time.After(50 * time.Millisecond):
		}
	})
}

func TestSleep(t *testing.T) {
	t.Run("elapses", func(t *testing.T) {
		start := time.Now()
		assert.True(t, Sleep(context.Background(), 20*time.Millisecond))
		assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		start := time.Now()
		assert.False(t, Sleep(ctx, time.Second))
		assert.Less(t, time.Since(start), 500*time.Millisecond)
	})

	t.Run("zero duration", func(t *testing.T) {
		assert.True(t, Sleep(context.Background(), 0))
	})
}
