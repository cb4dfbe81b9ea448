package task

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-plantbus/logger"
)

func TestManagerStartStop(t *testing.T) {
	require := require.New(t)

	mgr := NewManager(context.Background(), logger.GetLogger())

	var count atomic.Int32
	mgr.Start("counter", func() bool {
		count.Add(1)
		time.Sleep(time.Millisecond)
		return true
	})

	require.Eventually(func() bool { return count.Load() > 3 }, time.Second, time.Millisecond)

	mgr.Stop()
	mgr.Wait()
}

func TestManagerTaskReturnsFalse(t *testing.T) {
	mgr := NewManager(context.Background(), logger.GetLogger())

	var count atomic.Int32
	mgr.Start("once", func() bool {
		count.Add(1)
		return false
	})

	mgr.Wait()
	require.Equal(t, int32(1), count.Load())
}

func TestManagerPanicRecovery(t *testing.T) {
	require := require.New(t)

	mgr := NewManager(context.Background(), logger.GetLogger())

	var count atomic.Int32
	mgr.Start("panicky", func() bool {
		if count.Add(1) == 1 {
			panic("boom")
		}
		return false
	})

	mgr.Wait()
	// the panicking iteration is survived, the next one stops the task
	require.Equal(int32(2), count.Load())
}

func TestManagerStartInterval(t *testing.T) {
	require := require.New(t)

	mgr := NewManager(context.Background(), logger.GetLogger())

	var count atomic.Int32
	_, err := mgr.StartInterval("tick", func() bool {
		count.Add(1)
		return true
	}, 5*time.Millisecond, true)
	require.NoError(err)

	require.Eventually(func() bool { return count.Load() >= 3 }, time.Second, time.Millisecond)

	_, err = mgr.StartInterval("tick", func() bool { return true }, time.Millisecond, false)
	require.Error(err)

	_, err = mgr.StartInterval("bad", func() bool { return true }, 0, false)
	require.Error(err)

	mgr.Stop()
	mgr.Wait()
}
