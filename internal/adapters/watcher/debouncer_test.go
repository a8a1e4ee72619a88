package watcher_test

import (
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/synapse/internal/adapters/watcher"
)

type batches struct {
	mu  sync.Mutex
	got [][]string
}

func (b *batches) add(paths []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.got = append(b.got, paths)
}

func (b *batches) all() [][]string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.got
}

func TestDebouncer_CoalescesAndSorts(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var b batches
		d := watcher.NewDebouncer(watcher.DefaultDebounceWindow, b.add)

		d.Add("/p/src/c.ts")
		d.Add("/p/src/a.ts")
		d.Add("/p/src/c.ts")
		d.Add("/p/src/b.ts")

		time.Sleep(watcher.DefaultDebounceWindow + time.Millisecond)
		synctest.Wait()

		assert.Equal(t, [][]string{{"/p/src/a.ts", "/p/src/b.ts", "/p/src/c.ts"}}, b.all())
	})
}

func TestDebouncer_WindowRestartsOnAdd(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var b batches
		d := watcher.NewDebouncer(100*time.Millisecond, b.add)

		d.Add("/p/a.ts")
		time.Sleep(60 * time.Millisecond)
		d.Add("/p/b.ts")
		time.Sleep(60 * time.Millisecond)
		synctest.Wait()
		assert.Empty(t, b.all())

		time.Sleep(50 * time.Millisecond)
		synctest.Wait()
		require.Len(t, b.all(), 1)
		assert.Equal(t, []string{"/p/a.ts", "/p/b.ts"}, b.all()[0])
	})
}

func TestDebouncer_SeparateBursts(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var b batches
		d := watcher.NewDebouncer(50*time.Millisecond, b.add)

		d.Add("/p/a.ts")
		time.Sleep(100 * time.Millisecond)
		d.Add("/p/b.ts")
		time.Sleep(100 * time.Millisecond)
		synctest.Wait()

		assert.Equal(t, [][]string{{"/p/a.ts"}, {"/p/b.ts"}}, b.all())
	})
}

func TestDebouncer_Flush(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var b batches
		d := watcher.NewDebouncer(time.Hour, b.add)

		d.Flush()
		assert.Empty(t, b.all())

		d.Add("/p/a.ts")
		d.Flush()
		assert.Equal(t, [][]string{{"/p/a.ts"}}, b.all())

		// The stopped timer must not deliver an empty or repeated batch.
		time.Sleep(2 * time.Hour)
		synctest.Wait()
		assert.Len(t, b.all(), 1)
	})
}

func TestDebouncer_Stop(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var b batches
		d := watcher.NewDebouncer(50*time.Millisecond, b.add)

		d.Add("/p/a.ts")
		d.Stop()
		d.Add("/p/b.ts")
		time.Sleep(time.Second)
		synctest.Wait()

		assert.Empty(t, b.all())
	})
}

func TestDebouncer_NilCallback(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		d := watcher.NewDebouncer(10*time.Millisecond, nil)
		d.Add("/p/a.ts")
		time.Sleep(20 * time.Millisecond)
		synctest.Wait()
		d.Flush()
	})
}
