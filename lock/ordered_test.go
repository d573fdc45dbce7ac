package lock

import (
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingLocker 记录加锁/解锁顺序.
type recordingLocker struct {
	mu   sync.Mutex
	name string
	log  *[]string
}

func (r *recordingLocker) Lock() {
	r.mu.Lock()
	*r.log = append(*r.log, "lock:"+r.name)
}

func (r *recordingLocker) Unlock() {
	*r.log = append(*r.log, "unlock:"+r.name)
	r.mu.Unlock()
}

func TestOrdered_OrderIndependentOfArguments(t *testing.T) {
	var log []string
	lockers := []*recordingLocker{
		{name: "a", log: &log},
		{name: "b", log: &log},
		{name: "c", log: &log},
	}

	// 使用不同的传入顺序，加锁顺序必须一致
	Ordered(lockers[2], lockers[0], lockers[1]).Unlock()
	first := append([]string(nil), log...)
	log = log[:0]

	Ordered(lockers[1], lockers[2], lockers[0]).Unlock()
	second := append([]string(nil), log...)

	require.Len(t, first, 6)
	assert.Equal(t, first, second)

	// 释放顺序与加锁顺序相反
	for i := 0; i < 3; i++ {
		assert.Equal(t, "un"+first[i], first[5-i])
	}
}

func TestOrdered_DuplicateLocker(t *testing.T) {
	var mu sync.Mutex

	done := make(chan struct{})
	go func() {
		defer close(done)
		Ordered(&mu, &mu).Unlock()
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("duplicate locker deadlocked")
	}
}

func TestOrdered_UnlockIdempotent(t *testing.T) {
	var a, b sync.Mutex
	u := Ordered(&a, &b)
	u.Unlock()
	assert.NotPanics(t, u.Unlock)

	// 锁已释放，可以再次获取
	assert.True(t, a.TryLock())
	assert.True(t, b.TryLock())
}

func TestOrdered_InvalidArguments(t *testing.T) {
	assert.PanicsWithValue(t, ErrNoLockers, func() { Ordered() })
	assert.Panics(t, func() { Ordered(nil) })

	var nilMutex *sync.Mutex
	assert.Panics(t, func() { Ordered(nilMutex) })
}

func TestDo(t *testing.T) {
	var a, b sync.Mutex
	called := false

	Do(func() {
		called = true
		assert.False(t, a.TryLock())
		assert.False(t, b.TryLock())
	}, &b, &a)

	assert.True(t, called)
	assert.True(t, a.TryLock())
	assert.True(t, b.TryLock())
}

func TestDo_ReleasesOnPanic(t *testing.T) {
	var a, b sync.Mutex

	assert.Panics(t, func() {
		Do(func() { panic("boom") }, &a, &b)
	})
	assert.True(t, a.TryLock())
	assert.True(t, b.TryLock())
}

// 哲学家就餐：每个哲学家需要左右两把叉子，按调用方顺序加锁会死锁.
func TestOrdered_DiningPhilosophers(t *testing.T) {
	const attempts = 10

	for n := 2; n <= 8; n++ {
		forks := make([]sync.Mutex, n)
		var meals atomic.Int64
		var wg sync.WaitGroup

		for i := 0; i < n; i++ {
			left, right := &forks[i], &forks[(i+1)%n]
			seed := int64(i)
			wg.Add(1)
			go func() {
				defer wg.Done()
				rng := rand.New(rand.NewSource(seed))
				for j := 0; j < attempts; j++ {
					time.Sleep(time.Duration(rng.Intn(500)) * time.Microsecond)
					Do(func() {
						time.Sleep(time.Duration(rng.Intn(500)) * time.Microsecond)
						meals.Add(1)
					}, left, right)
				}
			}()
		}

		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(10 * time.Second):
			t.Fatalf("philosophers deadlocked with n=%d", n)
		}
		assert.Equal(t, int64(n*attempts), meals.Load())
	}
}
