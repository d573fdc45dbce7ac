// Package lock 提供无死锁的多锁获取.
//
// 需要同时持有多把互斥锁时，所有调用方都通过 Ordered 按全局一致的顺序
// （锁对象地址升序）加锁，按相反顺序释放，从而消除循环等待.
//
// 示例:
//
//	unlock := lock.Ordered(&a.mu, &b.mu)
//	defer unlock.Unlock()
package lock

import (
	"cmp"
	"fmt"
	"reflect"
	"slices"
	"sync"
)

// Unlocker 释放 Ordered 获取的全部锁.
type Unlocker interface {
	Unlock()
}

// held 已按顺序持有的锁集合.
type held struct {
	lockers []sync.Locker
	once    sync.Once
}

// Unlock 按加锁的相反顺序释放，重复调用无副作用.
func (h *held) Unlock() {
	h.once.Do(func() {
		for i := len(h.lockers) - 1; i >= 0; i-- {
			h.lockers[i].Unlock()
		}
	})
}

// entry 排序用的锁与身份.
type entry struct {
	locker sync.Locker
	addr   uintptr
	kind   string
}

// Ordered 按全局一致的顺序获取全部锁.
//
// 顺序与调用方传入顺序无关；同一个锁对象重复传入只加锁一次.
// 锁对象必须是非空指针（如 *sync.Mutex），否则 panic.
func Ordered(lockers ...sync.Locker) Unlocker {
	if len(lockers) == 0 {
		panic(ErrNoLockers)
	}

	entries := make([]entry, 0, len(lockers))
	for _, l := range lockers {
		v := reflect.ValueOf(l)
		if !v.IsValid() || v.Kind() != reflect.Pointer || v.IsNil() {
			panic(fmt.Errorf("%w: %T", ErrNotPointer, l))
		}
		entries = append(entries, entry{locker: l, addr: v.Pointer(), kind: v.Type().String()})
	}

	slices.SortFunc(entries, func(a, b entry) int {
		if c := cmp.Compare(a.addr, b.addr); c != 0 {
			return c
		}
		return cmp.Compare(a.kind, b.kind)
	})
	entries = slices.CompactFunc(entries, func(a, b entry) bool {
		return a.locker == b.locker
	})

	h := &held{lockers: make([]sync.Locker, 0, len(entries))}
	for _, e := range entries {
		e.locker.Lock()
		h.lockers = append(h.lockers, e.locker)
	}
	return h
}

// Do 在持有全部锁期间执行 fn，fn 返回或 panic 后释放.
func Do(fn func(), lockers ...sync.Locker) {
	unlock := Ordered(lockers...)
	defer unlock.Unlock()
	fn()
}
