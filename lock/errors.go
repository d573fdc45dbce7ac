package lock

import "errors"

var (
	// ErrNotPointer 锁对象不是指针，无法确定全局顺序.
	ErrNotPointer = errors.New("lock: locker must be a pointer")

	// ErrNoLockers 未提供任何锁.
	ErrNoLockers = errors.New("lock: no lockers given")
)
