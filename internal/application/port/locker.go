package port

import "context"

// Locker 按 key 的互斥锁，返回释放函数
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}
