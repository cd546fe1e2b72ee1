package service

import (
	"context"
	"sync"
)

// KeyLocker 按 key 串行化的进程内锁
// 同一 (user_id, ts_code) 的读-改-写必须持锁执行
type KeyLocker struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	ch   chan struct{} // 容量 1 的信号量，可随 ctx 取消
	refs int
}

func NewKeyLocker() *KeyLocker {
	return &KeyLocker{locks: make(map[string]*keyLock)}
}

// Lock 获取 key 的锁，返回释放函数
func (kl *KeyLocker) Lock(ctx context.Context, key string) (func(), error) {
	kl.mu.Lock()
	l, ok := kl.locks[key]
	if !ok {
		l = &keyLock{ch: make(chan struct{}, 1)}
		kl.locks[key] = l
	}
	l.refs++
	kl.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
	case <-ctx.Done():
		kl.release(key, l)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-l.ch
			kl.release(key, l)
		})
	}, nil
}

// Len 当前被引用的 key 数量
func (kl *KeyLocker) Len() int {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	return len(kl.locks)
}

func (kl *KeyLocker) release(key string, l *keyLock) {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(kl.locks, key)
	}
}
