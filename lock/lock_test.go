package lock

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNopLock(t *testing.T) {
	l := NewNopLock()
	ctx := context.Background()

	if ok, err := l.TryLock(ctx, "k", time.Second); !ok || err != nil {
		t.Errorf("NopLock 应该总是获取成功: %v %v", ok, err)
	}
	if ok, _ := l.TryLock(ctx, "k", time.Second); !ok {
		t.Error("NopLock 不做互斥")
	}
	if err := l.Unlock(ctx, "k"); err != nil {
		t.Errorf("NopLock 释放不应报错: %v", err)
	}
}

func TestLocalLockMutualExclusion(t *testing.T) {
	l := NewLocalLock()
	ctx := context.Background()

	if ok, _ := l.TryLock(ctx, "SPY", time.Minute); !ok {
		t.Fatal("首次获取锁应该成功")
	}
	if ok, _ := l.TryLock(ctx, "SPY", time.Minute); ok {
		t.Error("锁被占用时不应获取成功")
	}
	if ok, _ := l.TryLock(ctx, "QQQ", time.Minute); !ok {
		t.Error("不同键应该互不影响")
	}

	if err := l.Extend(ctx, "SPY", time.Minute); err != nil {
		t.Errorf("延期失败: %v", err)
	}
	if err := l.Unlock(ctx, "SPY"); err != nil {
		t.Errorf("释放失败: %v", err)
	}
	if err := l.Unlock(ctx, "SPY"); !errors.Is(err, ErrNotHeld) {
		t.Errorf("重复释放应该返回 ErrNotHeld, 得到 %v", err)
	}
}

func TestLocalLockExpires(t *testing.T) {
	l := NewLocalLock()
	ctx := context.Background()

	if ok, _ := l.TryLock(ctx, "k", 10*time.Millisecond); !ok {
		t.Fatal("获取锁失败")
	}
	time.Sleep(30 * time.Millisecond)
	if ok, _ := l.TryLock(ctx, "k", time.Second); !ok {
		t.Error("过期后应该可以重新获取")
	}
}

func TestLocalLockBlocksUntilReleased(t *testing.T) {
	l := NewLocalLock()
	ctx := context.Background()
	l.TryLock(ctx, "k", time.Minute)

	go func() {
		time.Sleep(50 * time.Millisecond)
		l.Unlock(ctx, "k")
	}()

	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := l.Lock(waitCtx, "k", time.Minute); err != nil {
		t.Fatalf("释放后应该获取成功: %v", err)
	}

	shortCtx, cancel2 := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel2()
	if err := l.Lock(shortCtx, "k", time.Minute); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("超时应该返回 DeadlineExceeded, 得到 %v", err)
	}
}

func TestNewDistributedLock(t *testing.T) {
	l, err := NewDistributedLock(&Config{Enabled: false})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := l.(*LocalLock); !ok {
		t.Errorf("未启用时应该返回 LocalLock, 得到 %T", l)
	}

	l, err = NewDistributedLock(&Config{Enabled: true, Type: "redis", Prefix: "p:", Redis: RedisConfig{Addr: "localhost:6379"}})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := l.(*RedisLock); !ok {
		t.Errorf("期望 RedisLock, 得到 %T", l)
	}
	l.Close()

	if _, err := NewDistributedLock(&Config{Enabled: true, Type: "etcd"}); err == nil {
		t.Error("不支持的锁类型应该报错")
	}
}
