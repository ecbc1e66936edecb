package lock

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "safe:lock:"

// DistributedLock 执行侧互斥锁接口
// 多个 executor 实例同时部署时，同一笔多签交易只允许一个实例
// 组装签名串并广播，否则会出现双重广播 (外层 nonce 冲突)
type DistributedLock interface {
	// Acquire 尝试获取锁
	// key: 锁标识 (通常是 "exec:"+safeTxHash)
	// ttl: 过期时间，要覆盖 广播+等回执 的最长耗时
	// 返回: (是否抢到, error)
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Release 释放锁。执行完一笔 (无论成败) 立即释放
	Release(ctx context.Context, key string) error
}

// RedisLock 基于 Redis SETNX 的实现
// 锁到期自动失效: executor 实例崩溃后，同一笔交易最多在 ttl 后被其他实例接管
type RedisLock struct {
	client *redis.Client
}

func NewRedisLock(client *redis.Client) *RedisLock {
	return &RedisLock{client: client}
}

func (l *RedisLock) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	// SET key value NX EX ttl
	// value 可以换成实例ID，释放时校验归属 (当前单锁持有周期短，暂不校验)
	success, err := l.client.SetNX(ctx, keyPrefix+key, "1", ttl).Result()
	if err != nil {
		return false, err
	}
	return success, nil
}

func (l *RedisLock) Release(ctx context.Context, key string) error {
	// 直接删除 Key
	// 严谨做法是 Lua 脚本比对 Value 再删，防止删掉别的实例续期后的锁
	return l.client.Del(ctx, keyPrefix+key).Err()
}
