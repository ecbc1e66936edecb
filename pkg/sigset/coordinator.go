// Package sigset 收集多签交易的 owner 签名并组装链上可用的授权字节串。
//
// 它只做聚合: 签名本身的密码学校验 (recover 是否为合法 owner) 由上游
// 目录服务完成，进入这里的签名视为已验证。
package sigset

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"safe-core/pkg/safetx"
)

var (
	// ErrDuplicateSigner 同一签名人对同一哈希重复提交。
	// 拒绝而不是覆盖: 防止恶意方用篡改过的第二份签名顶替合法签名。
	ErrDuplicateSigner = errors.New("sigset: signer already recorded for this hash")

	// ErrInsufficientSignatures 签名数量未达门槛时请求组装授权串。
	ErrInsufficientSignatures = errors.New("sigset: not enough signatures for quorum")

	// ErrInvalidSignature 签名字节长度不是 65。
	ErrInvalidSignature = errors.New("sigset: signature must be 65 bytes")
)

// Signature 是单个签名人的贡献，坐标器只聚合、从不修改其中的字节。
type Signature struct {
	Signer common.Address
	Bytes  []byte // 65 字节 r‖s‖v (或合约签名占位)
}

// Coordinator 按交易哈希维护签名集合。
// 并发安全: 所有方法可以被任意多个 goroutine 同时调用。
type Coordinator struct {
	mu   sync.RWMutex
	sets map[common.Hash]map[common.Address][]byte
}

func NewCoordinator() *Coordinator {
	return &Coordinator{
		sets: make(map[common.Hash]map[common.Address][]byte),
	}
}

// AddSignature 记录一个签名。
// 签名人地址在进入 map 前已经是 common.Address 的规范字节形式，
// 大小写混用的 checksum 地址不可能绕过重复检测。
func (c *Coordinator) AddSignature(hash common.Hash, sig Signature) error {
	if len(sig.Bytes) != safetx.SignatureLength {
		return fmt.Errorf("%w: got %d", ErrInvalidSignature, len(sig.Bytes))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	set, ok := c.sets[hash]
	if !ok {
		set = make(map[common.Address][]byte)
		c.sets[hash] = set
	}
	if _, exists := set[sig.Signer]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateSigner, sig.Signer.Hex())
	}

	stored := make([]byte, len(sig.Bytes))
	copy(stored, sig.Bytes)
	set[sig.Signer] = stored
	return nil
}

// SignerCount 返回某哈希下已记录的去重签名人数量。
func (c *Coordinator) SignerCount(hash common.Hash) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sets[hash])
}

// HasQuorum 判断签名人数是否达到门槛。纯计数比较，不做任何密码学校验。
func (c *Coordinator) HasQuorum(hash common.Hash, required int) bool {
	return c.SignerCount(hash) >= required
}

// Signatures 返回某哈希下所有签名的拷贝，按签名人地址升序。
func (c *Coordinator) Signatures(hash common.Hash) []Signature {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sortedLocked(hash)
}

// BuildAuthorizationBundle 组装链上 execTransaction 需要的 signatures 参数:
// 按签名人地址严格升序 (等价于地址小写 hex 的字典序)，把每个 65 字节签名
// 原样拼接，无分隔符、无长度前缀。
//
// 排序规则来自合约的签名校验循环: 它要求地址严格递增以检测重复签名人，
// 其他任何顺序都会导致链上拒绝。
//
// 即使调用方已经检查过 HasQuorum，这里仍然按 required 复核一次，
// 绝不产出低于门槛的半成品。
func (c *Coordinator) BuildAuthorizationBundle(hash common.Hash, required int) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	sigs := c.sortedLocked(hash)
	if len(sigs) < required {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrInsufficientSignatures, len(sigs), required)
	}

	bundle := make([]byte, 0, len(sigs)*safetx.SignatureLength)
	for _, s := range sigs {
		bundle = append(bundle, s.Bytes...)
	}
	return bundle, nil
}

// Drop 丢弃某哈希的全部内存状态 (收集流程中止时调用，无其他清理义务)。
func (c *Coordinator) Drop(hash common.Hash) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sets, hash)
}

func (c *Coordinator) sortedLocked(hash common.Hash) []Signature {
	set := c.sets[hash]
	sigs := make([]Signature, 0, len(set))
	for signer, raw := range set {
		b := make([]byte, len(raw))
		copy(b, raw)
		sigs = append(sigs, Signature{Signer: signer, Bytes: b})
	}
	sort.Slice(sigs, func(i, j int) bool {
		return bytes.Compare(sigs[i].Signer.Bytes(), sigs[j].Signer.Bytes()) < 0
	})
	return sigs
}
