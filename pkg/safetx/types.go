package safetx

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ErrInvalidEncoding 表示输入无法按 EIP-712 规则编码 (字段缺失、负数、超出 256 位等)。
// 这类错误不可恢复，调用方必须修正输入后重试。
var ErrInvalidEncoding = errors.New("safetx: invalid encoding")

// Operation 是 Safe 合约调用类型。
type Operation uint8

const (
	// Call 普通外部调用
	Call Operation = 0
	// DelegateCall 委托调用 (在 Safe 自身的存储上下文中执行目标合约代码)
	DelegateCall Operation = 1
)

func (op Operation) Valid() bool {
	return op == Call || op == DelegateCall
}

func (op Operation) String() string {
	switch op {
	case Call:
		return "CALL"
	case DelegateCall:
		return "DELEGATECALL"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(op))
	}
}

// SafeContext 标识一个多签实例。
// 同一笔 SafeTransaction 在不同的 (chainId, safeAddress) 下哈希完全不同，
// 离开 Context 谈交易哈希没有意义。
type SafeContext struct {
	SafeAddress common.Address
	ChainID     *big.Int
}

// Validate 检查 Context 字段是否可编码。
func (c SafeContext) Validate() error {
	return checkUint256("chainId", c.ChainID)
}

// SafeTransaction 是待授权的多签交易，字段顺序与 Safe 合约的
// SafeTx 类型定义一一对应。
type SafeTransaction struct {
	To             common.Address
	Value          *big.Int // 单位 wei
	Data           []byte
	Operation      Operation
	SafeTxGas      *big.Int
	BaseGas        *big.Int
	GasPrice       *big.Int
	GasToken       common.Address // 零地址 = 使用原生代币支付 gas
	RefundReceiver common.Address // 零地址 = 不退款
	Nonce          *big.Int       // Safe 实例内严格递增
}

// Validate 检查所有整数字段是否为合法的 uint256。
// 零地址和空 data 是普通合法输入，哈希算法内部不做任何特殊处理。
func (tx *SafeTransaction) Validate() error {
	if !tx.Operation.Valid() {
		return fmt.Errorf("%w: operation %d out of range", ErrInvalidEncoding, uint8(tx.Operation))
	}
	for _, f := range []struct {
		name string
		v    *big.Int
	}{
		{"value", tx.Value},
		{"safeTxGas", tx.SafeTxGas},
		{"baseGas", tx.BaseGas},
		{"gasPrice", tx.GasPrice},
		{"nonce", tx.Nonce},
	} {
		if err := checkUint256(f.name, f.v); err != nil {
			return err
		}
	}
	return nil
}

// checkUint256 确认 v 非 nil、非负且不超过 256 位。
func checkUint256(name string, v *big.Int) error {
	if v == nil {
		return fmt.Errorf("%w: %s is nil", ErrInvalidEncoding, name)
	}
	if v.Sign() < 0 {
		return fmt.Errorf("%w: %s is negative", ErrInvalidEncoding, name)
	}
	if v.BitLen() > 256 {
		return fmt.Errorf("%w: %s overflows uint256", ErrInvalidEncoding, name)
	}
	return nil
}
