package safetx

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Safe 合约使用的 EIP-712 Typehash 常量 (v1.3.0)。
// 这两个值在合约里是编译期常量，链上执行时用同样的公式重算交易哈希，
// 所以这里的编码必须逐字节与合约一致，否则所有已收集的签名全部作废。
var (
	// keccak256("EIP712Domain(uint256 chainId,address verifyingContract)")
	// = 0x47e79534a245952e8b16893a336b85a3d9ea9fa8c573f3d803afb92a79469218
	domainSeparatorTypehash = crypto.Keccak256Hash([]byte(
		"EIP712Domain(uint256 chainId,address verifyingContract)",
	))

	// keccak256("SafeTx(address to,uint256 value,bytes data,uint8 operation,...)")
	// = 0xbb8310d486368db6bd6f849402fdd73ad53d316b5a4b2644ad6efe0f941286d8
	safeTxTypehash = crypto.Keccak256Hash([]byte(
		"SafeTx(address to,uint256 value,bytes data,uint8 operation," +
			"uint256 safeTxGas,uint256 baseGas,uint256 gasPrice," +
			"address gasToken,address refundReceiver,uint256 nonce)",
	))
)

// encodeUint256 / encodeAddress 按 ABI 规则把值编码进 32 字节槽位 (大端、左补零)。
func encodeUint256(v *big.Int) []byte {
	return common.LeftPadBytes(v.Bytes(), 32)
}

func encodeAddress(a common.Address) []byte {
	return common.LeftPadBytes(a.Bytes(), 32)
}

// DomainSeparator 计算 EIP-712 域分隔符:
// keccak256(abi.encode(DOMAIN_SEPARATOR_TYPEHASH, chainId, safeAddress))
func DomainSeparator(ctx SafeContext) (common.Hash, error) {
	if err := ctx.Validate(); err != nil {
		return common.Hash{}, err
	}

	enc := make([]byte, 0, 3*32)
	enc = append(enc, domainSeparatorTypehash.Bytes()...)
	enc = append(enc, encodeUint256(ctx.ChainID)...)
	enc = append(enc, encodeAddress(ctx.SafeAddress)...)
	return crypto.Keccak256Hash(enc), nil
}

// ComputeTransactionHash 计算签名人必须签署的 32 字节摘要。
//
// 三层嵌套哈希:
//  1. 域分隔符 = keccak256(abi.encode(typehash, chainId, safe))
//  2. 结构哈希 = keccak256(abi.encode(typehash, to, value, keccak256(data), operation,
//     safeTxGas, baseGas, gasPrice, gasToken, refundReceiver, nonce))
//     data 是动态长度类型，按 ABI 规则嵌入其哈希而不是原始字节，外层 tuple 保持定长。
//  3. 最终哈希 = keccak256(0x19 ‖ 0x01 ‖ 域分隔符 ‖ 结构哈希) — 紧凑拼接，共 66 字节。
//
// 纯函数: 相同输入永远得到相同输出，无状态、无 I/O。
func ComputeTransactionHash(ctx SafeContext, tx SafeTransaction) (common.Hash, error) {
	if err := tx.Validate(); err != nil {
		return common.Hash{}, err
	}

	domainSep, err := DomainSeparator(ctx)
	if err != nil {
		return common.Hash{}, err
	}

	// 2. SafeTx 结构哈希 (11 个 32 字节槽位)
	enc := make([]byte, 0, 11*32)
	enc = append(enc, safeTxTypehash.Bytes()...)
	enc = append(enc, encodeAddress(tx.To)...)
	enc = append(enc, encodeUint256(tx.Value)...)
	enc = append(enc, crypto.Keccak256(tx.Data)...) // keccak256("") 对空 data 同样良定义
	enc = append(enc, encodeUint256(big.NewInt(int64(tx.Operation)))...)
	enc = append(enc, encodeUint256(tx.SafeTxGas)...)
	enc = append(enc, encodeUint256(tx.BaseGas)...)
	enc = append(enc, encodeUint256(tx.GasPrice)...)
	enc = append(enc, encodeAddress(tx.GasToken)...)
	enc = append(enc, encodeAddress(tx.RefundReceiver)...)
	enc = append(enc, encodeUint256(tx.Nonce)...)
	structHash := crypto.Keccak256(enc)

	// 3. EIP-712 前缀拼接 (packed, 不补零)
	msg := make([]byte, 0, 66)
	msg = append(msg, 0x19, 0x01)
	msg = append(msg, domainSep.Bytes()...)
	msg = append(msg, structHash...)
	return crypto.Keccak256Hash(msg), nil
}
