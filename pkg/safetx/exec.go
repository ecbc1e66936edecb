package safetx

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// execTransactionABI 是 Safe 合约执行入口的 ABI 片段。
// 参数顺序即合约的 execTransaction 签名，selector = 0x6a761202。
const execTransactionABI = `[{
	"name": "execTransaction",
	"type": "function",
	"inputs": [
		{"name": "to", "type": "address"},
		{"name": "value", "type": "uint256"},
		{"name": "data", "type": "bytes"},
		{"name": "operation", "type": "uint8"},
		{"name": "safeTxGas", "type": "uint256"},
		{"name": "baseGas", "type": "uint256"},
		{"name": "gasPrice", "type": "uint256"},
		{"name": "gasToken", "type": "address"},
		{"name": "refundReceiver", "type": "address"},
		{"name": "signatures", "type": "bytes"}
	],
	"outputs": [{"name": "success", "type": "bool"}]
}]`

var execABI = func() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(execTransactionABI))
	if err != nil {
		panic(err) // 常量 ABI，解析失败属于程序错误
	}
	return parsed
}()

// EncodeExecTransaction 生成 execTransaction 调用的 calldata。
// signatures 是已按签名人地址升序拼接好的授权字节串，原样作为
// 最后一个参数传入，不做任何二次处理。
func EncodeExecTransaction(tx SafeTransaction, signatures []byte) ([]byte, error) {
	if err := tx.Validate(); err != nil {
		return nil, err
	}

	calldata, err := execABI.Pack("execTransaction",
		tx.To,
		tx.Value,
		tx.Data,
		uint8(tx.Operation),
		tx.SafeTxGas,
		tx.BaseGas,
		tx.GasPrice,
		tx.GasToken,
		tx.RefundReceiver,
		signatures,
	)
	if err != nil {
		return nil, fmt.Errorf("pack execTransaction: %w", err)
	}
	return calldata, nil
}

// EstimateExecGas 给出外层交易的保守 gas 上限: baseGas + safeTxGas + 合约自身开销。
// 仅用于执行方为外层 EIP-155 交易设置 gasLimit，不参与哈希。
func EstimateExecGas(tx SafeTransaction) uint64 {
	const safeOverhead = 80000

	limit := new(big.Int).Add(tx.SafeTxGas, tx.BaseGas)
	limit.Add(limit, big.NewInt(safeOverhead))
	if !limit.IsUint64() {
		return safeOverhead
	}
	return limit.Uint64()
}
