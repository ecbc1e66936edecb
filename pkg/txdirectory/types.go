package txdirectory

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"safe-core/pkg/safetx"
)

// SafeInfo 是目录服务维护的 Safe 账户状态。
type SafeInfo struct {
	Address   string   `json:"address"`
	ChainID   int64    `json:"chain_id"`
	Owners    []string `json:"owners"`
	Threshold int      `json:"threshold"`
	Nonce     uint64   `json:"nonce"`
}

// ProposalRequest 提交一笔新的待签名交易。
// 数值字段统一用十进制字符串，避免 JSON number 的精度问题。
type ProposalRequest struct {
	SafeAddress    string `json:"safe_address"`
	ChainID        int64  `json:"chain_id"`
	To             string `json:"to"`
	Value          string `json:"value"` // 十进制 wei
	Data           string `json:"data"`  // 0x 前缀 hex, 可为空
	Operation      uint8  `json:"operation"`
	SafeTxGas      string `json:"safe_tx_gas"`
	BaseGas        string `json:"base_gas"`
	GasPrice       string `json:"gas_price"`
	GasToken       string `json:"gas_token"`
	RefundReceiver string `json:"refund_receiver"`
	Nonce          uint64 `json:"nonce"`
	SafeTxHash     string `json:"safe_tx_hash"`
	Sender         string `json:"sender"`
	Signature      string `json:"signature"` // 提案人的首个签名, 0x hex
}

// ProposalAck 提案已落库的回执。
type ProposalAck struct {
	ID         uint64 `json:"id"`
	SafeTxHash string `json:"safe_tx_hash"`
}

// Confirmation 是单个 owner 已提交的签名。
type Confirmation struct {
	Owner       string    `json:"owner"`
	Signature   string    `json:"signature"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// ConfirmationAck 签名提交后的最新计数。
type ConfirmationAck struct {
	SafeTxHash             string `json:"safe_tx_hash"`
	ConfirmationsSubmitted int    `json:"confirmations_submitted"`
}

// ConfirmationList 某笔交易已收集的全部签名。
type ConfirmationList struct {
	SafeTxHash             string         `json:"safe_tx_hash"`
	ConfirmationsRequired  int            `json:"confirmations_required"`
	ConfirmationsSubmitted int            `json:"confirmations_submitted"`
	Results                []Confirmation `json:"results"`
	NextCursor             string         `json:"next_cursor,omitempty"`
}

// ListOptions 控制确认列表查询。零值即默认行为。
type ListOptions struct {
	Trusted  bool   // true = 只返回服务端已验证过 owner 身份的签名; 默认返回全部
	Cursor   string // 分页游标; 空 = 第一页
	Timezone string // 时间戳时区, IANA 名称; 空 = UTC
}

// Transaction 把 wire 格式还原成核心交易类型。
// 数值解析失败按编码错误处理，绝不静默猜测。
func (r *ProposalRequest) Transaction() (safetx.SafeTransaction, error) {
	var tx safetx.SafeTransaction

	value, err := parseDecimal("value", r.Value)
	if err != nil {
		return tx, err
	}
	safeTxGas, err := parseDecimal("safe_tx_gas", r.SafeTxGas)
	if err != nil {
		return tx, err
	}
	baseGas, err := parseDecimal("base_gas", r.BaseGas)
	if err != nil {
		return tx, err
	}
	gasPrice, err := parseDecimal("gas_price", r.GasPrice)
	if err != nil {
		return tx, err
	}

	tx = safetx.SafeTransaction{
		To:             common.HexToAddress(r.To),
		Value:          value,
		Data:           common.FromHex(r.Data),
		Operation:      safetx.Operation(r.Operation),
		SafeTxGas:      safeTxGas,
		BaseGas:        baseGas,
		GasPrice:       gasPrice,
		GasToken:       common.HexToAddress(r.GasToken),
		RefundReceiver: common.HexToAddress(r.RefundReceiver),
		Nonce:          new(big.Int).SetUint64(r.Nonce),
	}
	if err := tx.Validate(); err != nil {
		return safetx.SafeTransaction{}, err
	}
	return tx, nil
}

// Context 还原多签实例标识。
func (r *ProposalRequest) Context() safetx.SafeContext {
	return safetx.SafeContext{
		SafeAddress: common.HexToAddress(r.SafeAddress),
		ChainID:     big.NewInt(r.ChainID),
	}
}

// NewProposalRequest 从核心类型构造 wire 请求。
func NewProposalRequest(ctx safetx.SafeContext, tx safetx.SafeTransaction, hash common.Hash, sender common.Address, signature []byte) *ProposalRequest {
	return &ProposalRequest{
		SafeAddress:    ctx.SafeAddress.Hex(),
		ChainID:        ctx.ChainID.Int64(),
		To:             tx.To.Hex(),
		Value:          tx.Value.String(),
		Data:           hexOrEmpty(tx.Data),
		Operation:      uint8(tx.Operation),
		SafeTxGas:      tx.SafeTxGas.String(),
		BaseGas:        tx.BaseGas.String(),
		GasPrice:       tx.GasPrice.String(),
		GasToken:       tx.GasToken.Hex(),
		RefundReceiver: tx.RefundReceiver.Hex(),
		Nonce:          tx.Nonce.Uint64(),
		SafeTxHash:     hash.Hex(),
		Sender:         sender.Hex(),
		Signature:      common.Bytes2Hex(signature),
	}
}

func parseDecimal(name, s string) (*big.Int, error) {
	if s == "" {
		return big.NewInt(0), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a decimal integer: %q", safetx.ErrInvalidEncoding, name, s)
	}
	return v, nil
}

func hexOrEmpty(data []byte) string {
	if len(data) == 0 {
		return "0x"
	}
	return "0x" + common.Bytes2Hex(data)
}
