package service

import (
	"context"

	"safe-core/pkg/txdirectory"
)

// Directory 是目录服务的业务接口: 存储提案、验证签名、索引确认。
// HTTP handler 只做参数绑定，所有规则在这里实现。
type Directory interface {
	// GetSafeInfo 返回 Safe 的 owner 集合、门槛和当前 nonce
	GetSafeInfo(ctx context.Context, safeAddress string) (*txdirectory.SafeInfo, error)

	// RegisterSafe 登记一个新的 Safe 账户 (owners + threshold)
	RegisterSafe(ctx context.Context, info *txdirectory.SafeInfo) error

	// ProposeTransaction 接收新提案: 复算哈希、验证提案人签名并落库
	ProposeTransaction(ctx context.Context, req *txdirectory.ProposalRequest) (*txdirectory.ProposalAck, error)

	// SubmitConfirmation 为已有提案追加一个 owner 签名
	SubmitConfirmation(ctx context.Context, safeTxHash string, signature string) (*txdirectory.ConfirmationAck, error)

	// GetConfirmations 返回某笔交易已收集的签名列表
	GetConfirmations(ctx context.Context, safeTxHash string, opts txdirectory.ListOptions) (*txdirectory.ConfirmationList, error)
}
