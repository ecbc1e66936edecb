package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// 交易状态机
const (
	TxStatusPending   = "PENDING"   // 等待签名凑够门槛
	TxStatusQuorum    = "QUORUM"    // 确认数已达标，等待执行
	TxStatusSubmitted = "SUBMITTED" // execTransaction 已广播，等待回执
	TxStatusSuccess   = "SUCCESS"
	TxStatusFailed    = "FAILED"
)

// SafeAccount 多签账户表
// Owners 存 JSON 数组 (checksum 地址)，目录服务启动时由管理员登记或从链上同步
type SafeAccount struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Address   string    `gorm:"type:varchar(42);not null;uniqueIndex:idx_safe_chain" json:"address"`
	ChainID   int64     `gorm:"not null;uniqueIndex:idx_safe_chain" json:"chain_id"`
	Owners    string    `gorm:"type:text;not null" json:"owners"` // JSON array of checksum addresses
	Threshold int       `gorm:"not null" json:"threshold"`
	Nonce     uint64    `gorm:"not null;default:0" json:"nonce"` // 下一笔待执行交易的 nonce
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MultisigTransaction 多签交易表
// 核心设计: safe_tx_hash 唯一约束，同一笔交易重复提案直接冲突
// 金额与 gas 字段用 decimal(78,0) 存储，足够容纳 uint256
type MultisigTransaction struct {
	ID          uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	SafeAddress string          `gorm:"type:varchar(42);not null;index" json:"safe_address"`
	ChainID     int64           `gorm:"not null" json:"chain_id"`
	SafeTxHash  string          `gorm:"type:varchar(66);not null;unique" json:"safe_tx_hash"`
	To          string          `gorm:"type:varchar(42);not null" json:"to"`
	Value       decimal.Decimal `gorm:"type:decimal(78,0);not null;default:0" json:"value"`
	Data        []byte          `gorm:"type:bytea" json:"data,omitempty"`
	Operation   uint8           `gorm:"not null;default:0" json:"operation"`
	SafeTxGas   decimal.Decimal `gorm:"type:decimal(78,0);not null;default:0" json:"safe_tx_gas"`
	BaseGas     decimal.Decimal `gorm:"type:decimal(78,0);not null;default:0" json:"base_gas"`
	GasPrice    decimal.Decimal `gorm:"type:decimal(78,0);not null;default:0" json:"gas_price"`
	GasToken    string          `gorm:"type:varchar(42);not null" json:"gas_token"`
	RefundRecv  string          `gorm:"type:varchar(42);not null" json:"refund_receiver"`
	Nonce       uint64          `gorm:"not null" json:"nonce"`
	Proposer    string          `gorm:"type:varchar(42);not null" json:"proposer"`
	Status      string          `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`
	ExecTxHash  string          `gorm:"type:varchar(66)" json:"exec_tx_hash,omitempty"` // 外层以太坊交易哈希
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	DeletedAt   gorm.DeletedAt  `gorm:"index" json:"-"`

	// 关联
	Confirmations []Confirmation `gorm:"foreignKey:SafeTxHash;references:SafeTxHash" json:"confirmations,omitempty"`
}

// Confirmation 签名确认表
// (safe_tx_hash, owner) 唯一: 同一 owner 对同一笔交易只能确认一次
type Confirmation struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	SafeTxHash string    `gorm:"type:varchar(66);not null;uniqueIndex:idx_hash_owner" json:"safe_tx_hash"`
	Owner      string    `gorm:"type:varchar(42);not null;uniqueIndex:idx_hash_owner" json:"owner"`
	Signature  []byte    `gorm:"type:bytea;not null" json:"signature"` // 65 字节 r‖s‖v
	CreatedAt  time.Time `json:"created_at"`
}

// OutboxMessage 本地消息表 (Transactional Outbox)
type OutboxMessage struct {
	ID        uint64         `gorm:"primaryKey;autoIncrement" json:"id"`
	Topic     string         `gorm:"type:varchar(255);not null" json:"topic"`
	Key       string         `gorm:"type:varchar(255)" json:"key"` // 分区键 (safe_tx_hash)
	Payload   []byte         `gorm:"type:text;not null" json:"payload"`
	Status    string         `gorm:"type:varchar(50);not null;default:'PENDING';index" json:"status"` // PENDING, SENT, FAILED
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName 指定表名
func (SafeAccount) TableName() string {
	return "safe_accounts"
}

func (MultisigTransaction) TableName() string {
	return "multisig_transactions"
}

func (Confirmation) TableName() string {
	return "confirmations"
}

func (OutboxMessage) TableName() string {
	return "outbox_messages"
}
