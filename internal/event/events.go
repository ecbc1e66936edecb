package event

// Topic 常量
const (
	TopicProposal     = "safe_events_proposal"
	TopicConfirmation = "safe_events_confirmation"
	TopicExecution    = "safe_events_execution"
)

// ProposalCreatedEvent 提案创建事件
// Topic: safe_events_proposal
type ProposalCreatedEvent struct {
	SafeTxHash  string `json:"safe_tx_hash"`
	SafeAddress string `json:"safe_address"`
	ChainID     int64  `json:"chain_id"`
	Proposer    string `json:"proposer"`
}

// ConfirmationAddedEvent 新增签名确认事件
// Topic: safe_events_confirmation
type ConfirmationAddedEvent struct {
	SafeTxHash string `json:"safe_tx_hash"`
	Owner      string `json:"owner"`
	Confirmed  int    `json:"confirmed"` // 当前确认数
	Required   int    `json:"required"`  // 门槛
}

// QuorumReachedEvent 确认数达标事件，唤醒执行方
// Topic: safe_events_confirmation (与确认事件同流，Consumer 按 Confirmed>=Required 区分)
type QuorumReachedEvent struct {
	SafeTxHash  string `json:"safe_tx_hash"`
	SafeAddress string `json:"safe_address"`
	ChainID     int64  `json:"chain_id"`
}

// ExecutionResultEvent 执行结果事件
// Topic: safe_events_execution
type ExecutionResultEvent struct {
	SafeTxHash string `json:"safe_tx_hash"`
	ExecTxHash string `json:"exec_tx_hash"`
	Status     string `json:"status"` // SUCCESS / FAILED
}
