package service

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"math/big"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"safe-core/internal/event"
	"safe-core/internal/model"
	"safe-core/internal/service/mq"
	"safe-core/pkg/errno"
	"safe-core/pkg/logger"
	"safe-core/pkg/monitor"
	"safe-core/pkg/safetx"
	"safe-core/pkg/sigset"
	"safe-core/pkg/utils/lock"
)

const (
	executorPollInterval = 10 * time.Second
	executorLockTTL      = 2 * time.Minute
	receiptWaitTimeout   = 3 * time.Minute
)

// ExecutorService 负责把确认数达标的多签交易真正推上链:
// 从确认表组装签名授权串，打包 execTransaction calldata，
// 用执行方自己的私钥签外层 EIP-155 交易并广播。
//
// 多实例部署时靠 Redis 锁保证同一笔交易只有一个执行者。
type ExecutorService struct {
	db        *gorm.DB
	ethClient *ethclient.Client
	key       *ecdsa.PrivateKey
	from      common.Address
	chainID   *big.Int
	lock      lock.DistributedLock
	coord     *sigset.Coordinator

	wake chan struct{}
}

func NewExecutorService(db *gorm.DB, rpcURL string, key *ecdsa.PrivateKey, chainID int64, dlock lock.DistributedLock) (*ExecutorService, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		// Dial 对 http(s) 是惰性的，这里失败多半是 URL 格式问题
		return nil, err
	}

	return &ExecutorService{
		db:        db,
		ethClient: client,
		key:       key,
		from:      crypto.PubkeyToAddress(key.PublicKey),
		chainID:   big.NewInt(chainID),
		lock:      dlock,
		coord:     sigset.NewCoordinator(),
		wake:      make(chan struct{}, 1),
	}, nil
}

// Start 启动轮询。MQ 事件只用来提前唤醒，数据库才是执行状态的唯一事实源
func (s *ExecutorService) Start(ctx context.Context) {
	logger.Info("executor started", zap.String("from", s.from.Hex()))
	ticker := time.NewTicker(executorPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("executor stopped")
			return
		case <-ticker.C:
			s.processQuorumTransactions(ctx)
		case <-s.wake:
			s.processQuorumTransactions(ctx)
		}
	}
}

// WakeHandler 返回给 MQ Consumer 的回调: 收到确认事件就触发一次扫描
func (s *ExecutorService) WakeHandler() func(msg *mq.Message) error {
	return func(msg *mq.Message) error {
		select {
		case s.wake <- struct{}{}:
		default: // 已有待处理的唤醒信号
		}
		return nil
	}
}

func (s *ExecutorService) processQuorumTransactions(ctx context.Context) {
	var records []model.MultisigTransaction
	if err := s.db.Where("status = ?", model.TxStatusQuorum).Limit(10).Find(&records).Error; err != nil {
		logger.Error("executor query failed", zap.Error(err))
		return
	}

	for i := range records {
		s.executeOne(ctx, &records[i])
	}

	s.updatePendingGauge(ctx)
}

// updatePendingGauge 刷新在途交易水位 (PENDING + QUORUM)，按链分组
func (s *ExecutorService) updatePendingGauge(ctx context.Context) {
	if monitor.Business == nil {
		return
	}

	var rows []struct {
		ChainID int64
		Total   int64
	}
	err := s.db.WithContext(ctx).Model(&model.MultisigTransaction{}).
		Select("chain_id, count(*) as total").
		Where("status IN ?", []string{model.TxStatusPending, model.TxStatusQuorum}).
		Group("chain_id").
		Scan(&rows).Error
	if err != nil {
		logger.Error("pending gauge query failed", zap.Error(err))
		return
	}

	monitor.Business.PendingTransactions.Reset() // 某条链清零后不留旧值
	for _, r := range rows {
		monitor.Business.PendingTransactions.
			WithLabelValues(strconv.FormatInt(r.ChainID, 10)).Set(float64(r.Total))
	}
}

func (s *ExecutorService) executeOne(ctx context.Context, record *model.MultisigTransaction) {
	hash := common.HexToHash(record.SafeTxHash)

	// 1. 抢锁，抢不到说明别的实例在处理
	ok, err := s.lock.Acquire(ctx, "exec:"+record.SafeTxHash, executorLockTTL)
	if err != nil || !ok {
		return
	}
	defer s.lock.Release(ctx, "exec:"+record.SafeTxHash)

	// 2. 组装签名授权串
	bundle, threshold, err := s.buildBundle(ctx, record, hash)
	if err != nil {
		if errors.Is(err, errno.ErrBelowQuorum) {
			// 有效签名数掉到门槛以下 (部分签名校验被剔除)，
			// 回退到 PENDING 重新收集，而不是反复空转
			logger.Warn("confirmations below quorum, reverting",
				zap.String("safe_tx_hash", record.SafeTxHash))
			if err := s.db.Model(record).Update("status", model.TxStatusPending).Error; err != nil {
				logger.Error("revert status failed", zap.String("safe_tx_hash", record.SafeTxHash), zap.Error(err))
			}
			return
		}
		logger.Error("build bundle failed", zap.String("safe_tx_hash", record.SafeTxHash), zap.Error(err))
		return
	}

	// 3. 还原交易并打包 calldata
	tx := safeTransactionFromModel(record)
	calldata, err := safetx.EncodeExecTransaction(tx, bundle)
	if err != nil {
		logger.Error("encode execTransaction failed", zap.String("safe_tx_hash", record.SafeTxHash), zap.Error(err))
		return
	}

	logger.Info("executing",
		zap.String("safe_tx_hash", record.SafeTxHash),
		zap.Int("signatures", len(bundle)/safetx.SignatureLength),
		zap.Int("threshold", threshold))

	// 4. 签外层 EIP-155 交易并广播
	execTx, err := s.broadcast(ctx, common.HexToAddress(record.SafeAddress), calldata, tx)
	if err != nil {
		logger.Error("broadcast failed", zap.String("safe_tx_hash", record.SafeTxHash), zap.Error(err))
		return
	}

	if err := s.db.Model(record).Updates(map[string]interface{}{
		"status":       model.TxStatusSubmitted,
		"exec_tx_hash": execTx.Hash().Hex(),
	}).Error; err != nil {
		logger.Error("mark submitted failed", zap.String("safe_tx_hash", record.SafeTxHash), zap.Error(err))
		return
	}

	// 5. 等回执。回执 status=0 是链上执行失败，不是协调失败，不重试
	s.watchReceipt(ctx, record, execTx)
}

// buildBundle 把数据库里的确认灌进内存坐标器，产出排序拼接好的授权串
func (s *ExecutorService) buildBundle(ctx context.Context, record *model.MultisigTransaction, hash common.Hash) ([]byte, int, error) {
	var account model.SafeAccount
	if err := s.db.Where("address = ? AND chain_id = ?", record.SafeAddress, record.ChainID).
		First(&account).Error; err != nil {
		return nil, 0, err
	}

	var confs []model.Confirmation
	if err := s.db.Where("safe_tx_hash = ?", record.SafeTxHash).Find(&confs).Error; err != nil {
		return nil, 0, err
	}

	start := time.Now()
	s.coord.Drop(hash) // 以数据库为准，重建集合
	for _, c := range confs {
		err := s.coord.AddSignature(hash, sigset.Signature{
			Signer: common.HexToAddress(c.Owner),
			Bytes:  c.Signature,
		})
		if err != nil {
			logger.Warn("skip confirmation", zap.String("owner", c.Owner), zap.Error(err))
		}
	}

	bundle, err := s.coord.BuildAuthorizationBundle(hash, account.Threshold)
	if err != nil {
		if errors.Is(err, sigset.ErrInsufficientSignatures) {
			return nil, 0, errno.ErrBelowQuorum
		}
		return nil, 0, err
	}
	if monitor.Business != nil {
		monitor.Business.BundleBuildDuration.Observe(time.Since(start).Seconds())
	}
	return bundle, account.Threshold, nil
}

func (s *ExecutorService) broadcast(ctx context.Context, safeAddr common.Address, calldata []byte, tx safetx.SafeTransaction) (*types.Transaction, error) {
	nonce, err := s.ethClient.PendingNonceAt(ctx, s.from)
	if err != nil {
		return nil, err
	}
	gasPrice, err := s.ethClient.SuggestGasPrice(ctx)
	if err != nil {
		return nil, err
	}

	outer := types.NewTransaction(nonce, safeAddr, big.NewInt(0), safetx.EstimateExecGas(tx), gasPrice, calldata)
	signed, err := types.SignTx(outer, types.NewEIP155Signer(s.chainID), s.key)
	if err != nil {
		return nil, err
	}
	if err := s.ethClient.SendTransaction(ctx, signed); err != nil {
		return nil, err
	}
	return signed, nil
}

func (s *ExecutorService) watchReceipt(ctx context.Context, record *model.MultisigTransaction, execTx *types.Transaction) {
	waitCtx, cancel := context.WithTimeout(ctx, receiptWaitTimeout)
	defer cancel()

	receipt, err := bind.WaitMined(waitCtx, s.ethClient, execTx)
	if err != nil {
		// 超时/断连: 状态留在 SUBMITTED，下次人工或补偿任务处理
		logger.Error("wait receipt failed", zap.String("exec_tx_hash", execTx.Hash().Hex()), zap.Error(err))
		return
	}

	status := model.TxStatusSuccess
	if receipt.Status != types.ReceiptStatusSuccessful {
		status = model.TxStatusFailed
	}

	if err := s.db.Model(record).Update("status", status).Error; err != nil {
		logger.Error("mark final status failed", zap.String("safe_tx_hash", record.SafeTxHash), zap.Error(err))
		return
	}

	payload, _ := json.Marshal(event.ExecutionResultEvent{
		SafeTxHash: record.SafeTxHash,
		ExecTxHash: execTx.Hash().Hex(),
		Status:     status,
	})
	if err := s.db.Create(&model.OutboxMessage{
		Topic:   event.TopicExecution,
		Key:     record.SafeTxHash,
		Payload: payload,
	}).Error; err != nil {
		logger.Error("store execution event failed", zap.Error(err))
	}

	if monitor.Business != nil {
		monitor.Business.ExecutionsTotal.WithLabelValues(status).Inc()
	}
	logger.Info("execution finished",
		zap.String("safe_tx_hash", record.SafeTxHash),
		zap.String("exec_tx_hash", execTx.Hash().Hex()),
		zap.String("status", status))
}

// safeTransactionFromModel 把数据库记录还原成核心交易类型
func safeTransactionFromModel(record *model.MultisigTransaction) safetx.SafeTransaction {
	return safetx.SafeTransaction{
		To:             common.HexToAddress(record.To),
		Value:          record.Value.BigInt(),
		Data:           record.Data,
		Operation:      safetx.Operation(record.Operation),
		SafeTxGas:      record.SafeTxGas.BigInt(),
		BaseGas:        record.BaseGas.BigInt(),
		GasPrice:       record.GasPrice.BigInt(),
		GasToken:       common.HexToAddress(record.GasToken),
		RefundReceiver: common.HexToAddress(record.RefundRecv),
		Nonce:          new(big.Int).SetUint64(record.Nonce),
	}
}
