package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"safe-core/internal/event"
	"safe-core/internal/model"
	"safe-core/pkg/cache"
	"safe-core/pkg/errno"
	"safe-core/pkg/ethaddr"
	"safe-core/pkg/logger"
	"safe-core/pkg/monitor"
	"safe-core/pkg/safetx"
	"safe-core/pkg/txdirectory"
)

const (
	safeInfoCacheKey = "safe:info:"
	safeInfoCacheTTL = 5 * time.Minute
	confirmationPage = 100
)

// DirectoryService 实现 Directory 接口
// 所有验证 (复算哈希、恢复签名人、owner 归属) 都在服务端做，
// 客户端提交的任何字段都不可信
type DirectoryService struct {
	db      *gorm.DB
	cache   cache.Cache
	chainID int64
}

func NewDirectoryService(db *gorm.DB, c cache.Cache, chainID int64) *DirectoryService {
	return &DirectoryService{db: db, cache: c, chainID: chainID}
}

// RegisterSafe 登记 Safe 账户。已存在则更新 owners/threshold (管理操作，不走链上校验)
func (s *DirectoryService) RegisterSafe(ctx context.Context, info *txdirectory.SafeInfo) error {
	addr, err := ethaddr.Parse(info.Address)
	if err != nil {
		return errno.ErrBind
	}

	owners := make([]string, 0, len(info.Owners))
	for _, o := range info.Owners {
		b, err := ethaddr.Parse(o)
		if err != nil {
			return errno.ErrBind
		}
		owners = append(owners, ethaddr.ToChecksumAddress(b))
	}
	if info.Threshold < 1 || info.Threshold > len(owners) {
		return errno.ErrBind
	}

	ownersJSON, err := json.Marshal(owners)
	if err != nil {
		return err
	}

	chainID := info.ChainID
	if chainID == 0 {
		chainID = s.chainID
	}

	account := model.SafeAccount{
		Address:   ethaddr.ToChecksumAddress(addr),
		ChainID:   chainID,
		Owners:    string(ownersJSON),
		Threshold: info.Threshold,
		Nonce:     info.Nonce,
	}

	err = s.db.WithContext(ctx).
		Where("address = ? AND chain_id = ?", account.Address, account.ChainID).
		Assign(map[string]interface{}{
			"owners":    account.Owners,
			"threshold": account.Threshold,
		}).
		FirstOrCreate(&account).Error
	if err != nil {
		logger.Error("register safe failed", zap.String("address", account.Address), zap.Error(err))
		return errno.ErrDatabase
	}

	// 账户变更后清缓存
	_ = s.cache.Delete(ctx, safeInfoCacheKey+account.Address)
	return nil
}

// GetSafeInfo 查询 Safe 账户，Cache-Aside
func (s *DirectoryService) GetSafeInfo(ctx context.Context, safeAddress string) (*txdirectory.SafeInfo, error) {
	addr, err := ethaddr.Parse(safeAddress)
	if err != nil {
		return nil, errno.ErrBind
	}
	canonical := ethaddr.ToChecksumAddress(addr)

	// 1. 查缓存
	var info txdirectory.SafeInfo
	if err := s.cache.Get(ctx, safeInfoCacheKey+canonical, &info); err == nil {
		return &info, nil
	}

	// 2. 查库
	account, err := s.loadAccount(ctx, canonical)
	if err != nil {
		return nil, err
	}

	var owners []string
	if err := json.Unmarshal([]byte(account.Owners), &owners); err != nil {
		return nil, fmt.Errorf("corrupt owners for %s: %w", canonical, err)
	}

	info = txdirectory.SafeInfo{
		Address:   account.Address,
		ChainID:   account.ChainID,
		Owners:    owners,
		Threshold: account.Threshold,
		Nonce:     account.Nonce,
	}

	// 3. 回写缓存
	_ = s.cache.Set(ctx, safeInfoCacheKey+canonical, &info, safeInfoCacheTTL)
	return &info, nil
}

// ProposeTransaction 处理新提案
// 验证链: 复算哈希 → Safe 存在 → nonce 未过期 → 签名恢复 = sender ∈ owners
// 全部通过后在一个 DB 事务里写入 提案 + 首个确认 + outbox 事件
func (s *DirectoryService) ProposeTransaction(ctx context.Context, req *txdirectory.ProposalRequest) (*txdirectory.ProposalAck, error) {
	tx, err := req.Transaction()
	if err != nil {
		return nil, errno.ErrBind
	}
	sctx := req.Context()

	// 1. 服务端复算哈希，不信任客户端提交的值
	computed, err := safetx.ComputeTransactionHash(sctx, tx)
	if err != nil {
		return nil, errno.ErrBind
	}
	if computed != common.HexToHash(req.SafeTxHash) {
		if monitor.Business != nil {
			monitor.Business.ConfirmationsRejected.WithLabelValues("hash_mismatch").Inc()
		}
		return nil, errno.ErrHashMismatch
	}

	// 2. Safe 必须已登记
	account, err := s.loadAccount(ctx, sctx.SafeAddress.Hex())
	if err != nil {
		return nil, err
	}
	if req.Nonce < account.Nonce {
		return nil, errno.ErrStaleNonce
	}

	// 3. 验证提案人签名
	signer, err := s.verifyOwnerSignature(account, computed, common.FromHex(req.Signature))
	if err != nil {
		return nil, err
	}
	if req.Sender != "" && common.HexToAddress(req.Sender) != signer {
		return nil, errno.ErrBadSignature
	}

	// 幂等: 同一笔交易重复提案直接返回已有记录
	var existing model.MultisigTransaction
	if err := s.db.WithContext(ctx).Where("safe_tx_hash = ?", computed.Hex()).First(&existing).Error; err == nil {
		return &txdirectory.ProposalAck{ID: existing.ID, SafeTxHash: existing.SafeTxHash}, nil
	}

	record := model.MultisigTransaction{
		SafeAddress: account.Address,
		ChainID:     account.ChainID,
		SafeTxHash:  computed.Hex(),
		To:          tx.To.Hex(),
		Value:       decimal.NewFromBigInt(tx.Value, 0),
		Data:        tx.Data,
		Operation:   uint8(tx.Operation),
		SafeTxGas:   decimal.NewFromBigInt(tx.SafeTxGas, 0),
		BaseGas:     decimal.NewFromBigInt(tx.BaseGas, 0),
		GasPrice:    decimal.NewFromBigInt(tx.GasPrice, 0),
		GasToken:    tx.GasToken.Hex(),
		RefundRecv:  tx.RefundReceiver.Hex(),
		Nonce:       req.Nonce,
		Proposer:    signer.Hex(),
		Status:      model.TxStatusPending,
	}

	payload, _ := json.Marshal(event.ProposalCreatedEvent{
		SafeTxHash:  record.SafeTxHash,
		SafeAddress: record.SafeAddress,
		ChainID:     record.ChainID,
		Proposer:    record.Proposer,
	})

	err = s.db.WithContext(ctx).Transaction(func(dbtx *gorm.DB) error {
		if err := dbtx.Create(&record).Error; err != nil {
			return err
		}
		conf := model.Confirmation{
			SafeTxHash: record.SafeTxHash,
			Owner:      signer.Hex(),
			Signature:  common.FromHex(req.Signature),
		}
		if err := dbtx.Create(&conf).Error; err != nil {
			return err
		}
		// Transactional Outbox: 事件与业务数据同一事务落库，Relay 负责投递
		outbox := model.OutboxMessage{
			Topic:   event.TopicProposal,
			Key:     record.SafeTxHash,
			Payload: payload,
		}
		return dbtx.Create(&outbox).Error
	})
	if err != nil {
		logger.Error("store proposal failed", zap.String("safe_tx_hash", record.SafeTxHash), zap.Error(err))
		return nil, errno.ErrDatabase
	}

	if monitor.Business != nil {
		monitor.Business.ProposalsTotal.WithLabelValues(strconv.FormatInt(record.ChainID, 10)).Inc()
	}
	logger.Info("proposal stored",
		zap.String("safe_tx_hash", record.SafeTxHash),
		zap.String("proposer", record.Proposer))

	return &txdirectory.ProposalAck{ID: record.ID, SafeTxHash: record.SafeTxHash}, nil
}

// SubmitConfirmation 追加一个 owner 签名
// 凑够门槛时把交易推进到 QUORUM 并写入唤醒事件
func (s *DirectoryService) SubmitConfirmation(ctx context.Context, safeTxHash string, signature string) (*txdirectory.ConfirmationAck, error) {
	hash := common.HexToHash(safeTxHash)

	var record model.MultisigTransaction
	if err := s.db.WithContext(ctx).Where("safe_tx_hash = ?", hash.Hex()).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errno.ErrTransactionNotFound
		}
		return nil, errno.ErrDatabase
	}

	account, err := s.loadAccount(ctx, record.SafeAddress)
	if err != nil {
		return nil, err
	}

	sigBytes := common.FromHex(signature)
	signer, err := s.verifyOwnerSignature(account, hash, sigBytes)
	if err != nil {
		return nil, err
	}

	// 重复确认前置检查 (唯一索引是兜底)
	var dup int64
	s.db.WithContext(ctx).Model(&model.Confirmation{}).
		Where("safe_tx_hash = ? AND owner = ?", hash.Hex(), signer.Hex()).Count(&dup)
	if dup > 0 {
		if monitor.Business != nil {
			monitor.Business.ConfirmationsRejected.WithLabelValues("duplicate_signer").Inc()
		}
		return nil, errno.ErrDuplicateSigner
	}

	var confirmed int64
	err = s.db.WithContext(ctx).Transaction(func(dbtx *gorm.DB) error {
		conf := model.Confirmation{
			SafeTxHash: hash.Hex(),
			Owner:      signer.Hex(),
			Signature:  sigBytes,
		}
		if err := dbtx.Create(&conf).Error; err != nil {
			return err
		}

		if err := dbtx.Model(&model.Confirmation{}).
			Where("safe_tx_hash = ?", hash.Hex()).Count(&confirmed).Error; err != nil {
			return err
		}

		if int(confirmed) >= account.Threshold && record.Status == model.TxStatusPending {
			if err := dbtx.Model(&record).Update("status", model.TxStatusQuorum).Error; err != nil {
				return err
			}
			payload, _ := json.Marshal(event.QuorumReachedEvent{
				SafeTxHash:  record.SafeTxHash,
				SafeAddress: record.SafeAddress,
				ChainID:     record.ChainID,
			})
			return dbtx.Create(&model.OutboxMessage{
				Topic:   event.TopicConfirmation,
				Key:     record.SafeTxHash,
				Payload: payload,
			}).Error
		}

		payload, _ := json.Marshal(event.ConfirmationAddedEvent{
			SafeTxHash: record.SafeTxHash,
			Owner:      signer.Hex(),
			Confirmed:  int(confirmed),
			Required:   account.Threshold,
		})
		return dbtx.Create(&model.OutboxMessage{
			Topic:   event.TopicConfirmation,
			Key:     record.SafeTxHash,
			Payload: payload,
		}).Error
	})
	if err != nil {
		logger.Error("store confirmation failed", zap.String("safe_tx_hash", hash.Hex()), zap.Error(err))
		return nil, errno.ErrDatabase
	}

	if monitor.Business != nil {
		monitor.Business.ConfirmationsTotal.WithLabelValues(strconv.FormatInt(record.ChainID, 10)).Inc()
		if int(confirmed) >= account.Threshold {
			monitor.Business.QuorumReachedTotal.WithLabelValues(strconv.FormatInt(record.ChainID, 10)).Inc()
		}
	}

	return &txdirectory.ConfirmationAck{
		SafeTxHash:             record.SafeTxHash,
		ConfirmationsSubmitted: int(confirmed),
	}, nil
}

// GetConfirmations 返回签名列表，ID 游标分页
// 入库的签名都已通过 owner 验证，trusted=true 与默认行为一致
func (s *DirectoryService) GetConfirmations(ctx context.Context, safeTxHash string, opts txdirectory.ListOptions) (*txdirectory.ConfirmationList, error) {
	hash := common.HexToHash(safeTxHash)

	var record model.MultisigTransaction
	if err := s.db.WithContext(ctx).Where("safe_tx_hash = ?", hash.Hex()).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errno.ErrTransactionNotFound
		}
		return nil, errno.ErrDatabase
	}

	account, err := s.loadAccount(ctx, record.SafeAddress)
	if err != nil {
		return nil, err
	}

	loc := time.UTC
	if opts.Timezone != "" {
		if l, err := time.LoadLocation(opts.Timezone); err == nil {
			loc = l
		}
	}

	query := s.db.WithContext(ctx).Where("safe_tx_hash = ?", hash.Hex())
	if opts.Cursor != "" {
		afterID, err := strconv.ParseUint(opts.Cursor, 10, 64)
		if err != nil {
			return nil, errno.ErrBind
		}
		query = query.Where("id > ?", afterID)
	}

	var confs []model.Confirmation
	if err := query.Order("id asc").Limit(confirmationPage).Find(&confs).Error; err != nil {
		return nil, errno.ErrDatabase
	}

	var total int64
	s.db.WithContext(ctx).Model(&model.Confirmation{}).
		Where("safe_tx_hash = ?", hash.Hex()).Count(&total)

	list := &txdirectory.ConfirmationList{
		SafeTxHash:             record.SafeTxHash,
		ConfirmationsRequired:  account.Threshold,
		ConfirmationsSubmitted: int(total),
		Results:                make([]txdirectory.Confirmation, 0, len(confs)),
	}
	for _, c := range confs {
		list.Results = append(list.Results, txdirectory.Confirmation{
			Owner:       c.Owner,
			Signature:   "0x" + common.Bytes2Hex(c.Signature),
			SubmittedAt: c.CreatedAt.In(loc),
		})
	}
	if len(confs) == confirmationPage {
		list.NextCursor = strconv.FormatUint(confs[len(confs)-1].ID, 10)
	}
	return list, nil
}

func (s *DirectoryService) loadAccount(ctx context.Context, address string) (*model.SafeAccount, error) {
	addr, err := ethaddr.Parse(address)
	if err != nil {
		return nil, errno.ErrBind
	}
	var account model.SafeAccount
	err = s.db.WithContext(ctx).
		Where("address = ?", ethaddr.ToChecksumAddress(addr)).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errno.ErrSafeNotFound
		}
		return nil, errno.ErrDatabase
	}
	return &account, nil
}

// verifyOwnerSignature 恢复签名人并检查 owner 归属
func (s *DirectoryService) verifyOwnerSignature(account *model.SafeAccount, hash common.Hash, sig []byte) (common.Address, error) {
	signer, err := safetx.RecoverSigner(hash, sig)
	if err != nil {
		if monitor.Business != nil {
			monitor.Business.ConfirmationsRejected.WithLabelValues("bad_signature").Inc()
		}
		return common.Address{}, errno.ErrBadSignature
	}

	var owners []string
	if err := json.Unmarshal([]byte(account.Owners), &owners); err != nil {
		return common.Address{}, errno.ErrDatabase
	}
	for _, o := range owners {
		if common.HexToAddress(o) == signer {
			return signer, nil
		}
	}
	if monitor.Business != nil {
		monitor.Business.ConfirmationsRejected.WithLabelValues("not_owner").Inc()
	}
	return common.Address{}, errno.ErrNotAnOwner
}
