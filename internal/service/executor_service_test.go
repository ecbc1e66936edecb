package service

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"safe-core/internal/model"
	"safe-core/pkg/monitor"
	"safe-core/pkg/sigset"
)

// alwaysLock 单测里代替 Redis 锁
type alwaysLock struct{}

func (alwaysLock) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return true, nil
}

func (alwaysLock) Release(ctx context.Context, key string) error { return nil }

func newExecutorTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(model.AllModels()...))
	return db
}

// QUORUM 状态但有效签名不够门槛 (签名被剔除后)，应回退到 PENDING 重新收集，
// 而不是每轮轮询反复尝试组装
func TestExecuteOneBelowQuorumReverts(t *testing.T) {
	db := newExecutorTestDB(t)

	account := model.SafeAccount{
		Address:   "0x5AfE5AFe5afE5AFe5afE5Afe5aFE5Afe5aFE5AfE",
		ChainID:   100,
		Owners:    `["0x1111111111111111111111111111111111111111","0x2222222222222222222222222222222222222222"]`,
		Threshold: 2,
	}
	require.NoError(t, db.Create(&account).Error)

	hash := common.HexToHash("0x01")
	record := model.MultisigTransaction{
		SafeAddress: account.Address,
		ChainID:     account.ChainID,
		SafeTxHash:  hash.Hex(),
		To:          "0x1111111111111111111111111111111111111111",
		GasToken:    common.Address{}.Hex(),
		RefundRecv:  common.Address{}.Hex(),
		Nonce:       0,
		Proposer:    "0x1111111111111111111111111111111111111111",
		Status:      model.TxStatusQuorum,
	}
	require.NoError(t, db.Create(&record).Error)

	// 只有 1 个确认，门槛是 2
	require.NoError(t, db.Create(&model.Confirmation{
		SafeTxHash: hash.Hex(),
		Owner:      "0x1111111111111111111111111111111111111111",
		Signature:  bytes.Repeat([]byte{0x01}, 65),
	}).Error)

	s := &ExecutorService{
		db:    db,
		lock:  alwaysLock{},
		coord: sigset.NewCoordinator(),
		wake:  make(chan struct{}, 1),
	}
	s.executeOne(context.Background(), &record)

	var after model.MultisigTransaction
	require.NoError(t, db.Where("safe_tx_hash = ?", hash.Hex()).First(&after).Error)
	assert.Equal(t, model.TxStatusPending, after.Status)
	assert.Empty(t, after.ExecTxHash)
}

// 在途交易水位按链分组统计 PENDING + QUORUM
func TestUpdatePendingGauge(t *testing.T) {
	db := newExecutorTestDB(t)

	if monitor.Business == nil {
		monitor.InitBusinessMetrics()
	}

	statuses := []string{model.TxStatusPending, model.TxStatusQuorum, model.TxStatusSuccess}
	for i, status := range statuses {
		require.NoError(t, db.Create(&model.MultisigTransaction{
			SafeAddress: "0x5AfE5AFe5afE5AFe5afE5Afe5aFE5Afe5aFE5AfE",
			ChainID:     100,
			SafeTxHash:  common.HexToHash(fmt.Sprintf("0x%02x", i+1)).Hex(),
			To:          "0x1111111111111111111111111111111111111111",
			GasToken:    common.Address{}.Hex(),
			RefundRecv:  common.Address{}.Hex(),
			Proposer:    "0x1111111111111111111111111111111111111111",
			Status:      status,
		}).Error)
	}

	s := &ExecutorService{db: db}
	s.updatePendingGauge(context.Background())

	// SUCCESS 不计入在途
	got := testutil.ToFloat64(monitor.Business.PendingTransactions.WithLabelValues("100"))
	assert.Equal(t, float64(2), got)
}
