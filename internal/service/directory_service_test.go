package service

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"safe-core/internal/event"
	"safe-core/internal/model"
	"safe-core/pkg/cache"
	"safe-core/pkg/errno"
	"safe-core/pkg/safetx"
	"safe-core/pkg/txdirectory"
)

const testChainID = 100

// 固定测试私钥 (ganache 默认助记词派生)，地址可复现
var ownerKeyHexes = []string{
	"4f3edf983ac636a65a842ce7c78d9aa706d3b113bce9c46f30d7d21715b23b1d",
	"6cbed15c793ce57650b9877cf6fa156fbef513c4e6134f022a85b1ffdd59b2a1",
	"6370fd033278c143179d81c5526140625662b8daa446c22ee2d73db3707e620c",
}

type testOwner struct {
	key  *ecdsa.PrivateKey
	addr common.Address
}

func loadOwners(t *testing.T) []testOwner {
	t.Helper()
	owners := make([]testOwner, 0, len(ownerKeyHexes))
	for _, h := range ownerKeyHexes {
		key, err := crypto.HexToECDSA(h)
		require.NoError(t, err)
		owners = append(owners, testOwner{key: key, addr: crypto.PubkeyToAddress(key.PublicKey)})
	}
	return owners
}

// newTestService 用内存 SQLite 起一套完整的目录服务
// cache=shared 保证 gorm 连接池里的多个连接看到同一个库
func newTestService(t *testing.T) (*DirectoryService, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(model.AllModels()...))

	svc := NewDirectoryService(db, cache.NewMemoryCache(time.Minute, time.Minute), testChainID)
	return svc, db
}

func registerTestSafe(t *testing.T, svc *DirectoryService, owners []testOwner, threshold int, nonce uint64) string {
	t.Helper()

	safeAddr := "0x5afe5afe5afe5afe5afe5afe5afe5afe5afe5afe"
	ownerHexes := make([]string, 0, len(owners))
	for _, o := range owners {
		ownerHexes = append(ownerHexes, o.addr.Hex())
	}
	require.NoError(t, svc.RegisterSafe(context.Background(), &txdirectory.SafeInfo{
		Address:   safeAddr,
		ChainID:   testChainID,
		Owners:    ownerHexes,
		Threshold: threshold,
		Nonce:     nonce,
	}))
	return safeAddr
}

// buildProposal 构造一笔合法交易并由 owner 签名
func buildProposal(t *testing.T, safeAddr string, owner testOwner, nonce uint64) (*txdirectory.ProposalRequest, common.Hash) {
	t.Helper()

	sctx := safetx.SafeContext{
		SafeAddress: common.HexToAddress(safeAddr),
		ChainID:     big.NewInt(testChainID),
	}
	tx := safetx.SafeTransaction{
		To:        common.HexToAddress("0x1111111111111111111111111111111111111111"),
		Value:     big.NewInt(1000000000000000000),
		Operation: safetx.Call,
		SafeTxGas: big.NewInt(0),
		BaseGas:   big.NewInt(0),
		GasPrice:  big.NewInt(0),
		Nonce:     new(big.Int).SetUint64(nonce),
	}

	hash, err := safetx.ComputeTransactionHash(sctx, tx)
	require.NoError(t, err)
	sig, err := safetx.SignTransactionHash(hash, owner.key)
	require.NoError(t, err)

	return txdirectory.NewProposalRequest(sctx, tx, hash, owner.addr, sig), hash
}

func signHash(t *testing.T, hash common.Hash, owner testOwner) string {
	t.Helper()
	sig, err := safetx.SignTransactionHash(hash, owner.key)
	require.NoError(t, err)
	return "0x" + common.Bytes2Hex(sig)
}

// 完整生命周期: 提案 (首签) → 第二个确认 → QUORUM
func TestProposeAndConfirmToQuorum(t *testing.T) {
	svc, db := newTestService(t)
	owners := loadOwners(t)
	safeAddr := registerTestSafe(t, svc, owners, 2, 0)

	req, hash := buildProposal(t, safeAddr, owners[0], 0)
	ack, err := svc.ProposeTransaction(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, hash.Hex(), ack.SafeTxHash)

	// 提案落库: PENDING + 首个确认 + outbox 事件，同一事务
	var record model.MultisigTransaction
	require.NoError(t, db.Where("safe_tx_hash = ?", hash.Hex()).First(&record).Error)
	assert.Equal(t, model.TxStatusPending, record.Status)
	assert.Equal(t, owners[0].addr.Hex(), record.Proposer)

	var confCount int64
	db.Model(&model.Confirmation{}).Where("safe_tx_hash = ?", hash.Hex()).Count(&confCount)
	assert.EqualValues(t, 1, confCount)

	var outbox model.OutboxMessage
	require.NoError(t, db.Where("topic = ?", event.TopicProposal).First(&outbox).Error)
	assert.Equal(t, hash.Hex(), outbox.Key)

	// 第二个 owner 确认后达到门槛
	cack, err := svc.SubmitConfirmation(context.Background(), hash.Hex(), signHash(t, hash, owners[1]))
	require.NoError(t, err)
	assert.Equal(t, 2, cack.ConfirmationsSubmitted)

	require.NoError(t, db.Where("safe_tx_hash = ?", hash.Hex()).First(&record).Error)
	assert.Equal(t, model.TxStatusQuorum, record.Status)

	var quorumEvents int64
	db.Model(&model.OutboxMessage{}).Where("topic = ?", event.TopicConfirmation).Count(&quorumEvents)
	assert.EqualValues(t, 1, quorumEvents)
}

// 重复提案同一笔交易应幂等返回已有记录
func TestProposeTransactionIdempotent(t *testing.T) {
	svc, db := newTestService(t)
	owners := loadOwners(t)
	safeAddr := registerTestSafe(t, svc, owners, 2, 0)

	req, hash := buildProposal(t, safeAddr, owners[0], 0)
	first, err := svc.ProposeTransaction(context.Background(), req)
	require.NoError(t, err)

	second, err := svc.ProposeTransaction(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	var total int64
	db.Model(&model.MultisigTransaction{}).Where("safe_tx_hash = ?", hash.Hex()).Count(&total)
	assert.EqualValues(t, 1, total)
}

// 客户端提交的哈希与服务端复算结果不一致时必须整单拒绝
func TestProposeHashMismatch(t *testing.T) {
	svc, _ := newTestService(t)
	owners := loadOwners(t)
	safeAddr := registerTestSafe(t, svc, owners, 2, 0)

	req, _ := buildProposal(t, safeAddr, owners[0], 0)
	req.SafeTxHash = common.HexToHash("0xdead").Hex()

	_, err := svc.ProposeTransaction(context.Background(), req)
	assert.ErrorIs(t, err, errno.ErrHashMismatch)
}

// 非 owner 的签名即使密码学上有效也要拒绝
func TestProposeSignerNotAnOwner(t *testing.T) {
	svc, _ := newTestService(t)
	owners := loadOwners(t)
	safeAddr := registerTestSafe(t, svc, owners[:2], 2, 0)

	// owners[2] 未登记为该 Safe 的 owner
	req, _ := buildProposal(t, safeAddr, owners[2], 0)

	_, err := svc.ProposeTransaction(context.Background(), req)
	assert.ErrorIs(t, err, errno.ErrNotAnOwner)
}

// nonce 落后于账户当前 nonce 的提案已不可能上链，直接拒收
func TestProposeStaleNonce(t *testing.T) {
	svc, _ := newTestService(t)
	owners := loadOwners(t)
	safeAddr := registerTestSafe(t, svc, owners, 2, 5)

	req, _ := buildProposal(t, safeAddr, owners[0], 3)

	_, err := svc.ProposeTransaction(context.Background(), req)
	assert.ErrorIs(t, err, errno.ErrStaleNonce)
}

// 同一 owner 不允许对同一笔交易确认两次 (先到的签名生效)
func TestSubmitConfirmationDuplicateOwner(t *testing.T) {
	svc, db := newTestService(t)
	owners := loadOwners(t)
	safeAddr := registerTestSafe(t, svc, owners, 3, 0)

	req, hash := buildProposal(t, safeAddr, owners[0], 0)
	_, err := svc.ProposeTransaction(context.Background(), req)
	require.NoError(t, err)

	// 提案人已经贡献了首个签名，再确认一次应被拒
	_, err = svc.SubmitConfirmation(context.Background(), hash.Hex(), signHash(t, hash, owners[0]))
	assert.ErrorIs(t, err, errno.ErrDuplicateSigner)

	var confCount int64
	db.Model(&model.Confirmation{}).Where("safe_tx_hash = ?", hash.Hex()).Count(&confCount)
	assert.EqualValues(t, 1, confCount)
}

// 确认一笔不存在的交易
func TestSubmitConfirmationUnknownTransaction(t *testing.T) {
	svc, _ := newTestService(t)
	owners := loadOwners(t)
	registerTestSafe(t, svc, owners, 2, 0)

	ghost := common.HexToHash("0xabcdef")
	_, err := svc.SubmitConfirmation(context.Background(), ghost.Hex(), signHash(t, ghost, owners[0]))
	assert.ErrorIs(t, err, errno.ErrTransactionNotFound)
}

// checksum 大小写不同的同一地址不能绕过 owner 校验
func TestOwnerMatchingIsCaseInsensitive(t *testing.T) {
	svc, _ := newTestService(t)
	owners := loadOwners(t)

	safeAddr := "0x5AFE5afe5AFE5afe5AFE5afe5AFE5afe5AFE5afe"
	lowered := make([]string, 0, len(owners))
	for _, o := range owners {
		lowered = append(lowered, "0x"+common.Bytes2Hex(o.addr.Bytes())) // 全小写登记
	}
	require.NoError(t, svc.RegisterSafe(context.Background(), &txdirectory.SafeInfo{
		Address:   safeAddr,
		ChainID:   testChainID,
		Owners:    lowered,
		Threshold: 2,
	}))

	req, _ := buildProposal(t, safeAddr, owners[0], 0)
	_, err := svc.ProposeTransaction(context.Background(), req)
	require.NoError(t, err)
}
