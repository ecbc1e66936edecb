package safetx

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

// 基准交易: chainId=100 上的最小 ETH 转账 (1 wei 到 0x...dEaD)。
// 期望哈希是用独立实现预先算好的回归值，守护编码的每一个字节。
func goldenContext() SafeContext {
	return SafeContext{
		SafeAddress: common.HexToAddress("0x655A9e6b044d6B67F693362a9Ab32CC0b889A9CF"),
		ChainID:     big.NewInt(100),
	}
}

func goldenTx() SafeTransaction {
	return SafeTransaction{
		To:        common.HexToAddress("0x000000000000000000000000000000000000dEaD"),
		Value:     big.NewInt(1),
		Data:      nil,
		Operation: Call,
		SafeTxGas: big.NewInt(0),
		BaseGas:   big.NewInt(0),
		GasPrice:  big.NewInt(0),
		Nonce:     big.NewInt(0),
	}
}

func TestTypehashConstants(t *testing.T) {
	// 这两个常量在合约里是编译期固定值，任何偏差都会让全部签名失效
	wantDomain := "0x47e79534a245952e8b16893a336b85a3d9ea9fa8c573f3d803afb92a79469218"
	wantSafeTx := "0xbb8310d486368db6bd6f849402fdd73ad53d316b5a4b2644ad6efe0f941286d8"

	if got := domainSeparatorTypehash.Hex(); got != wantDomain {
		t.Errorf("domain typehash = %s, want %s", got, wantDomain)
	}
	if got := safeTxTypehash.Hex(); got != wantSafeTx {
		t.Errorf("SafeTx typehash = %s, want %s", got, wantSafeTx)
	}
}

func TestGoldenVector(t *testing.T) {
	hash, err := ComputeTransactionHash(goldenContext(), goldenTx())
	if err != nil {
		t.Fatalf("ComputeTransactionHash 失败: %v", err)
	}

	want := "0x4381a48487bf481d65c6c0748e0547ae39f23ba4bddd7a737739ca6358087096"
	if hash.Hex() != want {
		t.Errorf("golden hash = %s, want %s", hash.Hex(), want)
	}
}

func TestGoldenVectorWithCalldata(t *testing.T) {
	// 第二个回归向量: mainnet 上带 ERC-20 transfer calldata 的交易
	ctx := SafeContext{
		SafeAddress: common.HexToAddress("0x655A9e6b044d6B67F693362a9Ab32CC0b889A9CF"),
		ChainID:     big.NewInt(1),
	}
	tx := SafeTransaction{
		To:        common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F"),
		Value:     big.NewInt(0),
		Data: common.FromHex("0xa9059cbb000000000000000000000000655a9e6b044d6b67f693362a9ab32cc0b889a9cf" +
			"0000000000000000000000000000000000000000000000056bc75e2d63100000"),
		Operation:      Call,
		SafeTxGas:      big.NewInt(65000),
		BaseGas:        big.NewInt(21000),
		GasPrice:       big.NewInt(1000000000),
		RefundReceiver: common.HexToAddress("0x000000000000000000000000000000000000dEaD"),
		Nonce:          big.NewInt(7),
	}

	hash, err := ComputeTransactionHash(ctx, tx)
	if err != nil {
		t.Fatalf("ComputeTransactionHash 失败: %v", err)
	}

	want := "0x69292356957f084401e89e6c9e1b83574e5be8632935e7a98e83140af87b9a5e"
	if hash.Hex() != want {
		t.Errorf("golden hash = %s, want %s", hash.Hex(), want)
	}
}

func TestDeterminism(t *testing.T) {
	h1, err := ComputeTransactionHash(goldenContext(), goldenTx())
	if err != nil {
		t.Fatal(err)
	}
	h2, err := ComputeTransactionHash(goldenContext(), goldenTx())
	if err != nil {
		t.Fatal(err)
	}
	if h1 != h2 {
		t.Errorf("相同输入得到了不同哈希: %s vs %s", h1.Hex(), h2.Hex())
	}
}

func TestFieldSensitivity(t *testing.T) {
	base, err := ComputeTransactionHash(goldenContext(), goldenTx())
	if err != nil {
		t.Fatal(err)
	}

	mutations := map[string]func(*SafeTransaction){
		"to":             func(tx *SafeTransaction) { tx.To = common.HexToAddress("0x01") },
		"value":          func(tx *SafeTransaction) { tx.Value = big.NewInt(2) },
		"data":           func(tx *SafeTransaction) { tx.Data = []byte{0x00} },
		"operation":      func(tx *SafeTransaction) { tx.Operation = DelegateCall },
		"safeTxGas":      func(tx *SafeTransaction) { tx.SafeTxGas = big.NewInt(1) },
		"baseGas":        func(tx *SafeTransaction) { tx.BaseGas = big.NewInt(1) },
		"gasPrice":       func(tx *SafeTransaction) { tx.GasPrice = big.NewInt(1) },
		"gasToken":       func(tx *SafeTransaction) { tx.GasToken = common.HexToAddress("0x02") },
		"refundReceiver": func(tx *SafeTransaction) { tx.RefundReceiver = common.HexToAddress("0x03") },
		"nonce":          func(tx *SafeTransaction) { tx.Nonce = big.NewInt(1) },
	}

	for name, mutate := range mutations {
		tx := goldenTx()
		mutate(&tx)
		h, err := ComputeTransactionHash(goldenContext(), tx)
		if err != nil {
			t.Fatalf("字段 %s 变更后哈希失败: %v", name, err)
		}
		if h == base {
			t.Errorf("字段 %s 变更后哈希未变", name)
		}
	}

	// data 的单比特翻转同样必须改变哈希
	tx := goldenTx()
	tx.Data = []byte{0x80}
	h1, _ := ComputeTransactionHash(goldenContext(), tx)
	tx.Data = []byte{0x81}
	h2, _ := ComputeTransactionHash(goldenContext(), tx)
	if h1 == h2 {
		t.Error("data 单比特翻转未改变哈希")
	}
}

func TestChainIsolation(t *testing.T) {
	ctx100 := goldenContext()
	ctx1 := goldenContext()
	ctx1.ChainID = big.NewInt(1)

	h100, err := ComputeTransactionHash(ctx100, goldenTx())
	if err != nil {
		t.Fatal(err)
	}
	h1, err := ComputeTransactionHash(ctx1, goldenTx())
	if err != nil {
		t.Fatal(err)
	}
	if h100 == h1 {
		t.Error("不同 chainId 得到了相同的哈希")
	}
}

func TestEncodingErrors(t *testing.T) {
	overflow := new(big.Int).Lsh(big.NewInt(1), 256) // 2^256, 刚好超出

	cases := map[string]func(*SafeTransaction){
		"nil value":          func(tx *SafeTransaction) { tx.Value = nil },
		"negative value":     func(tx *SafeTransaction) { tx.Value = big.NewInt(-1) },
		"overflow value":     func(tx *SafeTransaction) { tx.Value = overflow },
		"nil nonce":          func(tx *SafeTransaction) { tx.Nonce = nil },
		"negative gasPrice":  func(tx *SafeTransaction) { tx.GasPrice = big.NewInt(-7) },
		"invalid operation":  func(tx *SafeTransaction) { tx.Operation = Operation(2) },
		"overflow safeTxGas": func(tx *SafeTransaction) { tx.SafeTxGas = overflow },
	}

	for name, mutate := range cases {
		tx := goldenTx()
		mutate(&tx)
		if _, err := ComputeTransactionHash(goldenContext(), tx); !errors.Is(err, ErrInvalidEncoding) {
			t.Errorf("%s: 期望 ErrInvalidEncoding, 得到 %v", name, err)
		}
	}

	// Context 自身的校验
	badCtx := goldenContext()
	badCtx.ChainID = nil
	if _, err := ComputeTransactionHash(badCtx, goldenTx()); !errors.Is(err, ErrInvalidEncoding) {
		t.Errorf("nil chainId: 期望 ErrInvalidEncoding, 得到 %v", err)
	}
}

func TestDomainSeparator(t *testing.T) {
	sep, err := DomainSeparator(goldenContext())
	if err != nil {
		t.Fatal(err)
	}
	want := "0xddefed8128c9109b5364df45cc018506577cfb24ddadc48442fdb0d0cc4efc4e"
	if sep.Hex() != want {
		t.Errorf("domain separator = %s, want %s", sep.Hex(), want)
	}
}
