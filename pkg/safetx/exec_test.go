package safetx

import (
	"bytes"
	"encoding/hex"
	"testing"
)

// 预先用独立 ABI 编码器算好的 execTransaction calldata:
// goldenTx + 单个 65 字节签名 (r=0x11.., s=0x22.., v=0x1b)。
const goldenExecCalldata = "6a76120200000000000000000000000000000000000000000000000000000000" +
	"0000dead00000000000000000000000000000000000000000000000000000000" +
	"0000000100000000000000000000000000000000000000000000000000000000" +
	"0000014000000000000000000000000000000000000000000000000000000000" +
	"0000000000000000000000000000000000000000000000000000000000000000" +
	"0000000000000000000000000000000000000000000000000000000000000000" +
	"0000000000000000000000000000000000000000000000000000000000000000" +
	"0000000000000000000000000000000000000000000000000000000000000000" +
	"0000000000000000000000000000000000000000000000000000000000000000" +
	"0000000000000000000000000000000000000000000000000000000000000000" +
	"0000016000000000000000000000000000000000000000000000000000000000" +
	"0000000000000000000000000000000000000000000000000000000000000000" +
	"0000004111111111111111111111111111111111111111111111111111111111" +
	"1111111122222222222222222222222222222222222222222222222222222222" +
	"222222221b000000000000000000000000000000000000000000000000000000" +
	"00000000"

func goldenSignature() []byte {
	sig := make([]byte, 65)
	for i := 0; i < 32; i++ {
		sig[i] = 0x11
		sig[32+i] = 0x22
	}
	sig[64] = 0x1b
	return sig
}

func TestEncodeExecTransaction(t *testing.T) {
	calldata, err := EncodeExecTransaction(goldenTx(), goldenSignature())
	if err != nil {
		t.Fatalf("EncodeExecTransaction 失败: %v", err)
	}

	want, _ := hex.DecodeString(goldenExecCalldata)
	if !bytes.Equal(calldata, want) {
		t.Errorf("calldata 不匹配:\n got  %x\n want %x", calldata, want)
	}
}

func TestEncodeExecTransactionSelector(t *testing.T) {
	calldata, err := EncodeExecTransaction(goldenTx(), nil)
	if err != nil {
		t.Fatal(err)
	}
	// keccak256("execTransaction(address,uint256,bytes,uint8,...)")[:4]
	if got := hex.EncodeToString(calldata[:4]); got != "6a761202" {
		t.Errorf("selector = %s, want 6a761202", got)
	}
}

func TestEncodeExecTransactionRejectsBadTx(t *testing.T) {
	tx := goldenTx()
	tx.Value = nil
	if _, err := EncodeExecTransaction(tx, goldenSignature()); err == nil {
		t.Error("期望编码失败，得到 nil error")
	}
}
