package safetx

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// SignatureLength 是单个 owner 签名的固定长度 (r ‖ s ‖ v)。
const SignatureLength = 65

// SignTransactionHash 用 owner 私钥直接签署交易哈希，返回 65 字节 r‖s‖v。
// Safe 合约校验 ECDSA 签名时期望 v ∈ {27, 28}，而 go-ethereum 的
// crypto.Sign 返回 v ∈ {0, 1}，这里做 +27 归一化。
func SignTransactionHash(hash common.Hash, key *ecdsa.PrivateKey) ([]byte, error) {
	sig, err := crypto.Sign(hash.Bytes(), key)
	if err != nil {
		return nil, fmt.Errorf("sign safe tx hash: %w", err)
	}
	sig[64] += 27
	return sig, nil
}

// RecoverSigner 从 65 字节签名恢复签名人地址。
// 接受 v ∈ {0, 1} 和 v ∈ {27, 28} 两种形式。
func RecoverSigner(hash common.Hash, sig []byte) (common.Address, error) {
	if len(sig) != SignatureLength {
		return common.Address{}, fmt.Errorf("%w: signature must be %d bytes, got %d",
			ErrInvalidEncoding, SignatureLength, len(sig))
	}

	normalized := make([]byte, SignatureLength)
	copy(normalized, sig)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}
	if normalized[64] > 1 {
		return common.Address{}, fmt.Errorf("%w: invalid recovery id %d", ErrInvalidEncoding, sig[64])
	}

	pub, err := crypto.SigToPub(hash.Bytes(), normalized)
	if err != nil {
		return common.Address{}, fmt.Errorf("recover signer: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}
