package ethaddr

import (
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

// ToChecksumAddress 将 20 字节地址渲染成 EIP-55 混合大小写形式。
func ToChecksumAddress(addr [20]byte) string {
	lower := hex.EncodeToString(addr[:])
	hash := keccak256([]byte(lower))
	hexHash := hex.EncodeToString(hash)

	var sb strings.Builder
	sb.WriteString("0x")
	for i := 0; i < len(lower); i++ {
		c := lower[i]
		if c >= 'a' && c <= 'f' && hexNibble(hexHash[i]) >= 8 {
			c = c - 'a' + 'A'
		}
		sb.WriteByte(c)
	}
	return sb.String()
}

// Parse 把任意大小写形式的 hex 地址解析成规范的 20 字节形式。
// 所有外部输入的地址都应在入口处经过这里，之后统一用字节形式比较，
// 避免 checksum 大写和纯小写被当成两个不同的签名人。
func Parse(s string) ([20]byte, error) {
	var out [20]byte

	raw := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(raw) != 40 {
		return out, fmt.Errorf("ethaddr: address must be 20 bytes, got %q", s)
	}
	b, err := hex.DecodeString(strings.ToLower(raw))
	if err != nil {
		return out, fmt.Errorf("ethaddr: invalid hex in %q: %w", s, err)
	}
	copy(out[:], b)
	return out, nil
}

// Equal 比较两个字符串形式的地址是否指向同一账户 (大小写无关)。
func Equal(a, b string) bool {
	pa, errA := Parse(a)
	pb, errB := Parse(b)
	if errA != nil || errB != nil {
		return false
	}
	return pa == pb
}

func keccak256(data []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	return h.Sum(nil)
}

func hexNibble(c byte) byte {
	if c >= '0' && c <= '9' {
		return c - '0'
	}
	return c - 'a' + 10
}
