package keystore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/scrypt"
)

// EncryptedKey 是落盘的 Keystore JSON 结构。
// 私钥用 AES-256-GCM 加密，密钥由口令经 scrypt 派生。
type EncryptedKey struct {
	Id      string `json:"id"`
	Address string `json:"address"` // 对应的 owner 地址 (hex)，方便人工核对
	Crypto  struct {
		Cipher     string `json:"cipher"` // "aes-256-gcm"
		Ciphertext string `json:"ciphertext"`
		KDF        string `json:"kdf"` // "scrypt"
		Salt       string `json:"salt"`
		N          int    `json:"n"`
		R          int    `json:"r"`
		P          int    `json:"p"`
	} `json:"crypto"`
	Version int `json:"version"`
}

const (
	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1
)

// EncryptKey 加密 32 字节私钥。address 仅作元数据存储，不参与加密。
func EncryptKey(privKey []byte, address, password string) (*EncryptedKey, error) {
	salt := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}

	aesKey, err := scrypt.Key([]byte(password), salt, scryptN, scryptR, scryptP, 32)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}

	ciphertext, err := encryptGCM(aesKey, privKey)
	if err != nil {
		return nil, err
	}

	id := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, id); err != nil {
		return nil, err
	}

	ek := &EncryptedKey{
		Id:      hex.EncodeToString(id),
		Address: address,
		Version: 1,
	}
	ek.Crypto.Cipher = "aes-256-gcm"
	ek.Crypto.Ciphertext = hex.EncodeToString(ciphertext)
	ek.Crypto.KDF = "scrypt"
	ek.Crypto.Salt = hex.EncodeToString(salt)
	ek.Crypto.N = scryptN
	ek.Crypto.R = scryptR
	ek.Crypto.P = scryptP
	return ek, nil
}

// DecryptKey 用口令解出私钥字节。口令错误时 GCM 认证失败，返回错误。
func DecryptKey(ek *EncryptedKey, password string) ([]byte, error) {
	if ek.Crypto.Cipher != "aes-256-gcm" || ek.Crypto.KDF != "scrypt" {
		return nil, fmt.Errorf("unsupported keystore params: %s/%s", ek.Crypto.Cipher, ek.Crypto.KDF)
	}

	salt, err := hex.DecodeString(ek.Crypto.Salt)
	if err != nil {
		return nil, fmt.Errorf("decode salt: %w", err)
	}
	ciphertext, err := hex.DecodeString(ek.Crypto.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("decode ciphertext: %w", err)
	}

	aesKey, err := scrypt.Key([]byte(password), salt, ek.Crypto.N, ek.Crypto.R, ek.Crypto.P, 32)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}

	plaintext, err := decryptGCM(aesKey, ciphertext)
	if err != nil {
		return nil, fmt.Errorf("decrypt (wrong password?): %w", err)
	}
	return plaintext, nil
}

// SaveToFile 以 0600 权限写入 Keystore 文件。
func (ek *EncryptedKey) SaveToFile(path string) error {
	data, err := json.MarshalIndent(ek, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// LoadFromFile 读取 Keystore 文件。
func LoadFromFile(path string) (*EncryptedKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var ek EncryptedKey
	if err := json.Unmarshal(data, &ek); err != nil {
		return nil, fmt.Errorf("parse keystore json: %w", err)
	}
	return &ek, nil
}

// encryptGCM 返回 nonce + 密文。
func encryptGCM(key, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decryptGCM(key, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	nonce, ciphertext := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, nil)
}
