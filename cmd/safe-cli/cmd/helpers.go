package cmd

import (
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
	"golang.org/x/term"

	"safe-core/pkg/keystore"
	"safe-core/pkg/safetx"
	"safe-core/pkg/txdirectory"
)

// loadTxFile 读取交易 JSON 文件
// 文件格式即目录服务的提案请求 (hash/sender/signature 字段留空由命令填充)
func loadTxFile(path string) (*txdirectory.ProposalRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取交易文件失败: %w", err)
	}
	var req txdirectory.ProposalRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("解析交易文件失败: %w", err)
	}
	return &req, nil
}

// loadPrivateKey 加载签名私钥
// keystoreFile 非空时走 Keystore + 密码；否则交互式输入私钥 hex (不回显)
func loadPrivateKey(keystoreFile string) (*ecdsa.PrivateKey, error) {
	if keystoreFile != "" {
		fmt.Printf("正在从 %s 加载 Keystore...\n", keystoreFile)
		encrypted, err := keystore.LoadFromFile(keystoreFile)
		if err != nil {
			return nil, fmt.Errorf("加载 Keystore 失败: %w", err)
		}

		fmt.Print("请输入 Keystore 密码: ")
		bytePassword, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return nil, fmt.Errorf("读取密码失败: %w", err)
		}

		raw, err := keystore.DecryptKey(encrypted, string(bytePassword))
		if err != nil {
			return nil, fmt.Errorf("解密失败 (密码错误?): %w", err)
		}
		return crypto.ToECDSA(raw)
	}

	fmt.Print("请输入私钥 (hex, 不回显): ")
	byteKey, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return nil, fmt.Errorf("读取私钥失败: %w", err)
	}
	return crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(string(byteKey)), "0x"))
}

// printTxSummary 显示交易详情供用户确认 (Verify on Screen)
func printTxSummary(req *txdirectory.ProposalRequest, tx safetx.SafeTransaction) {
	fmt.Println("\n================ 多签交易 ================")
	fmt.Printf("Safe:       %s (Chain ID: %d)\n", req.SafeAddress, req.ChainID)
	fmt.Printf("To:         %s\n", req.To)
	fmt.Printf("Value:      %s wei (%s ETH)\n", tx.Value.String(), formatEther(req.Value))
	fmt.Printf("Operation:  %s\n", tx.Operation)
	fmt.Printf("Data:       %d bytes\n", len(tx.Data))
	fmt.Printf("Nonce:      %d\n", req.Nonce)
	fmt.Println("==========================================")
}

// formatEther 把十进制 wei 字符串转成 ETH 显示
func formatEther(wei string) string {
	d, err := decimal.NewFromString(wei)
	if err != nil {
		return "?"
	}
	return d.Shift(-18).String()
}
