package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"

	"safe-core/pkg/safetx"
	"safe-core/pkg/txdirectory"
)

var confirmCmd = &cobra.Command{
	Use:   "confirm <safe-tx-hash>",
	Short: "为已有提案追加签名确认",
	Long:  `用 owner 私钥签署给定的交易哈希，并把签名提交到目录服务。`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		keystoreFile, _ := cmd.Flags().GetString("keystore")
		hash := common.HexToHash(args[0])

		// 1. 加载私钥并签名
		key, err := loadPrivateKey(keystoreFile)
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		sig, err := safetx.SignTransactionHash(hash, key)
		if err != nil {
			fmt.Printf("签名失败: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("签名人: %s\n", crypto.PubkeyToAddress(key.PublicKey).Hex())

		// 2. 提交确认
		client := txdirectory.NewClient(serviceURL)
		ack, err := client.SubmitConfirmation(context.Background(), hash.Hex(), "0x"+common.Bytes2Hex(sig))
		if err != nil {
			fmt.Printf("提交确认失败: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("\n✅ 确认已提交! 当前确认数: %d\n", ack.ConfirmationsSubmitted)
	},
}

func init() {
	rootCmd.AddCommand(confirmCmd)
	confirmCmd.Flags().StringP("keystore", "k", "", "Keystore 文件路径 (不指定则交互输入私钥)")
}
