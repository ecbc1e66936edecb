package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"

	"safe-core/pkg/safetx"
	"safe-core/pkg/txdirectory"
)

var proposeCmd = &cobra.Command{
	Use:   "propose",
	Short: "提交新的多签交易提案",
	Long: `读取交易 JSON 文件，计算交易哈希并用提案人私钥签名，
然后把提案 (含首个签名) 提交到目录服务。`,
	Run: func(cmd *cobra.Command, args []string) {
		inputFile, _ := cmd.Flags().GetString("input")
		keystoreFile, _ := cmd.Flags().GetString("keystore")

		// 1. 读取并校验交易
		req, err := loadTxFile(inputFile)
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		tx, err := req.Transaction()
		if err != nil {
			fmt.Printf("交易字段非法: %v\n", err)
			os.Exit(1)
		}

		// 2. 计算哈希
		hash, err := safetx.ComputeTransactionHash(req.Context(), tx)
		if err != nil {
			fmt.Printf("计算哈希失败: %v\n", err)
			os.Exit(1)
		}

		printTxSummary(req, tx)
		fmt.Printf("Safe Tx Hash: %s\n", hash.Hex())

		// 3. 加载私钥并签名
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
		sender := crypto.PubkeyToAddress(key.PublicKey)
		fmt.Printf("签名人: %s\n", sender.Hex())

		// 4. 提交提案
		client := txdirectory.NewClient(serviceURL)
		proposal := txdirectory.NewProposalRequest(req.Context(), tx, hash, sender, sig)
		ack, err := client.ProposeTransaction(context.Background(), proposal)
		if err != nil {
			fmt.Printf("提交提案失败: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("\n✅ 提案已提交! ID: %d\n", ack.ID)
		fmt.Printf("Safe Tx Hash: %s\n", ack.SafeTxHash)
	},
}

func init() {
	rootCmd.AddCommand(proposeCmd)
	proposeCmd.Flags().StringP("input", "i", "tx.json", "交易文件路径")
	proposeCmd.Flags().StringP("keystore", "k", "", "Keystore 文件路径 (不指定则交互输入私钥)")
}
