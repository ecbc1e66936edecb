package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"safe-core/pkg/safetx"
)

var hashCmd = &cobra.Command{
	Use:   "hash",
	Short: "离线计算 Safe 交易哈希 (Offline)",
	Long:  `读取交易 JSON 文件，按 EIP-712 规则计算待签名的交易哈希。不联网，不需要私钥。`,
	Run: func(cmd *cobra.Command, args []string) {
		inputFile, _ := cmd.Flags().GetString("input")

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

		hash, err := safetx.ComputeTransactionHash(req.Context(), tx)
		if err != nil {
			fmt.Printf("计算哈希失败: %v\n", err)
			os.Exit(1)
		}

		printTxSummary(req, tx)
		fmt.Printf("\nSafe Tx Hash: %s\n", hash.Hex())
	},
}

func init() {
	rootCmd.AddCommand(hashCmd)
	hashCmd.Flags().StringP("input", "i", "tx.json", "交易文件路径")
}
