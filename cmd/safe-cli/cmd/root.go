package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var serviceURL string

// rootCmd 代表基础命令，没有子命令时直接调用
var rootCmd = &cobra.Command{
	Use:   "safe-cli",
	Short: "Safe 多签交易命令行工具",
	Long: `一个用 Go 语言编写的 Safe 多签钱包客户端。
支持离线计算交易哈希、提交提案、追加签名确认、查询进度以及广播 execTransaction。`,
}

// Execute 将所有子命令添加到根命令并设置标志
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serviceURL, "service", "http://localhost:8080", "目录服务地址")
}
