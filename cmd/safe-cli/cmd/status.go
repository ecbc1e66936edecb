package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"safe-core/pkg/txdirectory"
)

var statusCmd = &cobra.Command{
	Use:   "status <safe-address>",
	Short: "查询 Safe 账户与交易确认进度",
	Long:  `显示 Safe 的 owner 集合、门槛和当前 nonce。通过 --tx 指定交易哈希时，同时显示该交易已收集的签名。`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		txHash, _ := cmd.Flags().GetString("tx")
		timezone, _ := cmd.Flags().GetString("timezone")

		client := txdirectory.NewClient(serviceURL)

		// 1. Safe 账户信息
		info, err := client.GetSafeInfo(context.Background(), args[0])
		if err != nil {
			fmt.Printf("查询 Safe 失败: %v\n", err)
			os.Exit(1)
		}

		fmt.Println("\n================ Safe 账户 ================")
		fmt.Printf("Address:    %s (Chain ID: %d)\n", info.Address, info.ChainID)
		fmt.Printf("Threshold:  %d / %d owners\n", info.Threshold, len(info.Owners))
		fmt.Printf("Nonce:      %d\n", info.Nonce)
		for i, o := range info.Owners {
			fmt.Printf("Owner %d:    %s\n", i+1, o)
		}
		fmt.Println("===========================================")

		if txHash == "" {
			return
		}

		// 2. 交易确认进度
		list, err := client.GetConfirmations(context.Background(), txHash, txdirectory.ListOptions{Timezone: timezone})
		if err != nil {
			fmt.Printf("查询确认失败: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("\n交易 %s\n", list.SafeTxHash)
		fmt.Printf("确认进度: %d / %d\n", list.ConfirmationsSubmitted, list.ConfirmationsRequired)
		for _, c := range list.Results {
			fmt.Printf("  %s  签于 %s\n", c.Owner, c.SubmittedAt.Format("2006-01-02 15:04:05 MST"))
		}
		if list.ConfirmationsSubmitted >= list.ConfirmationsRequired {
			fmt.Println("✅ 已达到执行门槛")
		}
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().String("tx", "", "交易哈希 (可选)")
	statusCmd.Flags().String("timezone", "", "时间戳时区 (IANA 名称, 默认 UTC)")
}
