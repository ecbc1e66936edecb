package cmd

import (
	"fmt"
	"os"
	"syscall"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"safe-core/pkg/keystore"
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "生成新私钥并加密保存为 Keystore",
	Long:  `生成一个随机 secp256k1 私钥，用口令加密 (AES-256-GCM + scrypt) 后写入 Keystore 文件。`,
	Run: func(cmd *cobra.Command, args []string) {
		outputFile, _ := cmd.Flags().GetString("output")

		// 1. 生成私钥
		key, err := crypto.GenerateKey()
		if err != nil {
			fmt.Printf("生成私钥失败: %v\n", err)
			os.Exit(1)
		}
		address := crypto.PubkeyToAddress(key.PublicKey)

		// 2. 两次输入口令
		fmt.Print("请输入 Keystore 密码: ")
		pass1, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			fmt.Printf("读取密码失败: %v\n", err)
			os.Exit(1)
		}
		fmt.Print("请再次输入确认: ")
		pass2, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil || string(pass1) != string(pass2) {
			fmt.Println("两次输入不一致")
			os.Exit(1)
		}

		// 3. 加密落盘
		encrypted, err := keystore.EncryptKey(crypto.FromECDSA(key), address.Hex(), string(pass1))
		if err != nil {
			fmt.Printf("加密失败: %v\n", err)
			os.Exit(1)
		}
		if err := encrypted.SaveToFile(outputFile); err != nil {
			fmt.Printf("保存失败: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("\n✅ Keystore 已保存到: %s\n", outputFile)
		fmt.Printf("Address: %s\n", address.Hex())
		fmt.Println("请妥善保管密码！密码丢失后私钥无法恢复。")
	},
}

func init() {
	rootCmd.AddCommand(keygenCmd)
	keygenCmd.Flags().StringP("output", "o", "executor.json", "Keystore 输出路径")
}
