package cmd

import (
	"context"
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/spf13/cobra"

	"safe-core/pkg/safetx"
	"safe-core/pkg/sigset"
	"safe-core/pkg/txdirectory"
)

var executeCmd = &cobra.Command{
	Use:   "execute",
	Short: "组装签名并广播 execTransaction (Online)",
	Long: `从目录服务拉取已收集的签名，按地址升序组装授权字节串，
打包 execTransaction calldata，用执行方私钥签外层交易并广播。`,
	Run: func(cmd *cobra.Command, args []string) {
		inputFile, _ := cmd.Flags().GetString("input")
		keystoreFile, _ := cmd.Flags().GetString("keystore")
		rpcURL, _ := cmd.Flags().GetString("rpc")

		// 1. 读取交易并复算哈希
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
		fmt.Printf("Safe Tx Hash: %s\n", hash.Hex())

		// 2. 拉取签名并验证门槛
		client := txdirectory.NewClient(serviceURL)
		list, err := client.GetConfirmations(context.Background(), hash.Hex(), txdirectory.ListOptions{Trusted: true})
		if err != nil {
			fmt.Printf("拉取签名失败: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("确认进度: %d / %d\n", list.ConfirmationsSubmitted, list.ConfirmationsRequired)

		// 3. 组装授权字节串 (按签名人地址升序)
		coord := sigset.NewCoordinator()
		for _, c := range list.Results {
			err := coord.AddSignature(hash, sigset.Signature{
				Signer: common.HexToAddress(c.Owner),
				Bytes:  common.FromHex(c.Signature),
			})
			if err != nil {
				fmt.Printf("跳过签名 %s: %v\n", c.Owner, err)
			}
		}
		bundle, err := coord.BuildAuthorizationBundle(hash, list.ConfirmationsRequired)
		if err != nil {
			fmt.Printf("组装授权串失败: %v\n", err)
			os.Exit(1)
		}

		// 4. 打包 calldata
		calldata, err := safetx.EncodeExecTransaction(tx, bundle)
		if err != nil {
			fmt.Printf("打包 execTransaction 失败: %v\n", err)
			os.Exit(1)
		}

		// 5. 加载执行方私钥
		key, err := loadPrivateKey(keystoreFile)
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		from := crypto.PubkeyToAddress(key.PublicKey)

		// 6. 连接节点并广播外层交易
		fmt.Printf("正在连接 RPC: %s ...\n", rpcURL)
		eth, err := ethclient.Dial(rpcURL)
		if err != nil {
			fmt.Printf("连接失败: %v\n", err)
			os.Exit(1)
		}

		nonce, err := eth.PendingNonceAt(context.Background(), from)
		if err != nil {
			fmt.Printf("获取 nonce 失败: %v\n", err)
			os.Exit(1)
		}
		gasPrice, err := eth.SuggestGasPrice(context.Background())
		if err != nil {
			fmt.Printf("获取 gas price 失败: %v\n", err)
			os.Exit(1)
		}

		outer := ethtypes.NewTransaction(nonce,
			common.HexToAddress(req.SafeAddress),
			big.NewInt(0),
			safetx.EstimateExecGas(tx),
			gasPrice,
			calldata)
		signed, err := ethtypes.SignTx(outer, ethtypes.NewEIP155Signer(big.NewInt(req.ChainID)), key)
		if err != nil {
			fmt.Printf("签名失败: %v\n", err)
			os.Exit(1)
		}

		if err := eth.SendTransaction(context.Background(), signed); err != nil {
			fmt.Printf("广播失败: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("\n✅ 广播成功!\n")
		fmt.Printf("Exec Tx Hash: %s\n", signed.Hash().Hex())
	},
}

func init() {
	rootCmd.AddCommand(executeCmd)
	executeCmd.Flags().StringP("input", "i", "tx.json", "交易文件路径")
	executeCmd.Flags().StringP("keystore", "k", "", "Keystore 文件路径 (不指定则交互输入私钥)")
	executeCmd.Flags().String("rpc", "https://cloudflare-eth.com", "以太坊节点 RPC 地址")
}
