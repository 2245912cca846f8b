// ゲートウェイのデモCLI。
// 無料エンドポイントと有料エンドポイントを順に呼び出し、結果を表示する。
// 送金は行わないため、事前に送金したトランザクションのハッシュを -tx で渡す。
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/dignitas/gateway/pkg/client"
)

func main() {
	_ = godotenv.Load()

	apiURL := flag.String("api", getEnvOr("GATEWAY_URL", client.DefaultBaseURL), "ゲートウェイのURL")
	txHash := flag.String("tx", os.Getenv("PAYMENT_TX_HASH"), "支払いトランザクションのハッシュ")
	wallet := flag.String("wallet", os.Getenv("WALLET_ADDRESS"), "支払者のウォレットアドレス")
	name := flag.String("ens", "vitalik.eth", "解決するENS名")
	flag.Parse()

	c := client.New(*apiURL, 60*time.Second)
	ctx := context.Background()
	pay := client.Payment{TxHash: *txHash, Wallet: *wallet}

	log.Printf("=== Dignitas デモ: %s ===", *apiURL)

	health, err := c.Health(ctx)
	if err != nil {
		log.Fatalf("ゲートウェイに接続できません: %v", err)
	}
	log.Printf("ネットワーク: %s, 価格: %s (%s wei), モード: %s", health.Network, health.QueryPrice, health.QueryPriceWei, health.Mode)
	log.Printf("送金先: treasury=%s, contract=%s", health.Treasury, health.Contract)

	log.Println("--- Step 1: リーダーボード（無料）---")
	agents, err := c.Leaderboard(ctx)
	if err != nil {
		log.Printf("  リーダーボードの取得に失敗: %v", err)
	}
	for i, a := range head(agents, 5) {
		log.Printf("  %d. %s -> %.1f%%", i+1, short(a.Address), a.Score*100)
	}

	if pay.TxHash == "" && pay.Wallet == "" {
		log.Println("支払い情報（-tx / -wallet）がないため有料エンドポイントはスキップします")
	} else {
		runPaid(ctx, c, pay)
	}

	log.Println("--- Step 5: ENS解決（無料）---")
	res, err := c.ResolveName(ctx, *name)
	if err != nil {
		log.Printf("  ENS解決に失敗: %v", err)
	} else {
		log.Printf("  %s -> %s", *name, deref(res.Address, "解決できません"))
	}

	if pay.TxHash != "" {
		tx, err := c.VerifyTransaction(ctx, pay.TxHash)
		if err != nil {
			log.Printf("  トランザクションの確認に失敗: %v", err)
		} else {
			log.Printf("  支払いTX: %s %s -> %s (%s, %s)", short(tx.Hash), short(tx.From), deref(tx.To, "-"), tx.Value, tx.Status)
			log.Printf("  Explorer: %s", deref(tx.Explorer, "-"))
		}
	}
	log.Println("=== デモ完了 ===")
}

// runPaid は有料エンドポイントを順に呼び出す。
func runPaid(ctx context.Context, c *client.Client, pay client.Payment) {
	log.Println("--- Step 2: エージェント検索（有料）---")
	found, err := c.Discover(ctx, pay, 0.7, 3)
	if err != nil {
		if client.IsPaymentRequired(err) {
			log.Printf("  支払いが拒否されました: %v", err)
			return
		}
		log.Printf("  検索に失敗: %v", err)
		return
	}
	if found.Payment != nil {
		log.Printf("  支払い: reference=%s, verified=%v (%s)", found.Payment.Reference, found.Payment.Verified, found.Payment.Reason)
	}
	for i, a := range found.Agents {
		log.Printf("  %d. %s -> %.1f%%", i+1, short(a.Address), a.Score*100)
	}
	if len(found.Agents) == 0 {
		return
	}

	top := found.Agents[0]
	log.Println("--- Step 3: スコア照会（有料）---")
	score, err := c.Score(ctx, pay, top.Address)
	if err != nil {
		log.Printf("  スコア照会に失敗: %v", err)
	} else {
		log.Printf("  %s (%s): %.1f%%", short(top.Address), deref(score.ENSName, "ENS名なし"), score.Score*100)
	}

	log.Println("--- Step 4: インタラクション記録（有料）---")
	_, err = c.RecordInteraction(ctx, pay, client.Interaction{
		FromAgent:       pay.Wallet,
		ToAgent:         top.Address,
		InteractionType: "x402",
	})
	if err != nil {
		log.Printf("  記録に失敗: %v", err)
	} else {
		log.Printf("  %s へのインタラクションを記録しました", short(top.Address))
	}
}

func head(agents []client.Agent, n int) []client.Agent {
	if len(agents) > n {
		return agents[:n]
	}
	return agents
}

func short(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:10] + "..."
}

func deref(s *string, fallback string) string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return fallback
	}
	return *s
}

// getEnvOr は環境変数を取得し、設定されていない場合はデフォルト値を返す。
func getEnvOr(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
