// 支払い付きレピュテーションAPIゲートウェイのエントリポイント。
// 無料ルートと /paid 配下の有料ルートを公開し、有料ルートは支払いを検証してから
// 上流のグラフエンジンへ転送する。
package main

import (
	"log"

	"github.com/joho/godotenv"

	"github.com/dignitas/gateway/internal/gateway"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf(".envファイルを読み込めませんでした。環境変数のみを使用します: %v", err)
	}

	cfg, err := gateway.LoadConfig()
	if err != nil {
		log.Fatalf("設定の読み込みに失敗: %v", err)
	}

	server, err := gateway.NewServer(cfg)
	if err != nil {
		log.Fatalf("Gatewayサーバーの初期化に失敗: %v", err)
	}

	log.Printf("Gatewayサービスを起動します: :%s (network=%s, mode=%s, upstream=%s)",
		cfg.Port, cfg.Network, cfg.PaymentMode, cfg.GraphEngineURL)
	if err := server.Run(); err != nil {
		log.Fatalf("Gatewayサービスの起動に失敗: %v", err)
	}
}
