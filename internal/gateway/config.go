package gateway

import (
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/dignitas/gateway/pkg/chain"
	"github.com/dignitas/gateway/pkg/payment"
)

// Config はゲートウェイの設定。
type Config struct {
	// Port はリッスンポート。
	Port string `yaml:"port"`
	// GraphEngineURL は上流グラフエンジンのベースURL。
	GraphEngineURL string `yaml:"graph_engine_url"`
	// QueryPriceWei は1クエリあたりの価格（wei、10進文字列）。
	QueryPriceWei string `yaml:"query_price_wei"`
	// TreasuryAddress は支払いの受取先トレジャリー。
	TreasuryAddress string `yaml:"treasury_address"`
	// ContractAddress は支払いを受け付けるコントラクト。
	ContractAddress string `yaml:"contract_address"`
	// Network は支払いネットワーク識別子。
	Network string `yaml:"network"`
	// ChainRPCURL は支払い検証に使うRPCエンドポイント。空の場合はチェーン参照を行わない。
	ChainRPCURL string `yaml:"chain_rpc_url"`
	// ChainID は支払いネットワークのチェーンID。
	ChainID int64 `yaml:"chain_id"`
	// ENSRPCURL はENS解決に使うmainnetのRPCエンドポイント。
	ENSRPCURL string `yaml:"ens_rpc_url"`
	// ExplorerURL はブロックエクスプローラのベースURL。
	ExplorerURL string `yaml:"explorer_url"`
	// PaymentMode は検証できない支払いの扱い（provisional/strict）。
	PaymentMode string `yaml:"payment_mode"`
	// AllowedOrigins はCORSで許可するオリジン。"*" で全許可。
	AllowedOrigins []string `yaml:"allowed_origins"`
	// ReceiptSecret は支払いレシートの署名鍵。空の場合はレシートを発行しない。
	ReceiptSecret string `yaml:"receipt_secret"`
	// ChainTimeout はチェーン参照1回あたりのタイムアウト。
	ChainTimeout time.Duration `yaml:"chain_timeout"`
	// UpstreamTimeout は上流呼び出し1回あたりのタイムアウト。
	UpstreamTimeout time.Duration `yaml:"upstream_timeout"`
}

// DefaultConfig は既定の設定を返す。
func DefaultConfig() Config {
	return Config{
		Port:            "3000",
		GraphEngineURL:  "http://localhost:8000",
		QueryPriceWei:   "10000000000000",
		TreasuryAddress: "0x0000000000000000000000000000000000000000",
		ContractAddress: "0x0000000000000000000000000000000000000000",
		Network:         "base-sepolia",
		ChainRPCURL:     "https://sepolia.base.org",
		ChainID:         84532,
		ENSRPCURL:       "https://cloudflare-eth.com",
		ExplorerURL:     "https://sepolia.basescan.org",
		PaymentMode:     string(payment.ModeProvisional),
		AllowedOrigins:  []string{"*"},
		ChainTimeout:    5 * time.Second,
		UpstreamTimeout: 30 * time.Second,
	}
}

// LoadConfig は既定値、設定ファイル（GATEWAY_CONFIG）、環境変数の順に設定を読み込む。
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()

	if path := os.Getenv("GATEWAY_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("設定ファイルの読み込みに失敗: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("設定ファイルの解析に失敗: %w", err)
		}
	}

	cfg.Port = getEnvOr("PORT", cfg.Port)
	cfg.GraphEngineURL = getEnvOr("GRAPH_ENGINE_URL", cfg.GraphEngineURL)
	cfg.QueryPriceWei = getEnvOr("QUERY_PRICE_WEI", cfg.QueryPriceWei)
	cfg.TreasuryAddress = getEnvOr("TREASURY_ADDRESS", cfg.TreasuryAddress)
	cfg.ContractAddress = getEnvOr("CONTRACT_ADDRESS", cfg.ContractAddress)
	cfg.Network = getEnvOr("PAYMENT_NETWORK", cfg.Network)
	cfg.ChainRPCURL = getEnvOr("CHAIN_RPC_URL", cfg.ChainRPCURL)
	cfg.ENSRPCURL = getEnvOr("ENS_RPC_URL", cfg.ENSRPCURL)
	cfg.ExplorerURL = getEnvOr("EXPLORER_URL", cfg.ExplorerURL)
	cfg.PaymentMode = getEnvOr("PAYMENT_MODE", cfg.PaymentMode)
	cfg.ReceiptSecret = getEnvOr("RECEIPT_SECRET", cfg.ReceiptSecret)

	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		cfg.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("CHAIN_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("CHAIN_IDの解析に失敗: %w", err)
		}
		cfg.ChainID = id
	}
	var err error
	if cfg.ChainTimeout, err = durationEnv("CHAIN_TIMEOUT", cfg.ChainTimeout); err != nil {
		return Config{}, err
	}
	if cfg.UpstreamTimeout, err = durationEnv("UPSTREAM_TIMEOUT", cfg.UpstreamTimeout); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate は設定値の整合性を検証する。
func (c Config) Validate() error {
	if _, err := c.QueryPrice(); err != nil {
		return fmt.Errorf("QUERY_PRICE_WEIが不正です: %w", err)
	}
	if _, err := payment.ParseMode(c.PaymentMode); err != nil {
		return err
	}
	for name, addr := range map[string]string{"TREASURY_ADDRESS": c.TreasuryAddress, "CONTRACT_ADDRESS": c.ContractAddress} {
		if addr != "" && !chain.ValidAddress(addr) {
			return fmt.Errorf("%sが不正なアドレスです: %q", name, addr)
		}
	}
	if c.GraphEngineURL == "" {
		return fmt.Errorf("GRAPH_ENGINE_URLが設定されていません")
	}
	if c.ChainTimeout <= 0 || c.UpstreamTimeout <= 0 {
		return fmt.Errorf("タイムアウトは正の値である必要があります")
	}
	return nil
}

// QueryPrice は1クエリあたりの価格をweiで返す。
func (c Config) QueryPrice() (*big.Int, error) {
	return chain.ParseWei(c.QueryPriceWei)
}

// getEnvOr は環境変数を取得し、設定されていない場合はデフォルト値を返す。
func getEnvOr(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

// durationEnv は "5s" 形式または秒数の環境変数を解析する。
func durationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%sの解析に失敗: %w", key, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
