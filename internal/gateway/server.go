package gateway

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/dignitas/gateway/pkg/chain"
	"github.com/dignitas/gateway/pkg/httpclient"
	"github.com/dignitas/gateway/pkg/metrics"
	"github.com/dignitas/gateway/pkg/middleware"
	"github.com/dignitas/gateway/pkg/payment"
)

const (
	// maxBatchAddresses は /ens/batch 1回あたりの最大アドレス数。
	maxBatchAddresses = 50
	// batchConcurrency は /ens/batch の同時解決数。
	batchConcurrency = 8
)

// Upstream は上流グラフエンジンへのJSON呼び出し。*httpclient.Client が満たす。
type Upstream interface {
	Do(ctx context.Context, r httpclient.Request, result any) error
}

// NameResolver はENS名とアドレスを相互に解決する。*chain.ENS が満たす。
type NameResolver interface {
	ResolveName(ctx context.Context, name string) (string, error)
	LookupAddress(ctx context.Context, address string) (string, error)
}

// TransactionReader はトランザクションを取得する。*chain.Client が満たす。
type TransactionReader interface {
	Transaction(ctx context.Context, hash string) (*chain.Transaction, error)
}

// Dependencies はServerが利用する外部との接点。
type Dependencies struct {
	// Verifier は有料ルートの支払いを検証する。
	Verifier payment.Verifier
	// Upstream は上流グラフエンジン。
	Upstream Upstream
	// Names はENSリゾルバ。
	Names NameResolver
	// Transactions は支払いネットワークのトランザクション参照。
	Transactions TransactionReader
}

// Server は支払い付きゲートウェイのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// cfg はゲートウェイの設定。
	cfg Config
	// price は1クエリあたりの価格（wei）。
	price *big.Int
	// deps は外部との接点。
	deps Dependencies
	// classifier はルート区分の判定器。
	classifier *Classifier
}

// NewServer は設定から外部接続を組み立ててGatewayサーバーを生成する。
func NewServer(cfg Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	price, err := cfg.QueryPrice()
	if err != nil {
		return nil, err
	}
	mode, err := payment.ParseMode(cfg.PaymentMode)
	if err != nil {
		return nil, err
	}

	// RPCには最初の参照時に接続する
	chainClient := chain.NewClient(cfg.ChainRPCURL, big.NewInt(cfg.ChainID))
	ensClient := chain.NewClient(cfg.ENSRPCURL, big.NewInt(1))

	verifier := payment.NewChainVerifier(payment.Config{
		MinAmount:     price,
		Treasury:      cfg.TreasuryAddress,
		Contract:      cfg.ContractAddress,
		Network:       cfg.Network,
		ExplorerURL:   cfg.ExplorerURL,
		Mode:          mode,
		LookupTimeout: cfg.ChainTimeout,
	}, chainClient)

	return New(cfg, Dependencies{
		Verifier:     verifier,
		Upstream:     httpclient.New(strings.TrimRight(cfg.GraphEngineURL, "/"), cfg.UpstreamTimeout),
		Names:        chain.NewENS(ensClient),
		Transactions: chainClient,
	}), nil
}

// New は指定した外部接続でGatewayサーバーを生成する。
func New(cfg Config, deps Dependencies) *Server {
	price, err := cfg.QueryPrice()
	if err != nil {
		price = new(big.Int)
	}
	if cfg.ChainTimeout <= 0 {
		cfg.ChainTimeout = 5 * time.Second
	}

	s := &Server{
		router:     gin.New(),
		cfg:        cfg,
		price:      price,
		deps:       deps,
		classifier: NewClassifier(defaultRouteTable),
	}

	s.router.Use(middleware.Recovery())
	s.router.Use(middleware.RequestID())
	s.router.Use(gin.Logger())
	s.router.Use(middleware.CORS(cfg.AllowedOrigins))
	s.router.Use(classifyRoute(s.classifier))
	s.router.Use(middleware.Metrics(func(c *gin.Context) string {
		return string(RouteClassOf(c))
	}))
	s.router.Use(middleware.Payment(deps.Verifier, middleware.PaymentOptions{
		Requires: func(c *gin.Context) bool {
			return RouteClassOf(c) == RoutePaid
		},
		ReceiptSecret: cfg.ReceiptSecret,
	}))
	s.setupRoutes()

	return s
}

// Handler はHTTPハンドラとしてのルーターを返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.cfg.Port))
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	// 無料エンドポイント
	s.router.GET("/health", s.handleHealth())
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.router.GET("/leaderboard", s.handleLeaderboard())

	ens := s.router.Group("/ens")
	{
		ens.GET("/resolve/:nameOrAddress", s.handleResolve())
		ens.POST("/batch", s.handleBatchResolve())
	}
	s.router.GET("/tx/:hash", s.handleTransaction())

	// 有料エンドポイント（支払い検証はミドルウェアで行う）
	paid := s.router.Group("/paid")
	{
		paid.GET("/discover", s.handleDiscover())
		paid.GET("/score/:address", s.handleScore())
		paid.POST("/interact", s.handleInteract())
		paid.POST("/discover/smart", s.handleSmartDiscover())
		paid.POST("/agents/register", s.handleRegisterAgent())
		paid.GET("/agents/:address/spec", s.handleAgentSpec())
	}

	s.router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown route"})
	})
}

// handleHealth はヘルスチェックと支払い条件を返すハンドラを返す。
func (s *Server) handleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":        "ok",
			"queryPrice":    chain.FormatEther(s.price) + " ETH",
			"queryPriceWei": s.price.String(),
			"network":       s.cfg.Network,
			"treasury":      s.cfg.TreasuryAddress,
			"contract":      s.cfg.ContractAddress,
			"mode":          s.cfg.PaymentMode,
		})
	}
}

// handleLeaderboard は上流のリーダーボードを転送するハンドラを返す。
func (s *Server) handleLeaderboard() gin.HandlerFunc {
	return func(c *gin.Context) {
		var data any
		err := s.forward(c, httpclient.Request{
			Method: http.MethodGet,
			Path:   "/leaderboard",
			Query:  c.Request.URL.Query(),
		}, &data)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch leaderboard"})
			return
		}
		c.JSON(http.StatusOK, data)
	}
}

// handleResolve はENS名またはアドレスを解決するハンドラを返す。
// 解決できない側はnullで返し、リクエスト自体は失敗させない。
func (s *Server) handleResolve() gin.HandlerFunc {
	return func(c *gin.Context) {
		input := strings.TrimSpace(c.Param("nameOrAddress"))

		switch {
		case chain.ValidAddress(input):
			c.JSON(http.StatusOK, gin.H{
				"address": chain.ChecksumAddress(input),
				"ensName": nullable(s.lookupName(c.Request.Context(), input)),
			})
		case chain.IsName(chain.NormalizeName(input)):
			name := chain.NormalizeName(input)
			c.JSON(http.StatusOK, gin.H{
				"address": nullable(s.resolveName(c.Request.Context(), name)),
				"ensName": name,
			})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid address or ENS name"})
		}
	}
}

// batchRequest は /ens/batch のリクエストボディ。
type batchRequest struct {
	Addresses []string `json:"addresses"`
}

// handleBatchResolve は複数アドレスのENS名を並行して逆引きするハンドラを返す。
func (s *Server) handleBatchResolve() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req batchRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.Addresses == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "addresses array is required"})
			return
		}
		if len(req.Addresses) > maxBatchAddresses {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": fmt.Sprintf("At most %d addresses per request", maxBatchAddresses),
			})
			return
		}

		names := make([]string, len(req.Addresses))
		g, ctx := errgroup.WithContext(c.Request.Context())
		g.SetLimit(batchConcurrency)
		for i, addr := range req.Addresses {
			i, addr := i, addr
			g.Go(func() error {
				names[i] = s.lookupName(ctx, addr)
				return nil
			})
		}
		_ = g.Wait()

		result := make(map[string]any, len(req.Addresses))
		for i, addr := range req.Addresses {
			result[addr] = nullable(names[i])
		}
		c.JSON(http.StatusOK, gin.H{"names": result})
	}
}

// handleTransaction は支払いネットワーク上のトランザクションを返すハンドラを返す。
func (s *Server) handleTransaction() gin.HandlerFunc {
	return func(c *gin.Context) {
		hash := c.Param("hash")
		if !chain.ValidHash(hash) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid transaction hash"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), s.cfg.ChainTimeout)
		defer cancel()
		tx, err := s.deps.Transactions.Transaction(ctx, hash)
		if err != nil {
			if errors.Is(err, chain.ErrTxNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Transaction not found"})
				return
			}
			log.Printf("[Chain] トランザクション参照エラー: tx=%s, error=%v", hash, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Transaction lookup failed"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"hash":     tx.Hash,
			"from":     tx.From,
			"to":       nullable(tx.To),
			"value":    chain.FormatEther(tx.Value) + " ETH",
			"valueWei": tx.Value.String(),
			"status":   tx.Status,
			"explorer": nullable(explorerLink(s.cfg.ExplorerURL, tx.Hash)),
		})
	}
}

// resolveName はENS名をアドレスに解決する。失敗した場合は空文字列を返す。
func (s *Server) resolveName(ctx context.Context, name string) string {
	if s.deps.Names == nil {
		return ""
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ChainTimeout)
	defer cancel()
	addr, err := s.deps.Names.ResolveName(ctx, name)
	if err != nil {
		log.Printf("[ENS] 名前解決に失敗: name=%s, error=%v", name, err)
		return ""
	}
	return addr
}

// lookupName はアドレスのENS名を逆引きする。失敗した場合は空文字列を返す。
func (s *Server) lookupName(ctx context.Context, address string) string {
	if s.deps.Names == nil || !chain.ValidAddress(address) {
		return ""
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ChainTimeout)
	defer cancel()
	name, err := s.deps.Names.LookupAddress(ctx, address)
	if err != nil {
		if !errors.Is(err, chain.ErrNameNotFound) {
			log.Printf("[ENS] 逆引きに失敗: address=%s, error=%v", address, err)
		}
		return ""
	}
	return name
}

// forward は上流に1回だけリクエストを送信し、結果をメトリクスに記録する。
func (s *Server) forward(c *gin.Context, r httpclient.Request, result any) error {
	err := s.deps.Upstream.Do(c.Request.Context(), r, result)
	endpoint := c.FullPath()
	switch {
	case err == nil:
		metrics.IncUpstream(endpoint, "ok")
	case httpclient.IsNotFound(err):
		metrics.IncUpstream(endpoint, "not_found")
	default:
		metrics.IncUpstream(endpoint, "error")
		log.Printf("[Proxy] 上流呼び出しエラー: path=%s, request_id=%s, error=%v",
			r.Path, middleware.GetRequestID(c), err)
	}
	return err
}

func explorerLink(base, hash string) string {
	if base == "" {
		return ""
	}
	return strings.TrimRight(base, "/") + "/tx/" + hash
}

// nullable は空文字列をJSONのnullにする。
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
