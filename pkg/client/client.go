// Package client はゲートウェイを呼び出すGoクライアントを提供する。
//
// 有料エンドポイントの呼び出しには Payment で支払いトランザクションと
// ウォレットアドレスを渡す。送金そのもの（ウォレットの署名）は扱わない。
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dignitas/gateway/pkg/httpclient"
	"github.com/dignitas/gateway/pkg/payment"
)

// DefaultBaseURL はゲートウェイの既定URL。
const DefaultBaseURL = "http://localhost:3000"

// Client はゲートウェイのAPIクライアント。
type Client struct {
	api *httpclient.Client
}

// New は新しいクライアントを生成する。LLMを使うエンドポイントがあるためtimeoutは長めに取る。
func New(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{api: httpclient.New(strings.TrimRight(baseURL, "/"), timeout)}
}

// Payment は有料エンドポイントに提示する支払いの証跡。
type Payment struct {
	// TxHash は支払いトランザクションのハッシュ。
	TxHash string
	// Wallet は支払者のウォレットアドレス。
	Wallet string
}

func (p Payment) header() http.Header {
	h := make(http.Header)
	if p.TxHash != "" {
		h.Set(payment.HeaderTxHash, p.TxHash)
	}
	if p.Wallet != "" {
		h.Set(payment.HeaderWallet, p.Wallet)
	}
	return h
}

// APIError はゲートウェイが2xx以外を返したことを表す。
type APIError struct {
	// StatusCode はHTTPステータスコード。
	StatusCode int
	// Message はゲートウェイのエラーメッセージ。
	Message string
	// Code は支払い拒否の種類（402の場合のみ）。
	Code string
	// Details はレスポンスボディ全体。
	Details map[string]any
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("gateway %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("gateway %d: %s", e.StatusCode, e.Message)
}

// IsPaymentRequired はerrが402かどうかを返す。
func IsPaymentRequired(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusPaymentRequired
}

// do はリクエストを送信し、エラーをAPIErrorに変換する。
func (c *Client) do(ctx context.Context, r httpclient.Request, result any) error {
	err := c.api.Do(ctx, r, result)
	var se *httpclient.StatusError
	if !errors.As(err, &se) {
		return err
	}

	apiErr := &APIError{StatusCode: se.StatusCode, Message: http.StatusText(se.StatusCode)}
	if json.Unmarshal(se.Body, &apiErr.Details) == nil {
		if msg, ok := apiErr.Details["error"].(string); ok {
			apiErr.Message = msg
		}
		if code, ok := apiErr.Details["code"].(string); ok {
			apiErr.Code = code
		}
	}
	return apiErr
}

// Health はゲートウェイの状態と価格を取得する。
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var h Health
	if err := c.do(ctx, httpclient.Request{Method: http.MethodGet, Path: "/health"}, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// Leaderboard はスコア上位のエージェントを取得する。
func (c *Client) Leaderboard(ctx context.Context) ([]Agent, error) {
	var res struct {
		Agents []Agent `json:"agents"`
	}
	if err := c.do(ctx, httpclient.Request{Method: http.MethodGet, Path: "/leaderboard"}, &res); err != nil {
		return nil, err
	}
	return res.Agents, nil
}

// Discover はスコアがminScore以上のエージェントを最大limit件取得する。
func (c *Client) Discover(ctx context.Context, p Payment, minScore float64, limit int) (*DiscoverResult, error) {
	query := url.Values{}
	query.Set("min_score", strconv.FormatFloat(minScore, 'f', -1, 64))
	query.Set("limit", strconv.Itoa(limit))

	var res DiscoverResult
	err := c.do(ctx, httpclient.Request{Method: http.MethodGet, Path: "/paid/discover", Query: query, Header: p.header()}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// Score はエージェント1件のスコアを取得する。addressOrNameにはENS名も指定できる。
func (c *Client) Score(ctx context.Context, p Payment, addressOrName string) (*ScoreResult, error) {
	var res ScoreResult
	err := c.do(ctx, httpclient.Request{
		Method: http.MethodGet,
		Path:   "/paid/score/" + url.PathEscape(addressOrName),
		Header: p.header(),
	}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// RecordInteraction はエージェント間のインタラクションを記録する。
func (c *Client) RecordInteraction(ctx context.Context, p Payment, in Interaction) (*PaymentInfo, error) {
	var res struct {
		Status  string       `json:"status"`
		Payment *PaymentInfo `json:"payment"`
	}
	err := c.do(ctx, httpclient.Request{Method: http.MethodPost, Path: "/paid/interact", Body: in, Header: p.header()}, &res)
	if err != nil {
		return nil, err
	}
	return res.Payment, nil
}

// SmartDiscover は自然言語クエリでエージェントを検索する。
func (c *Client) SmartDiscover(ctx context.Context, p Payment, query string, opts SmartDiscoverOptions) (*SmartDiscoverResult, error) {
	body := map[string]any{"query": query}
	if opts.MinScore != nil {
		body["min_score"] = *opts.MinScore
	}
	if opts.Limit != nil {
		body["limit"] = *opts.Limit
	}
	if opts.PageRankWeight != nil {
		body["pagerank_weight"] = *opts.PageRankWeight
	}
	if opts.RelevancyWeight != nil {
		body["relevancy_weight"] = *opts.RelevancyWeight
	}

	var res SmartDiscoverResult
	err := c.do(ctx, httpclient.Request{Method: http.MethodPost, Path: "/paid/discover/smart", Body: body, Header: p.header()}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// RegisterAgent はエージェントの仕様を登録する。
func (c *Client) RegisterAgent(ctx context.Context, p Payment, spec AgentSpec) error {
	return c.do(ctx, httpclient.Request{Method: http.MethodPost, Path: "/paid/agents/register", Body: spec, Header: p.header()}, nil)
}

// AgentSpec はエージェントの仕様を取得する。addressOrNameにはENS名も指定できる。
func (c *Client) AgentSpec(ctx context.Context, p Payment, addressOrName string) (*AgentSpec, error) {
	var res struct {
		Spec AgentSpec `json:"spec"`
	}
	err := c.do(ctx, httpclient.Request{
		Method: http.MethodGet,
		Path:   "/paid/agents/" + url.PathEscape(addressOrName) + "/spec",
		Header: p.header(),
	}, &res)
	if err != nil {
		return nil, err
	}
	return &res.Spec, nil
}

// ResolveName はENS名またはアドレスを相互に解決する。
func (c *Client) ResolveName(ctx context.Context, nameOrAddress string) (*Resolution, error) {
	var res Resolution
	err := c.do(ctx, httpclient.Request{Method: http.MethodGet, Path: "/ens/resolve/" + url.PathEscape(nameOrAddress)}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// VerifyTransaction は支払いネットワーク上のトランザクションを取得する。
func (c *Client) VerifyTransaction(ctx context.Context, txHash string) (*TransactionInfo, error) {
	var res TransactionInfo
	err := c.do(ctx, httpclient.Request{Method: http.MethodGet, Path: "/tx/" + url.PathEscape(txHash)}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}
