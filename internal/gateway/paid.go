package gateway

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/dignitas/gateway/pkg/chain"
	"github.com/dignitas/gateway/pkg/httpclient"
	"github.com/dignitas/gateway/pkg/middleware"
)

// 有料ルートの既定値。
const (
	defaultMinScore        = 0.0
	defaultLimit           = 10
	defaultPageRankWeight  = 0.4
	defaultRelevancyWeight = 0.6
	defaultCategory        = "general"
)

// envelope は上流の応答に支払いメタデータを合成する。
// 上流と同名のキーは支払い側の値で上書きする。
func (s *Server) envelope(c *gin.Context, data map[string]any, withCost bool) map[string]any {
	out := make(map[string]any, len(data)+2)
	for k, v := range data {
		out[k] = v
	}
	if withCost {
		out["query_cost"] = chain.FormatEther(s.price) + " ETH"
	}
	if proof := middleware.GetPaymentProof(c); proof != nil {
		out["payment"] = proof.Metadata()
	}
	return out
}

// handleDiscover は条件に合うエージェントを検索するハンドラを返す。
func (s *Server) handleDiscover() gin.HandlerFunc {
	return func(c *gin.Context) {
		query := url.Values{}
		query.Set("min_score", c.DefaultQuery("min_score", strconv.FormatFloat(defaultMinScore, 'f', -1, 64)))
		query.Set("limit", c.DefaultQuery("limit", strconv.Itoa(defaultLimit)))

		var data map[string]any
		err := s.forward(c, httpclient.Request{Method: http.MethodGet, Path: "/discover", Query: query}, &data)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Discovery failed"})
			return
		}
		c.JSON(http.StatusOK, s.envelope(c, data, true))
	}
}

// handleScore はエージェント1件のスコアを返すハンドラを返す。
// ENS名が渡された場合は先にアドレスへ解決してから上流に問い合わせる。
func (s *Server) handleScore() gin.HandlerFunc {
	return func(c *gin.Context) {
		address, ensName := s.identify(c, c.Param("address"))

		var data map[string]any
		err := s.forward(c, httpclient.Request{Method: http.MethodGet, Path: "/scores/" + url.PathEscape(address)}, &data)
		if err != nil {
			if httpclient.IsNotFound(err) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Agent not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Lookup failed"})
			return
		}

		out := s.envelope(c, data, true)
		out["ensName"] = nullable(ensName)
		c.JSON(http.StatusOK, out)
	}
}

// interactRequest は /paid/interact のリクエストボディ。
type interactRequest struct {
	FromAgent       string `json:"from_agent"`
	ToAgent         string `json:"to_agent"`
	InteractionType string `json:"interaction_type"`
}

// handleInteract はエージェント間のインタラクションを記録するハンドラを返す。
func (s *Server) handleInteract() gin.HandlerFunc {
	return func(c *gin.Context) {
		// 空のボディはそのまま空の項目として転送する
		var req interactRequest
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		if err := s.forward(c, httpclient.Request{Method: http.MethodPost, Path: "/interactions", Body: req}, nil); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record interaction"})
			return
		}
		c.JSON(http.StatusOK, s.envelope(c, map[string]any{"status": "recorded"}, false))
	}
}

// smartDiscoverRequest は /paid/discover/smart のリクエストボディ。
// 省略された数値は既定値で補うためポインタで受ける。
type smartDiscoverRequest struct {
	Query           string   `json:"query"`
	MinScore        *float64 `json:"min_score"`
	Limit           *int     `json:"limit"`
	PageRankWeight  *float64 `json:"pagerank_weight"`
	RelevancyWeight *float64 `json:"relevancy_weight"`
}

// handleSmartDiscover は自然言語クエリでエージェントを検索するハンドラを返す。
func (s *Server) handleSmartDiscover() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req smartDiscoverRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.Query == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Query is required"})
			return
		}

		body := map[string]any{
			"query":            req.Query,
			"min_score":        floatOr(req.MinScore, defaultMinScore),
			"limit":            intOr(req.Limit, defaultLimit),
			"pagerank_weight":  floatOr(req.PageRankWeight, defaultPageRankWeight),
			"relevancy_weight": floatOr(req.RelevancyWeight, defaultRelevancyWeight),
		}
		var data map[string]any
		if err := s.forward(c, httpclient.Request{Method: http.MethodPost, Path: "/discover/smart", Body: body}, &data); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Smart discovery failed"})
			return
		}
		c.JSON(http.StatusOK, s.envelope(c, data, true))
	}
}

// registerRequest は /paid/agents/register のリクエストボディ。
type registerRequest struct {
	Address      string   `json:"address"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Capabilities []string `json:"capabilities"`
	Tags         []string `json:"tags"`
	Category     string   `json:"category"`
}

// handleRegisterAgent はエージェントの仕様を登録するハンドラを返す。
func (s *Server) handleRegisterAgent() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req registerRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.Address == "" || req.Name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Address and name are required"})
			return
		}
		if req.Capabilities == nil {
			req.Capabilities = []string{}
		}
		if req.Tags == nil {
			req.Tags = []string{}
		}
		if req.Category == "" {
			req.Category = defaultCategory
		}

		var data map[string]any
		if err := s.forward(c, httpclient.Request{Method: http.MethodPost, Path: "/agents/register", Body: req}, &data); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Agent registration failed"})
			return
		}
		c.JSON(http.StatusOK, s.envelope(c, data, false))
	}
}

// handleAgentSpec はエージェントの仕様を返すハンドラを返す。
func (s *Server) handleAgentSpec() gin.HandlerFunc {
	return func(c *gin.Context) {
		address, _ := s.identify(c, c.Param("address"))

		var data map[string]any
		err := s.forward(c, httpclient.Request{Method: http.MethodGet, Path: "/agents/" + url.PathEscape(address) + "/spec"}, &data)
		if err != nil {
			if httpclient.IsNotFound(err) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Agent specification not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get agent spec"})
			return
		}
		c.JSON(http.StatusOK, s.envelope(c, data, true))
	}
}

// identify はパスパラメータを上流に渡すアドレスとENS名に分解する。
// ENS名が解決できない場合は正規化した名前をそのまま上流に渡し、ENS名は空にする。
func (s *Server) identify(c *gin.Context, input string) (address, ensName string) {
	if chain.ValidAddress(input) {
		return input, s.lookupName(c.Request.Context(), input)
	}
	name := chain.NormalizeName(input)
	if !chain.IsName(name) {
		return input, ""
	}
	if addr := s.resolveName(c.Request.Context(), name); addr != "" {
		return addr, name
	}
	return name, ""
}

func floatOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}
