package client

// Health は /health のレスポンス。
type Health struct {
	Status        string `json:"status"`
	QueryPrice    string `json:"queryPrice"`
	QueryPriceWei string `json:"queryPriceWei"`
	Network       string `json:"network"`
	Treasury      string `json:"treasury"`
	Contract      string `json:"contract"`
	Mode          string `json:"mode"`
}

// Agent はスコア付きのエージェント。
type Agent struct {
	Address string  `json:"address"`
	Score   float64 `json:"score"`
	ENSName *string `json:"ensName,omitempty"`
}

// PaymentInfo はレスポンスに含まれる支払いメタデータ。
type PaymentInfo struct {
	Reference string  `json:"reference"`
	TxHash    *string `json:"txHash"`
	Payer     *string `json:"payer"`
	Verified  bool    `json:"verified"`
	Status    string  `json:"status"`
	Reason    string  `json:"reason"`
	Explorer  *string `json:"explorer"`
	Amount    string  `json:"amount,omitempty"`
	AmountWei string  `json:"amount_wei,omitempty"`
}

// DiscoverResult は /paid/discover のレスポンス。
type DiscoverResult struct {
	Agents    []Agent      `json:"agents"`
	QueryCost string       `json:"query_cost"`
	Payment   *PaymentInfo `json:"payment"`
}

// ScoreResult は /paid/score/:address のレスポンス。
type ScoreResult struct {
	Address   string       `json:"address"`
	Score     float64      `json:"score"`
	ENSName   *string      `json:"ensName"`
	QueryCost string       `json:"query_cost"`
	Payment   *PaymentInfo `json:"payment"`
}

// Interaction は記録するエージェント間のインタラクション。
type Interaction struct {
	FromAgent       string `json:"from_agent"`
	ToAgent         string `json:"to_agent"`
	InteractionType string `json:"interaction_type"`
}

// SmartDiscoverOptions はスマート検索の任意パラメータ。nilの項目はゲートウェイの既定値を使う。
type SmartDiscoverOptions struct {
	MinScore        *float64
	Limit           *int
	PageRankWeight  *float64
	RelevancyWeight *float64
}

// RankedAgent はスマート検索で順位付けされたエージェント。
type RankedAgent struct {
	Address        string  `json:"address"`
	PageRankScore  float64 `json:"pagerank_score"`
	RelevancyScore float64 `json:"relevancy_score"`
	CombinedScore  float64 `json:"combined_score"`
	Name           string  `json:"name,omitempty"`
	Description    string  `json:"description,omitempty"`
	Category       string  `json:"category,omitempty"`
}

// SmartDiscoverResult は /paid/discover/smart のレスポンス。
type SmartDiscoverResult struct {
	Agents  []RankedAgent `json:"agents"`
	Query   string        `json:"query"`
	Weights struct {
		PageRank  float64 `json:"pagerank"`
		Relevancy float64 `json:"relevancy"`
	} `json:"weights"`
	QueryCost string       `json:"query_cost"`
	Payment   *PaymentInfo `json:"payment"`
}

// AgentSpec はエージェントの仕様。
type AgentSpec struct {
	Address      string   `json:"address,omitempty"`
	Name         string   `json:"name"`
	Description  string   `json:"description,omitempty"`
	Capabilities []string `json:"capabilities,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	Category     string   `json:"category,omitempty"`
	ENSName      string   `json:"ens_name,omitempty"`
}

// Resolution は /ens/resolve のレスポンス。解決できなかった側はnil。
type Resolution struct {
	Address *string `json:"address"`
	ENSName *string `json:"ensName"`
}

// TransactionInfo は /tx/:hash のレスポンス。
type TransactionInfo struct {
	Hash     string  `json:"hash"`
	From     string  `json:"from"`
	To       *string `json:"to"`
	Value    string  `json:"value"`
	ValueWei string  `json:"valueWei"`
	Status   string  `json:"status"`
	Explorer *string `json:"explorer"`
}
