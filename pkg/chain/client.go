package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
)

var (
	// ErrTxNotFound はノードがトランザクションを認識していないことを表す。
	ErrTxNotFound = errors.New("transaction not found")
	// ErrInvalidHash はトランザクションハッシュの形式が不正であることを表す。
	ErrInvalidHash = errors.New("invalid transaction hash")
	// ErrNotConfigured はRPCエンドポイントが設定されていないことを表す。
	ErrNotConfigured = errors.New("rpc endpoint is not configured")
)

// TxStatus はトランザクションの実行状態を表す。
type TxStatus string

const (
	// TxStatusPending はまだブロックに取り込まれていない状態。
	TxStatusPending TxStatus = "pending"
	// TxStatusSuccess は実行に成功した状態。
	TxStatusSuccess TxStatus = "success"
	// TxStatusFailed はrevertされた状態。
	TxStatusFailed TxStatus = "failed"
	// TxStatusUnknown はレシートが取得できなかった状態。
	TxStatusUnknown TxStatus = "unknown"
)

// Transaction はチェーンから取得した送金トランザクションの要約。
type Transaction struct {
	// Hash はトランザクションハッシュ（0x付き16進数）。
	Hash string
	// From は署名から復元した送信者アドレス。復元できない場合は空文字。
	From string
	// To は送金先アドレス。コントラクト作成の場合は空文字。
	To string
	// Value は送金額（wei）。
	Value *big.Int
	// Pending はトランザクションが未確定かどうか。
	Pending bool
	// Status はレシートから判定した実行状態。
	Status TxStatus
}

// backend はClientが利用するRPC呼び出しの集合。*ethclient.Client が満たす。
type backend interface {
	TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error)
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Client はJSON-RPCエンドポイントへの読み取り専用クライアント。
// 接続は初回呼び出し時に一度だけ行い、以降は共有する。
type Client struct {
	// rpcURL は接続先のJSON-RPCエンドポイント。
	rpcURL string
	// chainID は送信者アドレスの復元に使うチェーンID。nilの場合はトランザクションの値を使う。
	chainID *big.Int

	once    sync.Once
	eth     backend
	dialErr error
}

// NewClient は新しいチェーンクライアントを生成する。rpcURLが空の場合、
// すべての呼び出しは ErrNotConfigured を返す。
func NewClient(rpcURL string, chainID *big.Int) *Client {
	return &Client{rpcURL: rpcURL, chainID: chainID}
}

// newClientWithBackend は任意のbackendを持つクライアントを生成する。
func newClientWithBackend(b backend, chainID *big.Int) *Client {
	c := &Client{chainID: chainID, eth: b}
	c.once.Do(func() {})
	return c
}

// backend は接続済みのRPCクライアントを返す。
func (c *Client) backend() (backend, error) {
	c.once.Do(func() {
		if c.rpcURL == "" {
			c.dialErr = ErrNotConfigured
			return
		}
		eth, err := ethclient.DialContext(context.Background(), c.rpcURL)
		if err != nil {
			c.dialErr = fmt.Errorf("RPC接続に失敗: %w", err)
			return
		}
		c.eth = eth
	})
	return c.eth, c.dialErr
}

// Transaction はハッシュに対応するトランザクションを取得する。
// ノードが認識していない場合は ErrTxNotFound を返す。
func (c *Client) Transaction(ctx context.Context, hash string) (*Transaction, error) {
	if !ValidHash(hash) {
		return nil, ErrInvalidHash
	}
	b, err := c.backend()
	if err != nil {
		return nil, err
	}

	h := common.HexToHash(hash)
	tx, pending, err := b.TransactionByHash(ctx, h)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, ErrTxNotFound
		}
		return nil, fmt.Errorf("トランザクションの取得に失敗: %w", err)
	}

	result := &Transaction{
		Hash:    h.Hex(),
		Value:   new(big.Int).Set(tx.Value()),
		Pending: pending,
		Status:  TxStatusPending,
	}
	if to := tx.To(); to != nil {
		result.To = to.Hex()
	}
	if from, err := c.sender(tx); err == nil {
		result.From = from.Hex()
	}

	if !pending {
		result.Status = TxStatusUnknown
		receipt, err := b.TransactionReceipt(ctx, h)
		if err == nil {
			if receipt.Status == types.ReceiptStatusSuccessful {
				result.Status = TxStatusSuccess
			} else {
				result.Status = TxStatusFailed
			}
		}
	}
	return result, nil
}

// sender は署名から送信者アドレスを復元する。
func (c *Client) sender(tx *types.Transaction) (common.Address, error) {
	chainID := c.chainID
	if chainID == nil {
		chainID = tx.ChainId()
	}
	return types.Sender(types.LatestSignerForChainID(chainID), tx)
}

// ValidHash はsが0x付き32バイトの16進数ハッシュかどうかを判定する。
func ValidHash(s string) bool {
	if len(s) != 66 || !strings.HasPrefix(s, "0x") {
		return false
	}
	b, err := hexutil.Decode(s)
	return err == nil && len(b) == common.HashLength
}

// ValidAddress はsが0x付き20バイトのアドレスかどうかを判定する。
func ValidAddress(s string) bool {
	return strings.HasPrefix(s, "0x") && common.IsHexAddress(s)
}

// SameAddress は大文字小文字を区別せずに2つのアドレスを比較する。
func SameAddress(a, b string) bool {
	if !common.IsHexAddress(a) || !common.IsHexAddress(b) {
		return false
	}
	return common.HexToAddress(a) == common.HexToAddress(b)
}

// ChecksumAddress はEIP-55形式のアドレスを返す。
func ChecksumAddress(s string) string {
	return common.HexToAddress(s).Hex()
}

// FormatEther はweiをETH単位の10進文字列に変換する。
func FormatEther(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	return decimal.NewFromBigInt(wei, -18).String()
}

// ParseWei は10進のwei文字列を解析する。
func ParseWei(s string) (*big.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("金額の解析に失敗: %w", err)
	}
	if d.IsNegative() || !d.Equal(d.Truncate(0)) {
		return nil, fmt.Errorf("金額は0以上の整数である必要があります: %s", s)
	}
	return d.BigInt(), nil
}
