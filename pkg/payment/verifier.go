package payment

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dignitas/gateway/pkg/chain"
)

// Mode は検証できなかった支払いの扱いを表す。
type Mode string

const (
	// ModeProvisional は検証できない支払いを verified=false で受理する。
	ModeProvisional Mode = "provisional"
	// ModeStrict はオンチェーンで確認できた支払いのみ受理する。
	ModeStrict Mode = "strict"
)

// ParseMode は文字列からModeを解析する。
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeProvisional, "":
		return ModeProvisional, nil
	case ModeStrict:
		return ModeStrict, nil
	default:
		return "", fmt.Errorf("不明な支払いモード: %q", s)
	}
}

// Verifier は支払いの主張を検証する。
type Verifier interface {
	// Verify は主張を検証し、成功した場合はProofを、拒否した場合は*Errorを返す。
	Verify(ctx context.Context, claim Claim) (*Proof, error)
	// Remediation は402レスポンスに含める支払い条件を返す。
	Remediation() map[string]any
}

// TransactionReader はトランザクションを取得する。*chain.Client が満たす。
type TransactionReader interface {
	Transaction(ctx context.Context, hash string) (*chain.Transaction, error)
}

// Config はChainVerifierの設定。
type Config struct {
	// MinAmount は1クエリあたりの最低支払額（wei）。
	MinAmount *big.Int
	// Treasury は受取先のトレジャリーアドレス。
	Treasury string
	// Contract は受取先のコントラクトアドレス。
	Contract string
	// Network はネットワーク識別子（例: base-sepolia）。
	Network string
	// ExplorerURL はブロックエクスプローラのベースURL。
	ExplorerURL string
	// Mode は検証できない支払いの扱い。
	Mode Mode
	// LookupTimeout はチェーン参照1回あたりのタイムアウト。
	LookupTimeout time.Duration
}

// ChainVerifier はチェーン上のトランザクションと照合して支払いを検証する。
type ChainVerifier struct {
	cfg        Config
	reader     TransactionReader
	recipients []string
}

// NewChainVerifier は新しいChainVerifierを生成する。
// ゼロアドレスと空のアドレスは受取先に含めない。
func NewChainVerifier(cfg Config, reader TransactionReader) *ChainVerifier {
	if cfg.MinAmount == nil {
		cfg.MinAmount = new(big.Int)
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeProvisional
	}
	if cfg.LookupTimeout <= 0 {
		cfg.LookupTimeout = 5 * time.Second
	}

	var recipients []string
	for _, addr := range []string{cfg.Treasury, cfg.Contract} {
		if !chain.ValidAddress(addr) || chain.SameAddress(addr, zeroAddress) {
			continue
		}
		recipients = append(recipients, chain.ChecksumAddress(addr))
	}
	if len(recipients) == 0 {
		log.Printf("[Payment] 受取先アドレスが設定されていません。トランザクションによる支払いはすべて拒否されます")
	}

	return &ChainVerifier{cfg: cfg, reader: reader, recipients: recipients}
}

const zeroAddress = "0x0000000000000000000000000000000000000000"

// Recipients は受理する送金先アドレスを返す。
func (v *ChainVerifier) Recipients() []string {
	return append([]string(nil), v.recipients...)
}

// Remediation は402レスポンスに含める支払い条件を返す。
func (v *ChainVerifier) Remediation() map[string]any {
	return map[string]any{
		"required_amount":     chain.FormatEther(v.cfg.MinAmount),
		"required_amount_wei": v.cfg.MinAmount.String(),
		"treasury":            v.cfg.Treasury,
		"contract":            v.cfg.Contract,
		"recipients":          v.Recipients(),
		"network":             v.cfg.Network,
		"headers": map[string]string{
			"txHash": HeaderTxHash,
			"wallet": HeaderWallet,
		},
	}
}

// Verify は主張を検証する。
//
// 参照がある場合はチェーンを1回だけ参照し、存在・送金先・金額の順に確認する。
// 参照の取得に失敗した場合、provisionalモードでは未確認のまま受理する。
func (v *ChainVerifier) Verify(ctx context.Context, claim Claim) (*Proof, error) {
	claim.Reference = strings.TrimSpace(claim.Reference)
	claim.Payer = strings.TrimSpace(claim.Payer)

	if claim.Empty() {
		return nil, newError(CodePaymentRequired, "Payment required", nil)
	}
	if claim.Reference == "" {
		return v.payerOnly(claim)
	}

	lookupCtx, cancel := context.WithTimeout(ctx, v.cfg.LookupTimeout)
	defer cancel()

	tx, err := v.reader.Transaction(lookupCtx, claim.Reference)
	switch {
	case errors.Is(err, chain.ErrTxNotFound), errors.Is(err, chain.ErrInvalidHash):
		return nil, newError(CodeProofNotFound, "Payment transaction not found", map[string]any{
			"txHash": claim.Reference,
		})
	case err != nil:
		return v.lookupFailed(claim, err)
	}

	if !v.acceptedRecipient(tx.To) {
		return nil, newError(CodeWrongRecipient, "Payment sent to wrong address", map[string]any{
			"expected": v.Recipients(),
			"got":      nullable(tx.To),
		})
	}

	// 失敗したトランザクションは送金額が0として扱う
	sent := tx.Value
	if tx.Status == chain.TxStatusFailed {
		sent = new(big.Int)
	}
	if sent.Cmp(v.cfg.MinAmount) < 0 {
		return nil, newError(CodeInsufficientAmount, "Insufficient payment amount", map[string]any{
			"required": chain.FormatEther(v.cfg.MinAmount) + " ETH",
			"sent":     chain.FormatEther(sent) + " ETH",
			"txStatus": tx.Status,
		})
	}

	payer := tx.From
	if payer == "" {
		payer = claim.Payer
	}
	proof := &Proof{
		Reference:  tx.Hash,
		Payer:      payer,
		AmountPaid: tx.Value,
		Explorer:   v.ExplorerLink(tx.Hash),
	}

	// 未確定またはレシートが取得できない場合は成功を確認できていない
	if tx.Pending || tx.Status != chain.TxStatusSuccess {
		if v.cfg.Mode == ModeStrict {
			return nil, newError(CodeVerificationUnavailable, "Payment transaction is not confirmed yet", map[string]any{
				"txHash":   tx.Hash,
				"txStatus": tx.Status,
			})
		}
		proof.Status = StatusProvisional
		proof.Reason = "transaction pending confirmation"
		if !tx.Pending {
			proof.Reason = "transaction receipt unavailable; accepted pending verification"
		}
		return proof, nil
	}

	proof.Verified = true
	proof.Status = StatusVerified
	proof.Reason = "transaction confirmed on-chain"
	return proof, nil
}

// payerOnly は支払者の主張のみで参照がない場合を扱う。
// 信頼ベースのアクセスであり、strictモードでは拒否する。
func (v *ChainVerifier) payerOnly(claim Claim) (*Proof, error) {
	if v.cfg.Mode == ModeStrict {
		return nil, newError(CodePaymentRequired, "Payment transaction hash required", nil)
	}
	return &Proof{
		Reference: "pay_" + uuid.New().String(),
		Payer:     claim.Payer,
		Status:    StatusProvisional,
		Reason:    "no payment reference supplied; accepted on claimed payer identity",
	}, nil
}

// lookupFailed はチェーン参照の失敗（タイムアウトを含む）を扱う。
func (v *ChainVerifier) lookupFailed(claim Claim, err error) (*Proof, error) {
	log.Printf("[Payment] トランザクションの参照に失敗: tx=%s, error=%v", claim.Reference, err)
	if v.cfg.Mode == ModeStrict {
		return nil, newError(CodeVerificationUnavailable, "Payment could not be verified", map[string]any{
			"txHash": claim.Reference,
		})
	}
	return &Proof{
		Reference: claim.Reference,
		Payer:     claim.Payer,
		Status:    StatusProvisional,
		Reason:    "payment lookup unavailable; accepted pending verification",
		Explorer:  v.ExplorerLink(claim.Reference),
	}, nil
}

func (v *ChainVerifier) acceptedRecipient(to string) bool {
	for _, r := range v.recipients {
		if chain.SameAddress(r, to) {
			return true
		}
	}
	return false
}

// ExplorerLink はトランザクションのエクスプローラURLを返す。
func (v *ChainVerifier) ExplorerLink(hash string) string {
	if v.cfg.ExplorerURL == "" || !chain.ValidHash(hash) {
		return ""
	}
	return strings.TrimRight(v.cfg.ExplorerURL, "/") + "/tx/" + hash
}
