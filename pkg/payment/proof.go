// Package payment はクエリ単位の支払い検証を提供する。
//
// リクエストヘッダーで提示された支払いの主張（Claim）をチェーン上の
// トランザクションと照合し、PaymentProof を生成する。検証結果は
// verified（オンチェーンで確認済み）と provisional（未確認のまま受理）の
// 2種類の成功状態と、理由付きの拒否（*Error）のいずれかになる。
package payment

import (
	"math/big"

	"github.com/dignitas/gateway/pkg/chain"
)

const (
	// HeaderTxHash は支払いトランザクションハッシュを運ぶリクエストヘッダー。
	HeaderTxHash = "X-Payment-TxHash"
	// HeaderWallet は支払者のウォレットアドレスを運ぶリクエストヘッダー。
	HeaderWallet = "X-Wallet-Address"
	// HeaderReceipt は検証結果の署名付きレシートを運ぶレスポンスヘッダー。
	HeaderReceipt = "X-Payment-Receipt"
)

// Status は検証の終端状態を表す。
type Status string

const (
	// StatusVerified はチェーン上で支払いが確認された状態。
	StatusVerified Status = "verified"
	// StatusProvisional は確認できないまま受理した状態。
	StatusProvisional Status = "provisional"
)

// Claim はクライアントが提示した支払いの主張。どちらのフィールドも省略可能。
type Claim struct {
	// Reference は支払いトランザクションのハッシュ。
	Reference string
	// Payer は支払者と主張されるウォレットアドレス。
	Payer string
}

// Empty は主張が何も含まないかどうかを返す。
func (c Claim) Empty() bool {
	return c.Reference == "" && c.Payer == ""
}

// Proof は検証の結果としてリクエストに付与される支払い証跡。
// リクエストごとに生成され、永続化されない。
type Proof struct {
	// Reference はトランザクションハッシュ、またはハッシュがない場合に生成したトークン。
	Reference string
	// Payer は復元した送信者、または主張された支払者。
	Payer string
	// AmountPaid は送金額（wei）。不明な場合はnil。
	AmountPaid *big.Int
	// Verified はオンチェーンで独立に確認された場合のみtrue。
	Verified bool
	// Status は終端状態。
	Status Status
	// Reason は判定理由。
	Reason string
	// Explorer はトランザクションのエクスプローラURL。
	Explorer string
}

// Metadata はレスポンスにマージする支払いメタデータを返す。
func (p *Proof) Metadata() map[string]any {
	m := map[string]any{
		"reference": p.Reference,
		"txHash":    nil,
		"payer":     nullable(p.Payer),
		"verified":  p.Verified,
		"status":    p.Status,
		"reason":    p.Reason,
		"explorer":  nullable(p.Explorer),
	}
	if chain.ValidHash(p.Reference) {
		m["txHash"] = p.Reference
	}
	if p.AmountPaid != nil {
		m["amount"] = chain.FormatEther(p.AmountPaid)
		m["amount_wei"] = p.AmountPaid.String()
	}
	return m
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
