package payment

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// receiptIssuer はレシートのissクレーム。
const receiptIssuer = "dignitas-gateway"

// ReceiptClaims は支払い検証の判定内容を表すJWTクレーム。
// レシートは判定の記録であり、支払いの証跡として再提示することはできない。
type ReceiptClaims struct {
	jwt.RegisteredClaims
	// Reference は支払い参照（トランザクションハッシュまたは生成トークン）。
	Reference string `json:"reference"`
	// Payer は支払者アドレス。
	Payer string `json:"payer,omitempty"`
	// AmountWei は送金額（wei）。
	AmountWei string `json:"amount_wei,omitempty"`
	// Verified はオンチェーンで確認済みかどうか。
	Verified bool `json:"verified"`
	// Status は検証の終端状態。
	Status Status `json:"status"`
	// Path は支払い対象のリクエストパス。
	Path string `json:"path"`
}

// IssueReceipt は検証結果からHS256署名のレシートを生成する。
func IssueReceipt(secret string, proof *Proof, path string) (string, error) {
	now := time.Now()
	claims := ReceiptClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(24 * time.Hour)),
			Issuer:    receiptIssuer,
			Subject:   proof.Payer,
		},
		Reference: proof.Reference,
		Payer:     proof.Payer,
		Verified:  proof.Verified,
		Status:    proof.Status,
		Path:      path,
	}
	if proof.AmountPaid != nil {
		claims.AmountWei = proof.AmountPaid.String()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("レシートの署名に失敗: %w", err)
	}
	return signed, nil
}

// ParseReceipt はレシートの署名を検証してクレームを返す。
func ParseReceipt(secret, token string) (*ReceiptClaims, error) {
	claims := &ReceiptClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("想定外の署名方式: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithIssuer(receiptIssuer))
	if err != nil {
		return nil, fmt.Errorf("レシートが無効です: %w", err)
	}
	if !parsed.Valid {
		return nil, fmt.Errorf("レシートが無効です")
	}
	return claims, nil
}
