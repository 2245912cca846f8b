package middleware

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dignitas/gateway/pkg/metrics"
	"github.com/dignitas/gateway/pkg/payment"
)

// contextKeyProof はGinコンテキストに支払い証跡を格納するためのキー。
const contextKeyProof = "payment_proof"

// PaymentOptions はPaymentミドルウェアの設定。
type PaymentOptions struct {
	// Requires はリクエストが支払いを必要とするかどうかを判定する。
	Requires func(c *gin.Context) bool
	// ReceiptSecret はレシート署名用の秘密鍵。空の場合はレシートを発行しない。
	ReceiptSecret string
}

// Payment は支払いを検証するGinミドルウェアを返す。
//
// Requiresがtrueを返すリクエストについてのみ、支払いヘッダーからClaimを組み立てて
// 検証する。拒否した場合は402と支払い条件を返して後続を中断する。
// 受理した場合は証跡をコンテキストに設定し、X-Payment-Receipt ヘッダーを付与する。
func Payment(v payment.Verifier, opts PaymentOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		if opts.Requires != nil && !opts.Requires(c) {
			c.Next()
			return
		}

		claim := payment.Claim{
			Reference: c.GetHeader(payment.HeaderTxHash),
			Payer:     c.GetHeader(payment.HeaderWallet),
		}
		proof, err := v.Verify(c.Request.Context(), claim)
		if err != nil {
			var perr *payment.Error
			if errors.As(err, &perr) {
				metrics.IncVerification(string(perr.Code))
				log.Printf("[Payment] 支払いを拒否: path=%s, code=%s, tx=%q, payer=%q",
					c.Request.URL.Path, perr.Code, claim.Reference, claim.Payer)
				c.AbortWithStatusJSON(http.StatusPaymentRequired, perr.Body(v.Remediation()))
				return
			}
			metrics.IncVerification("error")
			log.Printf("[Payment] 支払い検証でエラー: path=%s, error=%v", c.Request.URL.Path, err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Payment verification failed"})
			return
		}

		metrics.IncVerification(string(proof.Status))
		log.Printf("[Payment] 支払いを受理: path=%s, status=%s, reference=%s, reason=%s",
			c.Request.URL.Path, proof.Status, proof.Reference, proof.Reason)

		c.Set(contextKeyProof, proof)
		if opts.ReceiptSecret != "" {
			receipt, err := payment.IssueReceipt(opts.ReceiptSecret, proof, c.Request.URL.Path)
			if err != nil {
				log.Printf("[Payment] レシート発行エラー: %v", err)
			} else {
				c.Header(payment.HeaderReceipt, receipt)
			}
		}
		c.Next()
	}
}

// GetPaymentProof はGinコンテキストから支払い証跡を取得する。
// Paymentミドルウェアが受理したリクエストでのみnil以外を返す。
func GetPaymentProof(c *gin.Context) *payment.Proof {
	v, ok := c.Get(contextKeyProof)
	if !ok {
		return nil
	}
	proof, _ := v.(*payment.Proof)
	return proof
}
