package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/dignitas/gateway/pkg/payment"
)

// stubVerifier はテスト用の payment.Verifier 実装。
type stubVerifier struct {
	proof  *payment.Proof
	err    error
	claims []payment.Claim
}

func (s *stubVerifier) Verify(_ context.Context, claim payment.Claim) (*payment.Proof, error) {
	s.claims = append(s.claims, claim)
	return s.proof, s.err
}

func (s *stubVerifier) Remediation() map[string]any {
	return map[string]any{
		"required_amount": "0.00001 ETH",
		"treasury":        "0x1111111111111111111111111111111111111111",
		"network":         "base-sepolia",
	}
}

// newPaymentRouter はPaymentミドルウェアを /paid 配下にだけ適用するテスト用ルーターを生成する。
func newPaymentRouter(v payment.Verifier, secret string) *gin.Engine {
	router := gin.New()
	router.Use(Payment(v, PaymentOptions{
		Requires:      func(c *gin.Context) bool { return len(c.Request.URL.Path) >= 5 && c.Request.URL.Path[:5] == "/paid" },
		ReceiptSecret: secret,
	}))
	router.GET("/paid/score/:address", func(c *gin.Context) {
		proof := GetPaymentProof(c)
		c.JSON(http.StatusOK, gin.H{"payment": proof.Metadata()})
	})
	router.GET("/leaderboard", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"proof": GetPaymentProof(c) != nil})
	})
	return router
}

// TestPayment はPaymentミドルウェアを検証する。
func TestPayment(t *testing.T) {
	t.Parallel()

	t.Run("拒否された場合402と支払い条件が返ること", func(t *testing.T) {
		t.Parallel()

		v := &stubVerifier{err: &payment.Error{Code: payment.CodePaymentRequired, Message: "Payment required"}}
		router := newPaymentRouter(v, "")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/paid/score/0xabc", nil))

		if w.Code != http.StatusPaymentRequired {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusPaymentRequired)
		}
		var body map[string]any
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("レスポンスボディのパースに失敗: %v", err)
		}
		if body["code"] != "PaymentRequired" {
			t.Errorf("code = %v, want PaymentRequired", body["code"])
		}
		if body["treasury"] != "0x1111111111111111111111111111111111111111" || body["network"] != "base-sepolia" {
			t.Errorf("支払い条件が含まれていない: %v", body)
		}
	})

	t.Run("ヘッダーの値がClaimとして渡されること", func(t *testing.T) {
		t.Parallel()

		v := &stubVerifier{proof: &payment.Proof{Reference: "pay_x", Status: payment.StatusProvisional}}
		router := newPaymentRouter(v, "")

		req := httptest.NewRequest(http.MethodGet, "/paid/score/0xabc", nil)
		req.Header.Set(payment.HeaderTxHash, "0xdead")
		req.Header.Set(payment.HeaderWallet, "0xbeef")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if len(v.claims) != 1 {
			t.Fatalf("Verify呼び出し回数 = %d, want 1", len(v.claims))
		}
		if v.claims[0].Reference != "0xdead" || v.claims[0].Payer != "0xbeef" {
			t.Errorf("claim = %+v", v.claims[0])
		}
	})

	t.Run("受理した場合に証跡がハンドラから参照できること", func(t *testing.T) {
		t.Parallel()

		v := &stubVerifier{proof: &payment.Proof{
			Reference:  "0x" + strings.Repeat("ab", 32),
			Payer:      "0x2222222222222222222222222222222222222222",
			AmountPaid: big.NewInt(10_000_000_000_000),
			Verified:   true,
			Status:     payment.StatusVerified,
		}}
		router := newPaymentRouter(v, "")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/paid/score/0xabc", nil))

		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
		var body struct {
			Payment map[string]any `json:"payment"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("レスポンスボディのパースに失敗: %v", err)
		}
		if body.Payment["verified"] != true {
			t.Errorf("verified = %v, want true", body.Payment["verified"])
		}
		if w.Header().Get(payment.HeaderReceipt) != "" {
			t.Error("秘密鍵未設定なのにレシートが発行された")
		}
	})

	t.Run("秘密鍵が設定されている場合にレシートが発行されること", func(t *testing.T) {
		t.Parallel()

		v := &stubVerifier{proof: &payment.Proof{Reference: "pay_1", Status: payment.StatusProvisional}}
		router := newPaymentRouter(v, "receipt-secret")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/paid/score/0xabc", nil))

		token := w.Header().Get(payment.HeaderReceipt)
		if token == "" {
			t.Fatal("レシートが発行されていない")
		}
		claims, err := payment.ParseReceipt("receipt-secret", token)
		if err != nil {
			t.Fatalf("ParseReceipt()でエラーが発生: %v", err)
		}
		if claims.Reference != "pay_1" {
			t.Errorf("Reference = %q, want %q", claims.Reference, "pay_1")
		}
	})

	t.Run("無料ルートでは検証しないこと", func(t *testing.T) {
		t.Parallel()

		v := &stubVerifier{err: errors.New("must not be called")}
		router := newPaymentRouter(v, "")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/leaderboard", nil))

		if w.Code != http.StatusOK {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
		if len(v.claims) != 0 {
			t.Errorf("Verify呼び出し回数 = %d, want 0", len(v.claims))
		}
	})

	t.Run("想定外のエラーの場合500が返ること", func(t *testing.T) {
		t.Parallel()

		v := &stubVerifier{err: errors.New("boom")}
		router := newPaymentRouter(v, "")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/paid/score/0xabc", nil))

		if w.Code != http.StatusInternalServerError {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusInternalServerError)
		}
	})
}
