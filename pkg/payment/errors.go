package payment

import "fmt"

// Code は支払い拒否の種類を表す。
type Code string

const (
	// CodePaymentRequired は支払いの証跡が提示されなかったことを表す。
	CodePaymentRequired Code = "PaymentRequired"
	// CodeProofNotFound は提示されたトランザクションが存在しないことを表す。
	CodeProofNotFound Code = "ProofNotFound"
	// CodeWrongRecipient は送金先が受取先として設定されたアドレスでないことを表す。
	CodeWrongRecipient Code = "WrongRecipient"
	// CodeInsufficientAmount は送金額が最低額に満たないことを表す。
	CodeInsufficientAmount Code = "InsufficientAmount"
	// CodeVerificationUnavailable はstrictモードで検証できなかったことを表す。
	CodeVerificationUnavailable Code = "VerificationUnavailable"
)

// Error は支払い検証の拒否理由。HTTPでは402として返す。
type Error struct {
	// Code は拒否の種類。
	Code Code
	// Message は利用者向けのメッセージ。
	Message string
	// Details は拒否理由に固有の構造化データ（expected/got など）。
	Details map[string]any
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Body はレスポンスボディを組み立てる。remediationには再試行に必要な支払い条件を渡す。
func (e *Error) Body(remediation map[string]any) map[string]any {
	body := make(map[string]any, len(remediation)+len(e.Details)+2)
	for k, v := range remediation {
		body[k] = v
	}
	for k, v := range e.Details {
		body[k] = v
	}
	body["error"] = e.Message
	body["code"] = e.Code
	return body
}

func newError(code Code, msg string, details map[string]any) *Error {
	return &Error{Code: code, Message: msg, Details: details}
}
