// Package middleware はゲートウェイで使用するGinミドルウェアを提供する。
//
// 支払い検証、リクエストID付与、メトリクス記録、パニックリカバリ、
// CORS設定を含む。支払い検証は有料ルートに分類されたリクエストにのみ適用し、
// 検証結果（PaymentProof）をGinコンテキストに格納して後続のハンドラに渡す。
package middleware
