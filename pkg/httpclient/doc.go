// Package httpclient はJSON APIを呼び出すHTTPクライアントを提供する。
//
// ゲートウェイから上流のグラフエンジンへの転送と、Go SDKからゲートウェイへの
// 呼び出しの両方で使用する。1回の呼び出しは1回のHTTPリクエストに対応し、
// リトライやキャッシュは行わない。2xx以外の応答は *StatusError として返す。
package httpclient
