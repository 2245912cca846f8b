// Package chain はEVMチェーンへの読み取り専用アクセスを提供する。
//
// 支払いトランザクションの取得（Base Sepolia）と、ENSによる名前解決
// （Ethereum mainnet）を担当する。RPCクライアントは初回利用時に一度だけ
// 接続され、プロセス全体で共有される。書き込み（署名・送金）は行わない。
package chain
