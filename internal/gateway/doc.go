// Package gateway は支払い付きレピュテーションAPIゲートウェイの内部実装を提供する。
//
// 無料ルート（ヘルスチェック、リーダーボード、ENS、トランザクション参照）と
// 有料ルート（/paid 配下）を公開する。有料ルートは支払い検証を通過した場合のみ
// 上流のグラフエンジンへ転送し、上流の応答に支払いメタデータを付けて返す。
// ゲートウェイ自体は状態を持たず、リクエストごとに完結する。
package gateway
