package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"
)

// testRequest はテストサーバーが受け取ったリクエスト情報を保持する構造体。
type testRequest struct {
	// Method はHTTPメソッド。
	Method string
	// Path はリクエストパス。
	Path string
	// Query はクエリパラメータ。
	Query url.Values
	// Body はリクエストボディ。
	Body []byte
	// Headers はリクエストヘッダー。
	Headers http.Header
}

// testPayload はテスト用のリクエスト/レスポンスペイロード。
type testPayload struct {
	// Name はテスト用の名前フィールド。
	Name string `json:"name"`
	// Value はテスト用の値フィールド。
	Value int `json:"value"`
}

// newRecordingServer は受け取ったリクエストを記録し、固定のJSONを返すテストサーバーを生成する。
func newRecordingServer(t *testing.T, status int, response any) (*httptest.Server, *testRequest) {
	t.Helper()

	received := &testRequest{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received.Method = r.Method
		received.Path = r.URL.Path
		received.Query = r.URL.Query()
		received.Body, _ = io.ReadAll(r.Body)
		received.Headers = r.Header

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(response)
	}))
	t.Cleanup(ts.Close)
	return ts, received
}

// TestNew はNew関数でクライアントが正しく生成されることを検証する。
func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("クライアントが正常に生成されること", func(t *testing.T) {
		t.Parallel()

		client := New("http://localhost:8000", 0)
		if client == nil {
			t.Fatal("New()がnilを返した")
		}
		if client.baseURL != "http://localhost:8000" {
			t.Errorf("baseURL = %q, want %q", client.baseURL, "http://localhost:8000")
		}
	})

	t.Run("タイムアウト未指定の場合は30秒に設定されていること", func(t *testing.T) {
		t.Parallel()

		client := New("http://localhost:8000", 0)
		if client.httpClient.Timeout != 30*time.Second {
			t.Errorf("Timeout = %v, want 30s", client.httpClient.Timeout)
		}
	})

	t.Run("指定したタイムアウトが設定されていること", func(t *testing.T) {
		t.Parallel()

		client := New("http://localhost:8000", 5*time.Second)
		if client.httpClient.Timeout != 5*time.Second {
			t.Errorf("Timeout = %v, want 5s", client.httpClient.Timeout)
		}
	})
}

// TestPostJSON はPostJSON関数を検証する。
func TestPostJSON(t *testing.T) {
	t.Parallel()

	t.Run("正常にPOSTリクエストを送信してレスポンスを取得できること", func(t *testing.T) {
		t.Parallel()

		ts, received := newRecordingServer(t, http.StatusOK, testPayload{Name: "response", Value: 200})

		client := New(ts.URL, 0)
		var result testPayload
		err := client.PostJSON(context.Background(), "/interactions", testPayload{Name: "request", Value: 100}, &result)
		if err != nil {
			t.Fatalf("PostJSON()でエラーが発生: %v", err)
		}

		if received.Method != http.MethodPost {
			t.Errorf("Method = %q, want %q", received.Method, http.MethodPost)
		}
		if received.Path != "/interactions" {
			t.Errorf("Path = %q, want %q", received.Path, "/interactions")
		}

		var sentBody testPayload
		if err := json.Unmarshal(received.Body, &sentBody); err != nil {
			t.Fatalf("リクエストボディのパースに失敗: %v", err)
		}
		if sentBody.Name != "request" || sentBody.Value != 100 {
			t.Errorf("sent = %+v", sentBody)
		}
		if got := received.Headers.Get("Content-Type"); got != "application/json" {
			t.Errorf("Content-Type = %q, want %q", got, "application/json")
		}
		if result.Name != "response" || result.Value != 200 {
			t.Errorf("result = %+v", result)
		}
	})

	t.Run("サーバーが500エラーを返した場合にStatusErrorが返ること", func(t *testing.T) {
		t.Parallel()

		ts, _ := newRecordingServer(t, http.StatusInternalServerError, map[string]string{"detail": "boom"})

		client := New(ts.URL, 0)
		err := client.PostJSON(context.Background(), "/interactions", testPayload{}, nil)

		var se *StatusError
		if !errors.As(err, &se) {
			t.Fatalf("err = %v, want *StatusError", err)
		}
		if se.StatusCode != http.StatusInternalServerError {
			t.Errorf("StatusCode = %d, want 500", se.StatusCode)
		}
		if IsNotFound(err) {
			t.Error("500がIsNotFoundと判定された")
		}
	})

	t.Run("resultがnilの場合でもエラーにならないこと", func(t *testing.T) {
		t.Parallel()

		ts, _ := newRecordingServer(t, http.StatusOK, map[string]string{"status": "ok"})

		client := New(ts.URL, 0)
		if err := client.PostJSON(context.Background(), "/interactions", testPayload{}, nil); err != nil {
			t.Fatalf("PostJSON()でエラーが発生: %v", err)
		}
	})

	t.Run("キャンセルされたコンテキストでエラーが返ること", func(t *testing.T) {
		t.Parallel()

		ts, _ := newRecordingServer(t, http.StatusOK, testPayload{})

		client := New(ts.URL, 0)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if err := client.PostJSON(ctx, "/interactions", testPayload{}, nil); err == nil {
			t.Fatal("PostJSON()がエラーを返すべきだが、nilが返った")
		}
	})

	t.Run("シリアライズできないボディでエラーが返ること", func(t *testing.T) {
		t.Parallel()

		client := New("http://127.0.0.1:1", 0)
		if err := client.PostJSON(context.Background(), "/x", map[string]any{"ch": make(chan int)}, nil); err == nil {
			t.Fatal("PostJSON()がエラーを返すべきだが、nilが返った")
		}
	})
}

// TestGetJSON はGetJSON関数を検証する。
func TestGetJSON(t *testing.T) {
	t.Parallel()

	t.Run("クエリパラメータ付きでGETリクエストを送信できること", func(t *testing.T) {
		t.Parallel()

		ts, received := newRecordingServer(t, http.StatusOK, testPayload{Name: "agents", Value: 3})

		client := New(ts.URL, 0)
		var result testPayload
		err := client.GetJSON(context.Background(), "/discover", url.Values{"min_score": {"0.5"}, "limit": {"3"}}, &result)
		if err != nil {
			t.Fatalf("GetJSON()でエラーが発生: %v", err)
		}
		if received.Method != http.MethodGet || received.Path != "/discover" {
			t.Errorf("Method = %q, Path = %q", received.Method, received.Path)
		}
		if received.Query.Get("min_score") != "0.5" || received.Query.Get("limit") != "3" {
			t.Errorf("Query = %v", received.Query)
		}
		if len(received.Body) != 0 {
			t.Errorf("GETにボディが含まれている: %q", received.Body)
		}
		if result.Value != 3 {
			t.Errorf("result = %+v", result)
		}
	})

	t.Run("サーバーが404を返した場合にIsNotFoundがtrueになること", func(t *testing.T) {
		t.Parallel()

		ts, _ := newRecordingServer(t, http.StatusNotFound, map[string]string{"detail": "Agent not found"})

		client := New(ts.URL, 0)
		err := client.GetJSON(context.Background(), "/agents/0x1/spec", nil, nil)
		if !IsNotFound(err) {
			t.Errorf("IsNotFound(%v) = false, want true", err)
		}
	})

	t.Run("不正なJSONレスポンスでエラーが返ること", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte("not json"))
		}))
		defer ts.Close()

		client := New(ts.URL, 0)
		var result testPayload
		if err := client.GetJSON(context.Background(), "/leaderboard", nil, &result); err == nil {
			t.Fatal("GetJSON()がエラーを返すべきだが、nilが返った")
		}
	})

	t.Run("接続できないサーバーに対してエラーが返ること", func(t *testing.T) {
		t.Parallel()

		client := New("http://127.0.0.1:1", 0)
		err := client.GetJSON(context.Background(), "/leaderboard", nil, nil)
		if err == nil {
			t.Fatal("GetJSON()がエラーを返すべきだが、nilが返った")
		}
		if IsNotFound(err) {
			t.Error("接続エラーがIsNotFoundと判定された")
		}
	})

	t.Run("タイムアウトを超えた場合にエラーが返ること", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			time.Sleep(200 * time.Millisecond)
			w.Write([]byte("{}"))
		}))
		defer ts.Close()

		client := New(ts.URL, 20*time.Millisecond)
		if err := client.GetJSON(context.Background(), "/discover/smart", nil, nil); err == nil {
			t.Fatal("GetJSON()がエラーを返すべきだが、nilが返った")
		}
	})
}

// TestHeaders はヘッダーの付与を検証する。
func TestHeaders(t *testing.T) {
	t.Parallel()

	t.Run("既定ヘッダーとリクエスト固有ヘッダーが送信されること", func(t *testing.T) {
		t.Parallel()

		ts, received := newRecordingServer(t, http.StatusOK, map[string]string{})

		client := New(ts.URL, 0)
		client.SetHeader("X-Wallet-Address", "0xabc")
		err := client.Do(context.Background(), Request{
			Method: http.MethodGet,
			Path:   "/paid/discover",
			Header: http.Header{"X-Payment-Txhash": {"0xdef"}},
		}, nil)
		if err != nil {
			t.Fatalf("Do()でエラーが発生: %v", err)
		}
		if got := received.Headers.Get("X-Wallet-Address"); got != "0xabc" {
			t.Errorf("X-Wallet-Address = %q, want %q", got, "0xabc")
		}
		if got := received.Headers.Get("X-Payment-TxHash"); got != "0xdef" {
			t.Errorf("X-Payment-TxHash = %q, want %q", got, "0xdef")
		}
	})

	t.Run("コンテキストのリクエストIDがX-Request-IDとして伝播されること", func(t *testing.T) {
		t.Parallel()

		ts, received := newRecordingServer(t, http.StatusOK, map[string]string{})

		client := New(ts.URL, 0)
		ctx := WithRequestID(context.Background(), "req-123")
		if err := client.GetJSON(ctx, "/leaderboard", nil, nil); err != nil {
			t.Fatalf("GetJSON()でエラーが発生: %v", err)
		}
		if got := received.Headers.Get("X-Request-ID"); got != "req-123" {
			t.Errorf("X-Request-ID = %q, want %q", got, "req-123")
		}
	})

	t.Run("リクエストIDが設定されていない場合X-Request-IDヘッダーが空であること", func(t *testing.T) {
		t.Parallel()

		ts, received := newRecordingServer(t, http.StatusOK, map[string]string{})

		client := New(ts.URL, 0)
		if err := client.GetJSON(context.Background(), "/leaderboard", nil, nil); err != nil {
			t.Fatalf("GetJSON()でエラーが発生: %v", err)
		}
		if got := received.Headers.Get("X-Request-ID"); got != "" {
			t.Errorf("X-Request-ID = %q, want empty", got)
		}
	})
}
