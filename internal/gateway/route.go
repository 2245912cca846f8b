package gateway

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// RouteClass はルートの課金区分。
type RouteClass string

const (
	// RouteFree は支払い不要のルート。
	RouteFree RouteClass = "free"
	// RoutePaid は支払い検証が必要なルート。
	RoutePaid RouteClass = "paid"
)

// contextKeyRouteClass はGinコンテキストにルート区分を格納するためのキー。
const contextKeyRouteClass = "route_class"

// defaultRouteTable はパスプレフィックスとルート区分の対応表。
var defaultRouteTable = map[string]RouteClass{
	"/paid":        RoutePaid,
	"/health":      RouteFree,
	"/leaderboard": RouteFree,
	"/ens":         RouteFree,
	"/tx":          RouteFree,
	"/metrics":     RouteFree,
}

// Classifier はパスをプレフィックス表に照らしてルート区分を判定する。
type Classifier struct {
	table map[string]RouteClass
}

// NewClassifier は新しいClassifierを生成する。末尾のスラッシュは無視する。
func NewClassifier(table map[string]RouteClass) *Classifier {
	c := &Classifier{table: make(map[string]RouteClass, len(table))}
	for prefix, class := range table {
		c.table[strings.TrimRight(prefix, "/")] = class
	}
	return c
}

// Classify はpathに最も長く一致するプレフィックスの区分を返す。
// pathをセグメント境界で末尾から切り詰めながら表を引くため、
// 一致はセグメント単位でのみ成立する（/paidx は /paid に一致しない）。
func (c *Classifier) Classify(path string) (RouteClass, bool) {
	if !strings.HasPrefix(path, "/") {
		return "", false
	}
	for p := strings.TrimRight(path, "/"); p != ""; p = p[:strings.LastIndexByte(p, '/')] {
		if class, ok := c.table[p]; ok {
			return class, true
		}
	}
	// "/" は空文字列として登録される
	class, ok := c.table[""]
	return class, ok
}

// classifyRoute はルーティング済みのリクエストにルート区分を設定するミドルウェア。
func classifyRoute(cl *Classifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.FullPath() != "" {
			if class, ok := cl.Classify(c.Request.URL.Path); ok {
				c.Set(contextKeyRouteClass, class)
			}
		}
		c.Next()
	}
}

// RouteClassOf はGinコンテキストからルート区分を取得する。未分類の場合は空文字列を返す。
func RouteClassOf(c *gin.Context) RouteClass {
	v, _ := c.Get(contextKeyRouteClass)
	class, _ := v.(RouteClass)
	return class
}
