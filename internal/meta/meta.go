// 包 meta 从文章页 HTML 中按预设选择器提取元信息（标题/副标题/作者/发布时间），
// 仅用于补齐内嵌记录中缺失的字段。
// 表达式语法：
// - 文本：".name" 或 "."（取当前项文本）
// - 属性："a@href"/"meta[name='author']@content"/"@href"（当前项属性）
// - 回退：使用 "||" 连接多个候选，按先后尝试
package meta

import (
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"go-post-archiver/internal/rules"
)

// Meta 为页面元信息。
type Meta struct {
	Title     string
	Subtitle  string
	Author    string
	Published time.Time
}

// Extract 解析 HTML 并按 preset.PostPage 取值；preset 未配置时返回空 Meta。
func Extract(html string, preset rules.Preset) (Meta, error) {
	if preset.PostPage == nil {
		return Meta{}, nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Meta{}, fmt.Errorf("parse post page html: %w", err)
	}
	pp := preset.PostPage
	root := doc.Selection
	m := Meta{
		Title:    getVal(root, pp.Title),
		Subtitle: getVal(root, pp.Subtitle),
		Author:   getVal(root, pp.Author),
	}
	if raw := getVal(root, pp.Date); raw != "" {
		m.Published = parseTime(raw)
	}
	return m, nil
}

// getVal 解析表达式并支持 "||" 回退。
func getVal(scope *goquery.Selection, expr string) string {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return ""
	}
	for _, p := range strings.Split(expr, "||") {
		if v := getValSingle(scope, strings.TrimSpace(p)); v != "" {
			return v
		}
	}
	return ""
}

// getValSingle 解析单个表达式：文本或属性读取。属性选择器中的 "[a='b@c']" 不会被误拆。
func getValSingle(scope *goquery.Selection, expr string) string {
	if expr == "" {
		return ""
	}
	if expr == "." {
		return strings.TrimSpace(scope.Text())
	}
	if at := strings.LastIndex(expr, "@"); at != -1 && !strings.Contains(expr[at:], "]") {
		sel := strings.TrimSpace(expr[:at])
		attr := strings.TrimSpace(expr[at+1:])
		if sel == "" {
			val, _ := scope.Attr(attr)
			return strings.TrimSpace(val)
		}
		val, _ := scope.Find(sel).First().Attr(attr)
		return strings.TrimSpace(val)
	}
	return strings.TrimSpace(scope.Find(expr).First().Text())
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
}

func parseTime(s string) time.Time {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
