// 包 sitemap 负责从站点 sitemap.xml 中流式提取文章 URL。
package sitemap

import (
	"context"
	"errors"
	"io"
	"strings"

	xpp "github.com/mmcdole/goxpp"

	"go-post-archiver/internal/fetch"
	"go-post-archiver/internal/logx"
	"go-post-archiver/internal/model"
)

// DefaultSegment 为文章页路径约定。
const DefaultSegment = "/p/"

// URL 返回站点 sitemap 地址。
func URL(base string) string {
	return strings.TrimRight(strings.TrimSpace(base), "/") + "/sitemap.xml"
}

// Extract 抓取 <base>/sitemap.xml 并返回包含 segment 的 <loc> URL（保持原始顺序，不去重）。
func Extract(ctx context.Context, cl *fetch.Client, base, segment string) ([]string, error) {
	u := URL(base)
	resp, err := cl.Get(ctx, u)
	if err != nil {
		ne := &model.NetworkError{URL: u, Err: err}
		var fe *model.FetchError
		if errors.As(err, &fe) {
			ne.Status = fe.Status
		}
		return nil, ne
	}
	defer resp.Body.Close()
	urls, err := Parse(resp.Body, segment)
	if err != nil {
		return nil, err
	}
	logx.Debugf("sitemap %s 命中 %d 个文章链接", u, len(urls))
	return urls, nil
}

// Parse 以拉取方式解析 XML，仅消费 <loc> 文本；空白文本被忽略。
func Parse(r io.Reader, segment string) ([]string, error) {
	if segment == "" {
		segment = DefaultSegment
	}
	p := xpp.NewXMLPullParser(r, true, nil)
	urls := []string{}
	for {
		ev, err := p.Next()
		if err != nil {
			return nil, &model.MalformedSitemapError{Err: err}
		}
		if ev == xpp.EndDocument {
			return urls, nil
		}
		if ev != xpp.StartTag || !isLoc(p.Space, p.Name) {
			continue
		}
		text, err := p.NextText()
		if err != nil {
			return nil, &model.MalformedSitemapError{Err: err}
		}
		loc := strings.TrimSpace(text)
		if loc == "" {
			continue
		}
		if strings.Contains(loc, segment) {
			urls = append(urls, loc)
		}
	}
}

// Namespace 为 sitemap 协议的命名空间。
const Namespace = "http://www.sitemaps.org/schemas/sitemap/0.9"

// isLoc 只接受无命名空间或 sitemap 命名空间下的 <loc>；<image:loc> 等扩展元素不算。
func isLoc(space, name string) bool {
	return name == "loc" && (space == "" || space == Namespace)
}
