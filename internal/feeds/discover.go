// 包 feeds 负责订阅发现与解析，用于给文章补充发布时间与作者：
// - DiscoverFeed：基于常见路径与 HTML <link> 自动发现订阅
// - ParseFeed：使用 gofeed 解析 RSS/Atom/JSON Feed 并归一化
// - Index：按归一化链接建立索引，便于与 sitemap URL 对齐
package feeds

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"go-post-archiver/internal/fetch"
	"go-post-archiver/internal/logx"
)

// DiscoverFeed 尝试常见端点与首页 <link> 以发现订阅地址。
func DiscoverFeed(ctx context.Context, cl *fetch.Client, site string) (string, error) {
	candidates := []string{
		joinURL(site, "/feed"),
		joinURL(site, "/rss"),
		joinURL(site, "/atom.xml"),
		joinURL(site, "/feed.xml"),
		joinURL(site, "/index.xml"),
	}
	for _, u := range candidates {
		logx.Debugf("探测候选订阅：%s", u)
		if looksLikeFeed(ctx, cl, u) {
			return u, nil
		}
	}
	// 回退：抓取首页并解析 <link rel="alternate">
	resp, err := cl.Get(ctx, site)
	if err != nil {
		return "", fmt.Errorf("GET site %s: %w", site, err)
	}
	defer resp.Body.Close()
	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	var found string
	doc.Find("link[rel]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		rel, _ := s.Attr("rel")
		t, _ := s.Attr("type")
		href, _ := s.Attr("href")
		lt := strings.ToLower(t)
		if strings.Contains(strings.ToLower(rel), "alternate") &&
			(strings.Contains(lt, "rss") || strings.Contains(lt, "atom") || strings.Contains(lt, "json")) {
			found = joinURL(site, href)
			return false
		}
		return true
	})
	if found != "" && looksLikeFeed(ctx, cl, found) {
		logx.Debugf("从 <link> 发现订阅：%s", found)
		return found, nil
	}
	return "", fmt.Errorf("no feed discovered for %s", site)
}

// looksLikeFeed 粗略探测 URL 是否为订阅（根据 Content-Type 与内容嗅探）。
func looksLikeFeed(ctx context.Context, cl *fetch.Client, feedURL string) bool {
	prCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	resp, err := cl.Get(prCtx, feedURL)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	head, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	lb := bytes.ToLower(head)
	ct := strings.ToLower(resp.Header.Get("Content-Type"))
	if strings.Contains(ct, "rss") || strings.Contains(ct, "atom") {
		return true
	}
	if strings.Contains(ct, "xml") {
		return bytes.Contains(lb, []byte("<rss")) || bytes.Contains(lb, []byte("<feed")) || bytes.Contains(lb, []byte("<rdf"))
	}
	if strings.Contains(ct, "json") {
		return bytes.Contains(lb, []byte("jsonfeed.org/version"))
	}
	return bytes.Contains(lb, []byte("<rss")) || bytes.Contains(lb, []byte("<feed"))
}

// joinURL 将相对路径解析为绝对 URL（以站点根为基准）。
func joinURL(base, ref string) string {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	u, err := url.Parse(base)
	if err != nil {
		return strings.TrimRight(base, "/") + ref
	}
	ru, err := url.Parse(ref)
	if err != nil {
		return strings.TrimRight(base, "/") + ref
	}
	return u.ResolveReference(ru).String()
}

// ParseFeed 从订阅地址解析并返回归一化后的条目（最多返回 max 条，0 表示不限制）。
func ParseFeed(ctx context.Context, cl *fetch.Client, feedURL string, max int) ([]Item, error) {
	reqCtx, cancel := context.WithTimeout(ctx, 25*time.Second)
	defer cancel()
	// gofeed 不直接接收自定义 http.Client，因此先抓取再交给 gofeed 解析
	resp, err := cl.Get(reqCtx, feedURL)
	if err != nil {
		return nil, fmt.Errorf("GET feed %s: %w", feedURL, err)
	}
	defer resp.Body.Close()
	feed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", feedURL, err)
	}
	items := make([]Item, 0, len(feed.Items))
	for _, it := range feed.Items {
		items = append(items, Item{
			Title:     strings.TrimSpace(it.Title),
			Link:      strings.TrimSpace(it.Link),
			Author:    authorName(it),
			Published: pickTime(it.PublishedParsed, it.UpdatedParsed),
		})
		if max > 0 && len(items) >= max {
			break
		}
	}
	return items, nil
}

// Item 为订阅中的文章条目。
type Item struct {
	Title     string
	Link      string
	Author    string
	Published time.Time
}

// Index 按归一化链接建立索引，重复链接保留首次出现。
func Index(items []Item) map[string]Item {
	m := make(map[string]Item, len(items))
	for _, it := range items {
		k := NormalizeLink(it.Link)
		if k == "" {
			continue
		}
		if _, ok := m[k]; !ok {
			m[k] = it
		}
	}
	return m
}

// NormalizeLink 去掉协议、查询串、片段与末尾斜杠，主机名转小写。
func NormalizeLink(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.ToLower(u.Host) + strings.TrimRight(u.Path, "/")
}

func pickTime(a, b *time.Time) time.Time {
	if a != nil {
		return *a
	}
	if b != nil {
		return *b
	}
	return time.Time{}
}

func authorName(it *gofeed.Item) string {
	if it.Author != nil {
		if it.Author.Name != "" {
			return it.Author.Name
		}
		if it.Author.Email != "" {
			return it.Author.Email
		}
	}
	for _, a := range it.Authors {
		if a != nil && a.Name != "" {
			return a.Name
		}
	}
	if it.DublinCoreExt != nil && len(it.DublinCoreExt.Creator) > 0 {
		return it.DublinCoreExt.Creator[0]
	}
	return ""
}
