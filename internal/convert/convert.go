// 包 convert 将文章正文 HTML 转换为 Markdown。
package convert

import (
	"fmt"
	"net/url"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/PuerkitoBio/goquery"

	"go-post-archiver/internal/model"
	"go-post-archiver/internal/rules"
)

// Placeholder 为无正文文章的输入与输出占位。
const Placeholder = "none"

// BodyInput 返回待转换的正文；记录中没有正文时返回占位符。
func BodyInput(p *model.Post) string {
	if p == nil || p.Details == nil || p.Details.BodyHTML == nil {
		return Placeholder
	}
	if strings.TrimSpace(*p.Details.BodyHTML) == "" {
		return Placeholder
	}
	return *p.Details.BodyHTML
}

// Converter 持有正文清理规则。
type Converter struct {
	strip []string
}

func New(preset rules.Preset) *Converter {
	return &Converter{strip: preset.Strip}
}

// Convert 返回 Markdown；empty 为 true 表示输入为占位符，此时不调用转换库。
func (c *Converter) Convert(body, pageURL string) (md string, empty bool, err error) {
	if body == Placeholder {
		return Placeholder, true, nil
	}
	cleaned, err := c.clean(body, pageURL)
	if err != nil {
		return "", false, &model.ConvertError{Err: err}
	}
	var opts []converter.ConvertOptionFunc
	if origin := originOf(pageURL); origin != "" {
		opts = append(opts, converter.WithDomain(origin))
	}
	md, err = htmltomarkdown.ConvertString(cleaned, opts...)
	if err != nil {
		return "", false, &model.ConvertError{Err: err}
	}
	return strings.TrimSpace(md), false, nil
}

// clean 移除预设中的无关节点，并将 a@href / img@src 相对链接绝对化。
func (c *Converter) clean(body, pageURL string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse body html: %w", err)
	}
	for _, sel := range c.strip {
		if strings.TrimSpace(sel) == "" {
			continue
		}
		doc.Find(sel).Remove()
	}
	if pageURL != "" {
		doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
			href, _ := s.Attr("href")
			s.SetAttr("href", abs(pageURL, href))
		})
		doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
			src, _ := s.Attr("src")
			s.SetAttr("src", abs(pageURL, src))
		})
	}
	out, err := doc.Find("body").Html()
	if err != nil {
		return "", fmt.Errorf("render body html: %w", err)
	}
	return out, nil
}

// abs 将相对链接转换为绝对 URL；锚点与非 http 链接保持原样。
func abs(base, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "#") {
		return ref
	}
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	bu, err := url.Parse(base)
	if err != nil {
		return ref
	}
	ru, err := url.Parse(ref)
	if err != nil || ru.Scheme != "" {
		return ref
	}
	return bu.ResolveReference(ru).String()
}

func originOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
