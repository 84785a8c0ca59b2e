// 包 record 负责从文章页 HTML 中定位内嵌的转义 JSON 字面量，
// 反转义后解码为 model.Post。
package record

import (
	"encoding/json"
	"errors"
	"strings"

	"go-post-archiver/internal/model"
)

// 内嵌记录的起止标记。
const (
	Prefix = `JSON.parse("`
	Suffix = `)</script>`
)

// Parse 依次执行 定位 → 反转义 → 解码。
func Parse(html string) (*model.Post, error) {
	lit, err := Literal(html)
	if err != nil {
		return nil, err
	}
	text, err := Unescape(lit)
	if err != nil {
		return nil, err
	}
	return Decode(text)
}

// Literal 返回两个标记之间的 JSON 文本，不含紧邻后缀前的一个字符（字符串外层的右引号）。
// 缺少任一标记时返回 RecordNotFoundError。
func Literal(html string) (string, error) {
	start := strings.Index(html, Prefix)
	if start < 0 {
		return "", &model.RecordNotFoundError{Marker: Prefix}
	}
	rest := html[start+len(Prefix):]
	end := strings.Index(rest, Suffix)
	if end < 1 {
		return "", &model.RecordNotFoundError{Marker: Suffix}
	}
	return rest[:end-1], nil
}

// Unescape 最小反转义：每个反斜杠原样保留其后的一个字符，不解释 \n、\uXXXX 等转义码。
func Unescape(s string) (string, error) {
	if strings.IndexByte(s, '\\') < 0 {
		return s, nil
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		if i+1 >= len(s) {
			return "", &model.MalformedEscapeError{Offset: i}
		}
		i++
		b.WriteByte(s[i])
	}
	return b.String(), nil
}

// Decode 将反转义后的文本解码为 Post；canonicalUrl 为空同样视为解码失败。
func Decode(text string) (*model.Post, error) {
	var p model.Post
	if err := json.Unmarshal([]byte(text), &p); err != nil {
		return nil, &model.RecordDecodeError{Text: text, Err: err}
	}
	if strings.TrimSpace(p.URL) == "" {
		return nil, &model.RecordDecodeError{Text: text, Err: errors.New("canonicalUrl is missing or empty")}
	}
	return &p, nil
}
