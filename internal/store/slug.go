package store

import (
	"crypto/sha1"
	"encoding/hex"
	"net/url"
	"strconv"
	"strings"

	"github.com/goliatone/go-slug"
)

// Slug 由文章 URL 的最后一个非空路径段生成文件名主干；无法生成时回退为 post-<sha1 前 8 位>。
func Slug(rawURL string) string {
	seg := lastSegment(rawURL)
	if seg != "" {
		if s, err := slug.Normalize(seg); err == nil && s != "" {
			return s
		}
	}
	sum := sha1.Sum([]byte(rawURL))
	return "post-" + hex.EncodeToString(sum[:])[:8]
}

func lastSegment(rawURL string) string {
	path := rawURL
	if u, err := url.Parse(strings.TrimSpace(rawURL)); err == nil {
		path = u.Path
	}
	parts := strings.Split(path, "/")
	for i := len(parts) - 1; i >= 0; i-- {
		if p := strings.TrimSpace(parts[i]); p != "" {
			if un, err := url.PathUnescape(p); err == nil {
				return un
			}
			return p
		}
	}
	return ""
}

// uniqueSlugs 为重复的 slug 追加 -2、-3… 后缀，按输入顺序分配。
func uniqueSlugs(slugs []string) []string {
	seen := make(map[string]int, len(slugs))
	taken := make(map[string]bool, len(slugs))
	for _, s := range slugs {
		taken[s] = true
	}
	out := make([]string, len(slugs))
	for i, s := range slugs {
		n := seen[s]
		seen[s] = n + 1
		if n == 0 {
			out[i] = s
			continue
		}
		cand := s
		for k := n + 1; ; k++ {
			cand = s + "-" + strconv.Itoa(k)
			if !taken[cand] {
				break
			}
		}
		taken[cand] = true
		out[i] = cand
	}
	return out
}
