// 包 rules 负责加载并提供站点解析规则（rules.yaml），
// 以预设名（如 default/substack）组织 CSS 选择器，用于文章页元信息兜底与正文清理。
package rules

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rules 表示全部规则集合：键为预设名，值为具体规则。
type Rules struct {
	Presets map[string]Preset `yaml:",inline"`
}

// Preset 为单个站点预设。
type Preset struct {
	PostPage *PostPage `yaml:"post_page"`
	// Strip 中的选择器在转换前从正文中移除（订阅按钮、分享栏等）。
	Strip []string `yaml:"strip"`
}

// PostPage 描述文章页元信息的取值表达式：
// - 文本：".name" 或 "."（取当前项文本）
// - 属性："meta[property='og:title']@content"
// - 回退：使用 "||" 连接多个候选
type PostPage struct {
	Title    string `yaml:"title"`
	Subtitle string `yaml:"subtitle"`
	Author   string `yaml:"author"`
	Date     string `yaml:"date"`
}

// Default 返回内置预设，未提供 rules.yaml 时使用。
func Default() Preset {
	return Preset{
		PostPage: &PostPage{
			Title:    "meta[property='og:title']@content||h1.post-title||title",
			Subtitle: "meta[property='og:description']@content||h3.subtitle",
			Author:   "meta[name='author']@content||.byline-names a",
			Date:     "meta[property='article:published_time']@content||time@datetime",
		},
		Strip: []string{
			"script",
			"style",
			"div.subscription-widget-wrap",
			"div.subscription-widget",
			"p.button-wrapper",
			"div.share-dialog",
			"div.captioned-button-wrap",
		},
	}
}

func Load(path string) (*Rules, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rules %s: %w", path, err)
	}
	defer f.Close()
	b, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read rules %s: %w", path, err)
	}
	var r Rules
	if err := yaml.Unmarshal(b, &r.Presets); err != nil {
		return nil, fmt.Errorf("unmarshal rules %s: %w", path, err)
	}
	return &r, nil
}

// GetPreset 按名称获取预设（不区分大小写），若为空或不存在则回退到 "default"。
func (r *Rules) GetPreset(name string) (Preset, bool) {
	if r == nil || len(r.Presets) == 0 {
		return Preset{}, false
	}
	if name == "" {
		name = "default"
	}
	if p, ok := r.Presets[name]; ok {
		return p, true
	}
	lower := strings.ToLower(name)
	for k, v := range r.Presets {
		if strings.ToLower(k) == lower {
			return v, true
		}
	}
	if p, ok := r.Presets["default"]; ok {
		return p, true
	}
	return Preset{}, false
}

// Resolve 返回可直接使用的预设：文件中缺失的部分以内置预设补齐。
func (r *Rules) Resolve(name string) Preset {
	def := Default()
	p, ok := r.GetPreset(name)
	if !ok {
		return def
	}
	if p.PostPage == nil {
		p.PostPage = def.PostPage
	}
	if p.Strip == nil {
		p.Strip = def.Strip
	}
	return p
}
