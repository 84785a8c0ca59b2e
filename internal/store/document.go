package store

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/adrg/frontmatter"
	"gopkg.in/yaml.v3"

	"go-post-archiver/internal/model"
)

// FrontMatter 为写入 Markdown 文件头部的元信息。
type FrontMatter struct {
	Title    string     `yaml:"title"`
	Subtitle string     `yaml:"subtitle,omitempty"`
	URL      string     `yaml:"url"`
	Slug     string     `yaml:"slug"`
	Author   string     `yaml:"author,omitempty"`
	Date     *time.Time `yaml:"date,omitempty"`
	Empty    bool       `yaml:"empty,omitempty"`
}

// Render 生成带 YAML front matter 的 Markdown 文件内容。
func Render(d model.Document) ([]byte, error) {
	fm := FrontMatter{
		Title:    d.Title,
		Subtitle: d.Subtitle,
		URL:      d.URL,
		Slug:     d.Slug,
		Author:   d.Author,
		Empty:    d.Empty,
	}
	if !d.Published.IsZero() {
		t := d.Published.UTC()
		fm.Date = &t
	}
	head, err := yaml.Marshal(fm)
	if err != nil {
		return nil, fmt.Errorf("marshal front matter: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(head)
	buf.WriteString("---\n\n")
	if d.Title != "" {
		buf.WriteString("# " + d.Title + "\n\n")
	}
	buf.WriteString(d.Markdown)
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// ReadDocument 从已写入的文件内容还原 front matter 与正文。
func ReadDocument(r io.Reader) (FrontMatter, string, error) {
	var fm FrontMatter
	body, err := frontmatter.Parse(r, &fm)
	if err != nil {
		return FrontMatter{}, "", fmt.Errorf("parse front matter: %w", err)
	}
	return fm, string(body), nil
}
