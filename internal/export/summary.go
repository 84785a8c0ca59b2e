package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"

	"go-post-archiver/internal/model"
)

// WriteSummary 输出 Markdown 运行摘要：概要表、统计表与失败列表。
func WriteSummary(w io.Writer, r *model.Result) error {
	if r == nil {
		return fmt.Errorf("summary: nil result")
	}
	st := r.Stats()
	md := markdown.NewMarkdown(w)

	md.H1("Archive Run Summary")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Site", r.Site},
			{"State", statusText(r)},
			{"Started", r.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", strconv.FormatInt(st.DurationMS, 10) + " ms"},
			{"Output", valueOr(r.OutputDir, "-")},
		},
	})
	md.PlainText("")

	md.H2("Statistics")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Count"},
		Rows: [][]string{
			{"URLs", strconv.Itoa(st.URLsTotal)},
			{"Converted", strconv.Itoa(st.Converted)},
			{"Without body", strconv.Itoa(st.Empty)},
			{"Failed", strconv.Itoa(st.Failed)},
			{"Files written", strconv.Itoa(st.Saved)},
		},
	})
	md.PlainText("")

	md.H2("Failures")
	md.PlainText("")
	if len(r.Failures) == 0 {
		md.PlainText("No failures.")
		return md.Build()
	}
	rows := make([][]string, 0, len(r.Failures))
	for _, f := range r.Failures {
		rows = append(rows, []string{
			strconv.Itoa(f.Index),
			f.URL,
			f.Stage,
			f.Kind,
			cell(f.Message()),
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"#", "URL", "Stage", "Kind", "Message"},
		Rows:   rows,
	})
	return md.Build()
}

// WriteSummaryFile 将摘要写入文件，必要时创建父目录。
func WriteSummaryFile(r *model.Result, path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create dir for %s: %w", path, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	if err := WriteSummary(f, r); err != nil {
		return fmt.Errorf("write summary %s: %w", path, err)
	}
	return nil
}

func statusText(r *model.Result) string {
	switch {
	case r.State == model.StateFailed:
		return "failed"
	case r.Cancelled:
		return "done (cancelled)"
	default:
		return string(r.State)
	}
}

func valueOr(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// cell 使错误文本可安全放入表格单元格。
func cell(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", `\|`)
}
