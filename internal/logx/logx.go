// 包 logx 封装归档器的日志输出：
// 全局 slog 日志器的初始化、人读格式的 Handler，以及按文章记录的结构化事件。
package logx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

// silent 高于所有级别，用于关闭输出。
const silent slog.Level = 100

var levelNames = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
	"off":     silent,
	"none":    silent,
	"silent":  silent,
}

// parseSlogLevel 未识别的名称按 info 处理。
func parseSlogLevel(s string) slog.Level {
	if lv, ok := levelNames[strings.ToLower(strings.TrimSpace(s))]; ok {
		return lv
	}
	return slog.LevelInfo
}

// Init 初始化写往 stderr 的全局日志器。
func Init(level, format, locale, colorMode string) {
	InitWriter(os.Stderr, level, format, locale, colorMode)
}

// InitWriter 同 Init，但写入指定 writer。format 为 json、text 或 pretty（默认）。
func InitWriter(w io.Writer, level, format, locale, colorMode string) {
	lv := parseSlogLevel(level)
	var h slog.Handler
	switch f := strings.ToLower(strings.TrimSpace(format)); f {
	case "json", "text":
		opts := &slog.HandlerOptions{Level: lv}
		if f == "json" {
			h = slog.NewJSONHandler(w, opts)
		} else {
			h = slog.NewTextHandler(w, opts)
		}
	default:
		h = NewPrettyHandler(w, lv, locale, colorMode)
	}
	slog.SetDefault(slog.New(h))
}

func Debugf(format string, v ...any) { slog.Debug(fmt.Sprintf(format, v...)) }
func Infof(format string, v ...any)  { slog.Info(fmt.Sprintf(format, v...)) }
func Warnf(format string, v ...any)  { slog.Warn(fmt.Sprintf(format, v...)) }
func Errorf(format string, v ...any) { slog.Error(fmt.Sprintf(format, v...)) }

// Post 记录一篇文章转换成功；l 为 nil 时使用 slog.Default()。
func Post(l *slog.Logger, index int, title, url string, empty bool) {
	if l == nil {
		l = slog.Default()
	}
	l.Info("post_converted",
		slog.Int("index", index),
		slog.String("title", title),
		slog.String("url", url),
		slog.Bool("empty", empty),
	)
}

// Failure 记录一篇文章在某阶段失败。
func Failure(l *slog.Logger, index int, url, stage, kind string, err error) {
	if l == nil {
		l = slog.Default()
	}
	l.Warn("post_failed",
		slog.Int("index", index),
		slog.String("url", url),
		slog.String("stage", stage),
		slog.String("kind", kind),
		slog.Any("error", err),
	)
}

// PrettyHandler 每条记录输出一行：时间、等级标签、消息、key=value 属性。
// 通过 WithAttrs 附加的属性在附加时即渲染，带当时所在分组的前缀。
type PrettyHandler struct {
	out    io.Writer
	mu     *sync.Mutex
	min    slog.Level
	labels map[slog.Level]string
	color  bool
	prefix string // 当前分组路径，形如 "a.b."
	pre    []byte // 已渲染的 WithAttrs 属性
}

// NewPrettyHandler 创建人读 Handler；locale 以 zh 开头时使用中文标签。
func NewPrettyHandler(w io.Writer, lv slog.Level, locale string, colorMode string) *PrettyHandler {
	if w == nil {
		w = os.Stderr
	}
	return &PrettyHandler{
		out:    w,
		mu:     new(sync.Mutex),
		min:    lv,
		labels: labelsFor(locale),
		color:  shouldColor(w, colorMode),
	}
}

func (h *PrettyHandler) Enabled(_ context.Context, l slog.Level) bool {
	return h.min < silent && l >= h.min
}

func (h *PrettyHandler) Handle(_ context.Context, r slog.Record) error {
	t := r.Time
	if t.IsZero() {
		t = time.Now()
	}
	line := make([]byte, 0, 128+len(h.pre))
	line = t.AppendFormat(line, time.DateTime)
	line = append(line, ' ')
	line = append(line, h.label(r.Level)...)
	line = append(line, ' ')
	line = append(line, r.Message...)
	line = append(line, h.pre...)
	r.Attrs(func(a slog.Attr) bool {
		line = appendAttr(line, h.prefix, a)
		return true
	})
	line = append(line, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.out.Write(line)
	return err
}

func (h *PrettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	next := *h
	next.pre = append([]byte(nil), h.pre...)
	for _, a := range attrs {
		next.pre = appendAttr(next.pre, h.prefix, a)
	}
	return &next
}

func (h *PrettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = h.prefix + name + "."
	return &next
}

func (h *PrettyHandler) label(l slog.Level) string {
	s, ok := h.labels[l]
	if !ok {
		s = "[" + l.String() + "]"
	}
	if code, ok := levelColors[l]; ok && h.color {
		s = "\x1b[" + code + "m" + s + "\x1b[0m"
	}
	return s
}

// appendAttr 以 " prefix+key=value" 形式追加属性；分组属性展开为 prefix.group.key。
func appendAttr(dst []byte, prefix string, a slog.Attr) []byte {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return dst
	}
	if a.Value.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p += a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			dst = appendAttr(dst, p, ga)
		}
		return dst
	}
	dst = append(dst, ' ')
	dst = append(dst, prefix...)
	dst = append(dst, a.Key...)
	dst = append(dst, '=')
	v := a.Value.String()
	if v == "" || strings.ContainsAny(v, " \t\n\"=") {
		return strconv.AppendQuote(dst, v)
	}
	return append(dst, v...)
}

var (
	enLabels = map[slog.Level]string{slog.LevelDebug: "[DEBUG]", slog.LevelInfo: "[INFO]", slog.LevelWarn: "[WARN]", slog.LevelError: "[ERROR]"}
	zhLabels = map[slog.Level]string{slog.LevelDebug: "[调试]", slog.LevelInfo: "[信息]", slog.LevelWarn: "[警告]", slog.LevelError: "[错误]"}
)

func labelsFor(locale string) map[slog.Level]string {
	if strings.HasPrefix(strings.ToLower(locale), "zh") {
		return zhLabels
	}
	return enLabels
}

var levelColors = map[slog.Level]string{
	slog.LevelDebug: "90",
	slog.LevelInfo:  "36",
	slog.LevelWarn:  "33",
	slog.LevelError: "31",
}

// shouldColor：NO_COLOR 优先；auto（默认）仅在终端上着色。
func shouldColor(w io.Writer, mode string) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	mode = strings.ToLower(strings.TrimSpace(mode))
	if mode == "always" {
		return true
	}
	if mode != "" && mode != "auto" {
		return false
	}
	f, ok := w.(interface{ Fd() uintptr })
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}
