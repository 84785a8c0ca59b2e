package model

import (
	"context"
	"errors"
	"fmt"
)

// 错误类别名，用于失败记录与导出。
const (
	KindNetwork         = "NetworkError"
	KindMalformedSite   = "MalformedSitemapError"
	KindFetch           = "FetchError"
	KindRecordNotFound  = "RecordNotFoundError"
	KindMalformedEscape = "MalformedEscapeError"
	KindRecordDecode    = "RecordDecodeError"
	KindConvert         = "ConvertError"
	KindNoOverwrite     = "NoOverwriteError"
	KindCantDelete      = "CantDeleteError"
	KindSaveItems       = "SaveItemsError"
	KindCancelled       = "Cancelled"
	KindUnknown         = "Unknown"
)

// NetworkError 表示 sitemap 无法获取（传输失败或非 2xx）。
type NetworkError struct {
	URL    string
	Status int
	Err    error
}

func (e *NetworkError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch sitemap %s: status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("fetch sitemap %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// MalformedSitemapError 表示 sitemap XML 无法解析。
type MalformedSitemapError struct {
	Err error
}

func (e *MalformedSitemapError) Error() string { return fmt.Sprintf("malformed sitemap: %v", e.Err) }
func (e *MalformedSitemapError) Unwrap() error { return e.Err }

// FetchError 表示单页抓取失败；Status 为 0 时表示未拿到响应。
type FetchError struct {
	URL    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err != nil && e.Status == 0 {
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("fetch %s: status %d", e.URL, e.Status)
}

func (e *FetchError) Unwrap() error { return e.Err }

// RecordNotFoundError 表示页面中找不到内嵌记录的起止标记。
type RecordNotFoundError struct {
	Marker string
}

func (e *RecordNotFoundError) Error() string {
	return fmt.Sprintf("embedded record not found: missing marker %q", e.Marker)
}

// MalformedEscapeError 表示转义文本以孤立反斜杠结尾。
type MalformedEscapeError struct {
	Offset int
}

func (e *MalformedEscapeError) Error() string {
	return fmt.Sprintf("dangling backslash at offset %d", e.Offset)
}

// RecordDecodeError 携带无法解码的文本与解析器信息。
type RecordDecodeError struct {
	Text string
	Err  error
}

func (e *RecordDecodeError) Error() string {
	return fmt.Sprintf("decode record %q: %v", truncate(e.Text, 120), e.Err)
}

func (e *RecordDecodeError) Unwrap() error { return e.Err }

// ConvertError 表示正文 HTML 转 Markdown 失败。
type ConvertError struct {
	Err error
}

func (e *ConvertError) Error() string { return fmt.Sprintf("convert body: %v", e.Err) }
func (e *ConvertError) Unwrap() error { return e.Err }

// NoOverwriteError 表示输出目录已存在且不允许覆盖。
type NoOverwriteError struct {
	Dir string
}

func (e *NoOverwriteError) Error() string {
	return fmt.Sprintf("output dir %s exists and overwrite is not allowed", e.Dir)
}

// CantDeleteError 表示覆盖前无法删除旧目录。
type CantDeleteError struct {
	Dir string
	Err error
}

func (e *CantDeleteError) Error() string { return fmt.Sprintf("delete dir %s: %v", e.Dir, e.Err) }
func (e *CantDeleteError) Unwrap() error { return e.Err }

// SaveItemsError 表示单个文件写入失败。
type SaveItemsError struct {
	Path string
	Err  error
}

func (e *SaveItemsError) Error() string { return fmt.Sprintf("save %s: %v", e.Path, e.Err) }
func (e *SaveItemsError) Unwrap() error { return e.Err }

// KindOf 返回错误所属类别。
func KindOf(err error) string {
	if err == nil {
		return ""
	}
	var (
		netErr      *NetworkError
		siteErr     *MalformedSitemapError
		fetchErr    *FetchError
		notFound    *RecordNotFoundError
		escErr      *MalformedEscapeError
		decodeErr   *RecordDecodeError
		convErr     *ConvertError
		noOverwrite *NoOverwriteError
		cantDelete  *CantDeleteError
		saveErr     *SaveItemsError
	)
	switch {
	case errors.As(err, &netErr):
		return KindNetwork
	case errors.As(err, &siteErr):
		return KindMalformedSite
	case errors.As(err, &fetchErr):
		if errors.Is(err, context.Canceled) {
			return KindCancelled
		}
		return KindFetch
	case errors.As(err, &notFound):
		return KindRecordNotFound
	case errors.As(err, &escErr):
		return KindMalformedEscape
	case errors.As(err, &decodeErr):
		return KindRecordDecode
	case errors.As(err, &convErr):
		return KindConvert
	case errors.As(err, &noOverwrite):
		return KindNoOverwrite
	case errors.As(err, &cantDelete):
		return KindCantDelete
	case errors.As(err, &saveErr):
		return KindSaveItems
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCancelled
	default:
		return KindUnknown
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
