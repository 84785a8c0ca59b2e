// 包 fetch 封装 HTTP 客户端（代理/超时/限速/可选重试），用于抓取 sitemap、订阅与文章页。
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"time"

	"golang.org/x/time/rate"

	"go-post-archiver/internal/model"
)

// maxPageBytes 为单页正文读取上限；超出时返回错误而不是截断。
var maxPageBytes = 16 << 20

// ErrBodyTooLarge 表示响应正文超过 maxPageBytes。
var ErrBodyTooLarge = errors.New("body exceeds limit")

const defaultUA = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/143.0.0.0 Safari/537.36"

// Client 为带限速与可选重试的 HTTP 客户端。
type Client struct {
	http    *http.Client
	retry   int
	limiter *rate.Limiter
	ua      string
}

// Options 为客户端构造参数。
type Options struct {
	ProxyHTTP  string
	ProxyHTTPS string
	// Timeout 为单次请求超时。
	Timeout time.Duration
	// Retry 默认 0：失败的页面直接记为失败，不重试。
	Retry int
	// RatePerSecond 为每秒请求数上限，0 表示不限速。
	RatePerSecond float64
	Burst         int
	UserAgent     string
}

// New 创建客户端，支持 http/https 代理、超时与限速。
func New(opts Options) (*Client, error) {
	var proxyHTTP, proxyHTTPS *url.URL
	if opts.ProxyHTTP != "" {
		u, err := url.Parse(opts.ProxyHTTP)
		if err != nil {
			return nil, fmt.Errorf("parse http proxy: %w", err)
		}
		proxyHTTP = u
	}
	if opts.ProxyHTTPS != "" {
		u, err := url.Parse(opts.ProxyHTTPS)
		if err != nil {
			return nil, fmt.Errorf("parse https proxy: %w", err)
		}
		proxyHTTPS = u
	}
	transport := &http.Transport{
		Proxy: func(req *http.Request) (*url.URL, error) {
			if req.URL.Scheme == "https" && proxyHTTPS != nil {
				return proxyHTTPS, nil
			}
			if req.URL.Scheme == "http" && proxyHTTP != nil {
				return proxyHTTP, nil
			}
			return http.ProxyFromEnvironment(req)
		},
		DialContext:           (&net.Dialer{Timeout: 10 * time.Second}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConnsPerHost:   8,
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.Retry < 0 {
		opts.Retry = 0
	}
	c := &Client{
		http:  &http.Client{Transport: transport, Timeout: opts.Timeout},
		retry: opts.Retry,
		ua:    opts.UserAgent,
	}
	if opts.RatePerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), burst)
	}
	return c, nil
}

// Get 发起 GET；仅 2xx 视为成功，其余状态返回 *model.FetchError。
func (c *Client) Get(ctx context.Context, rawURL string) (*http.Response, error) {
	var lastErr error
	attempts := c.retry + 1
	for i := 0; i < attempts; i++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, &model.FetchError{URL: rawURL, Err: err}
			}
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, &model.FetchError{URL: rawURL, Err: fmt.Errorf("new request: %w", err)}
		}
		req.Header.Set("User-Agent", c.userAgent())
		resp, err := c.http.Do(req)
		if err == nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}
		if err == nil {
			lastErr = &model.FetchError{URL: rawURL, Status: resp.StatusCode}
			if resp.Body != nil {
				resp.Body.Close()
			}
		} else {
			lastErr = &model.FetchError{URL: rawURL, Err: err}
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, &model.FetchError{URL: rawURL, Err: ctx.Err()}
		case <-time.After(time.Duration(i+1) * 300 * time.Millisecond):
		}
	}
	return nil, lastErr
}

// FetchHTML 抓取单页并以文本返回正文。
func (c *Client) FetchHTML(ctx context.Context, rawURL string) (string, error) {
	resp, err := c.Get(ctx, rawURL)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(io.LimitReader(resp.Body, int64(maxPageBytes)+1))
	if err != nil {
		return "", &model.FetchError{URL: rawURL, Status: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	if len(b) > maxPageBytes {
		return "", &model.FetchError{URL: rawURL, Status: resp.StatusCode, Err: fmt.Errorf("%w (%d bytes)", ErrBodyTooLarge, maxPageBytes)}
	}
	return string(b), nil
}

// userAgent 优先使用配置，其次环境变量 ARCHIVER_UA，最后为常见浏览器 UA。
func (c *Client) userAgent() string {
	if c.ua != "" {
		return c.ua
	}
	if ua := os.Getenv("ARCHIVER_UA"); ua != "" {
		return ua
	}
	return defaultUA
}
