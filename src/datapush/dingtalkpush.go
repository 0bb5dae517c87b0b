package datapush

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
	"unicode/utf8"
)

// 常量定义
const (
	RETRY_TIMES    = 5
	RETRY_INTERVAL = 2 * time.Second
	MAX_CONTENT    = 18000 // 机器人单条消息上限约 20000 字节
)

// 钉钉 API 响应结构体
type DingTalkResponse struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

// Pusher 钉钉群机器人推送
type Pusher struct {
	Webhook  string
	Secret   string // 加签密钥，为空则不加签
	Client   *http.Client
	Retries  int
	Interval time.Duration
	now      func() time.Time
}

func NewPusher(webhook, secret string) *Pusher {
	return &Pusher{
		Webhook:  webhook,
		Secret:   secret,
		Client:   &http.Client{Timeout: 10 * time.Second},
		Retries:  RETRY_TIMES,
		Interval: RETRY_INTERVAL,
		now:      time.Now,
	}
}

// SendText 推送文本消息
func (p *Pusher) SendText(content string) error {
	content = truncate(content, MAX_CONTENT)
	payload := map[string]interface{}{
		"msgtype": "text",
		"text": map[string]string{
			"content": content,
		},
	}
	return retry(func() error { return p.post(payload) }, p.Retries, p.Interval)
}

// truncate 截断到 n 字节以内，不拆开多字节字符
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// SendMarkdown 推送 markdown 消息
func (p *Pusher) SendMarkdown(title, text string) error {
	payload := map[string]interface{}{
		"msgtype": "markdown",
		"markdown": map[string]string{
			"title": title,
			"text":  text,
		},
	}
	return retry(func() error { return p.post(payload) }, p.Retries, p.Interval)
}

func (p *Pusher) post(payload map[string]interface{}) error {
	target, err := p.signedURL()
	if err != nil {
		return err
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("序列化请求体失败: %v", err)
	}

	req, err := http.NewRequest("POST", target, bytes.NewBuffer(payloadBytes))
	if err != nil {
		return fmt.Errorf("创建请求失败: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.Client.Do(req)
	if err != nil {
		return fmt.Errorf("发送请求失败: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("读取响应失败: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("推送失败: HTTP %d", resp.StatusCode)
	}

	var result DingTalkResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return fmt.Errorf("解析响应失败: %v", err)
	}

	if result.ErrCode != 0 {
		return fmt.Errorf("推送失败: %s", result.ErrMsg)
	}
	return nil
}

// signedURL 在 webhook 上追加 timestamp 和 sign
func (p *Pusher) signedURL() (string, error) {
	if p.Webhook == "" {
		return "", fmt.Errorf("未配置 webhook")
	}
	if p.Secret == "" {
		return p.Webhook, nil
	}

	u, err := url.Parse(p.Webhook)
	if err != nil {
		return "", fmt.Errorf("webhook 地址无效: %v", err)
	}
	ts := p.now().UnixMilli()
	q := u.Query()
	q.Set("timestamp", strconv.FormatInt(ts, 10))
	q.Set("sign", sign(p.Secret, ts))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// sign 计算 base64(HmacSHA256(timestamp+"\n"+secret))
func sign(secret string, ts int64) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(ts, 10) + "\n" + secret))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// 重试函数
func retry(fn func() error, times int, interval time.Duration) error {
	if times < 1 {
		times = 1
	}
	var err error
	for i := 0; i < times; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i < times-1 {
			time.Sleep(interval)
		}
	}
	return fmt.Errorf("重试 %d 次后失败: %v", times, err)
}
