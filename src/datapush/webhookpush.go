package datapush

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"FareInsight/src/config"
	"FareInsight/src/processor"
)

// 常量定义
const (
	RequestTimeout = 10 * time.Second
)

// RunSummary 单次分析运行的推送载荷
type RunSummary struct {
	SourceFile    string        `json:"source_file"`
	FinishedAt    time.Time     `json:"finished_at"`
	OriginalRows  int           `json:"original_rows"`
	CleanedRows   int           `json:"cleaned_rows"`
	RetentionRate float64       `json:"retention_rate"`
	KPI           processor.KPI `json:"kpi"`
	OutputFiles   []string      `json:"output_files"`
	Warnings      []string      `json:"warnings,omitempty"`
}

// WebhookResponse 接收端响应结构体
type WebhookResponse struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

// WebhookPusher 把运行摘要POST到配置的回调地址
type WebhookPusher struct {
	url           string
	retryTimes    int
	retryInterval time.Duration
	client        *http.Client
}

func NewWebhookPusher(cfg config.WebhookConfig) *WebhookPusher {
	retryTimes := cfg.RetryTimes
	if retryTimes <= 0 {
		retryTimes = 1
	}
	return &WebhookPusher{
		url:           cfg.URL,
		retryTimes:    retryTimes,
		retryInterval: time.Duration(cfg.RetryInterval),
		client:        &http.Client{Timeout: RequestTimeout},
	}
}

// PushSummary 推送运行摘要，带重试
func (p *WebhookPusher) PushSummary(summary RunSummary) error {
	payloadBytes, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("序列化请求体失败: %w", err)
	}

	return retry(func() error {
		return p.post(payloadBytes)
	}, p.retryTimes, p.retryInterval)
}

func (p *WebhookPusher) post(payload []byte) error {
	req, err := http.NewRequest("POST", p.url, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("发送请求失败: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("读取响应失败: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("接收端返回状态码 %d: %s", resp.StatusCode, string(respBody))
	}

	// 接收端返回业务错误码时同样视为失败
	var result WebhookResponse
	if err := json.Unmarshal(respBody, &result); err == nil && result.ErrCode != 0 {
		return fmt.Errorf("推送被拒绝: %s", result.ErrMsg)
	}

	return nil
}

// 重试函数
func retry(fn func() error, times int, interval time.Duration) error {
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
