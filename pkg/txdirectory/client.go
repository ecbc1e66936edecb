// Package txdirectory 是交易目录服务的 HTTP 客户端。
//
// 目录服务负责交易存储、签名验证和确认索引; 本客户端只做四个读写操作的
// JSON 编解码，失败直接上抛，不在这一层重试。
package txdirectory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// APIError 是目录服务返回的业务错误 (envelope code != 0)。
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("txdirectory: api error %d: %s", e.Code, e.Message)
}

// Client 访问一个目录服务实例。
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient 创建客户端。baseURL 形如 "http://localhost:8080"。
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// GetSafeInfo 查询 Safe 的 owner 集合、门槛和当前 nonce。
func (c *Client) GetSafeInfo(ctx context.Context, safeAddress string) (*SafeInfo, error) {
	var info SafeInfo
	path := "/api/v1/safes/" + url.PathEscape(safeAddress)
	if err := c.do(ctx, http.MethodGet, path, nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// ProposeTransaction 提交新交易提案 (含提案人的首个签名)。
func (c *Client) ProposeTransaction(ctx context.Context, req *ProposalRequest) (*ProposalAck, error) {
	var ack ProposalAck
	if err := c.do(ctx, http.MethodPost, "/api/v1/transactions", req, &ack); err != nil {
		return nil, err
	}
	return &ack, nil
}

// SubmitConfirmation 为已有提案追加一个 owner 签名。
func (c *Client) SubmitConfirmation(ctx context.Context, safeTxHash string, signature string) (*ConfirmationAck, error) {
	var ack ConfirmationAck
	path := "/api/v1/transactions/" + url.PathEscape(safeTxHash) + "/confirmations"
	body := map[string]string{"signature": signature}
	if err := c.do(ctx, http.MethodPost, path, body, &ack); err != nil {
		return nil, err
	}
	return &ack, nil
}

// GetConfirmations 拉取某笔交易已收集的签名列表。
func (c *Client) GetConfirmations(ctx context.Context, safeTxHash string, opts ListOptions) (*ConfirmationList, error) {
	path := "/api/v1/transactions/" + url.PathEscape(safeTxHash) + "/confirmations"

	q := url.Values{}
	if opts.Trusted {
		q.Set("trusted", "true")
	}
	if opts.Cursor != "" {
		q.Set("cursor", opts.Cursor)
	}
	if opts.Timezone != "" {
		q.Set("timezone", opts.Timezone)
	}
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var list ConfirmationList
	if err := c.do(ctx, http.MethodGet, path, nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// envelope 是目录服务统一的响应外壳 {code, msg, data}。
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"msg"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("txdirectory: encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("txdirectory: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("txdirectory: %s %s: unexpected status %d", method, path, resp.StatusCode)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("txdirectory: decode response: %w", err)
	}
	if env.Code != 0 {
		return &APIError{Code: env.Code, Message: env.Message}
	}
	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("txdirectory: decode payload: %w", err)
		}
	}
	return nil
}
