package integration

import (
	"encoding/json"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseURL() string {
	if v := os.Getenv("SAFE_SERVER_URL"); v != "" {
		return v
	}
	return "http://localhost:8080"
}

// TestHealthCheck 集成测试示例
// 它假设 Safe Server 已经在运行 (例如通过 Docker Compose)
// 运行命令: go test -v ./tests/integration/...
func TestHealthCheck(t *testing.T) {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(baseURL() + "/health")
	if err != nil {
		t.Skip("Skipping integration test: server not running? " + err.Error())
		return
	}
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Code int `json:"code"`
		Data struct {
			Status string `json:"status"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 0, body.Code)
	assert.Equal(t, "ok", body.Data.Status)
}

// TestUnknownTransaction 未知交易哈希应返回业务错误码而不是 HTTP 错误
func TestUnknownTransaction(t *testing.T) {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(baseURL() + "/api/v1/transactions/0x" +
		"00000000000000000000000000000000000000000000000000000000000000ff/confirmations")
	if err != nil {
		t.Skip("Skipping integration test: server not running? " + err.Error())
		return
	}
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Code int `json:"code"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 20302, body.Code)
}
