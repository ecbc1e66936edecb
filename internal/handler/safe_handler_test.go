package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"safe-core/internal/service"
	"safe-core/pkg/errno"
	"safe-core/pkg/txdirectory"
)

// stubDirectory 用固定数据替代真实 service，单测 handler 的绑定与封装逻辑
type stubDirectory struct {
	info    *txdirectory.SafeInfo
	infoErr error

	confirmAck *txdirectory.ConfirmationAck
	confirmErr error
}

var _ service.Directory = (*stubDirectory)(nil)

func (s *stubDirectory) GetSafeInfo(ctx context.Context, addr string) (*txdirectory.SafeInfo, error) {
	return s.info, s.infoErr
}

func (s *stubDirectory) RegisterSafe(ctx context.Context, info *txdirectory.SafeInfo) error {
	return nil
}

func (s *stubDirectory) ProposeTransaction(ctx context.Context, req *txdirectory.ProposalRequest) (*txdirectory.ProposalAck, error) {
	return &txdirectory.ProposalAck{ID: 1, SafeTxHash: req.SafeTxHash}, nil
}

func (s *stubDirectory) SubmitConfirmation(ctx context.Context, hash, sig string) (*txdirectory.ConfirmationAck, error) {
	return s.confirmAck, s.confirmErr
}

func (s *stubDirectory) GetConfirmations(ctx context.Context, hash string, opts txdirectory.ListOptions) (*txdirectory.ConfirmationList, error) {
	return &txdirectory.ConfirmationList{SafeTxHash: hash}, nil
}

func newTestRouter(stub *stubDirectory) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewSafeHandler(stub)
	r.GET("/api/v1/safes/:address", h.GetSafeInfo)
	r.POST("/api/v1/transactions/:hash/confirmations", h.SubmitConfirmation)
	return r
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"msg"`
	Data    json.RawMessage `json:"data"`
}

func TestGetSafeInfoSuccess(t *testing.T) {
	stub := &stubDirectory{
		info: &txdirectory.SafeInfo{
			Address:   "0x655A9e6b044d6B67F693362a9Ab32CC0b889A9CF",
			ChainID:   100,
			Owners:    []string{"0x1111111111111111111111111111111111111111"},
			Threshold: 1,
		},
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/safes/0x655A9e6b044d6B67F693362a9Ab32CC0b889A9CF", nil)
	newTestRouter(stub).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, 0, env.Code)

	var info txdirectory.SafeInfo
	require.NoError(t, json.Unmarshal(env.Data, &info))
	assert.Equal(t, 1, info.Threshold)
}

func TestGetSafeInfoBusinessError(t *testing.T) {
	stub := &stubDirectory{infoErr: errno.ErrSafeNotFound}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/safes/0xdead", nil)
	newTestRouter(stub).ServeHTTP(w, req)

	// 业务错误走统一 envelope，HTTP 层始终 200
	require.Equal(t, http.StatusOK, w.Code)
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, errno.ErrSafeNotFound.Code, env.Code)
}

func TestSubmitConfirmationBindError(t *testing.T) {
	stub := &stubDirectory{}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/transactions/0xabc/confirmations",
		strings.NewReader(`{}`)) // 缺少 signature
	req.Header.Set("Content-Type", "application/json")
	newTestRouter(stub).ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, errno.ErrBind.Code, env.Code)
}

func TestSubmitConfirmationDuplicate(t *testing.T) {
	stub := &stubDirectory{confirmErr: errno.ErrDuplicateSigner}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/transactions/0xabc/confirmations",
		strings.NewReader(`{"signature":"0x1122"}`))
	req.Header.Set("Content-Type", "application/json")
	newTestRouter(stub).ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, errno.ErrDuplicateSigner.Code, env.Code)
}
