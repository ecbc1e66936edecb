package handler

import (
	"github.com/gin-gonic/gin"

	"safe-core/internal/handler/response"
	"safe-core/internal/service"
	"safe-core/pkg/errno"
	"safe-core/pkg/txdirectory"
)

// SafeHandler 目录服务的 HTTP 入口
// 只做参数绑定和响应封装，业务规则全部在 service 层
type SafeHandler struct {
	svc service.Directory
}

func NewSafeHandler(svc service.Directory) *SafeHandler {
	return &SafeHandler{svc: svc}
}

// GetSafeInfo 查询 Safe 账户
// GET /api/v1/safes/:address
func (h *SafeHandler) GetSafeInfo(c *gin.Context) {
	info, err := h.svc.GetSafeInfo(c.Request.Context(), c.Param("address"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, info)
}

// RegisterSafe 登记 Safe 账户 (管理接口)
// POST /api/v1/safes
func (h *SafeHandler) RegisterSafe(c *gin.Context) {
	var req txdirectory.SafeInfo
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errno.ErrBind)
		return
	}

	if err := h.svc.RegisterSafe(c.Request.Context(), &req); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// ProposeTransaction 提交新提案
// POST /api/v1/transactions
func (h *SafeHandler) ProposeTransaction(c *gin.Context) {
	var req txdirectory.ProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errno.ErrBind)
		return
	}

	ack, err := h.svc.ProposeTransaction(c.Request.Context(), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, ack)
}

// SubmitConfirmation 追加 owner 签名
// POST /api/v1/transactions/:hash/confirmations
func (h *SafeHandler) SubmitConfirmation(c *gin.Context) {
	var req struct {
		Signature string `json:"signature" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errno.ErrBind)
		return
	}

	ack, err := h.svc.SubmitConfirmation(c.Request.Context(), c.Param("hash"), req.Signature)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, ack)
}

// GetConfirmations 拉取签名列表
// GET /api/v1/transactions/:hash/confirmations?trusted=&cursor=&timezone=
func (h *SafeHandler) GetConfirmations(c *gin.Context) {
	opts := txdirectory.ListOptions{
		Trusted:  c.Query("trusted") == "true",
		Cursor:   c.Query("cursor"),
		Timezone: c.Query("timezone"),
	}

	list, err := h.svc.GetConfirmations(c.Request.Context(), c.Param("hash"), opts)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, list)
}
