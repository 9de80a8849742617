package handler

import (
	"errors"
	"net/http"
	"strconv"

	"schoolbills/internal/service"
	"schoolbills/pkg/response"

	"github.com/gin-gonic/gin"
)

// Handler 统一处理器
type Handler struct {
	bills *service.BillService
}

func NewHandler(bills *service.BillService) *Handler {
	return &Handler{bills: bills}
}

// ============================================================
// 账单
// ============================================================

// ListBills 账单列表，按创建时间倒序
// GET /api/v1/bills?academicYear=2025/2026
func (h *Handler) ListBills(c *gin.Context) {
	bills, err := h.bills.List(c.Request.Context(), c.Query("academicYear"))
	if err != nil {
		response.ServerError(c, "获取账单列表失败")
		return
	}
	response.Success(c, bills)
}

// SaveBills 批量保存
// POST /api/v1/bills
//
// 全部成功 201；部分成功 200；全部失败 500。三种情况都返回该学年最新的账单列表。
func (h *Handler) SaveBills(c *gin.Context) {
	var body []service.BillRow
	if err := c.ShouldBindJSON(&body); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	rows := make([]*service.BillRow, len(body))
	for i := range body {
		rows[i] = &body[i]
	}

	result, err := h.bills.SaveBatch(c.Request.Context(), rows)
	if err != nil {
		if errors.Is(err, service.ErrEmptyBatch) {
			response.ParamError(c, err.Error())
			return
		}
		response.ServerError(c, "保存账单失败: "+err.Error())
		return
	}

	switch {
	case result.AllSucceeded():
		response.Created(c, result.Message(), result.Records)
	case result.AllFailed():
		response.Batch(c, http.StatusInternalServerError, false, response.CodeBatchFailed,
			result.Message(), result.Records, result.Errors, result.Warnings())
	default:
		response.Batch(c, http.StatusOK, true, response.CodePartialSuccess,
			result.Message(), result.Records, result.Errors, result.Warnings())
	}
}

// GetBill 账单详情
// GET /api/v1/bills/:id
func (h *Handler) GetBill(c *gin.Context) {
	bill, err := h.bills.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, bill)
}

// PatchBill 修改账单的部分字段
// PATCH /api/v1/bills/:id
func (h *Handler) PatchBill(c *gin.Context) {
	var row service.BillRow
	if err := c.ShouldBindJSON(&row); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	bill, err := h.bills.Patch(c.Request.Context(), c.Param("id"), &row)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, bill)
}

// DeleteBill 删除账单及其缴费流水
// DELETE /api/v1/bills/:id
func (h *Handler) DeleteBill(c *gin.Context) {
	id := c.Param("id")
	if err := h.bills.Delete(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"_id": id})
}

// ListPayments 缴费流水，最新的在前
// GET /api/v1/bills/:id/payments?page=1&page_size=20
func (h *Handler) ListPayments(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	result, err := h.bills.Payments(c.Request.Context(), c.Param("id"), page, pageSize)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, result)
}

// ============================================================
// 报表
// ============================================================

// Summary 看板汇总
// GET /api/v1/reports/summary?academicYear=2025/2026
func (h *Handler) Summary(c *gin.Context) {
	report, err := h.bills.Summary(c.Request.Context(), c.Query("academicYear"))
	if err != nil {
		response.ServerError(c, "获取汇总失败")
		return
	}
	response.Success(c, report)
}

func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case service.IsNotFound(err):
		response.NotFound(c, "账单不存在")
	case service.IsValidationError(err):
		response.ParamError(c, err.Error())
	default:
		response.ServerError(c, err.Error())
	}
}
