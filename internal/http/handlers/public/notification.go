package public

import (
	"errors"
	"strconv"

	handlershared "github.com/dianxiu-server/internal/http/handlers/shared"
	"github.com/dianxiu-server/internal/http/response"
	"github.com/dianxiu-server/internal/repository"
	"github.com/dianxiu-server/internal/service"

	"github.com/gin-gonic/gin"
)

// NotificationListQuery 通知列表查询参数
type NotificationListQuery struct {
	Page       int    `form:"page"`
	PageSize   int    `form:"page_size"`
	Type       string `form:"type"`
	OnlyUnread bool   `form:"only_unread"`
}

// ListNotifications 分页查询站内通知
func (h *Handler) ListNotifications(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}

	var query NotificationListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数无效", err)
		return
	}
	page, pageSize := handlershared.NormalizePagination(query.Page, query.PageSize)

	notifications, total, err := h.NotificationService.List(repository.NotificationListFilter{
		Page:       page,
		PageSize:   pageSize,
		UserID:     uid,
		Type:       query.Type,
		OnlyUnread: query.OnlyUnread,
	})
	if err != nil {
		respondError(c, response.CodeInternal, "查询通知失败", err)
		return
	}

	response.SuccessWithPage(c, notifications, response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: (total + int64(pageSize) - 1) / int64(pageSize),
	})
}

// MarkNotificationRead 标记通知已读
func (h *Handler) MarkNotificationRead(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "通知标识无效", nil)
		return
	}

	if err := h.NotificationService.MarkRead(uint(id), uid); err != nil {
		if errors.Is(err, service.ErrNotificationNotFound) {
			respondError(c, response.CodeNotFound, service.ErrNotificationNotFound.Error(), nil)
			return
		}
		respondError(c, response.CodeInternal, "标记已读失败", err)
		return
	}
	response.Success(c, nil)
}
