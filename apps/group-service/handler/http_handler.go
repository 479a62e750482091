package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"gostudy-social/api/rest"
	"gostudy-social/apps/group-service/converter"
	"gostudy-social/apps/group-service/model"
	"gostudy-social/apps/group-service/service"
	"gostudy-social/pkg/httpx"
	"gostudy-social/pkg/logger"
)

// HTTPHandler HTTP协议处理器
type HTTPHandler struct {
	svc  *service.Service
	conv *converter.Converter
	log  logger.Logger
}

// NewHTTPHandler 创建HTTP处理器
func NewHTTPHandler(svc *service.Service, log logger.Logger) *HTTPHandler {
	return &HTTPHandler{
		svc:  svc,
		conv: converter.NewConverter(),
		log:  log,
	}
}

// RegisterRoutes 注册HTTP路由
func (h *HTTPHandler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v1/group")
	{
		api.POST("/list", h.ListGroups)                  // 群组列表（范围、搜索、排序）
		api.POST("/stats", h.GetGroupStats)              // 聚合统计
		api.POST("/create", h.CreateGroup)               // 创建群组
		api.POST("/join", h.JoinGroup)                   // 加入群组
		api.POST("/leave", h.LeaveGroup)                 // 退出群组
		api.POST("/pin", h.TogglePin)                    // 置顶开关
		api.POST("/disband", h.DisbandGroup)             // 解散群组
		api.POST("/invite/create", h.CreateInvite)       // 生成邀请码
		api.POST("/invite/redeem", h.RedeemInvite)       // 兑换邀请码
		api.POST("/presence", h.SetPresence)             // 在线状态上报
		api.POST("/activity", h.GetGroupActivity)        // 活动流水
	}

	// 邀请链接入口，code在路径里
	r.GET("/join/:code", h.RedeemInviteLink)
}

// currentUserID 从认证中间件注入的上下文取调用者ID
func (h *HTTPHandler) currentUserID(c *gin.Context) (int64, bool) {
	v, ok := c.Get("userID")
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing user identity"})
		return 0, false
	}
	userID, ok := v.(int64)
	if !ok || userID <= 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid user identity"})
		return 0, false
	}
	return userID, true
}

// ListGroups 群组列表
func (h *HTTPHandler) ListGroups(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	var req rest.ListGroupsRequest
	if err := c.Bind(&req); err != nil {
		h.log.Error(ctx, "Invalid list groups request", logger.F("error", err.Error()))
		httpx.WriteObject(c, &rest.ListGroupsResponse{Success: false, Message: "Invalid request format"}, err)
		return
	}

	groups, err := h.svc.GetGroups(ctx, userID, req.Scope, req.Keyword, req.SortBy)
	res := &rest.ListGroupsResponse{
		Success: err == nil,
		Message: messageOr(err, "获取成功"),
	}
	if err == nil {
		res.Groups = h.conv.GroupsToInfo(groups, userID)
		res.Total = int32(len(res.Groups))
	}
	if err != nil {
		h.log.Error(ctx, "List groups failed", logger.F("error", err.Error()))
	}
	httpx.WriteObject(c, res, err)
}

// GetGroupStats 聚合统计
func (h *HTTPHandler) GetGroupStats(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	stats, err := h.svc.GetGroupStats(ctx, userID)
	res := &rest.GetGroupStatsResponse{
		Success: err == nil,
		Message: messageOr(err, "获取成功"),
		Stats:   h.conv.StatsToInfo(stats),
	}
	if err != nil {
		h.log.Error(ctx, "Get group stats failed", logger.F("error", err.Error()))
	}
	httpx.WriteObject(c, res, err)
}

// CreateGroup 创建群组
func (h *HTTPHandler) CreateGroup(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	var req rest.CreateGroupRequest
	if err := c.Bind(&req); err != nil {
		h.log.Error(ctx, "Invalid create group request", logger.F("error", err.Error()))
		httpx.WriteObject(c, &rest.CreateGroupResponse{Success: false, Message: "Invalid request format"}, err)
		return
	}

	draft := &model.GroupDraft{
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		Color:       req.Color,
		Icon:        req.Icon,
		Avatar:      req.Avatar,
		CourseName:  req.CourseName,
		IsPrivate:   req.IsPrivate,
		MaxMembers:  req.MaxMembers,
		CreatorID:   userID,
		CreatorName: req.DisplayName,
	}
	if req.CourseId > 0 {
		courseID := req.CourseId
		draft.CourseID = &courseID
	}

	group, err := h.svc.CreateGroup(ctx, draft)
	res := &rest.CreateGroupResponse{
		Success: err == nil,
		Message: messageOr(err, "创建群组成功"),
		Group:   h.conv.GroupToInfo(group, userID),
	}
	if err != nil {
		h.log.Error(ctx, "Create group failed", logger.F("error", err.Error()))
	}
	httpx.WriteObject(c, res, err)
}

// JoinGroup 加入群组
func (h *HTTPHandler) JoinGroup(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	var req rest.JoinGroupRequest
	if err := c.Bind(&req); err != nil {
		h.log.Error(ctx, "Invalid join group request", logger.F("error", err.Error()))
		httpx.WriteObject(c, &rest.JoinGroupResponse{Success: false, Message: "Invalid request format"}, err)
		return
	}

	group, err := h.svc.JoinGroup(ctx, req.GroupId, userID, req.DisplayName, req.Avatar)
	res := &rest.JoinGroupResponse{
		Success: err == nil,
		Message: messageOr(err, "加入群组成功"),
		Group:   h.conv.GroupToInfo(group, userID),
	}
	if err != nil {
		h.log.Error(ctx, "Join group failed",
			logger.F("groupID", req.GroupId),
			logger.F("error", err.Error()))
	}
	httpx.WriteObject(c, res, err)
}

// LeaveGroup 退出群组
func (h *HTTPHandler) LeaveGroup(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	var req rest.LeaveGroupRequest
	if err := c.Bind(&req); err != nil {
		h.log.Error(ctx, "Invalid leave group request", logger.F("error", err.Error()))
		httpx.WriteObject(c, &rest.LeaveGroupResponse{Success: false, Message: "Invalid request format"}, err)
		return
	}

	err := h.svc.LeaveGroup(ctx, req.GroupId, userID)
	res := &rest.LeaveGroupResponse{
		Success: err == nil,
		Message: messageOr(err, "退出群组成功"),
	}
	if err != nil {
		h.log.Error(ctx, "Leave group failed",
			logger.F("groupID", req.GroupId),
			logger.F("error", err.Error()))
	}
	httpx.WriteObject(c, res, err)
}

// TogglePin 置顶开关
func (h *HTTPHandler) TogglePin(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	var req rest.TogglePinRequest
	if err := c.Bind(&req); err != nil {
		h.log.Error(ctx, "Invalid toggle pin request", logger.F("error", err.Error()))
		httpx.WriteObject(c, &rest.TogglePinResponse{Success: false, Message: "Invalid request format"}, err)
		return
	}

	group, err := h.svc.TogglePin(ctx, req.GroupId, userID, req.Pinned)
	res := &rest.TogglePinResponse{
		Success: err == nil,
		Message: messageOr(err, "更新成功"),
		Group:   h.conv.GroupToInfo(group, userID),
	}
	if err != nil {
		h.log.Error(ctx, "Toggle pin failed",
			logger.F("groupID", req.GroupId),
			logger.F("error", err.Error()))
	}
	httpx.WriteObject(c, res, err)
}

// DisbandGroup 解散群组
func (h *HTTPHandler) DisbandGroup(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	var req rest.DisbandGroupRequest
	if err := c.Bind(&req); err != nil {
		h.log.Error(ctx, "Invalid disband group request", logger.F("error", err.Error()))
		httpx.WriteObject(c, &rest.DisbandGroupResponse{Success: false, Message: "Invalid request format"}, err)
		return
	}

	err := h.svc.DisbandGroup(ctx, req.GroupId, userID)
	res := &rest.DisbandGroupResponse{
		Success: err == nil,
		Message: messageOr(err, "解散群组成功"),
	}
	if err != nil {
		h.log.Error(ctx, "Disband group failed",
			logger.F("groupID", req.GroupId),
			logger.F("error", err.Error()))
	}
	httpx.WriteObject(c, res, err)
}

// CreateInvite 生成邀请码
func (h *HTTPHandler) CreateInvite(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	var req rest.CreateInviteRequest
	if err := c.Bind(&req); err != nil {
		h.log.Error(ctx, "Invalid create invite request", logger.F("error", err.Error()))
		httpx.WriteObject(c, &rest.CreateInviteResponse{Success: false, Message: "Invalid request format"}, err)
		return
	}

	invite, link, err := h.svc.GenerateInvite(ctx, req.GroupId, userID, req.ExpiresInDays, req.MaxUses)
	res := &rest.CreateInviteResponse{
		Success: err == nil,
		Message: messageOr(err, "生成邀请码成功"),
		Invite:  h.conv.InviteToInfo(invite, link),
	}
	if err != nil {
		h.log.Error(ctx, "Create invite failed",
			logger.F("groupID", req.GroupId),
			logger.F("error", err.Error()))
	}
	httpx.WriteObject(c, res, err)
}

// RedeemInvite 兑换邀请码
func (h *HTTPHandler) RedeemInvite(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	var req rest.RedeemInviteRequest
	if err := c.Bind(&req); err != nil {
		h.log.Error(ctx, "Invalid redeem invite request", logger.F("error", err.Error()))
		httpx.WriteObject(c, &rest.RedeemInviteResponse{Success: false, Message: "Invalid request format"}, err)
		return
	}

	h.redeem(c, req.Code, userID, req.DisplayName, req.Avatar)
}

// RedeemInviteLink 通过邀请链接兑换，code在URL路径里
func (h *HTTPHandler) RedeemInviteLink(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}
	h.redeem(c, c.Param("code"), userID, c.GetString("username"), "")
}

func (h *HTTPHandler) redeem(c *gin.Context, code string, userID int64, displayName, avatar string) {
	ctx := c.Request.Context()
	group, err := h.svc.RedeemInvite(ctx, code, userID, displayName, avatar)
	res := &rest.RedeemInviteResponse{
		Success: err == nil,
		Message: messageOr(err, "加入群组成功"),
		Group:   h.conv.GroupToInfo(group, userID),
	}
	if err != nil {
		h.log.Error(ctx, "Redeem invite failed", logger.F("error", err.Error()))
	}
	httpx.WriteObject(c, res, err)
}

// SetPresence 在线状态上报，尽力而为，不向调用方报错
func (h *HTTPHandler) SetPresence(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	var req rest.SetPresenceRequest
	if err := c.Bind(&req); err != nil {
		h.log.Error(ctx, "Invalid presence request", logger.F("error", err.Error()))
		httpx.WriteObject(c, &rest.SetPresenceResponse{Success: false, Message: "Invalid request format"}, err)
		return
	}

	h.svc.SetPresence(ctx, userID, req.Online)
	httpx.WriteObject(c, &rest.SetPresenceResponse{Success: true, Message: "更新成功"}, nil)
}

// GetGroupActivity 群组活动流水
func (h *HTTPHandler) GetGroupActivity(c *gin.Context) {
	ctx := c.Request.Context()
	if _, ok := h.currentUserID(c); !ok {
		return
	}

	var req rest.GroupActivityRequest
	if err := c.Bind(&req); err != nil {
		h.log.Error(ctx, "Invalid activity request", logger.F("error", err.Error()))
		httpx.WriteObject(c, &rest.GroupActivityResponse{Success: false, Message: "Invalid request format"}, err)
		return
	}

	events, err := h.svc.GetGroupActivity(ctx, req.GroupId, req.Limit)
	res := &rest.GroupActivityResponse{
		Success: err == nil,
		Message: messageOr(err, "获取成功"),
		Events:  h.conv.EventsToInfo(events),
	}
	if err != nil {
		h.log.Error(ctx, "Get group activity failed",
			logger.F("groupID", req.GroupId),
			logger.F("error", err.Error()))
	}
	httpx.WriteObject(c, res, err)
}

// messageOr 错误时返回错误信息，否则返回成功提示
func messageOr(err error, ok string) string {
	if err != nil {
		return err.Error()
	}
	return ok
}
