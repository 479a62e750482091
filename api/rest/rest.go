// Package rest 群组服务HTTP接口的请求与响应结构
package rest

// GroupMemberInfo 群成员信息
type GroupMemberInfo struct {
	UserId       int64  `json:"user_id"`
	GroupId      int64  `json:"group_id"`
	DisplayName  string `json:"display_name"`
	Avatar       string `json:"avatar"`
	Role         string `json:"role"`
	Pinned       bool   `json:"pinned"`
	Online       bool   `json:"online"`
	LastActiveAt int64  `json:"last_active_at"`
	JoinedAt     int64  `json:"joined_at"`
}

// GroupInfo 群组信息。Pinned是当前调用者自己的置顶标记，
// OnlineCount由成员列表推导。
type GroupInfo struct {
	Id             int64              `json:"id"`
	Name           string             `json:"name"`
	Description    string             `json:"description"`
	Category       string             `json:"category"`
	Color          string             `json:"color"`
	Icon           string             `json:"icon"`
	Avatar         string             `json:"avatar"`
	CourseId       int64              `json:"course_id"`
	CourseName     string             `json:"course_name"`
	CreatorId      int64              `json:"creator_id"`
	MemberCount    int32              `json:"member_count"`
	MaxMembers     int32              `json:"max_members"`
	IsPrivate      bool               `json:"is_private"`
	UnreadMessages int32              `json:"unread_messages"`
	Pinned         bool               `json:"pinned"`
	OnlineCount    int32              `json:"online_count"`
	LastActivity   int64              `json:"last_activity"`
	CreatedAt      int64              `json:"created_at"`
	UpdatedAt      int64              `json:"updated_at"`
	Members        []*GroupMemberInfo `json:"members"`
}

// GroupStatsInfo 群组聚合统计
type GroupStatsInfo struct {
	TotalGroups   int32 `json:"total_groups"`
	MyGroups      int32 `json:"my_groups"`
	PublicGroups  int32 `json:"public_groups"`
	TotalMembers  int32 `json:"total_members"`
	OnlineMembers int32 `json:"online_members"`
}

// InviteInfo 邀请码信息，ExpiresAt为0表示永不过期，MaxUses为0表示不限次数
type InviteInfo struct {
	Code      string `json:"code"`
	GroupId   int64  `json:"group_id"`
	ExpiresAt int64  `json:"expires_at"`
	MaxUses   int32  `json:"max_uses"`
	UseCount  int32  `json:"use_count"`
	Link      string `json:"link"`
}

// GroupEventInfo 群组活动事件
type GroupEventInfo struct {
	GroupId   int64  `json:"group_id"`
	UserId    int64  `json:"user_id"`
	Type      string `json:"type"`
	CreatedAt int64  `json:"created_at"`
}

// ListGroupsRequest 群组列表查询
type ListGroupsRequest struct {
	Scope   string `json:"scope"`
	Keyword string `json:"keyword"`
	SortBy  string `json:"sort_by"`
}

// ListGroupsResponse 群组列表响应
type ListGroupsResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Groups  []*GroupInfo `json:"groups"`
	Total   int32        `json:"total"`
}

// GetGroupStatsResponse 群组统计响应
type GetGroupStatsResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Stats   *GroupStatsInfo `json:"stats"`
}

// CreateGroupRequest 创建群组
type CreateGroupRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Color       string `json:"color"`
	Icon        string `json:"icon"`
	Avatar      string `json:"avatar"`
	CourseId    int64  `json:"course_id"`
	CourseName  string `json:"course_name"`
	IsPrivate   bool   `json:"is_private"`
	MaxMembers  int32  `json:"max_members"`
	DisplayName string `json:"display_name"`
}

// CreateGroupResponse 创建群组响应
type CreateGroupResponse struct {
	Success bool       `json:"success"`
	Message string     `json:"message"`
	Group   *GroupInfo `json:"group"`
}

// JoinGroupRequest 加入群组
type JoinGroupRequest struct {
	GroupId     int64  `json:"group_id"`
	DisplayName string `json:"display_name"`
	Avatar      string `json:"avatar"`
}

// JoinGroupResponse 加入群组响应
type JoinGroupResponse struct {
	Success bool       `json:"success"`
	Message string     `json:"message"`
	Group   *GroupInfo `json:"group"`
}

// LeaveGroupRequest 退出群组
type LeaveGroupRequest struct {
	GroupId int64 `json:"group_id"`
}

// LeaveGroupResponse 退出群组响应
type LeaveGroupResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// TogglePinRequest 置顶开关
type TogglePinRequest struct {
	GroupId int64 `json:"group_id"`
	Pinned  bool  `json:"pinned"`
}

// TogglePinResponse 置顶开关响应
type TogglePinResponse struct {
	Success bool       `json:"success"`
	Message string     `json:"message"`
	Group   *GroupInfo `json:"group"`
}

// DisbandGroupRequest 解散群组
type DisbandGroupRequest struct {
	GroupId int64 `json:"group_id"`
}

// DisbandGroupResponse 解散群组响应
type DisbandGroupResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// CreateInviteRequest 生成邀请码。ExpiresInDays为0用默认有效期，
// 负数表示永不过期；MaxUses为0表示不限次数。
type CreateInviteRequest struct {
	GroupId       int64 `json:"group_id"`
	ExpiresInDays int   `json:"expires_in_days"`
	MaxUses       int32 `json:"max_uses"`
}

// CreateInviteResponse 生成邀请码响应
type CreateInviteResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Invite  *InviteInfo `json:"invite"`
}

// RedeemInviteRequest 兑换邀请码
type RedeemInviteRequest struct {
	Code        string `json:"code"`
	DisplayName string `json:"display_name"`
	Avatar      string `json:"avatar"`
}

// RedeemInviteResponse 兑换邀请码响应
type RedeemInviteResponse struct {
	Success bool       `json:"success"`
	Message string     `json:"message"`
	Group   *GroupInfo `json:"group"`
}

// SetPresenceRequest 在线状态上报
type SetPresenceRequest struct {
	Online bool `json:"online"`
}

// SetPresenceResponse 在线状态上报响应
type SetPresenceResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// GroupActivityRequest 群组活动流水查询
type GroupActivityRequest struct {
	GroupId int64 `json:"group_id"`
	Limit   int64 `json:"limit"`
}

// GroupActivityResponse 群组活动流水响应
type GroupActivityResponse struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Events  []*GroupEventInfo `json:"events"`
}
