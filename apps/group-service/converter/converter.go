package converter

import (
	"gostudy-social/api/rest"
	"gostudy-social/apps/group-service/model"
)

// Converter 转换器，Model到HTTP响应结构的转换。
// 群组信息是按调用者视角的：置顶标记取调用者自己的成员记录。
type Converter struct{}

// NewConverter 创建转换器实例
func NewConverter() *Converter {
	return &Converter{}
}

// GroupToInfo 将群组Model转换为响应结构
func (c *Converter) GroupToInfo(group *model.Group, viewerID int64) *rest.GroupInfo {
	if group == nil {
		return nil
	}

	info := &rest.GroupInfo{
		Id:             group.ID,
		Name:           group.Name,
		Description:    group.Description,
		Category:       group.Category,
		Color:          group.Color,
		Icon:           group.Icon,
		Avatar:         group.Avatar,
		CourseName:     group.CourseName,
		CreatorId:      group.CreatorID,
		MemberCount:    group.MemberCount,
		MaxMembers:     group.MaxMembers,
		IsPrivate:      group.IsPrivate,
		UnreadMessages: group.UnreadCount,
		CreatedAt:      group.CreatedAt.Unix(),
		UpdatedAt:      group.UpdatedAt.Unix(),
		Members:        make([]*rest.GroupMemberInfo, 0, len(group.Members)),
	}
	if group.CourseID != nil {
		info.CourseId = *group.CourseID
	}
	if group.LastActivity != nil {
		info.LastActivity = group.LastActivity.Unix()
	}

	for _, m := range group.Members {
		if m.Online {
			info.OnlineCount++
		}
		if m.UserID == viewerID {
			info.Pinned = m.Pinned
		}
		info.Members = append(info.Members, c.MemberToInfo(m))
	}
	return info
}

// GroupsToInfo 将群组Model列表转换为响应结构列表
func (c *Converter) GroupsToInfo(groups []*model.Group, viewerID int64) []*rest.GroupInfo {
	result := make([]*rest.GroupInfo, 0, len(groups))
	for _, group := range groups {
		if info := c.GroupToInfo(group, viewerID); info != nil {
			result = append(result, info)
		}
	}
	return result
}

// MemberToInfo 将群成员Model转换为响应结构
func (c *Converter) MemberToInfo(member *model.GroupMember) *rest.GroupMemberInfo {
	if member == nil {
		return nil
	}
	info := &rest.GroupMemberInfo{
		UserId:      member.UserID,
		GroupId:     member.GroupID,
		DisplayName: member.DisplayName,
		Avatar:      member.Avatar,
		Role:        member.Role,
		Pinned:      member.Pinned,
		Online:      member.Online,
		JoinedAt:    member.JoinedAt.Unix(),
	}
	if !member.LastActiveAt.IsZero() {
		info.LastActiveAt = member.LastActiveAt.Unix()
	}
	return info
}

// StatsToInfo 将统计Model转换为响应结构
func (c *Converter) StatsToInfo(stats *model.GroupStats) *rest.GroupStatsInfo {
	if stats == nil {
		return nil
	}
	return &rest.GroupStatsInfo{
		TotalGroups:   stats.TotalGroups,
		MyGroups:      stats.MyGroups,
		PublicGroups:  stats.PublicGroups,
		TotalMembers:  stats.TotalMembers,
		OnlineMembers: stats.OnlineMembers,
	}
}

// InviteToInfo 将邀请码Model转换为响应结构
func (c *Converter) InviteToInfo(invite *model.GroupInvite, link string) *rest.InviteInfo {
	if invite == nil {
		return nil
	}
	info := &rest.InviteInfo{
		Code:     invite.Code,
		GroupId:  invite.GroupID,
		UseCount: invite.UseCount,
		Link:     link,
	}
	if invite.ExpiresAt != nil {
		info.ExpiresAt = invite.ExpiresAt.Unix()
	}
	if invite.MaxUses != nil {
		info.MaxUses = *invite.MaxUses
	}
	return info
}

// EventsToInfo 将事件Model列表转换为响应结构列表
func (c *Converter) EventsToInfo(events []*model.GroupEvent) []*rest.GroupEventInfo {
	result := make([]*rest.GroupEventInfo, 0, len(events))
	for _, e := range events {
		result = append(result, &rest.GroupEventInfo{
			GroupId:   e.GroupID,
			UserId:    e.UserID,
			Type:      e.Type,
			CreatedAt: e.CreatedAt.Unix(),
		})
	}
	return result
}
