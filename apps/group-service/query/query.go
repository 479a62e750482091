// Package query 群组快照上的纯查询函数：过滤、搜索、排序、统计。
// 所有函数不做I/O，不修改输入切片。
package query

import (
	"sort"
	"strings"

	"gostudy-social/apps/group-service/model"
)

// FilterByMembership 按范围过滤群组，不改变顺序
func FilterByMembership(groups []*model.Group, scope string, userID int64) []*model.Group {
	switch scope {
	case model.ScopeMyGroups:
		result := make([]*model.Group, 0, len(groups))
		for _, g := range groups {
			if g.MemberFor(userID) != nil {
				result = append(result, g)
			}
		}
		return result
	case model.ScopePublic:
		result := make([]*model.Group, 0, len(groups))
		for _, g := range groups {
			if !g.IsPrivate {
				result = append(result, g)
			}
		}
		return result
	default:
		return groups
	}
}

// Search 按关键词搜索群组，匹配名称、简介、课程名，不区分大小写。
// 空关键词原样返回输入。
func Search(groups []*model.Group, keyword string) []*model.Group {
	if keyword == "" {
		return groups
	}

	needle := strings.ToLower(keyword)
	result := make([]*model.Group, 0, len(groups))
	for _, g := range groups {
		if strings.Contains(strings.ToLower(g.Name), needle) ||
			strings.Contains(strings.ToLower(g.Description), needle) ||
			strings.Contains(strings.ToLower(g.CourseName), needle) {
			result = append(result, g)
		}
	}
	return result
}

// Sort 按指定键排序群组，返回新切片，平局按群组ID升序保证确定性
func Sort(groups []*model.Group, key string) []*model.Group {
	result := make([]*model.Group, len(groups))
	copy(result, groups)

	sort.SliceStable(result, func(i, j int) bool {
		a, b := result[i], result[j]
		switch key {
		case model.SortMembers:
			if a.MemberCount != b.MemberCount {
				return a.MemberCount > b.MemberCount
			}
		case model.SortActivity:
			// 没有活动记录的排最后
			switch {
			case a.LastActivity == nil && b.LastActivity == nil:
			case a.LastActivity == nil:
				return false
			case b.LastActivity == nil:
				return true
			case !a.LastActivity.Equal(*b.LastActivity):
				return a.LastActivity.After(*b.LastActivity)
			}
		case model.SortName:
			an, bn := strings.ToLower(a.Name), strings.ToLower(b.Name)
			if an != bn {
				return an < bn
			}
		default: // recent
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
		}
		return a.ID < b.ID
	})
	return result
}

// Stats 单次遍历计算聚合统计
func Stats(groups []*model.Group, userID int64) *model.GroupStats {
	stats := &model.GroupStats{}
	for _, g := range groups {
		stats.TotalGroups++
		if !g.IsPrivate {
			stats.PublicGroups++
		}
		stats.TotalMembers += g.MemberCount
		for _, m := range g.Members {
			if m.UserID == userID {
				stats.MyGroups++
			}
			if m.Online {
				stats.OnlineMembers++
			}
		}
	}
	return stats
}
