package dao

import (
	"context"
	"time"

	"gostudy-social/apps/group-service/model"
)

// GroupDAO 群组数据访问接口
type GroupDAO interface {
	// 群组管理
	CreateGroup(ctx context.Context, group *model.Group, owner *model.GroupMember) error
	GetGroup(ctx context.Context, groupID int64) (*model.Group, error)
	ListGroups(ctx context.Context) ([]*model.Group, error)
	DeleteGroup(ctx context.Context, groupID int64) error
	TouchActivity(ctx context.Context, groupID int64, at time.Time) error

	// 群成员管理
	AddMember(ctx context.Context, member *model.GroupMember) error
	RemoveMember(ctx context.Context, groupID, userID, promoteUserID int64) error
	GetMember(ctx context.Context, groupID, userID int64) (*model.GroupMember, error)
	IsMember(ctx context.Context, groupID, userID int64) (bool, error)
	UpdateMemberFlag(ctx context.Context, groupID, userID int64, field string, value interface{}) error
	SetUserOnline(ctx context.Context, userID int64, online bool, at time.Time) error

	// 邀请码管理
	CreateInvite(ctx context.Context, invite *model.GroupInvite) error
	GetInviteByCode(ctx context.Context, code string) (*model.GroupInvite, error)
	RedeemInvite(ctx context.Context, code string, member *model.GroupMember) error
}

// EventDAO 群组活动事件访问接口，只追加
type EventDAO interface {
	RecordEvent(ctx context.Context, event *model.GroupEvent) error
	ListGroupEvents(ctx context.Context, groupID int64, limit int64) ([]*model.GroupEvent, error)
}
