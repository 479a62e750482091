package model

import "time"

// 成员角色，权限从高到低
const (
	RoleOwner     = "owner"
	RoleModerator = "moderator"
	RoleMember    = "member"
)

// 群组类别
const (
	CategoryStudy      = "study"
	CategoryProject    = "project"
	CategoryReview     = "review"
	CategoryDiscussion = "discussion"
)

// 成员过滤范围
const (
	ScopeAll      = "all"
	ScopeMyGroups = "my-groups"
	ScopePublic   = "public"
)

// 排序键
const (
	SortRecent   = "recent"
	SortMembers  = "members"
	SortActivity = "activity"
	SortName     = "name"
)

// 创建群组的参数边界
const (
	MinNameLength        = 3
	MaxNameLength        = 50
	MaxDescriptionLength = 200
	MinCapacity          = 5
	MaxCapacity          = 50
	DefaultMaxMembers    = 20
)

// Group 学习小组
type Group struct {
	ID           int64      `json:"id" gorm:"primaryKey;autoIncrement"`
	Name         string     `json:"name" gorm:"type:varchar(50);not null;index"`
	Description  string     `json:"description" gorm:"type:varchar(200)"`
	Category     string     `json:"category" gorm:"type:varchar(20);default:'study';index"`
	Color        string     `json:"color" gorm:"type:varchar(20)"`
	Icon         string     `json:"icon" gorm:"type:varchar(50)"`
	Avatar       string     `json:"avatar" gorm:"type:varchar(500)"`
	CourseID     *int64     `json:"course_id" gorm:"index"`
	CourseName   string     `json:"course_name" gorm:"type:varchar(100)"`
	CreatorID    int64      `json:"creator_id" gorm:"not null;index"`
	MemberCount  int32      `json:"member_count" gorm:"default:1"`
	MaxMembers   int32      `json:"max_members" gorm:"default:20"`
	IsPrivate    bool       `json:"is_private" gorm:"default:false"`
	UnreadCount  int32      `json:"unread_messages" gorm:"default:0"`
	LastActivity *time.Time `json:"last_activity"`
	CreatedAt    time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time  `json:"updated_at" gorm:"autoUpdateTime"`

	Members []*GroupMember `json:"members" gorm:"foreignKey:GroupID"`
}

// TableName .
func (Group) TableName() string {
	return "groups"
}

// MemberFor 返回指定用户的成员记录，不存在返回nil
func (g *Group) MemberFor(userID int64) *GroupMember {
	for _, m := range g.Members {
		if m.UserID == userID {
			return m
		}
	}
	return nil
}

// GroupMember 群成员
type GroupMember struct {
	ID           int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	GroupID      int64     `json:"group_id" gorm:"not null;uniqueIndex:idx_group_user"`
	UserID       int64     `json:"user_id" gorm:"not null;uniqueIndex:idx_group_user;index"`
	DisplayName  string    `json:"display_name" gorm:"type:varchar(100)"`
	Avatar       string    `json:"avatar" gorm:"type:varchar(500)"`
	Role         string    `json:"role" gorm:"type:varchar(20);default:'member'"` // owner, moderator, member
	Pinned       bool      `json:"pinned" gorm:"default:false"`
	Online       bool      `json:"online" gorm:"default:false"`
	LastActiveAt time.Time `json:"last_active_at"`
	JoinedAt     time.Time `json:"joined_at" gorm:"autoCreateTime"`
}

// TableName .
func (GroupMember) TableName() string {
	return "group_members"
}

// GroupInvite 群邀请码，过期或用尽后不可用但保留作审计
type GroupInvite struct {
	ID        int64      `json:"id" gorm:"primaryKey;autoIncrement"`
	GroupID   int64      `json:"group_id" gorm:"not null;index"`
	Code      string     `json:"code" gorm:"type:varchar(64);uniqueIndex;not null"`
	CreatorID int64      `json:"creator_id" gorm:"not null"`
	ExpiresAt *time.Time `json:"expires_at"`         // nil表示永不过期
	MaxUses   *int32     `json:"max_uses"`           // nil表示不限次数
	UseCount  int32      `json:"use_count" gorm:"default:0"`
	CreatedAt time.Time  `json:"created_at" gorm:"autoCreateTime"`
}

// TableName .
func (GroupInvite) TableName() string {
	return "group_invites"
}

// Expired 邀请码是否已过期
func (i *GroupInvite) Expired(now time.Time) bool {
	return i.ExpiresAt != nil && !now.Before(*i.ExpiresAt)
}

// Exhausted 邀请码使用次数是否已用尽
func (i *GroupInvite) Exhausted() bool {
	return i.MaxUses != nil && i.UseCount >= *i.MaxUses
}

// GroupDraft 创建群组的输入
type GroupDraft struct {
	Name        string
	Description string
	Category    string
	Color       string
	Icon        string
	Avatar      string
	CourseID    *int64
	CourseName  string
	IsPrivate   bool
	MaxMembers  int32
	CreatorID   int64
	CreatorName string
}

// GroupStats 聚合统计，按查询周期重算，不做缓存
type GroupStats struct {
	TotalGroups   int32 `json:"total_groups"`
	MyGroups      int32 `json:"my_groups"`
	PublicGroups  int32 `json:"public_groups"`
	TotalMembers  int32 `json:"total_members"`
	OnlineMembers int32 `json:"online_members"`
}

// GroupEvent 群组活动事件，追加写入作为审计流水
type GroupEvent struct {
	ID        string    `json:"id" bson:"_id,omitempty"`
	GroupID   int64     `json:"group_id" bson:"group_id"`
	UserID    int64     `json:"user_id" bson:"user_id"`
	Type      string    `json:"type" bson:"type"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// 事件类型
const (
	EventGroupCreated   = "group.created"
	EventGroupDisbanded = "group.disbanded"
	EventMemberJoined   = "member.joined"
	EventMemberLeft     = "member.left"
	EventInviteCreated  = "invite.created"
	EventInviteRedeemed = "invite.redeemed"
)
