package dao

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"gostudy-social/apps/group-service/model"
	"gostudy-social/pkg/database"
)

// 允许通过UpdateMemberFlag修改的成员单字段
var memberFlagFields = map[string]bool{
	"pinned": true,
	"online": true,
}

// groupDAO .
type groupDAO struct {
	db *database.PostgreSQL
}

// NewGroupDAO 创建群组DAO
func NewGroupDAO(db *database.PostgreSQL) GroupDAO {
	return &groupDAO{db: db}
}

// CreateGroup 创建群组并写入群主成员记录，同一事务
func (d *groupDAO) CreateGroup(ctx context.Context, group *model.Group, owner *model.GroupMember) error {
	return d.db.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(group).Error; err != nil {
			return fmt.Errorf("failed to create group: %w", err)
		}
		owner.GroupID = group.ID
		if err := tx.Create(owner).Error; err != nil {
			return fmt.Errorf("failed to add owner as member: %w", err)
		}
		group.Members = []*model.GroupMember{owner}
		return nil
	})
}

// GetGroup 获取群组信息，带成员列表
func (d *groupDAO) GetGroup(ctx context.Context, groupID int64) (*model.Group, error) {
	var group model.Group
	db := d.db.GetDB()
	if err := db.WithContext(ctx).Preload("Members").First(&group, groupID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrGroupNotFound
		}
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	return &group, nil
}

// ListGroups 获取全部群组，带成员列表，按ID升序保证确定性
func (d *groupDAO) ListGroups(ctx context.Context) ([]*model.Group, error) {
	var groups []*model.Group
	db := d.db.GetDB()
	if err := db.WithContext(ctx).Preload("Members").Order("id ASC").Find(&groups).Error; err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	return groups, nil
}

// DeleteGroup 删除群组及其成员，邀请码保留作审计流水
func (d *groupDAO) DeleteGroup(ctx context.Context, groupID int64) error {
	return d.db.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("group_id = ?", groupID).Delete(&model.GroupMember{}).Error; err != nil {
			return fmt.Errorf("failed to delete group members: %w", err)
		}
		if err := tx.Delete(&model.Group{}, groupID).Error; err != nil {
			return fmt.Errorf("failed to delete group: %w", err)
		}
		return nil
	})
}

// TouchActivity 更新群组最近活跃时间
func (d *groupDAO) TouchActivity(ctx context.Context, groupID int64, at time.Time) error {
	db := d.db.GetDB()
	if err := db.WithContext(ctx).Model(&model.Group{}).
		Where("id = ?", groupID).Update("last_activity", at).Error; err != nil {
		return fmt.Errorf("failed to touch group activity: %w", err)
	}
	return nil
}

// AddMember 添加群成员，人数计数用条件更新保证不超上限
func (d *groupDAO) AddMember(ctx context.Context, member *model.GroupMember) error {
	return d.db.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&model.GroupMember{}).
			Where("group_id = ? AND user_id = ?", member.GroupID, member.UserID).
			Count(&existing).Error; err != nil {
			return fmt.Errorf("failed to check membership: %w", err)
		}
		if existing > 0 {
			return model.ErrAlreadyMember
		}

		// member_count < max_members 条件更新，并发加入时输家0行受影响
		res := tx.Model(&model.Group{}).
			Where("id = ? AND member_count < max_members", member.GroupID).
			UpdateColumn("member_count", gorm.Expr("member_count + 1"))
		if res.Error != nil {
			return fmt.Errorf("failed to increment member count: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&model.Group{}).Where("id = ?", member.GroupID).Count(&count).Error; err != nil {
				return fmt.Errorf("failed to check group: %w", err)
			}
			if count == 0 {
				return model.ErrGroupNotFound
			}
			return model.ErrGroupFull
		}

		if err := tx.Create(member).Error; err != nil {
			return fmt.Errorf("failed to add member: %w", err)
		}
		return nil
	})
}

// RemoveMember 移除群成员并递减计数，promoteUserID大于0时同事务内转移群主
func (d *groupDAO) RemoveMember(ctx context.Context, groupID, userID, promoteUserID int64) error {
	return d.db.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("group_id = ? AND user_id = ?", groupID, userID).Delete(&model.GroupMember{})
		if res.Error != nil {
			return fmt.Errorf("failed to remove member: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return model.ErrNotMember
		}

		if err := tx.Model(&model.Group{}).
			Where("id = ? AND member_count > 0", groupID).
			UpdateColumn("member_count", gorm.Expr("member_count - 1")).Error; err != nil {
			return fmt.Errorf("failed to decrement member count: %w", err)
		}

		if promoteUserID > 0 {
			if err := tx.Model(&model.GroupMember{}).
				Where("group_id = ? AND user_id = ?", groupID, promoteUserID).
				Update("role", model.RoleOwner).Error; err != nil {
				return fmt.Errorf("failed to promote member: %w", err)
			}
		}
		return nil
	})
}

// GetMember 获取群成员信息
func (d *groupDAO) GetMember(ctx context.Context, groupID, userID int64) (*model.GroupMember, error) {
	var member model.GroupMember
	db := d.db.GetDB()
	if err := db.WithContext(ctx).Where("group_id = ? AND user_id = ?", groupID, userID).
		First(&member).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrNotMember
		}
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	return &member, nil
}

// IsMember 检查是否为群成员
func (d *groupDAO) IsMember(ctx context.Context, groupID, userID int64) (bool, error) {
	var count int64
	db := d.db.GetDB()
	if err := db.WithContext(ctx).Model(&model.GroupMember{}).
		Where("group_id = ? AND user_id = ?", groupID, userID).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return count > 0, nil
}

// UpdateMemberFlag 更新成员单字段开关（置顶、在线）
func (d *groupDAO) UpdateMemberFlag(ctx context.Context, groupID, userID int64, field string, value interface{}) error {
	if !memberFlagFields[field] {
		return fmt.Errorf("unsupported member flag: %s", field)
	}
	db := d.db.GetDB()
	res := db.WithContext(ctx).Model(&model.GroupMember{}).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Update(field, value)
	if res.Error != nil {
		return fmt.Errorf("failed to update member %s: %w", field, res.Error)
	}
	if res.RowsAffected == 0 {
		return model.ErrNotMember
	}
	return nil
}

// SetUserOnline 更新用户在所有群的在线标记和最近活跃时间
func (d *groupDAO) SetUserOnline(ctx context.Context, userID int64, online bool, at time.Time) error {
	db := d.db.GetDB()
	if err := db.WithContext(ctx).Model(&model.GroupMember{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{"online": online, "last_active_at": at}).Error; err != nil {
		return fmt.Errorf("failed to set user online flag: %w", err)
	}
	return nil
}

// CreateInvite 创建邀请码
func (d *groupDAO) CreateInvite(ctx context.Context, invite *model.GroupInvite) error {
	db := d.db.GetDB()
	if err := db.WithContext(ctx).Create(invite).Error; err != nil {
		return fmt.Errorf("failed to create invite: %w", err)
	}
	return nil
}

// GetInviteByCode 按邀请码查询
func (d *groupDAO) GetInviteByCode(ctx context.Context, code string) (*model.GroupInvite, error) {
	var invite model.GroupInvite
	db := d.db.GetDB()
	if err := db.WithContext(ctx).Where("code = ?", code).First(&invite).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrInviteNotFound
		}
		return nil, fmt.Errorf("failed to get invite: %w", err)
	}
	return &invite, nil
}

// RedeemInvite 兑换邀请码并加入群组，单事务内完成
// use_count自增是条件更新，并发兑换最后一次使用时只有一个赢家，
// 后续的加入失败会回滚整个事务，使用次数不会凭空消耗。
func (d *groupDAO) RedeemInvite(ctx context.Context, code string, member *model.GroupMember) error {
	return d.db.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.GroupInvite{}).
			Where("code = ? AND (max_uses IS NULL OR use_count < max_uses)", code).
			UpdateColumn("use_count", gorm.Expr("use_count + 1"))
		if res.Error != nil {
			return fmt.Errorf("failed to increment invite use: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&model.GroupInvite{}).Where("code = ?", code).Count(&count).Error; err != nil {
				return fmt.Errorf("failed to check invite: %w", err)
			}
			if count == 0 {
				return model.ErrInviteNotFound
			}
			return model.ErrInviteExhausted
		}

		var existing int64
		if err := tx.Model(&model.GroupMember{}).
			Where("group_id = ? AND user_id = ?", member.GroupID, member.UserID).
			Count(&existing).Error; err != nil {
			return fmt.Errorf("failed to check membership: %w", err)
		}
		if existing > 0 {
			return model.ErrAlreadyMember
		}

		res = tx.Model(&model.Group{}).
			Where("id = ? AND member_count < max_members", member.GroupID).
			UpdateColumn("member_count", gorm.Expr("member_count + 1"))
		if res.Error != nil {
			return fmt.Errorf("failed to increment member count: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return model.ErrGroupFull
		}

		if err := tx.Create(member).Error; err != nil {
			return fmt.Errorf("failed to add member: %w", err)
		}
		return nil
	})
}
