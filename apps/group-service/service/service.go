package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"gostudy-social/apps/group-service/dao"
	"gostudy-social/apps/group-service/model"
	"gostudy-social/apps/group-service/query"
	tracecontext "gostudy-social/pkg/context"
	"gostudy-social/pkg/kafka"
	"gostudy-social/pkg/logger"
	"gostudy-social/pkg/redis"
	"gostudy-social/pkg/telemetry"
)

// ServiceConfig 群组服务配置
type ServiceConfig struct {
	InviteBaseURL     string
	DefaultExpireDays int
	PresenceTTL       time.Duration
	KafkaTopic        string
}

// Service 群组服务，持有本地快照并与权威存储同步。
// 写操作先乐观更新快照，持久化失败时回滚；
// 变更通知触发的Resync会用权威数据整体替换快照。
type Service struct {
	dao      dao.GroupDAO
	events   dao.EventDAO
	redis    *redis.RedisClient
	kafka    *kafka.Producer
	feed     ChangeFeed
	snapshot *SnapshotStore
	syncer   *Syncer
	logger   logger.Logger
	cfg      ServiceConfig
}

// NewService 创建群组服务实例
func NewService(groupDAO dao.GroupDAO, eventDAO dao.EventDAO, redisClient *redis.RedisClient, kafkaProducer *kafka.Producer, feed ChangeFeed, log logger.Logger, cfg ServiceConfig) *Service {
	s := &Service{
		dao:      groupDAO,
		events:   eventDAO,
		redis:    redisClient,
		kafka:    kafkaProducer,
		feed:     feed,
		snapshot: NewSnapshotStore(),
		logger:   log,
		cfg:      cfg,
	}
	s.syncer = NewSyncer(feed, groupDAO.ListGroups, s.snapshot, log)
	return s
}

// Syncer 实时同步器，由启动流程负责订阅和释放
func (s *Service) Syncer() *Syncer {
	return s.syncer
}

// Snapshot 当前内存快照
func (s *Service) Snapshot() *SnapshotStore {
	return s.snapshot
}

// GetGroups 按范围、关键词、排序键查询群组列表
func (s *Service) GetGroups(ctx context.Context, userID int64, scope, keyword, sortKey string) ([]*model.Group, error) {
	ctx, span := telemetry.StartSpan(ctx, "group.service.GetGroups")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("user.id", userID),
		attribute.String("query.scope", scope),
		attribute.String("query.sort", sortKey),
	)

	groups, err := s.currentGroups(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load groups")
		return nil, fmt.Errorf("获取群组列表失败: %v", err)
	}

	groups = query.FilterByMembership(groups, scope, userID)
	groups = query.Search(groups, keyword)
	groups = query.Sort(groups, sortKey)

	span.SetAttributes(attribute.Int("result.count", len(groups)))
	return groups, nil
}

// GetGroupStats 计算当前快照的聚合统计
func (s *Service) GetGroupStats(ctx context.Context, userID int64) (*model.GroupStats, error) {
	ctx, span := telemetry.StartSpan(ctx, "group.service.GetGroupStats")
	defer span.End()

	groups, err := s.currentGroups(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load groups")
		return nil, fmt.Errorf("获取群组统计失败: %v", err)
	}
	return query.Stats(groups, userID), nil
}

// CreateGroup 创建群组，创建者成为唯一群主
func (s *Service) CreateGroup(ctx context.Context, draft *model.GroupDraft) (*model.Group, error) {
	ctx, span := telemetry.StartSpan(ctx, "group.service.CreateGroup")
	defer span.End()
	span.SetAttributes(
		attribute.String("group.name", draft.Name),
		attribute.Int64("group.creator_id", draft.CreatorID),
		attribute.Bool("group.is_private", draft.IsPrivate),
	)
	ctx = tracecontext.WithUserID(ctx, draft.CreatorID)

	if err := validateDraft(draft); err != nil {
		span.SetStatus(codes.Error, "draft validation failed")
		return nil, err
	}

	now := time.Now()
	group := &model.Group{
		Name:         draft.Name,
		Description:  draft.Description,
		Category:     draft.Category,
		Color:        draft.Color,
		Icon:         draft.Icon,
		Avatar:       draft.Avatar,
		CourseID:     draft.CourseID,
		CourseName:   draft.CourseName,
		CreatorID:    draft.CreatorID,
		MemberCount:  1,
		MaxMembers:   draft.MaxMembers,
		IsPrivate:    draft.IsPrivate,
		LastActivity: &now,
	}
	owner := &model.GroupMember{
		UserID:       draft.CreatorID,
		DisplayName:  draft.CreatorName,
		Role:         model.RoleOwner,
		Online:       true,
		LastActiveAt: now,
	}

	if err := s.dao.CreateGroup(ctx, group, owner); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create group")
		return nil, fmt.Errorf("创建群组失败: %v", err)
	}

	ctx = tracecontext.WithGroupID(ctx, group.ID)
	span.SetAttributes(attribute.Int64("group.id", group.ID))

	s.snapshot.ApplyGroup(group)
	s.emitEvent(ctx, group.ID, draft.CreatorID, model.EventGroupCreated)
	s.publishChange(ctx, model.EventGroupCreated, group.ID)

	s.logger.Info(ctx, "Group created",
		logger.F("groupID", group.ID),
		logger.F("name", group.Name),
		logger.F("creatorID", draft.CreatorID))
	return group, nil
}

// JoinGroup 加入群组。先乐观更新快照，持久化失败时回滚。
func (s *Service) JoinGroup(ctx context.Context, groupID, userID int64, displayName, avatar string) (*model.Group, error) {
	ctx, span := telemetry.StartSpan(ctx, "group.service.JoinGroup")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("group.id", groupID),
		attribute.Int64("user.id", userID),
	)
	ctx = tracecontext.WithUserID(ctx, userID)
	ctx = tracecontext.WithGroupID(ctx, groupID)

	// 快照上的前置检查，确定会失败的请求不必下到存储层
	if g, ok := s.snapshot.Get(groupID); ok {
		if g.MemberFor(userID) != nil {
			span.SetStatus(codes.Error, "already a member")
			return nil, model.ErrAlreadyMember
		}
		if g.MemberCount >= g.MaxMembers {
			span.SetStatus(codes.Error, "group is full")
			return nil, model.ErrGroupFull
		}
	}

	now := time.Now()
	member := &model.GroupMember{
		GroupID:      groupID,
		UserID:       userID,
		DisplayName:  displayName,
		Avatar:       avatar,
		Role:         model.RoleMember,
		Online:       true,
		LastActiveAt: now,
		JoinedAt:     now,
	}

	s.snapshot.ApplyJoin(groupID, member)
	if err := s.dao.AddMember(ctx, member); err != nil {
		s.snapshot.RollbackJoin(groupID, userID)
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to join group")
		if model.IsPolicyError(err) {
			return nil, err
		}
		return nil, fmt.Errorf("加入群组失败: %v", err)
	}

	if err := s.dao.TouchActivity(ctx, groupID, now); err != nil {
		s.logger.Warn(ctx, "Failed to touch group activity", logger.F("groupID", groupID), logger.F("error", err.Error()))
	}
	s.snapshot.TouchActivity(groupID, now)
	s.emitEvent(ctx, groupID, userID, model.EventMemberJoined)
	s.publishChange(ctx, model.EventMemberJoined, groupID)

	s.logger.Info(ctx, "User joined group",
		logger.F("groupID", groupID),
		logger.F("userID", userID))
	return s.refreshGroup(ctx, groupID)
}

// LeaveGroup 退出群组。群主退出时把群主转给最早加入的其他成员，
// 协管员优先；没有其他成员可接任时拒绝退出。
func (s *Service) LeaveGroup(ctx context.Context, groupID, userID int64) error {
	ctx, span := telemetry.StartSpan(ctx, "group.service.LeaveGroup")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("group.id", groupID),
		attribute.Int64("user.id", userID),
	)
	ctx = tracecontext.WithUserID(ctx, userID)
	ctx = tracecontext.WithGroupID(ctx, groupID)

	group, err := s.dao.GetGroup(ctx, groupID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get group")
		if model.IsPolicyError(err) {
			return err
		}
		return fmt.Errorf("退出群组失败: %v", err)
	}

	member := group.MemberFor(userID)
	if member == nil {
		span.SetStatus(codes.Error, "not a member")
		return model.ErrNotMember
	}

	var promoteUserID int64
	if member.Role == model.RoleOwner {
		successor := pickSuccessor(group.Members, userID)
		if successor == nil {
			span.SetStatus(codes.Error, "sole owner cannot leave")
			return model.ErrOwnerCannotLeave
		}
		promoteUserID = successor.UserID
		span.SetAttributes(attribute.Int64("group.promoted_user_id", promoteUserID))
	}

	removed := s.snapshot.ApplyLeave(groupID, userID)
	if err := s.dao.RemoveMember(ctx, groupID, userID, promoteUserID); err != nil {
		s.snapshot.RollbackLeave(groupID, removed)
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to leave group")
		if model.IsPolicyError(err) {
			return err
		}
		return fmt.Errorf("退出群组失败: %v", err)
	}

	s.emitEvent(ctx, groupID, userID, model.EventMemberLeft)
	s.publishChange(ctx, model.EventMemberLeft, groupID)

	s.logger.Info(ctx, "User left group",
		logger.F("groupID", groupID),
		logger.F("userID", userID),
		logger.F("promotedUserID", promoteUserID))
	return nil
}

// TogglePin 置顶开关，只影响调用者自己的列表，幂等
func (s *Service) TogglePin(ctx context.Context, groupID, userID int64, pinned bool) (*model.Group, error) {
	ctx, span := telemetry.StartSpan(ctx, "group.service.TogglePin")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("group.id", groupID),
		attribute.Int64("user.id", userID),
		attribute.Bool("pin.value", pinned),
	)

	if err := s.dao.UpdateMemberFlag(ctx, groupID, userID, "pinned", pinned); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to toggle pin")
		if model.IsPolicyError(err) {
			return nil, err
		}
		return nil, fmt.Errorf("更新置顶状态失败: %v", err)
	}

	s.snapshot.ApplyPin(groupID, userID, pinned)
	return s.refreshGroup(ctx, groupID)
}

// DisbandGroup 解散群组，仅群主可操作
func (s *Service) DisbandGroup(ctx context.Context, groupID, userID int64) error {
	ctx, span := telemetry.StartSpan(ctx, "group.service.DisbandGroup")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("group.id", groupID),
		attribute.Int64("user.id", userID),
	)
	ctx = tracecontext.WithUserID(ctx, userID)
	ctx = tracecontext.WithGroupID(ctx, groupID)

	member, err := s.dao.GetMember(ctx, groupID, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get member")
		if model.IsPolicyError(err) {
			return err
		}
		return fmt.Errorf("解散群组失败: %v", err)
	}
	if member.Role != model.RoleOwner {
		span.SetStatus(codes.Error, "not the owner")
		return model.ErrNotOwner
	}

	if err := s.dao.DeleteGroup(ctx, groupID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to delete group")
		return fmt.Errorf("解散群组失败: %v", err)
	}

	s.snapshot.RemoveGroup(groupID)
	s.emitEvent(ctx, groupID, userID, model.EventGroupDisbanded)
	s.publishChange(ctx, model.EventGroupDisbanded, groupID)

	s.logger.Info(ctx, "Group disbanded",
		logger.F("groupID", groupID),
		logger.F("userID", userID))
	return nil
}

// GetGroupActivity 查询群组最近的活动事件流水
func (s *Service) GetGroupActivity(ctx context.Context, groupID int64, limit int64) ([]*model.GroupEvent, error) {
	ctx, span := telemetry.StartSpan(ctx, "group.service.GetGroupActivity")
	defer span.End()
	span.SetAttributes(attribute.Int64("group.id", groupID))

	events, err := s.events.ListGroupEvents(ctx, groupID, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list events")
		return nil, fmt.Errorf("获取群组活动记录失败: %v", err)
	}
	return events, nil
}

// currentGroups 读取当前快照，快照未加载时从权威存储拉取一次
func (s *Service) currentGroups(ctx context.Context) ([]*model.Group, error) {
	groups := s.snapshot.Groups()
	if len(groups) > 0 {
		return groups, nil
	}

	groups, err := s.dao.ListGroups(ctx)
	if err != nil {
		return nil, err
	}
	s.snapshot.Replace(groups)
	return groups, nil
}

// refreshGroup 回读持久化后的群组并写回快照
func (s *Service) refreshGroup(ctx context.Context, groupID int64) (*model.Group, error) {
	group, err := s.dao.GetGroup(ctx, groupID)
	if err != nil {
		if model.IsPolicyError(err) {
			return nil, err
		}
		return nil, fmt.Errorf("读取群组失败: %v", err)
	}
	s.snapshot.ApplyGroup(group)
	return group, nil
}

// pickSuccessor 选出接任群主的成员：协管员优先，同角色按加入时间最早
func pickSuccessor(members []*model.GroupMember, leavingUserID int64) *model.GroupMember {
	var successor *model.GroupMember
	better := func(candidate, current *model.GroupMember) bool {
		if current == nil {
			return true
		}
		cMod := candidate.Role == model.RoleModerator
		sMod := current.Role == model.RoleModerator
		if cMod != sMod {
			return cMod
		}
		if !candidate.JoinedAt.Equal(current.JoinedAt) {
			return candidate.JoinedAt.Before(current.JoinedAt)
		}
		return candidate.UserID < current.UserID
	}
	for _, m := range members {
		if m.UserID == leavingUserID {
			continue
		}
		if better(m, successor) {
			successor = m
		}
	}
	return successor
}

// validateDraft 创建参数校验，在任何I/O之前完成
func validateDraft(draft *model.GroupDraft) error {
	nameLen := len([]rune(draft.Name))
	if nameLen < model.MinNameLength || nameLen > model.MaxNameLength {
		return model.ErrInvalidName
	}
	if len([]rune(draft.Description)) > model.MaxDescriptionLength {
		return model.ErrInvalidDescription
	}
	if draft.MaxMembers == 0 {
		draft.MaxMembers = model.DefaultMaxMembers
	}
	if draft.MaxMembers < model.MinCapacity || draft.MaxMembers > model.MaxCapacity {
		return model.ErrInvalidCapacity
	}
	if draft.Category == "" {
		draft.Category = model.CategoryStudy
	}
	switch draft.Category {
	case model.CategoryStudy, model.CategoryProject, model.CategoryReview, model.CategoryDiscussion:
	default:
		return model.ErrInvalidCategory
	}
	return nil
}

// emitEvent 记录活动事件到审计流水并投递到消息队列，尽力而为
func (s *Service) emitEvent(ctx context.Context, groupID, userID int64, eventType string) {
	event := &model.GroupEvent{
		GroupID:   groupID,
		UserID:    userID,
		Type:      eventType,
		CreatedAt: time.Now(),
	}

	if s.events != nil {
		if err := s.events.RecordEvent(ctx, event); err != nil {
			s.logger.Warn(ctx, "Failed to record group event",
				logger.F("groupID", groupID),
				logger.F("type", eventType),
				logger.F("error", err.Error()))
		}
	}

	if s.kafka != nil && s.cfg.KafkaTopic != "" {
		payload, err := json.Marshal(event)
		if err != nil {
			s.logger.Warn(ctx, "Failed to marshal group event", logger.F("error", err.Error()))
			return
		}
		key := []byte(fmt.Sprintf("%d", groupID))
		if err := s.kafka.SendMessage(s.cfg.KafkaTopic, key, payload); err != nil {
			s.logger.Warn(ctx, "Failed to send group event to kafka",
				logger.F("topic", s.cfg.KafkaTopic),
				logger.F("error", err.Error()))
		}
	}
}

// publishChange 通知变更通道，失败只记日志，由下一次变更或手动刷新兜底
func (s *Service) publishChange(ctx context.Context, eventType string, groupID int64) {
	if s.feed == nil {
		return
	}
	payload := fmt.Sprintf("%s:%d", eventType, groupID)
	if err := s.feed.Publish(ctx, payload); err != nil {
		s.logger.Warn(ctx, "Failed to publish change notification",
			logger.F("payload", payload),
			logger.F("error", err.Error()))
	}
}
