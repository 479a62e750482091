package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"gostudy-social/apps/group-service/model"
	tracecontext "gostudy-social/pkg/context"
	"gostudy-social/pkg/logger"
	"gostudy-social/pkg/telemetry"
)

const inviteCodeBytes = 16

// GenerateInvite 生成群组邀请码并返回可分享的链接。
// expiresInDays为0时使用默认有效期，负数表示永不过期；
// maxUses为0表示不限次数。
func (s *Service) GenerateInvite(ctx context.Context, groupID, userID int64, expiresInDays int, maxUses int32) (*model.GroupInvite, string, error) {
	ctx, span := telemetry.StartSpan(ctx, "group.service.GenerateInvite")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("group.id", groupID),
		attribute.Int64("user.id", userID),
		attribute.Int("invite.expires_in_days", expiresInDays),
		attribute.Int("invite.max_uses", int(maxUses)),
	)
	ctx = tracecontext.WithUserID(ctx, userID)
	ctx = tracecontext.WithGroupID(ctx, groupID)

	// 只有群成员可以生成邀请
	isMember, err := s.dao.IsMember(ctx, groupID, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to check membership")
		return nil, "", fmt.Errorf("生成邀请码失败: %v", err)
	}
	if !isMember {
		span.SetStatus(codes.Error, "not a member")
		return nil, "", model.ErrNotMember
	}

	code, err := generateInviteCode()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to generate code")
		return nil, "", fmt.Errorf("生成邀请码失败: %v", err)
	}

	invite := &model.GroupInvite{
		GroupID:   groupID,
		Code:      code,
		CreatorID: userID,
	}
	if expiresInDays == 0 {
		expiresInDays = s.cfg.DefaultExpireDays
	}
	if expiresInDays > 0 {
		expiresAt := time.Now().AddDate(0, 0, expiresInDays)
		invite.ExpiresAt = &expiresAt
	}
	if maxUses > 0 {
		invite.MaxUses = &maxUses
	}

	if err := s.dao.CreateInvite(ctx, invite); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create invite")
		return nil, "", fmt.Errorf("生成邀请码失败: %v", err)
	}

	s.emitEvent(ctx, groupID, userID, model.EventInviteCreated)

	link := fmt.Sprintf("%s/join/%s", s.cfg.InviteBaseURL, invite.Code)
	s.logger.Info(ctx, "Invite created",
		logger.F("groupID", groupID),
		logger.F("userID", userID),
		logger.F("code", invite.Code))
	return invite, link, nil
}

// RedeemInvite 兑换邀请码加入群组。
// 过期检查在这里做，次数检查和加入由存储层在单事务内原子完成。
func (s *Service) RedeemInvite(ctx context.Context, code string, userID int64, displayName, avatar string) (*model.Group, error) {
	ctx, span := telemetry.StartSpan(ctx, "group.service.RedeemInvite")
	defer span.End()
	span.SetAttributes(attribute.Int64("user.id", userID))
	ctx = tracecontext.WithUserID(ctx, userID)

	invite, err := s.dao.GetInviteByCode(ctx, code)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invite lookup failed")
		if model.IsPolicyError(err) {
			return nil, err
		}
		return nil, fmt.Errorf("兑换邀请码失败: %v", err)
	}
	if invite.Expired(time.Now()) {
		span.SetStatus(codes.Error, "invite expired")
		return nil, model.ErrInviteExpired
	}

	ctx = tracecontext.WithGroupID(ctx, invite.GroupID)
	span.SetAttributes(attribute.Int64("group.id", invite.GroupID))

	now := time.Now()
	member := &model.GroupMember{
		GroupID:      invite.GroupID,
		UserID:       userID,
		DisplayName:  displayName,
		Avatar:       avatar,
		Role:         model.RoleMember,
		Online:       true,
		LastActiveAt: now,
		JoinedAt:     now,
	}

	if err := s.dao.RedeemInvite(ctx, code, member); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to redeem invite")
		if model.IsPolicyError(err) {
			return nil, err
		}
		return nil, fmt.Errorf("兑换邀请码失败: %v", err)
	}

	if err := s.dao.TouchActivity(ctx, invite.GroupID, now); err != nil {
		s.logger.Warn(ctx, "Failed to touch group activity", logger.F("groupID", invite.GroupID), logger.F("error", err.Error()))
	}
	s.emitEvent(ctx, invite.GroupID, userID, model.EventInviteRedeemed)
	s.publishChange(ctx, model.EventMemberJoined, invite.GroupID)

	s.logger.Info(ctx, "Invite redeemed",
		logger.F("groupID", invite.GroupID),
		logger.F("userID", userID),
		logger.F("code", code))
	return s.refreshGroup(ctx, invite.GroupID)
}

// generateInviteCode 生成不可猜测的邀请码
func generateInviteCode() (string, error) {
	buf := make([]byte, inviteCodeBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
