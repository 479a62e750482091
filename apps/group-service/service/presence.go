package service

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"gostudy-social/pkg/logger"
	"gostudy-social/pkg/telemetry"
)

// SetPresence 更新用户在线状态。尽力而为：失败只记日志不向调用方报错，
// 异常断开后残留的在线标记靠Redis键过期兜底。
func (s *Service) SetPresence(ctx context.Context, userID int64, online bool) {
	ctx, span := telemetry.StartSpan(ctx, "group.service.SetPresence")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("user.id", userID),
		attribute.Bool("presence.online", online),
	)

	now := time.Now()
	if err := s.dao.SetUserOnline(ctx, userID, online, now); err != nil {
		s.logger.Warn(ctx, "Failed to update online flag",
			logger.F("userID", userID),
			logger.F("online", online),
			logger.F("error", err.Error()))
	}

	if s.redis == nil {
		return
	}
	key := presenceKey(userID)
	if online {
		if err := s.redis.Set(ctx, key, now.Unix(), s.cfg.PresenceTTL); err != nil {
			s.logger.Warn(ctx, "Failed to set presence key",
				logger.F("userID", userID),
				logger.F("error", err.Error()))
		}
	} else {
		if err := s.redis.Del(ctx, key); err != nil {
			s.logger.Warn(ctx, "Failed to delete presence key",
				logger.F("userID", userID),
				logger.F("error", err.Error()))
		}
	}
}

func presenceKey(userID int64) string {
	return fmt.Sprintf("presence:%d", userID)
}
