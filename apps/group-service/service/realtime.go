package service

import (
	"context"
	"errors"
	"sync"

	goredis "github.com/go-redis/redis/v8"

	"gostudy-social/apps/group-service/model"
	"gostudy-social/pkg/logger"
	"gostudy-social/pkg/redis"
	"gostudy-social/pkg/snowflake"
)

// ErrAlreadySubscribed 同一同步器重复订阅
var ErrAlreadySubscribed = errors.New("已存在活跃的变更订阅")

// ChangeSubscription 一次已建立的变更订阅
type ChangeSubscription interface {
	// Changes 变更通知流，订阅关闭后通道关闭
	Changes() <-chan string
	Close() error
}

// ChangeFeed 群组变更通知通道
type ChangeFeed interface {
	Publish(ctx context.Context, payload string) error
	Subscribe(ctx context.Context) (ChangeSubscription, error)
}

// redisChangeFeed 基于Redis发布订阅的变更通道
type redisChangeFeed struct {
	client  *redis.RedisClient
	channel string
}

// NewRedisChangeFeed 创建Redis变更通道
func NewRedisChangeFeed(client *redis.RedisClient, channel string) ChangeFeed {
	return &redisChangeFeed{client: client, channel: channel}
}

func (f *redisChangeFeed) Publish(ctx context.Context, payload string) error {
	return f.client.Publish(ctx, f.channel, payload)
}

func (f *redisChangeFeed) Subscribe(ctx context.Context) (ChangeSubscription, error) {
	pubsub := f.client.Subscribe(ctx, f.channel)
	// 确认订阅建立，失败时立即暴露而不是静默丢消息
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, err
	}

	sub := &redisChangeSubscription{
		pubsub:  pubsub,
		changes: make(chan string, 16),
	}
	go sub.pump()
	return sub, nil
}

type redisChangeSubscription struct {
	pubsub  *goredis.PubSub
	changes chan string
}

func (s *redisChangeSubscription) pump() {
	defer close(s.changes)
	for msg := range s.pubsub.Channel() {
		s.changes <- msg.Payload
	}
}

func (s *redisChangeSubscription) Changes() <-chan string {
	return s.changes
}

func (s *redisChangeSubscription) Close() error {
	return s.pubsub.Close()
}

// 同步器状态机
type syncState int32

const (
	stateIdle syncState = iota
	stateSubscribed
	stateResyncing
)

// GroupLoader 权威群组数据加载函数
type GroupLoader func(ctx context.Context) ([]*model.Group, error)

// Syncer 实时同步器。订阅变更通道，收到通知后从权威存储
// 重新加载全部群组并整体替换快照，然后通知监听者。
// 同一实例至多持有一个订阅，Unsubscribe幂等。
type Syncer struct {
	mu        sync.Mutex
	state     syncState
	feed      ChangeFeed
	loader    GroupLoader
	store     *SnapshotStore
	logger    logger.Logger
	sub       ChangeSubscription
	listeners map[int64]func(payload string)
	done      chan struct{}
}

// NewSyncer 创建实时同步器
func NewSyncer(feed ChangeFeed, loader GroupLoader, store *SnapshotStore, log logger.Logger) *Syncer {
	return &Syncer{
		state:     stateIdle,
		feed:      feed,
		loader:    loader,
		store:     store,
		logger:    log,
		listeners: make(map[int64]func(payload string)),
	}
}

// Subscribe 建立变更订阅并先做一次全量同步。
// 已有活跃订阅时返回ErrAlreadySubscribed。
func (s *Syncer) Subscribe(ctx context.Context) error {
	s.mu.Lock()
	if s.state != stateIdle {
		s.mu.Unlock()
		return ErrAlreadySubscribed
	}

	sub, err := s.feed.Subscribe(ctx)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.sub = sub
	s.state = stateSubscribed
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	// 订阅建立后先拉一次全量，补上订阅前错过的变更
	if err := s.Resync(ctx); err != nil {
		s.logger.Error(ctx, "Initial resync failed", logger.F("error", err.Error()))
	}

	go s.run(sub, done)
	return nil
}

// Unsubscribe 释放订阅，幂等，重复调用无副作用
func (s *Syncer) Unsubscribe() {
	s.mu.Lock()
	if s.state == stateIdle {
		s.mu.Unlock()
		return
	}
	sub := s.sub
	done := s.done
	s.sub = nil
	s.state = stateIdle
	s.mu.Unlock()

	if sub != nil {
		sub.Close()
	}
	if done != nil {
		<-done
	}
}

// Subscribed 是否持有活跃订阅
func (s *Syncer) Subscribed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state != stateIdle
}

// Resync 从权威存储重新加载并整体替换快照
func (s *Syncer) Resync(ctx context.Context) error {
	s.mu.Lock()
	if s.state == stateSubscribed {
		s.state = stateResyncing
		defer func() {
			s.mu.Lock()
			if s.state == stateResyncing {
				s.state = stateSubscribed
			}
			s.mu.Unlock()
		}()
	}
	s.mu.Unlock()

	groups, err := s.loader(ctx)
	if err != nil {
		return err
	}
	s.store.Replace(groups)
	return nil
}

// AddListener 注册变更监听者，返回用于移除的监听者ID
func (s *Syncer) AddListener(fn func(payload string)) int64 {
	id := snowflake.GenerateID()
	s.mu.Lock()
	s.listeners[id] = fn
	s.mu.Unlock()
	return id
}

// RemoveListener 移除监听者，不存在的ID忽略
func (s *Syncer) RemoveListener(id int64) {
	s.mu.Lock()
	delete(s.listeners, id)
	s.mu.Unlock()
}

func (s *Syncer) run(sub ChangeSubscription, done chan struct{}) {
	defer close(done)
	ctx := context.Background()

	for payload := range sub.Changes() {
		if err := s.Resync(ctx); err != nil {
			s.logger.Error(ctx, "Resync after change notification failed",
				logger.F("payload", payload),
				logger.F("error", err.Error()))
			continue
		}
		s.notify(payload)
	}
}

func (s *Syncer) notify(payload string) {
	s.mu.Lock()
	fns := make([]func(string), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(payload)
	}
}
