package service

import (
	"context"
	"sync"
	"time"

	"gostudy-social/apps/group-service/dao"
	"gostudy-social/apps/group-service/model"
)

// fakeGroupDAO 内存实现，模拟存储层的条件更新语义：
// 人数和使用次数的检查与自增在同一把锁下完成，
// 失败的操作不留下任何副作用。
type fakeGroupDAO struct {
	mu           sync.Mutex
	nextGroupID  int64
	nextMemberID int64
	nextInviteID int64
	groups       map[int64]*model.Group
	members      map[int64][]*model.GroupMember
	invites      map[string]*model.GroupInvite

	failAddMember error // 注入的持久化故障
}

func newFakeGroupDAO() *fakeGroupDAO {
	return &fakeGroupDAO{
		groups:  make(map[int64]*model.Group),
		members: make(map[int64][]*model.GroupMember),
		invites: make(map[string]*model.GroupInvite),
	}
}

func (f *fakeGroupDAO) CreateGroup(ctx context.Context, group *model.Group, owner *model.GroupMember) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextGroupID++
	group.ID = f.nextGroupID
	if group.CreatedAt.IsZero() {
		group.CreatedAt = time.Now()
	}

	stored := *group
	stored.Members = nil
	f.groups[group.ID] = &stored

	f.nextMemberID++
	owner.ID = f.nextMemberID
	owner.GroupID = group.ID
	ownerCopy := *owner
	f.members[group.ID] = []*model.GroupMember{&ownerCopy}
	group.Members = []*model.GroupMember{owner}
	return nil
}

func (f *fakeGroupDAO) GetGroup(ctx context.Context, groupID int64) (*model.Group, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cloneGroup(groupID)
}

func (f *fakeGroupDAO) ListGroups(ctx context.Context) ([]*model.Group, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	result := make([]*model.Group, 0, len(f.groups))
	for id := int64(1); id <= f.nextGroupID; id++ {
		if _, ok := f.groups[id]; !ok {
			continue
		}
		g, _ := f.cloneGroup(id)
		result = append(result, g)
	}
	return result, nil
}

func (f *fakeGroupDAO) DeleteGroup(ctx context.Context, groupID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.groups, groupID)
	delete(f.members, groupID)
	return nil
}

func (f *fakeGroupDAO) TouchActivity(ctx context.Context, groupID int64, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if g, ok := f.groups[groupID]; ok {
		t := at
		g.LastActivity = &t
	}
	return nil
}

func (f *fakeGroupDAO) AddMember(ctx context.Context, member *model.GroupMember) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failAddMember != nil {
		return f.failAddMember
	}

	g, ok := f.groups[member.GroupID]
	if !ok {
		return model.ErrGroupNotFound
	}
	for _, m := range f.members[member.GroupID] {
		if m.UserID == member.UserID {
			return model.ErrAlreadyMember
		}
	}
	if g.MemberCount >= g.MaxMembers {
		return model.ErrGroupFull
	}

	f.nextMemberID++
	member.ID = f.nextMemberID
	stored := *member
	f.members[member.GroupID] = append(f.members[member.GroupID], &stored)
	g.MemberCount++
	return nil
}

func (f *fakeGroupDAO) RemoveMember(ctx context.Context, groupID, userID, promoteUserID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	members := f.members[groupID]
	idx := -1
	for i, m := range members {
		if m.UserID == userID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return model.ErrNotMember
	}
	f.members[groupID] = append(members[:idx], members[idx+1:]...)
	if g, ok := f.groups[groupID]; ok && g.MemberCount > 0 {
		g.MemberCount--
	}
	if promoteUserID > 0 {
		for _, m := range f.members[groupID] {
			if m.UserID == promoteUserID {
				m.Role = model.RoleOwner
			}
		}
	}
	return nil
}

func (f *fakeGroupDAO) GetMember(ctx context.Context, groupID, userID int64) (*model.GroupMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.members[groupID] {
		if m.UserID == userID {
			copied := *m
			return &copied, nil
		}
	}
	return nil, model.ErrNotMember
}

func (f *fakeGroupDAO) IsMember(ctx context.Context, groupID, userID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.members[groupID] {
		if m.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeGroupDAO) UpdateMemberFlag(ctx context.Context, groupID, userID int64, field string, value interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.members[groupID] {
		if m.UserID == userID {
			switch field {
			case "pinned":
				m.Pinned = value.(bool)
			case "online":
				m.Online = value.(bool)
			}
			return nil
		}
	}
	return model.ErrNotMember
}

func (f *fakeGroupDAO) SetUserOnline(ctx context.Context, userID int64, online bool, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, members := range f.members {
		for _, m := range members {
			if m.UserID == userID {
				m.Online = online
				m.LastActiveAt = at
			}
		}
	}
	return nil
}

func (f *fakeGroupDAO) CreateInvite(ctx context.Context, invite *model.GroupInvite) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextInviteID++
	invite.ID = f.nextInviteID
	invite.CreatedAt = time.Now()
	stored := *invite
	f.invites[invite.Code] = &stored
	return nil
}

func (f *fakeGroupDAO) GetInviteByCode(ctx context.Context, code string) (*model.GroupInvite, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	invite, ok := f.invites[code]
	if !ok {
		return nil, model.ErrInviteNotFound
	}
	copied := *invite
	return &copied, nil
}

func (f *fakeGroupDAO) RedeemInvite(ctx context.Context, code string, member *model.GroupMember) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	invite, ok := f.invites[code]
	if !ok {
		return model.ErrInviteNotFound
	}
	if invite.MaxUses != nil && invite.UseCount >= *invite.MaxUses {
		return model.ErrInviteExhausted
	}

	g, ok := f.groups[member.GroupID]
	if !ok {
		return model.ErrGroupNotFound
	}
	for _, m := range f.members[member.GroupID] {
		if m.UserID == member.UserID {
			return model.ErrAlreadyMember
		}
	}
	if g.MemberCount >= g.MaxMembers {
		return model.ErrGroupFull
	}

	invite.UseCount++
	f.nextMemberID++
	member.ID = f.nextMemberID
	stored := *member
	f.members[member.GroupID] = append(f.members[member.GroupID], &stored)
	g.MemberCount++
	return nil
}

// memberCount 当前成员计数，测试断言用
func (f *fakeGroupDAO) memberCount(groupID int64) int32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if g, ok := f.groups[groupID]; ok {
		return g.MemberCount
	}
	return 0
}

// useCount 邀请码当前使用次数，测试断言用
func (f *fakeGroupDAO) useCount(code string) int32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if invite, ok := f.invites[code]; ok {
		return invite.UseCount
	}
	return 0
}

// expireInvite 把邀请码过期时间拨到过去，模拟时间流逝
func (f *fakeGroupDAO) expireInvite(code string, ago time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if invite, ok := f.invites[code]; ok {
		past := time.Now().Add(-ago)
		invite.ExpiresAt = &past
	}
}

func (f *fakeGroupDAO) cloneGroup(groupID int64) (*model.Group, error) {
	g, ok := f.groups[groupID]
	if !ok {
		return nil, model.ErrGroupNotFound
	}
	copied := *g
	members := f.members[groupID]
	copied.Members = make([]*model.GroupMember, 0, len(members))
	for _, m := range members {
		mc := *m
		copied.Members = append(copied.Members, &mc)
	}
	return &copied, nil
}

var _ dao.GroupDAO = (*fakeGroupDAO)(nil)

// fakeEventDAO 内存事件流水
type fakeEventDAO struct {
	mu     sync.Mutex
	events []*model.GroupEvent
}

func newFakeEventDAO() *fakeEventDAO {
	return &fakeEventDAO{}
}

func (f *fakeEventDAO) RecordEvent(ctx context.Context, event *model.GroupEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *event
	f.events = append(f.events, &copied)
	return nil
}

func (f *fakeEventDAO) ListGroupEvents(ctx context.Context, groupID int64, limit int64) ([]*model.GroupEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []*model.GroupEvent
	for i := len(f.events) - 1; i >= 0 && int64(len(result)) < limit; i-- {
		if f.events[i].GroupID == groupID {
			copied := *f.events[i]
			result = append(result, &copied)
		}
	}
	return result, nil
}

var _ dao.EventDAO = (*fakeEventDAO)(nil)

// memoryFeed 进程内变更通道，测试中替代Redis发布订阅
type memoryFeed struct {
	mu   sync.Mutex
	subs []*memorySubscription
}

func newMemoryFeed() *memoryFeed {
	return &memoryFeed{}
}

func (f *memoryFeed) Publish(ctx context.Context, payload string) error {
	f.mu.Lock()
	subs := make([]*memorySubscription, len(f.subs))
	copy(subs, f.subs)
	f.mu.Unlock()

	for _, sub := range subs {
		sub.deliver(payload)
	}
	return nil
}

func (f *memoryFeed) Subscribe(ctx context.Context) (ChangeSubscription, error) {
	sub := &memorySubscription{
		feed:    f,
		changes: make(chan string, 16),
	}
	f.mu.Lock()
	f.subs = append(f.subs, sub)
	f.mu.Unlock()
	return sub, nil
}

type memorySubscription struct {
	feed    *memoryFeed
	once    sync.Once
	closed  bool
	mu      sync.Mutex
	changes chan string
}

func (s *memorySubscription) deliver(payload string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.changes <- payload:
	default:
	}
}

func (s *memorySubscription) Changes() <-chan string {
	return s.changes
}

func (s *memorySubscription) Close() error {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.changes)
		s.mu.Unlock()

		s.feed.mu.Lock()
		for i, sub := range s.feed.subs {
			if sub == s {
				s.feed.subs = append(s.feed.subs[:i], s.feed.subs[i+1:]...)
				break
			}
		}
		s.feed.mu.Unlock()
	})
	return nil
}
