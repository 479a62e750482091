package service

import (
	"sync"
	"time"

	"gostudy-social/apps/group-service/model"
)

// SnapshotStore 内存中的群组快照，乐观更新在这里先行生效，
// 同步失败时回滚，收到变更通知后整体替换为权威数据。
// 写入和读取都做深拷贝：交出去的群组指针与内部状态不共享，
// 读取方拿到的是只读副本，后续的乐观更新不会改到它手里的数据。
type SnapshotStore struct {
	mu     sync.RWMutex
	groups map[int64]*model.Group
	order  []int64
}

// NewSnapshotStore 创建空快照
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		groups: make(map[int64]*model.Group),
	}
}

// cloneGroup 群组深拷贝，成员切片逐个复制
func cloneGroup(g *model.Group) *model.Group {
	copied := *g
	copied.Members = make([]*model.GroupMember, len(g.Members))
	for i, m := range g.Members {
		mc := *m
		copied.Members[i] = &mc
	}
	return &copied
}

// Replace 用权威数据整体替换快照，权威数据优先，不做局部合并
func (s *SnapshotStore) Replace(groups []*model.Group) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.groups = make(map[int64]*model.Group, len(groups))
	s.order = make([]int64, 0, len(groups))
	for _, g := range groups {
		s.groups[g.ID] = cloneGroup(g)
		s.order = append(s.order, g.ID)
	}
}

// Groups 按加载顺序返回快照中全部群组的副本
func (s *SnapshotStore) Groups() []*model.Group {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*model.Group, 0, len(s.order))
	for _, id := range s.order {
		if g, ok := s.groups[id]; ok {
			result = append(result, cloneGroup(g))
		}
	}
	return result
}

// Get 按ID查询快照中的群组，返回副本
func (s *SnapshotStore) Get(groupID int64) (*model.Group, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[groupID]
	if !ok {
		return nil, false
	}
	return cloneGroup(g), true
}

// ApplyGroup 将新建或更新的群组写入快照
func (s *SnapshotStore) ApplyGroup(group *model.Group) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.groups[group.ID]; !ok {
		s.order = append(s.order, group.ID)
	}
	s.groups[group.ID] = cloneGroup(group)
}

// RemoveGroup 从快照移除群组
func (s *SnapshotStore) RemoveGroup(groupID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.groups, groupID)
	for i, id := range s.order {
		if id == groupID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// ApplyJoin 乐观记录加入：成员数加一并挂上成员记录
func (s *SnapshotStore) ApplyJoin(groupID int64, member *model.GroupMember) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[groupID]
	if !ok {
		return
	}
	mc := *member
	g.MemberCount++
	g.Members = append(g.Members, &mc)
}

// RollbackJoin 撤销乐观加入
func (s *SnapshotStore) RollbackJoin(groupID, userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[groupID]
	if !ok {
		return
	}
	for i, m := range g.Members {
		if m.UserID == userID {
			g.Members = append(g.Members[:i], g.Members[i+1:]...)
			g.MemberCount--
			return
		}
	}
}

// ApplyLeave 乐观记录退出，返回被移除成员的副本供回滚使用
func (s *SnapshotStore) ApplyLeave(groupID, userID int64) *model.GroupMember {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[groupID]
	if !ok {
		return nil
	}
	for i, m := range g.Members {
		if m.UserID == userID {
			removed := *m
			g.Members = append(g.Members[:i], g.Members[i+1:]...)
			g.MemberCount--
			return &removed
		}
	}
	return nil
}

// RollbackLeave 撤销乐观退出
func (s *SnapshotStore) RollbackLeave(groupID int64, member *model.GroupMember) {
	if member == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[groupID]
	if !ok {
		return
	}
	mc := *member
	g.Members = append(g.Members, &mc)
	g.MemberCount++
}

// ApplyPin 更新快照中成员的置顶标记
func (s *SnapshotStore) ApplyPin(groupID, userID int64, pinned bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[groupID]
	if !ok {
		return
	}
	if m := g.MemberFor(userID); m != nil {
		m.Pinned = pinned
	}
}

// TouchActivity 更新快照中群组的最近活跃时间
func (s *SnapshotStore) TouchActivity(groupID int64, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if g, ok := s.groups[groupID]; ok {
		t := at
		g.LastActivity = &t
	}
}
