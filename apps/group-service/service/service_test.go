package service

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"gostudy-social/apps/group-service/model"
	"gostudy-social/pkg/logger"
	"gostudy-social/pkg/snowflake"
)

func TestMain(m *testing.M) {
	if err := snowflake.InitGlobalSnowflake(1); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func newTestService(t *testing.T) (*Service, *fakeGroupDAO, *fakeEventDAO, *memoryFeed) {
	t.Helper()
	groupDAO := newFakeGroupDAO()
	eventDAO := newFakeEventDAO()
	feed := newMemoryFeed()
	svc := NewService(groupDAO, eventDAO, nil, nil, feed, logger.GetLogger(), ServiceConfig{
		InviteBaseURL:     "http://localhost:5173",
		DefaultExpireDays: 7,
		PresenceTTL:       5 * time.Minute,
		KafkaTopic:        "",
	})
	return svc, groupDAO, eventDAO, feed
}

func mustCreateGroup(t *testing.T, svc *Service, creatorID int64, name string, maxMembers int32) *model.Group {
	t.Helper()
	group, err := svc.CreateGroup(context.Background(), &model.GroupDraft{
		Name:        name,
		Description: "测试群组",
		Category:    model.CategoryStudy,
		MaxMembers:  maxMembers,
		CreatorID:   creatorID,
		CreatorName: "creator",
	})
	if err != nil {
		t.Fatalf("create group failed: %v", err)
	}
	return group
}

func TestCreateGroupValidation(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	cases := []struct {
		name    string
		draft   model.GroupDraft
		wantErr error
	}{
		{"name too short", model.GroupDraft{Name: "ab", MaxMembers: 10, CreatorID: 1}, model.ErrInvalidName},
		{"name min length ok", model.GroupDraft{Name: "abc", MaxMembers: 10, CreatorID: 1}, nil},
		{"name too long", model.GroupDraft{Name: strings.Repeat("x", 51), MaxMembers: 10, CreatorID: 1}, model.ErrInvalidName},
		{"description too long", model.GroupDraft{Name: "valid", Description: strings.Repeat("描", 201), MaxMembers: 10, CreatorID: 1}, model.ErrInvalidDescription},
		{"capacity too small", model.GroupDraft{Name: "valid", MaxMembers: 4, CreatorID: 1}, model.ErrInvalidCapacity},
		{"capacity too large", model.GroupDraft{Name: "valid", MaxMembers: 51, CreatorID: 1}, model.ErrInvalidCapacity},
		{"bad category", model.GroupDraft{Name: "valid", Category: "party", MaxMembers: 10, CreatorID: 1}, model.ErrInvalidCategory},
	}
	for _, tc := range cases {
		draft := tc.draft
		_, err := svc.CreateGroup(ctx, &draft)
		if tc.wantErr == nil && err != nil {
			t.Errorf("%s: unexpected error %v", tc.name, err)
		}
		if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.wantErr, err)
		}
	}
}

func TestCreateGroupUpdatesStats(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()
	creatorID := int64(42)

	before, err := svc.GetGroupStats(ctx, creatorID)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}

	group, err := svc.CreateGroup(ctx, &model.GroupDraft{
		Name:       "CP1 Study Squad",
		MaxMembers: 10,
		IsPrivate:  false,
		CreatorID:  creatorID,
	})
	if err != nil {
		t.Fatalf("create group failed: %v", err)
	}

	after, err := svc.GetGroupStats(ctx, creatorID)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if after.TotalGroups != before.TotalGroups+1 {
		t.Errorf("expected total groups %d, got %d", before.TotalGroups+1, after.TotalGroups)
	}
	if after.MyGroups != before.MyGroups+1 {
		t.Errorf("expected my groups %d, got %d", before.MyGroups+1, after.MyGroups)
	}

	owner := group.MemberFor(creatorID)
	if owner == nil || owner.Role != model.RoleOwner {
		t.Fatalf("creator should be owner, got %+v", owner)
	}
	if group.MemberCount != 1 {
		t.Errorf("new group should have member_count 1, got %d", group.MemberCount)
	}
}

func TestJoinGroupAtCapacityFails(t *testing.T) {
	svc, groupDAO, _, _ := newTestService(t)
	ctx := context.Background()

	group := mustCreateGroup(t, svc, 1, "capacity test", 5)
	for userID := int64(2); userID <= 5; userID++ {
		if _, err := svc.JoinGroup(ctx, group.ID, userID, "user", ""); err != nil {
			t.Fatalf("join user %d failed: %v", userID, err)
		}
	}
	if got := groupDAO.memberCount(group.ID); got != 5 {
		t.Fatalf("expected member count 5, got %d", got)
	}

	_, err := svc.JoinGroup(ctx, group.ID, 6, "latecomer", "")
	if !errors.Is(err, model.ErrGroupFull) {
		t.Fatalf("expected ErrGroupFull, got %v", err)
	}
	if got := groupDAO.memberCount(group.ID); got != 5 {
		t.Errorf("member count mutated on failed join: %d", got)
	}
}

func TestJoinThenLeaveRestoresCount(t *testing.T) {
	svc, groupDAO, _, _ := newTestService(t)
	ctx := context.Background()

	group := mustCreateGroup(t, svc, 1, "join leave", 10)
	before := groupDAO.memberCount(group.ID)

	if _, err := svc.JoinGroup(ctx, group.ID, 2, "user", ""); err != nil {
		t.Fatalf("join failed: %v", err)
	}
	if err := svc.LeaveGroup(ctx, group.ID, 2); err != nil {
		t.Fatalf("leave failed: %v", err)
	}
	if got := groupDAO.memberCount(group.ID); got != before {
		t.Errorf("expected member count %d after join+leave, got %d", before, got)
	}
}

func TestJoinPolicyErrors(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	group := mustCreateGroup(t, svc, 1, "policy test", 10)

	if _, err := svc.JoinGroup(ctx, group.ID, 1, "creator", ""); !errors.Is(err, model.ErrAlreadyMember) {
		t.Errorf("expected ErrAlreadyMember, got %v", err)
	}
	if err := svc.LeaveGroup(ctx, group.ID, 99); !errors.Is(err, model.ErrNotMember) {
		t.Errorf("expected ErrNotMember, got %v", err)
	}
}

func TestJoinRollsBackSnapshotOnStoreFailure(t *testing.T) {
	svc, groupDAO, _, _ := newTestService(t)
	ctx := context.Background()

	group := mustCreateGroup(t, svc, 1, "rollback test", 10)
	snap, ok := svc.Snapshot().Get(group.ID)
	if !ok {
		t.Fatal("group missing from snapshot")
	}
	before := snap.MemberCount

	groupDAO.failAddMember = errors.New("store unavailable")
	if _, err := svc.JoinGroup(ctx, group.ID, 2, "user", ""); err == nil {
		t.Fatal("expected join to fail")
	}

	snap, _ = svc.Snapshot().Get(group.ID)
	if snap.MemberCount != before {
		t.Errorf("snapshot count not rolled back: expected %d, got %d", before, snap.MemberCount)
	}
	if snap.MemberFor(2) != nil {
		t.Error("optimistic member left in snapshot after rollback")
	}
}

func TestSoleOwnerCannotLeave(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	group := mustCreateGroup(t, svc, 1, "lonely owner", 10)
	if err := svc.LeaveGroup(ctx, group.ID, 1); !errors.Is(err, model.ErrOwnerCannotLeave) {
		t.Fatalf("expected ErrOwnerCannotLeave, got %v", err)
	}
}

func TestOwnerLeavePromotesEarliestMember(t *testing.T) {
	svc, groupDAO, _, _ := newTestService(t)
	ctx := context.Background()

	group := mustCreateGroup(t, svc, 1, "succession", 10)
	if _, err := svc.JoinGroup(ctx, group.ID, 2, "second", ""); err != nil {
		t.Fatalf("join failed: %v", err)
	}
	if _, err := svc.JoinGroup(ctx, group.ID, 3, "third", ""); err != nil {
		t.Fatalf("join failed: %v", err)
	}

	if err := svc.LeaveGroup(ctx, group.ID, 1); err != nil {
		t.Fatalf("owner leave failed: %v", err)
	}

	member, err := groupDAO.GetMember(ctx, group.ID, 2)
	if err != nil {
		t.Fatalf("get member failed: %v", err)
	}
	if member.Role != model.RoleOwner {
		t.Errorf("earliest member should be promoted to owner, got role %s", member.Role)
	}
}

func TestOwnerLeavePrefersModerator(t *testing.T) {
	svc, groupDAO, _, _ := newTestService(t)
	ctx := context.Background()

	group := mustCreateGroup(t, svc, 1, "moderator first", 10)
	if _, err := svc.JoinGroup(ctx, group.ID, 2, "plain", ""); err != nil {
		t.Fatalf("join failed: %v", err)
	}
	if _, err := svc.JoinGroup(ctx, group.ID, 3, "mod", ""); err != nil {
		t.Fatalf("join failed: %v", err)
	}
	// 直接在存储里把后加入的成员提为协管员
	groupDAO.mu.Lock()
	for _, m := range groupDAO.members[group.ID] {
		if m.UserID == 3 {
			m.Role = model.RoleModerator
		}
	}
	groupDAO.mu.Unlock()

	if err := svc.LeaveGroup(ctx, group.ID, 1); err != nil {
		t.Fatalf("owner leave failed: %v", err)
	}

	member, err := groupDAO.GetMember(ctx, group.ID, 3)
	if err != nil {
		t.Fatalf("get member failed: %v", err)
	}
	if member.Role != model.RoleOwner {
		t.Errorf("moderator should be promoted over earlier plain member, got role %s", member.Role)
	}
}

func TestTogglePinIdempotent(t *testing.T) {
	svc, groupDAO, _, _ := newTestService(t)
	ctx := context.Background()

	group := mustCreateGroup(t, svc, 1, "pin test", 10)
	for i := 0; i < 2; i++ {
		updated, err := svc.TogglePin(ctx, group.ID, 1, true)
		if err != nil {
			t.Fatalf("toggle pin failed: %v", err)
		}
		if m := updated.MemberFor(1); m == nil || !m.Pinned {
			t.Fatal("returned group does not reflect the pin")
		}
	}

	member, err := groupDAO.GetMember(ctx, group.ID, 1)
	if err != nil {
		t.Fatalf("get member failed: %v", err)
	}
	if !member.Pinned {
		t.Error("expected member to be pinned")
	}

	if _, err := svc.TogglePin(ctx, group.ID, 1, false); err != nil {
		t.Fatalf("unpin failed: %v", err)
	}
	member, _ = groupDAO.GetMember(ctx, group.ID, 1)
	if member.Pinned {
		t.Error("expected member to be unpinned")
	}
}

func TestDisbandGroupOwnerOnly(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	group := mustCreateGroup(t, svc, 1, "disband test", 10)
	if _, err := svc.JoinGroup(ctx, group.ID, 2, "user", ""); err != nil {
		t.Fatalf("join failed: %v", err)
	}

	if err := svc.DisbandGroup(ctx, group.ID, 2); !errors.Is(err, model.ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner for non-owner, got %v", err)
	}
	if err := svc.DisbandGroup(ctx, group.ID, 1); err != nil {
		t.Fatalf("owner disband failed: %v", err)
	}
	if _, ok := svc.Snapshot().Get(group.ID); ok {
		t.Error("disbanded group still in snapshot")
	}
}

func TestGetGroupsScopeAndSearch(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	g1 := mustCreateGroup(t, svc, 1, "Algorithms Squad", 10)
	_, err := svc.CreateGroup(ctx, &model.GroupDraft{
		Name: "Private Review", MaxMembers: 10, IsPrivate: true, CreatorID: 2,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	mine, err := svc.GetGroups(ctx, 1, model.ScopeMyGroups, "", model.SortRecent)
	if err != nil {
		t.Fatalf("get groups failed: %v", err)
	}
	if len(mine) != 1 || mine[0].ID != g1.ID {
		t.Fatalf("expected only group %d for user 1, got %d groups", g1.ID, len(mine))
	}

	public, err := svc.GetGroups(ctx, 3, model.ScopePublic, "", model.SortRecent)
	if err != nil {
		t.Fatalf("get groups failed: %v", err)
	}
	if len(public) != 1 || public[0].ID != g1.ID {
		t.Fatalf("expected one public group, got %d", len(public))
	}

	found, err := svc.GetGroups(ctx, 1, model.ScopeAll, "algorithms", model.SortRecent)
	if err != nil {
		t.Fatalf("get groups failed: %v", err)
	}
	if len(found) != 1 {
		t.Fatalf("keyword search expected 1 group, got %d", len(found))
	}
}

func TestGroupActivityTrail(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	group := mustCreateGroup(t, svc, 1, "events test", 10)
	if _, err := svc.JoinGroup(ctx, group.ID, 2, "user", ""); err != nil {
		t.Fatalf("join failed: %v", err)
	}
	if err := svc.LeaveGroup(ctx, group.ID, 2); err != nil {
		t.Fatalf("leave failed: %v", err)
	}

	events, err := svc.GetGroupActivity(ctx, group.ID, 10)
	if err != nil {
		t.Fatalf("get activity failed: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	// 倒序：最新的在前
	if events[0].Type != model.EventMemberLeft {
		t.Errorf("expected most recent event member.left, got %s", events[0].Type)
	}
}
