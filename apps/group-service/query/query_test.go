package query

import (
	"testing"
	"time"

	"gostudy-social/apps/group-service/model"
)

func timePtr(t time.Time) *time.Time { return &t }

func sampleGroups() []*model.Group {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return []*model.Group{
		{
			ID: 1, Name: "Algorithms Study Squad", Description: "每周刷题", CourseName: "CS201",
			IsPrivate: false, MemberCount: 3, CreatedAt: base,
			LastActivity: timePtr(base.Add(48 * time.Hour)),
			Members: []*model.GroupMember{
				{GroupID: 1, UserID: 100, Role: model.RoleOwner, Online: true},
				{GroupID: 1, UserID: 101, Role: model.RoleMember},
				{GroupID: 1, UserID: 102, Role: model.RoleMember, Online: true},
			},
		},
		{
			ID: 2, Name: "database review", Description: "期末复习", CourseName: "CS305",
			IsPrivate: true, MemberCount: 2, CreatedAt: base.Add(time.Hour),
			LastActivity: timePtr(base.Add(72 * time.Hour)),
			Members: []*model.GroupMember{
				{GroupID: 2, UserID: 101, Role: model.RoleOwner},
				{GroupID: 2, UserID: 103, Role: model.RoleMember},
			},
		},
		{
			ID: 3, Name: "Compiler Project", Description: "course project team", CourseName: "CS402",
			IsPrivate: false, MemberCount: 5, CreatedAt: base.Add(2 * time.Hour),
			Members: []*model.GroupMember{
				{GroupID: 3, UserID: 104, Role: model.RoleOwner, Online: true},
			},
		},
	}
}

func TestFilterByMembership(t *testing.T) {
	groups := sampleGroups()

	all := FilterByMembership(groups, model.ScopeAll, 100)
	if len(all) != len(groups) {
		t.Fatalf("scope all should be identity, got %d groups", len(all))
	}

	mine := FilterByMembership(groups, model.ScopeMyGroups, 101)
	if len(mine) != 2 {
		t.Fatalf("expected 2 groups for user 101, got %d", len(mine))
	}
	for _, g := range mine {
		if g.MemberFor(101) == nil {
			t.Errorf("group %d in my-groups result but user 101 is not a member", g.ID)
		}
	}

	public := FilterByMembership(groups, model.ScopePublic, 100)
	if len(public) != 2 {
		t.Fatalf("expected 2 public groups, got %d", len(public))
	}
	for _, g := range public {
		if g.IsPrivate {
			t.Errorf("private group %d in public result", g.ID)
		}
	}
}

func TestSearchEmptyKeywordIsIdentity(t *testing.T) {
	groups := sampleGroups()
	result := Search(groups, "")
	if len(result) != len(groups) {
		t.Fatalf("empty keyword should return all groups, got %d", len(result))
	}
	for i := range groups {
		if result[i] != groups[i] {
			t.Fatalf("empty keyword changed order at index %d", i)
		}
	}
}

func TestSearchMatchesAnyField(t *testing.T) {
	groups := sampleGroups()

	cases := []struct {
		keyword string
		wantIDs []int64
	}{
		{"STUDY", []int64{1}},      // 名称，大小写不敏感
		{"复习", []int64{2}},         // 简介
		{"cs402", []int64{3}},      // 课程名
		{"project", []int64{3}},    // 名称和简介同时命中只返回一次
		{"nonexistent", []int64{}}, // 无命中
	}
	for _, tc := range cases {
		result := Search(groups, tc.keyword)
		if len(result) != len(tc.wantIDs) {
			t.Errorf("keyword %q: expected %d groups, got %d", tc.keyword, len(tc.wantIDs), len(result))
			continue
		}
		for i, g := range result {
			if g.ID != tc.wantIDs[i] {
				t.Errorf("keyword %q: expected group %d at index %d, got %d", tc.keyword, tc.wantIDs[i], i, g.ID)
			}
		}
	}
}

func TestSortKeys(t *testing.T) {
	groups := sampleGroups()

	recent := Sort(groups, model.SortRecent)
	if recent[0].ID != 3 || recent[1].ID != 2 || recent[2].ID != 1 {
		t.Errorf("recent: expected [3 2 1], got [%d %d %d]", recent[0].ID, recent[1].ID, recent[2].ID)
	}

	members := Sort(groups, model.SortMembers)
	if members[0].ID != 3 || members[1].ID != 1 || members[2].ID != 2 {
		t.Errorf("members: expected [3 1 2], got [%d %d %d]", members[0].ID, members[1].ID, members[2].ID)
	}

	// 没有活动时间的群组排在最后
	activity := Sort(groups, model.SortActivity)
	if activity[0].ID != 2 || activity[1].ID != 1 || activity[2].ID != 3 {
		t.Errorf("activity: expected [2 1 3], got [%d %d %d]", activity[0].ID, activity[1].ID, activity[2].ID)
	}

	name := Sort(groups, model.SortName)
	for i := 1; i < len(name); i++ {
		prev, cur := name[i-1].Name, name[i].Name
		if compareFold(prev, cur) > 0 {
			t.Errorf("name: %q sorted before %q", prev, cur)
		}
	}
}

func compareFold(a, b string) int {
	al, bl := []rune(a), []rune(b)
	for i := 0; i < len(al) && i < len(bl); i++ {
		x, y := lower(al[i]), lower(bl[i])
		if x != y {
			if x < y {
				return -1
			}
			return 1
		}
	}
	return len(al) - len(bl)
}

func lower(r rune) rune {
	if r >= 'A' && r <= 'Z' {
		return r + ('a' - 'A')
	}
	return r
}

func TestSortIsDeterministic(t *testing.T) {
	groups := sampleGroups()
	// 打破创建时间差异，强制走ID平局
	for _, g := range groups {
		g.CreatedAt = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	}

	first := Sort(groups, model.SortRecent)
	second := Sort(first, model.SortRecent)
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Fatalf("sort not idempotent at index %d", i)
		}
	}
	if first[0].ID != 1 || first[1].ID != 2 || first[2].ID != 3 {
		t.Errorf("tie break by id ascending failed: [%d %d %d]", first[0].ID, first[1].ID, first[2].ID)
	}
}

func TestSortDoesNotMutateInput(t *testing.T) {
	groups := sampleGroups()
	original := make([]int64, len(groups))
	for i, g := range groups {
		original[i] = g.ID
	}

	Sort(groups, model.SortMembers)
	for i, g := range groups {
		if g.ID != original[i] {
			t.Fatalf("input slice mutated at index %d", i)
		}
	}
}

func TestStats(t *testing.T) {
	groups := sampleGroups()
	stats := Stats(groups, 101)

	if stats.TotalGroups != 3 {
		t.Errorf("expected 3 total groups, got %d", stats.TotalGroups)
	}
	if stats.MyGroups != 2 {
		t.Errorf("expected 2 my groups for user 101, got %d", stats.MyGroups)
	}
	if stats.PublicGroups != 2 {
		t.Errorf("expected 2 public groups, got %d", stats.PublicGroups)
	}
	if stats.TotalMembers != 10 {
		t.Errorf("expected 10 total members, got %d", stats.TotalMembers)
	}
	if stats.OnlineMembers != 3 {
		t.Errorf("expected 3 online members, got %d", stats.OnlineMembers)
	}
}
