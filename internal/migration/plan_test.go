package migration

import "testing"

func itemsEqual(t *testing.T, got []Item, want []Item) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %d Core items, got %d: %v", len(want), len(got), got)
	}
	for i := range got {
		if got[i].Migration.Name != want[i].Migration.Name || got[i].Phase != want[i].Phase {
			t.Errorf("Core[%d]: expected (%s, %s), got (%s, %s)",
				i, want[i].Migration.Name, want[i].Phase, got[i].Migration.Name, got[i].Phase)
		}
	}
}

// TestPlanNoDependencyKeepsBothMigrationsInPre covers the "no cross-phase
// constraint" half of the dependency scenario: with no DependsOn edge
// between a and b, both run in Pre without any Core reshuffling.
func TestPlanNoDependencyKeepsBothMigrationsInPre(t *testing.T) {
	a := &Migration{Name: "010_a", Pre: PhaseContent{Sql: "pre a"}, Core: PhaseContent{Sql: "core a"}}
	b := &Migration{Name: "020_b", Pre: PhaseContent{Sql: "pre b"}, Core: PhaseContent{Sql: "core b"}}

	plan := Planner{}.Plan([]*Migration{a, b})

	if len(plan.Pre) != 2 || plan.Pre[0].Name != "010_a" || plan.Pre[1].Name != "020_b" {
		t.Fatalf("expected Pre=[010_a 020_b], got %v", plan.Pre)
	}
}

// TestPlanDependencyForcesCoreReshuffle checks migrations a, b with b
// declaring REQUIRES: a, both brand new (NotApplied) this session. Since
// a's Post has not historically completed, the planner must
// move a's Post and b's Pre into the Core window so that a finishes before
// b starts, within the same session:
//
//	Pre=[a], Core=[(a,Core),(a,Post),(b,Pre),(b,Core)], Post=[b]
func TestPlanDependencyForcesCoreReshuffle(t *testing.T) {
	a := &Migration{
		Name: "010_a",
		Pre:  PhaseContent{Sql: "pre a"},
		Core: PhaseContent{Sql: "core a"},
		Post: PhaseContent{Sql: "post a"},
	}
	b := &Migration{
		Name:      "020_b",
		Pre:       PhaseContent{Sql: "pre b"},
		Core:      PhaseContent{Sql: "core b"},
		DependsOn: []*Reference{{Name: "010_a", Migration: a}},
	}

	plan := Planner{}.Plan([]*Migration{a, b})

	if len(plan.Pre) != 1 || plan.Pre[0].Name != "010_a" {
		t.Fatalf("expected Pre=[010_a], got %v", plan.Pre)
	}

	itemsEqual(t, plan.Core, []Item{
		{Migration: a, Phase: Core},
		{Migration: a, Phase: Post},
		{Migration: b, Phase: Pre},
		{Migration: b, Phase: Core},
	})

	if len(plan.Post) != 1 || plan.Post[0].Name != "020_b" {
		t.Fatalf("expected Post=[020_b], got %v", plan.Post)
	}

	if !plan.IsCoreRequired {
		t.Error("expected IsCoreRequired once content is scheduled into Core")
	}
	if !plan.HasPostContentInCore {
		t.Error("expected HasPostContentInCore since a's Post was moved into Core")
	}
}

// TestPlanDependencyAlreadyAppliedPostSkipsReshuffle exercises the case
// where the dependency has already completed Post in a prior session: the
// planner must not force the dependent's Pre into Core just because a
// DependsOn reference resolves to a migration that is already done.
func TestPlanDependencyAlreadyAppliedPostSkipsReshuffle(t *testing.T) {
	a := &Migration{Name: "010_a", State: AppliedPost}
	b := &Migration{
		Name:      "020_b",
		Pre:       PhaseContent{Sql: "pre b"},
		Core:      PhaseContent{Sql: "core b"},
		DependsOn: []*Reference{{Name: "010_a", Migration: a}},
	}

	plan := Planner{}.Plan([]*Migration{a, b})

	if len(plan.Pre) != 1 || plan.Pre[0].Name != "020_b" {
		t.Fatalf("expected Pre=[020_b] since a is already fully applied, got %v", plan.Pre)
	}
	for _, item := range plan.Core {
		if item.Migration == a {
			t.Errorf("did not expect a fully-applied dependency to be rescheduled into Core, got %v", item)
		}
	}
}
