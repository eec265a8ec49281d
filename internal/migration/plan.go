package migration

// Item pairs a Migration with the Phase its content is scheduled to run
// in — used verbatim for Core (where content from a different phase may be
// scheduled in) and synthesized uniformly for Pre/Post by GetItems.
type Item struct {
	Migration *Migration
	Phase     Phase
}

// Plan is the scheduled ordering of migration content across phases for
// one session.
type Plan struct {
	Pre  []*Migration
	Core []Item
	Post []*Migration

	// PendingMigrations is the full merged/resolved input the plan was
	// built from, retained so callers can check that every non-pseudo
	// migration appears at least once across Pre ∪ Core ∪ Post.
	PendingMigrations []*Migration

	IsCoreRequired       bool
	HasPreContentInCore  bool
	HasPostContentInCore bool
}

// IsEmpty reports whether phase has no scheduled work, ignoring
// pseudo-migrations.
func (p *Plan) IsEmpty(phase Phase) bool {
	for _, item := range p.GetItems(phase) {
		if !item.Migration.IsPseudo() {
			return false
		}
	}
	return true
}

// GetItems returns the (Migration, Phase) pairs scheduled for phase, in
// plan order.
func (p *Plan) GetItems(phase Phase) []Item {
	switch phase {
	case Pre:
		items := make([]Item, len(p.Pre))
		for i, m := range p.Pre {
			items[i] = Item{Migration: m, Phase: Pre}
		}
		return items
	case Post:
		items := make([]Item, len(p.Post))
		for i, m := range p.Post {
			items[i] = Item{Migration: m, Phase: Post}
		}
		return items
	case Core:
		return p.Core
	default:
		return nil
	}
}

// omittedPhases returns the PhaseSet of phases already complete for a
// migration's current State, so the planner skips phases the state
// indicates are already applied.
func omittedPhases(state State) PhaseSet {
	switch state {
	case AppliedPre:
		return NewPhaseSet(Pre)
	case AppliedCore:
		return NewPhaseSet(Pre, Core)
	case AppliedPost:
		return NewPhaseSet(Pre, Core, Post)
	default:
		return PhaseSet{}
	}
}

// Planner builds a Plan from the pending, reference-resolved sequence.
// Migration content of later-processed migrations is reordered around
// DependsOn so that, within the same session, a
// dependency's Post always precedes its dependents' Pre in execution
// order — by moving both into the Core phase window when history alone
// cannot guarantee the ordering.
type Planner struct{}

// Plan builds the MigrationPlan for pending. pending must already have its
// DependsOn references resolved (Resolver.Resolve).
func (Planner) Plan(pending []*Migration) *Plan {
	plan := &Plan{PendingMigrations: pending}

	postCommittedToCore := make(map[*Migration]bool, len(pending))

	for _, m := range pending {
		omitted := omittedPhases(m.State)

		var unsatisfied []*Migration
		if !omitted.Contains(Pre) {
			for _, ref := range m.DependsOn {
				dep := ref.Migration
				if dep == nil || postCommittedToCore[dep] {
					continue
				}
				if omittedPhases(dep.State).Contains(Post) {
					continue // dep's Post already complete from a prior session; no reshuffle needed
				}
				unsatisfied = append(unsatisfied, dep)
			}
		}

		if len(unsatisfied) > 0 {
			for _, dep := range unsatisfied {
				plan.addCore(dep, Post)
				postCommittedToCore[dep] = true
			}
			plan.addCore(m, Pre)
		} else if !omitted.Contains(Pre) {
			m.Pre.PlannedPhase = Pre
			plan.Pre = append(plan.Pre, m)
		}

		if !omitted.Contains(Core) {
			plan.addCore(m, Core)
		}
	}

	for _, m := range pending {
		omitted := omittedPhases(m.State)
		if omitted.Contains(Post) || postCommittedToCore[m] {
			continue
		}
		m.Post.PlannedPhase = Post
		plan.Post = append(plan.Post, m)
	}

	return plan
}

// addCore appends (m, phase) to the Core list, updates the content slot's
// PlannedPhase, and maintains the plan's derived flags.
func (p *Plan) addCore(m *Migration, phase Phase) {
	content := m.Phase(phase)
	content.PlannedPhase = Core
	m.SetPhase(phase, content)

	p.Core = append(p.Core, Item{Migration: m, Phase: phase})

	hasContent := content.Sql != ""
	switch phase {
	case Pre:
		if hasContent {
			p.HasPreContentInCore = true
		}
	case Post:
		if hasContent {
			p.HasPostContentInCore = true
		}
	}
	if hasContent && !m.IsPseudo() {
		p.IsCoreRequired = true
	}
}
