package limiter

import "runtime"

// resolve maps the "0 means logical processor count" convention onto a
// concrete positive limit.
func resolve(n int) int64 {
	if n == 0 {
		return int64(runtime.NumCPU())
	}
	if n < 0 {
		panic("limiter: negative parallelism is forbidden")
	}
	return int64(n)
}

// GlobalParallelism holds the process-wide action limiter and remembers the
// per-target action ceiling every TargetGroupParallelism must respect.
type GlobalParallelism struct {
	actions             Limiter
	maxActionsPerTarget int64
}

// NewGlobalParallelism builds the global limiter from MaxActions and
// MaxActionsPerTarget. MaxActionsPerTarget is clamped to MaxActions.
func NewGlobalParallelism(maxActions, maxActionsPerTarget int) *GlobalParallelism {
	actions := resolve(maxActions)
	perTarget := resolve(maxActionsPerTarget)
	if perTarget > actions {
		perTarget = actions
	}
	return &GlobalParallelism{actions: New(actions), maxActionsPerTarget: perTarget}
}

// Actions returns the global action limiter.
func (g *GlobalParallelism) Actions() Limiter { return g.actions }

// MaxActionsPerTarget returns the clamped per-target action ceiling.
func (g *GlobalParallelism) MaxActionsPerTarget() int64 { return g.maxActionsPerTarget }

// TargetParallelism is what a single target's applicator or worker pool
// acquires from: Actions is the group/global action limiter shared by every
// target in the group (one scope per in-flight action), and
// MaxActionsPerTarget is the per-target ceiling as a number, which the
// caller turns into its own limiter where it needs one.
type TargetParallelism struct {
	Actions             Limiter
	MaxActionsPerTarget int64
}

// TargetGroupParallelism derives per-group limiters from the global limits,
// the group's own overrides, and maxTargets (the number of targets in the
// group, or an explicit override).
type TargetGroupParallelism struct {
	global  *GlobalParallelism
	targets Limiter
	actions Limiter // group's own action limiter, composed with global's; nil if the group has no tighter limit
}

// NewTargetGroupParallelism builds the limiters for one TargetGroup. groupMaxActions
// is the group's own MaxParallelism; maxTargets bounds how many of the
// group's targets are active at once (the sessions pass the group's target
// count). Both use 0 to mean "logical processor count".
func NewTargetGroupParallelism(global *GlobalParallelism, groupMaxActions int, maxTargets int) *TargetGroupParallelism {
	t := &TargetGroupParallelism{global: global, targets: New(resolve(maxTargets))}

	groupLimit := resolve(groupMaxActions)
	if groupLimit < global.Actions().Limit() {
		t.actions = Composite(global.Actions(), New(groupLimit))
	}
	return t
}

// TargetScope returns the limiter bounding how many targets in this group
// may be active at once.
func (g *TargetGroupParallelism) TargetScope() Limiter { return g.targets }

// Target returns the (possibly composite) action limiter and clamped
// per-target action ceiling that one target's applicator should use.
func (g *TargetGroupParallelism) Target() TargetParallelism {
	actions := g.global.Actions()
	if g.actions != nil {
		actions = g.actions
	}
	maxPerTarget := g.global.MaxActionsPerTarget()
	if actions.Limit() < maxPerTarget {
		maxPerTarget = actions.Limit()
	}
	return TargetParallelism{Actions: actions, MaxActionsPerTarget: maxPerTarget}
}
