package migration

import "fmt"

// Validator emits diagnostics against a plan in the context of a current
// phase and a target display name.
type Validator struct{}

// Validate appends Diagnostics to each pending migration and returns true
// if no errors were added (warnings are allowed). earliestDefinedName is
// the name of the earliest migration Discoverer found on disk — used to
// distinguish "dependency predates everything on disk" (a warning) from
// "dependency name unknown and not historical" (an error).
func (Validator) Validate(plan *Plan, currentPhase Phase, targetDisplayName, earliestDefinedName string) bool {
	ok := true

	for _, m := range plan.PendingMigrations {
		if m.HasChanged && m.State != NotApplied {
			m.AddDiagnostic(true, "hash-changed", fmt.Sprintf(
				"Migration %q has changed since it was applied to %s (current hash: %s, registered hash: %s). Revert the change or manually update the registration to accept it.",
				m.Name, targetDisplayName, m.Hash, m.RegisteredHash,
			))
			ok = false
		}

		for _, ref := range m.DependsOn {
			if d := validateDependency(m, ref, earliestDefinedName); d != nil {
				m.AddDiagnostic(d.IsError, d.Code, d.Message)
				if d.IsError {
					ok = false
				}
			}
		}

		if phase, has := earliestScheduledPhase(plan, m); has && phase < currentPhase {
			m.AddDiagnostic(true, "phase-out-of-order", fmt.Sprintf(
				"Migration %q has code that must be applied in an earlier phase first (pending in %s, currently applying %s) on %s.",
				m.Name, phase, currentPhase, targetDisplayName,
			))
			ok = false
		}

		if m.Path == "" {
			switch {
			case m.State == AppliedPre || m.State == AppliedCore:
				m.AddDiagnostic(true, "missing-code", fmt.Sprintf(
					"Migration %q is only partially applied (%s) on %s, but code for the migration was not found on disk.",
					m.Name, m.State, targetDisplayName,
				))
				ok = false
			case m.State == NotApplied && hasItemInPhase(plan, m, Post):
				m.AddDiagnostic(true, "missing-code", fmt.Sprintf(
					"Migration %q is registered against %s but is not applied in any phase, and its code was not found on disk.",
					m.Name, targetDisplayName,
				))
				ok = false
			}
		}
	}

	return ok
}

func validateDependency(m *Migration, ref *Reference, earliestDefinedName string) *Diagnostic {
	if EqualName(ref.Name, m.Name) {
		return &Diagnostic{IsError: true, Code: "dependency-self", Message: fmt.Sprintf(
			"Migration %q declares a dependency on itself (%q).", m.Name, ref.Name,
		)}
	}

	if CompareNames(ref.Name, m.Name) > 0 {
		return &Diagnostic{IsError: true, Code: "dependency-forward", Message: fmt.Sprintf(
			"Migration %q depends on %q, which must run later in the sequence.", m.Name, ref.Name,
		)}
	}

	if ref.Migration == nil {
		if earliestDefinedName != "" && CompareNames(ref.Name, earliestDefinedName) < 0 {
			return &Diagnostic{IsError: false, Code: "dependency-historical", Message: fmt.Sprintf(
				"Migration %q depends on %q, which is older than the earliest migration on disk. Ignoring.",
				m.Name, ref.Name,
			)}
		}
		return &Diagnostic{IsError: true, Code: "dependency-not-found", Message: fmt.Sprintf(
			"Migration %q depends on %q, which was not found.", m.Name, ref.Name,
		)}
	}

	return nil
}

// earliestScheduledPhase returns the earliest logical phase (Pre < Core <
// Post) at which m has non-empty content scheduled anywhere in plan,
// regardless of which physical window (Pre/Core/Post list) that content
// was placed in.
func earliestScheduledPhase(plan *Plan, m *Migration) (Phase, bool) {
	best := Post
	found := false
	for _, phase := range []Phase{Pre, Core, Post} {
		for _, item := range plan.GetItems(phase) {
			if item.Migration != m {
				continue
			}
			if m.Phase(item.Phase).Sql == "" {
				continue
			}
			if !found || item.Phase < best {
				best = item.Phase
				found = true
			}
		}
	}
	return best, found
}

// hasItemInPhase reports whether m appears anywhere in plan's scheduling
// for the given logical phase, regardless of content.
func hasItemInPhase(plan *Plan, m *Migration, phase Phase) bool {
	for _, p := range []Phase{Pre, Core, Post} {
		for _, item := range plan.GetItems(p) {
			if item.Migration == m && item.Phase == phase {
				return true
			}
		}
	}
	return false
}
