package domain

// Stateful is implemented by entities whose status is driven by a StatusMachine.
// SetStatus assigns the status field and nothing else; timestamps are
// stamped by the callers that persist the change.
type Stateful[S ~string] interface {
	CurrentStatus() S
	SetStatus(status S)
}

// StatusMachine is a finite-state machine defined entirely by its transition table.
// It holds no per-entity state and is safe for concurrent use.
type StatusMachine[S ~string] struct {
	name        string
	initial     S
	transitions map[S]map[S]struct{}
}

// NewStatusMachine builds a machine from an adjacency list. Every state that
// appears as a key is known to the machine, even with no outgoing moves.
func NewStatusMachine[S ~string](name string, initial S, table map[S][]S) *StatusMachine[S] {
	transitions := make(map[S]map[S]struct{}, len(table))
	for from, targets := range table {
		set := make(map[S]struct{}, len(targets))
		for _, to := range targets {
			set[to] = struct{}{}
		}
		transitions[from] = set
	}
	return &StatusMachine[S]{
		name:        name,
		initial:     initial,
		transitions: transitions,
	}
}

// Name returns the machine's name, used in error messages.
func (m *StatusMachine[S]) Name() string {
	return m.name
}

// Initial returns the state new entities start in.
func (m *StatusMachine[S]) Initial() S {
	return m.initial
}

// IsKnown reports whether the state appears in the transition table.
func (m *StatusMachine[S]) IsKnown(state S) bool {
	_, ok := m.transitions[state]
	return ok
}

// IsTerminal reports whether the state is known and has no outgoing moves.
func (m *StatusMachine[S]) IsTerminal(state S) bool {
	targets, ok := m.transitions[state]
	return ok && len(targets) == 0
}

// CanTransition reports whether from -> to is listed in the table.
// Self-transitions are only allowed when explicitly listed.
func (m *StatusMachine[S]) CanTransition(from, to S) bool {
	targets, ok := m.transitions[from]
	if !ok {
		return false
	}
	_, ok = targets[to]
	return ok
}

// Check returns a *TransitionError when from -> to is not allowed.
func (m *StatusMachine[S]) Check(from, to S) error {
	if !m.CanTransition(from, to) {
		return &TransitionError{Machine: m.name, From: string(from), To: string(to)}
	}
	return nil
}

// Apply moves the entity to the target status. Only the status field is
// touched; persisting the change is the caller's job.
func (m *StatusMachine[S]) Apply(entity Stateful[S], to S) error {
	if err := m.Check(entity.CurrentStatus(), to); err != nil {
		return err
	}
	entity.SetStatus(to)
	return nil
}
