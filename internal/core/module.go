package core

// ModuleID identifies a module. By convention it is a dotted path whose
// first segment is the namespace, e.g. "store.sqlite" or "embedding.openai".
type ModuleID string

// Namespace returns the part of the id before the first dot.
func (id ModuleID) Namespace() string {
	for i := range len(id) {
		if id[i] == '.' {
			return string(id[:i])
		}
	}
	return string(id)
}

// Name returns the part of the id after the first dot, or the whole id
// when it has no namespace.
func (id ModuleID) Name() string {
	for i := range len(id) {
		if id[i] == '.' {
			return string(id[i+1:])
		}
	}
	return string(id)
}

// ModuleInfo describes a registered module.
type ModuleInfo struct {
	ID ModuleID

	// New returns a fresh, unconfigured instance of the module.
	New func() Module
}

// Module is implemented by every pluggable component. Optional lifecycle
// behavior is added by implementing the interfaces in lifecycle.go.
type Module interface {
	ModuleInfo() ModuleInfo
}
