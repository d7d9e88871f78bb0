package core

import (
	"cmp"
	"fmt"
	"slices"
	"sync"
)

// registry holds every compiled-in module, keyed by ID. Store and
// embedding provider packages add themselves from init().
var (
	registryMu sync.RWMutex
	registry   = make(map[ModuleID]ModuleInfo)
)

// RegisterModule records the module's ModuleInfo. It panics on an empty or
// duplicate ID and on a missing constructor.
func RegisterModule(instance Module) {
	info := instance.ModuleInfo()
	switch {
	case info.ID == "":
		panic("core: module ID must not be empty")
	case info.New == nil:
		panic(fmt.Sprintf("core: module %s has no constructor", info.ID))
	}

	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[info.ID]; dup {
		panic(fmt.Sprintf("core: module %s registered twice", info.ID))
	}
	registry[info.ID] = info
}

// GetModule looks up a compiled-in module.
func GetModule(id string) (ModuleInfo, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	info, ok := registry[ModuleID(id)]
	return info, ok
}

// GetModules returns every compiled-in module ordered by ID.
func GetModules() []ModuleInfo {
	return collect(func(ModuleInfo) bool { return true })
}

// GetModulesByNamespace returns the modules providing one capability, such
// as "store" or "embedding", ordered by ID. A module ID without a dot is
// its own namespace.
func GetModulesByNamespace(namespace string) []ModuleInfo {
	return collect(func(info ModuleInfo) bool { return info.ID.Namespace() == namespace })
}

func collect(keep func(ModuleInfo) bool) []ModuleInfo {
	registryMu.RLock()
	out := make([]ModuleInfo, 0, len(registry))
	for _, info := range registry {
		if keep(info) {
			out = append(out, info)
		}
	}
	registryMu.RUnlock()

	slices.SortFunc(out, func(a, b ModuleInfo) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// resetRegistry clears the registry. Only for testing.
func resetRegistry() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[ModuleID]ModuleInfo)
}
