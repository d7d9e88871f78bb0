package core

import (
	"slices"
	"testing"
)

func moduleIDs(infos []ModuleInfo) []ModuleID {
	ids := make([]ModuleID, len(infos))
	for i, info := range infos {
		ids[i] = info.ID
	}
	return ids
}

func TestRegistry_GetModulesByNamespace(t *testing.T) {
	t.Cleanup(resetRegistry)

	var events []string
	for _, id := range []ModuleID{"store.sqlite", "embedding.openai", "store.memory", "storage.s3", "gateway"} {
		RegisterModule(&lifecycleModule{id: id, events: &events})
	}

	tests := []struct {
		namespace string
		want      []ModuleID
	}{
		{"store", []ModuleID{"store.memory", "store.sqlite"}},
		{"embedding", []ModuleID{"embedding.openai"}},
		{"gateway", []ModuleID{"gateway"}},
		{"voice", []ModuleID{}},
	}
	for _, tt := range tests {
		t.Run(tt.namespace, func(t *testing.T) {
			if got := moduleIDs(GetModulesByNamespace(tt.namespace)); !slices.Equal(got, tt.want) {
				t.Errorf("GetModulesByNamespace(%q) = %v, want %v", tt.namespace, got, tt.want)
			}
		})
	}

	if got := len(GetModules()); got != 5 {
		t.Errorf("GetModules() = %d modules, want 5", got)
	}
}

func TestRegistry_RejectsInvalid(t *testing.T) {
	t.Cleanup(resetRegistry)

	var events []string
	RegisterModule(&lifecycleModule{id: "store.sqlite", events: &events})

	tests := []struct {
		name   string
		module Module
	}{
		{"empty id", &lifecycleModule{events: &events}},
		{"duplicate", &lifecycleModule{id: "store.sqlite", events: &events}},
		{"no constructor", noConstructor{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Error("RegisterModule should panic")
				}
			}()
			RegisterModule(tt.module)
		})
	}
}

type noConstructor struct{}

func (noConstructor) ModuleInfo() ModuleInfo { return ModuleInfo{ID: "store.broken"} }
