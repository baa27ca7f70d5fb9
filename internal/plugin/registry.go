package plugin

import (
	"fmt"
	"sort"
	"strings"

	"github.com/phinze/mixdeck/internal/action"
)

// Registry creates actions from the host's action identifiers, such as
// "com.example.mixdeck.app_volume", by their last dotted element.
type Registry struct {
	factories map[string]action.Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]action.Factory)}
}

// Register binds a suffix to a factory, replacing any previous binding.
func (r *Registry) Register(suffix string, f action.Factory) {
	r.factories[suffix] = f
}

// Create returns a fresh action for the given identifier.
func (r *Registry) Create(actionUUID string) (action.Action, error) {
	name := Suffix(actionUUID)
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown action type %q", name)
	}
	return f(), nil
}

// Names returns the registered suffixes in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Suffix returns the last dotted element of an action identifier.
func Suffix(actionUUID string) string {
	if i := strings.LastIndexByte(actionUUID, '.'); i >= 0 {
		return actionUUID[i+1:]
	}
	return actionUUID
}
