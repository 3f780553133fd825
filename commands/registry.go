package commands

import (
	"fmt"
	"sort"

	"github.com/josephlewis42/jobsh/core/process"
)

// allCommands holds every builtin compiled into the binary.
var allCommands = make(map[string]CommandFunc)

// mustAddCmd registers a builtin under name.
func mustAddCmd(name string, cmd CommandFunc) {
	if _, ok := allCommands[name]; ok {
		panic(fmt.Sprintf("duplicate builtin %q", name))
	}
	allCommands[name] = cmd
}

// Registry resolves program names to builtins. It implements
// process.Builtins.
type Registry struct {
	cmds map[string]CommandFunc
}

var _ process.Builtins = (*Registry)(nil)

// Default returns a registry with every builtin.
func Default() *Registry {
	r := &Registry{cmds: make(map[string]CommandFunc)}
	for name, cmd := range allCommands {
		r.cmds[name] = cmd
	}
	return r
}

// NewRegistry returns a registry with only the named builtins.
func NewRegistry(names ...string) (*Registry, error) {
	r := &Registry{cmds: make(map[string]CommandFunc)}
	for _, name := range names {
		cmd, ok := allCommands[name]
		if !ok {
			return nil, fmt.Errorf("unknown builtin %q", name)
		}
		r.cmds[name] = cmd
	}
	return r, nil
}

// Lookup implements process.Builtins.
func (r *Registry) Lookup(name string) (process.Func, bool) {
	cmd, ok := r.cmds[name]
	if !ok {
		return nil, false
	}
	return func(argv []string) int {
		return cmd(NewOSProc(argv))
	}, true
}

// Names implements process.Builtins.
func (r *Registry) Names() []string {
	var out []string
	for name := range r.cmds {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ListBuiltinCommands lists the names of every builtin compiled in.
func ListBuiltinCommands() []string {
	return Default().Names()
}
