package resource

import "github.com/tigrazone/gkNextRenderer/engine/core"

type release struct {
	label string
	fn    func()
	child *Arena
}

// Arena owns GPU objects and destroys them in reverse registration order.
// An object registered after its dependencies is always released before them,
// so registering memory, then image, then view yields view, image, memory teardown.
type Arena struct {
	name     string
	entries  []release
	released bool
}

func NewArena(name string) *Arena {
	return &Arena{name: name}
}

// Own registers a destructor. Registering on a released arena runs fn immediately.
func (a *Arena) Own(label string, fn func()) {
	if a.released {
		core.LogWarn("arena %s already released; destroying %s now", a.name, label)
		fn()
		return
	}
	a.entries = append(a.entries, release{label: label, fn: fn})
}

// Child nests an arena that is released at its registration point in the parent.
func (a *Arena) Child(name string) *Arena {
	child := NewArena(a.name + "/" + name)
	a.entries = append(a.entries, release{label: name, child: child})
	return child
}

// Len reports the number of live entries.
func (a *Arena) Len() int {
	return len(a.entries)
}

// Release runs every destructor once, newest first.
func (a *Arena) Release() {
	if a.released {
		return
	}
	a.released = true
	for i := len(a.entries) - 1; i >= 0; i-- {
		e := a.entries[i]
		if e.child != nil {
			e.child.Release()
			continue
		}
		e.fn()
	}
	a.entries = nil
	core.LogDebug("arena %s released", a.name)
}
