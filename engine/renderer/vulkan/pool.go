package vulkan

import "sync"

type lockGroup string

const (
	resourceManagement lockGroup = "resource_management"
	commandManagement  lockGroup = "command_buffer_management"
	descriptorUpdates  lockGroup = "descriptor_updates"
)

// lockPool serialises access to externally synchronised Vulkan objects: the
// command pool, descriptor pools and the queue.
type lockPool struct {
	mu     sync.Mutex
	locks  map[lockGroup]*sync.Mutex
	queues map[uint32]*sync.Mutex
}

func newLockPool() *lockPool {
	return &lockPool{
		locks:  make(map[lockGroup]*sync.Mutex),
		queues: make(map[uint32]*sync.Mutex),
	}
}

func (p *lockPool) group(g lockGroup) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.locks[g]
	if !ok {
		l = &sync.Mutex{}
		p.locks[g] = l
	}
	return l
}

func (p *lockPool) safeCall(g lockGroup, fn func() error) error {
	l := p.group(g)
	l.Lock()
	defer l.Unlock()
	return fn()
}

func (p *lockPool) queue(family uint32) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.queues[family]
	if !ok {
		l = &sync.Mutex{}
		p.queues[family] = l
	}
	return l
}

func (p *lockPool) safeQueueCall(family uint32, fn func() error) error {
	l := p.queue(family)
	l.Lock()
	defer l.Unlock()
	return fn()
}
