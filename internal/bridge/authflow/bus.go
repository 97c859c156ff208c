package authflow

import "sync"

const listenerBuffer = 8

// ChannelBus is an in-process Bus. Post fans a message out to every current
// subscriber and drops it for subscribers whose buffer is full.
type ChannelBus struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan Message
}

func NewChannelBus() *ChannelBus {
	return &ChannelBus{subs: make(map[int]chan Message)}
}

func (b *ChannelBus) Subscribe() (<-chan Message, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	ch := make(chan Message, listenerBuffer)
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs, id)
			close(ch)
		})
	}
}

// Post delivers msg and returns how many listeners received it.
func (b *ChannelBus) Post(msg Message) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	delivered := 0
	for _, ch := range b.subs {
		select {
		case ch <- msg:
			delivered++
		default:
		}
	}
	return delivered
}

func (b *ChannelBus) Listeners() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
