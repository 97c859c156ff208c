// Package panel holds the floating assistant panel's state and renders it.
package panel

import (
	"errors"
	"strings"
	"sync"

	"assistant-bridge/internal/domain"
)

var (
	ErrBusy           = errors.New("panel: a message is already being sent")
	ErrNoConversation = errors.New("panel: no assistant selected")
	ErrEmptyMessage   = errors.New("panel: message is empty")
)

type State int

const (
	Closed State = iota
	Open
)

func (s State) String() string {
	if s == Open {
		return "open"
	}
	return "closed"
}

// Panel is the projection the UI renders. Message history belongs to the
// active conversation and is discarded when another assistant is selected.
type Panel struct {
	mu sync.Mutex

	state            State
	loading          bool
	assistants       []domain.Assistant
	assistantsLoaded bool
	selected         domain.Assistant
	conversation     domain.Conversation
	messages         []domain.Message
	input            string
}

func New() *Panel {
	return &Panel{}
}

// Toggle flips open/closed and reports whether the panel is now open.
func (p *Panel) Toggle() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == Open {
		p.state = Closed
	} else {
		p.state = Open
	}
	return p.state == Open
}

func (p *Panel) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Panel) SetAssistants(list []domain.Assistant) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.assistants = append([]domain.Assistant(nil), list...)
	p.assistantsLoaded = true
}

// Assistants returns the cached list and whether it was ever loaded.
func (p *Panel) Assistants() ([]domain.Assistant, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.Assistant(nil), p.assistants...), p.assistantsLoaded
}

// Assistant looks up a cached assistant by id.
func (p *Panel) Assistant(id string) (domain.Assistant, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, a := range p.assistants {
		if a.ID == id {
			return a, true
		}
	}
	return domain.Assistant{}, false
}

// SetConversation makes conv the only active conversation and clears history.
func (p *Panel) SetConversation(a domain.Assistant, conv domain.Conversation) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.selected = a
	p.conversation = conv
	p.messages = nil
	p.input = ""
}

func (p *Panel) Conversation() (domain.Conversation, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conversation, p.conversation.ID != ""
}

func (p *Panel) Selected() domain.Assistant {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.selected
}

func (p *Panel) Messages() []domain.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.Message(nil), p.messages...)
}

// ReplaceMessages rebuilds the log of conversationID, if it is still active.
func (p *Panel) ReplaceMessages(conversationID string, msgs []domain.Message) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conversation.ID != conversationID {
		return false
	}
	p.messages = append([]domain.Message(nil), msgs...)
	return true
}

// BeginSend appends the user's message optimistically and raises the loading
// flag. It fails while another send is in flight.
func (p *Panel) BeginSend(text string) (domain.Conversation, error) {
	text = strings.TrimSpace(text)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.loading {
		return domain.Conversation{}, ErrBusy
	}
	if p.conversation.ID == "" {
		return domain.Conversation{}, ErrNoConversation
	}
	if text == "" {
		return domain.Conversation{}, ErrEmptyMessage
	}
	p.messages = append(p.messages, domain.Message{Role: domain.RoleUser, Text: text})
	p.input = ""
	p.loading = true
	return p.conversation, nil
}

// FinishSend lowers the loading flag and appends reply when conversationID is
// still the active conversation. Replies for a replaced conversation are
// dropped.
func (p *Panel) FinishSend(conversationID string, reply domain.Message) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loading = false
	if p.conversation.ID != conversationID {
		return false
	}
	p.messages = append(p.messages, reply)
	return true
}

func (p *Panel) Loading() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loading
}

// CanSend reports whether the send control is enabled.
func (p *Panel) CanSend() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.loading && p.conversation.ID != ""
}

func (p *Panel) SetInput(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.input = text
}

func (p *Panel) Input() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.input
}

// Message returns the log entry at index.
func (p *Panel) Message(index int) (domain.Message, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if index < 0 || index >= len(p.messages) {
		return domain.Message{}, false
	}
	return p.messages[index], true
}

func (p *Panel) snapshot() view {
	p.mu.Lock()
	defer p.mu.Unlock()
	return view{
		Open:         p.state == Open,
		Loading:      p.loading,
		CanSend:      !p.loading && p.conversation.ID != "",
		Assistants:   append([]domain.Assistant(nil), p.assistants...),
		SelectedID:   p.selected.ID,
		Conversation: p.conversation.ID,
		Messages:     append([]domain.Message(nil), p.messages...),
		Input:        p.input,
	}
}
