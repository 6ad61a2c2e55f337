package feed

import "sync"

// ConnState tracks the private channel's handshake progress. The subscribe
// frame may only be sent from Authenticating, on a login acknowledgment.
type ConnState string

type ConnEvent string

const (
	StateConnecting     ConnState = "CONNECTING"
	StateAuthenticating ConnState = "AUTHENTICATING"
	StateSubscribed     ConnState = "SUBSCRIBED"
	StateStreaming      ConnState = "STREAMING"
	StateReconnecting   ConnState = "RECONNECTING"
	StateClosed         ConnState = "CLOSED"
)

const (
	EventDialed    ConnEvent = "DIALED"
	EventLoginSent ConnEvent = "LOGIN_SENT"
	EventLoginAck  ConnEvent = "LOGIN_ACK"
	EventData      ConnEvent = "DATA"
	EventDropped   ConnEvent = "DROPPED"
	EventShutdown  ConnEvent = "SHUTDOWN"
)

type ConnStateMachine struct {
	mu    sync.Mutex
	state ConnState
}

func NewConnStateMachine() *ConnStateMachine {
	return &ConnStateMachine{state: StateConnecting}
}

func (m *ConnStateMachine) State() ConnState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *ConnStateMachine) Apply(event ConnEvent) ConnState {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = nextConnState(m.state, event)
	return m.state
}

func nextConnState(current ConnState, event ConnEvent) ConnState {
	if current == StateClosed {
		return current
	}
	switch event {
	case EventDialed:
		return StateConnecting
	case EventDropped:
		return StateReconnecting
	case EventShutdown:
		return StateClosed
	}
	switch current {
	case StateConnecting:
		if event == EventLoginSent {
			return StateAuthenticating
		}
	case StateAuthenticating:
		if event == EventLoginAck {
			return StateSubscribed
		}
	case StateSubscribed:
		if event == EventData {
			return StateStreaming
		}
	}
	return current
}
