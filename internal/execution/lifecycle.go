package execution

import (
	"github.com/ducminhle1904/crypto-trade-engine/internal/exchange"
)

// State is a step in the life of an order placed through the manager
type State string

const (
	StateRequested State = "requested"
	StateValidated State = "validated"
	StateSubmitted State = "submitted"
	StatePending   State = "pending"
	StateFilled    State = "filled"
	StateRejected  State = "rejected"
	StateCancelled State = "cancelled"
)

var transitions = map[State][]State{
	StateRequested: {StateValidated, StateRejected},
	StateValidated: {StateSubmitted, StateRejected},
	StateSubmitted: {StatePending, StateFilled, StateRejected, StateCancelled},
	StatePending:   {StateFilled, StateRejected, StateCancelled},
}

// CanTransition reports whether an order may move from one state to another
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible
func (s State) Terminal() bool {
	return len(transitions[s]) == 0
}

// stateFor maps an exchange-reported status onto the lifecycle
func stateFor(status exchange.OrderStatus) State {
	switch status {
	case exchange.OrderStatusFilled:
		return StateFilled
	case exchange.OrderStatusCancelled:
		return StateCancelled
	case exchange.OrderStatusRejected:
		return StateRejected
	default:
		return StatePending
	}
}

// Role distinguishes the entry order from its protective orders. RoleCancel
// marks the record appended when an order is cancelled.
type Role string

const (
	RolePrimary    Role = "primary"
	RoleStopLoss   Role = "stop_loss"
	RoleTakeProfit Role = "take_profit"
	RoleCancel     Role = "cancel"
)
