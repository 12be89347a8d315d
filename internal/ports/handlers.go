package ports

import (
	"context"

	"github.com/Midan14/baccarat-bot/internal/events"
)

// SignalHandler handles emitted signals (serial delivery recommended).
//
// NOTE: This interface is intentionally defined in a "neutral" package to avoid
// circular dependencies between the orchestrator, infrastructure adapters
// (feed/notify/controlplane) and persistence.
type SignalHandler interface {
	OnSignal(ctx context.Context, e events.SignalEmittedEvent) error
}

// SignalHandlerFunc adapts a function to SignalHandler.
type SignalHandlerFunc func(ctx context.Context, e events.SignalEmittedEvent) error

func (f SignalHandlerFunc) OnSignal(ctx context.Context, e events.SignalEmittedEvent) error {
	return f(ctx, e)
}

// BankrollEventHandler receives bankroll mutation events for external persistence.
type BankrollEventHandler interface {
	OnBankrollChanged(ctx context.Context, e events.BankrollChangedEvent) error
}

// BankrollEventHandlerFunc adapts a function to BankrollEventHandler.
type BankrollEventHandlerFunc func(ctx context.Context, e events.BankrollChangedEvent) error

func (f BankrollEventHandlerFunc) OnBankrollChanged(ctx context.Context, e events.BankrollChangedEvent) error {
	return f(ctx, e)
}

// SessionEventHandler receives session state transitions.
type SessionEventHandler interface {
	OnSessionStateChanged(ctx context.Context, e events.SessionStateChangedEvent) error
}

// SessionEventHandlerFunc adapts a function to SessionEventHandler.
type SessionEventHandlerFunc func(ctx context.Context, e events.SessionStateChangedEvent) error

func (f SessionEventHandlerFunc) OnSessionStateChanged(ctx context.Context, e events.SessionStateChangedEvent) error {
	return f(ctx, e)
}
