package whatsapp

import (
	"context"
	"time"
)

// UserServer is the JID server of individual WhatsApp accounts.
const UserServer = "s.whatsapp.net"

// Event is either ConnectionChanged or MessageReceived.
type Event interface {
	isEvent()
}

type ConnectionKind string

const (
	KindPairingChallenge ConnectionKind = "pairing_challenge"
	KindConnected        ConnectionKind = "connected"
	KindDisconnected     ConnectionKind = "disconnected"
)

type DisconnectCause string

const (
	CauseNetwork   DisconnectCause = "network"
	CauseLoggedOut DisconnectCause = "logged_out"
)

// ConnectionChanged reports a change of the network connection.
// Challenge is set for KindPairingChallenge, Cause for KindDisconnected.
type ConnectionChanged struct {
	Kind      ConnectionKind
	Challenge string
	Cause     DisconnectCause
}

// MessageReceived is an inbound text message.
type MessageReceived struct {
	ID           string
	Sender       string // user part of the sender JID
	SenderServer string
	FromMe       bool
	Group        bool
	Broadcast    bool // status, broadcast lists and newsletters
	Text         string
	Timestamp    time.Time
}

func (ConnectionChanged) isEvent() {}
func (MessageReceived) isEvent()   {}

// Direct reports whether the message was sent by a single account to us.
func (m MessageReceived) Direct() bool {
	return !m.FromMe && !m.Group && !m.Broadcast && m.SenderServer == UserServer
}

// Client is the network connection owned by the Manager.
type Client interface {
	// HasCredentials reports whether a paired device can be resumed
	HasCredentials() bool
	// Connect returns once the connection attempt started. The outcome
	// arrives as ConnectionChanged events.
	Connect(ctx context.Context) error
	Disconnect()
	SendText(ctx context.Context, identity, text string) error
	PersistCredentials(ctx context.Context) error
	SetEventHandler(handler func(Event))
}
