package whatsapp

import (
	"context"
	"database/sql"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"go.mau.fi/whatsmeow"
	waE2E "go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	waTypes "go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"
)

// MeowClient implements Client on top of whatsmeow. Device credentials are
// kept in the application database by whatsmeow's sqlstore.
type MeowClient struct {
	// ctx bounds the QR channels, which outlive a single Connect call
	ctx       context.Context
	container *sqlstore.Container
	log       waLog.Logger

	mu      sync.RWMutex
	cli     *whatsmeow.Client
	handler func(Event)
}

// SQLDialect maps a database type from the config onto a sqlstore dialect.
func SQLDialect(dbType string) string {
	switch strings.ToLower(strings.TrimSpace(dbType)) {
	case "postgres", "postgresql":
		return "postgres"
	default:
		return "sqlite3"
	}
}

// NewMeowClient upgrades the whatsmeow tables in db and loads the first
// stored device, or a blank one when nothing is paired yet.
func NewMeowClient(ctx context.Context, db *sql.DB, dialect string) (*MeowClient, error) {
	log := NewZapLogger("whatsmeow")
	container := sqlstore.NewWithDB(db, dialect, log.Sub("Database"))
	if err := container.Upgrade(ctx); err != nil {
		zap.L().Error("whatsapp: sqlstore upgrade failed", zap.String("namespace", "whatsapp"), zap.Error(err), zap.String("dialect", dialect))
		return nil, errors.Wrap(err, "sqlstore upgrade")
	}
	dev, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load whatsapp device")
	}

	c := &MeowClient{ctx: ctx, container: container, log: log}
	c.useDevice(dev)
	zap.L().Info("whatsapp: client initialized",
		zap.String("namespace", "whatsapp"),
		zap.Bool("paired", dev.ID != nil),
		zap.String("dialect", dialect))
	return c, nil
}

func (c *MeowClient) useDevice(dev *store.Device) {
	cli := whatsmeow.NewClient(dev, c.log.Sub("Client"))
	// reconnects are driven by the Manager
	cli.EnableAutoReconnect = false
	// events of a replaced client are dropped
	cli.AddEventHandler(func(evt interface{}) {
		if c.client() == cli {
			c.onEvent(evt)
		}
	})

	c.mu.Lock()
	c.cli = cli
	c.mu.Unlock()
}

func (c *MeowClient) client() *whatsmeow.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cli
}

func (c *MeowClient) SetEventHandler(handler func(Event)) {
	c.mu.Lock()
	c.handler = handler
	c.mu.Unlock()
}

func (c *MeowClient) emit(ev Event) {
	c.mu.RLock()
	h := c.handler
	c.mu.RUnlock()
	if h != nil {
		h(ev)
	}
}

func (c *MeowClient) HasCredentials() bool {
	return c.client().Store.ID != nil
}

func (c *MeowClient) Connect(ctx context.Context) error {
	cli := c.client()
	if cli.IsConnected() {
		return nil
	}
	if cli.Store.ID == nil {
		qr, err := cli.GetQRChannel(c.ctx)
		if err != nil {
			return errors.Wrap(err, "open qr channel")
		}
		go c.watchQR(qr)
	}
	return cli.Connect()
}

func (c *MeowClient) watchQR(qr <-chan whatsmeow.QRChannelItem) {
	for item := range qr {
		switch item.Event {
		case whatsmeow.QRChannelEventCode:
			c.emit(ConnectionChanged{Kind: KindPairingChallenge, Challenge: item.Code})
		case whatsmeow.QRChannelSuccess.Event:
			zap.L().Info("whatsapp: pairing succeeded", zap.String("namespace", "whatsapp"))
		case whatsmeow.QRChannelTimeout.Event:
			// whatsmeow closes the socket itself; retry with fresh codes
			zap.L().Warn("whatsapp: pairing timed out", zap.String("namespace", "whatsapp"))
			c.emit(ConnectionChanged{Kind: KindDisconnected, Cause: CauseNetwork})
		default:
			zap.L().Warn("whatsapp: pairing failed",
				zap.String("namespace", "whatsapp"),
				zap.String("event", item.Event),
				zap.Error(item.Error))
			c.emit(ConnectionChanged{Kind: KindDisconnected, Cause: CauseNetwork})
		}
	}
}

func (c *MeowClient) Disconnect() {
	c.client().Disconnect()
}

func (c *MeowClient) SendText(ctx context.Context, identity, text string) error {
	jid := waTypes.NewJID(identity, waTypes.DefaultUserServer)
	msg := &waE2E.Message{Conversation: proto.String(text)}
	_, err := c.client().SendMessage(ctx, jid, msg)
	return err
}

func (c *MeowClient) PersistCredentials(ctx context.Context) error {
	return c.client().Store.Save(ctx)
}

// onEvent translates whatsmeow events into Events.
func (c *MeowClient) onEvent(evt interface{}) {
	switch v := evt.(type) {
	case *events.Connected:
		c.emit(ConnectionChanged{Kind: KindConnected})
	case *events.PairSuccess:
		zap.L().Info("whatsapp: device paired", zap.String("namespace", "whatsapp"), zap.String("jid", v.ID.String()))
	case *events.Disconnected:
		c.emit(ConnectionChanged{Kind: KindDisconnected, Cause: CauseNetwork})
	case *events.StreamReplaced:
		zap.L().Warn("whatsapp: stream replaced by another connection", zap.String("namespace", "whatsapp"))
		c.emit(ConnectionChanged{Kind: KindDisconnected, Cause: CauseNetwork})
	case *events.LoggedOut:
		c.loggedOut(v.Reason.String())
	case *events.ConnectFailure:
		if v.Reason.IsLoggedOut() {
			c.loggedOut(v.Reason.String())
			return
		}
		zap.L().Warn("whatsapp: connect failure", zap.String("namespace", "whatsapp"), zap.String("reason", v.Reason.String()))
		c.emit(ConnectionChanged{Kind: KindDisconnected, Cause: CauseNetwork})
	case *events.Message:
		c.emit(messageFromEvent(v))
	}
}

// loggedOut swaps in a blank device so the next Connect pairs again.
func (c *MeowClient) loggedOut(reason string) {
	zap.L().Warn("whatsapp: device logged out", zap.String("namespace", "whatsapp"), zap.String("reason", reason))
	c.useDevice(c.container.NewDevice())
	c.emit(ConnectionChanged{Kind: KindDisconnected, Cause: CauseLoggedOut})
}

func messageFromEvent(v *events.Message) MessageReceived {
	text := v.Message.GetConversation()
	if text == "" {
		text = v.Message.GetExtendedTextMessage().GetText()
	}
	chat := v.Info.Chat.Server
	return MessageReceived{
		ID:           v.Info.ID,
		Sender:       v.Info.Sender.User,
		SenderServer: v.Info.Sender.Server,
		FromMe:       v.Info.IsFromMe,
		Group:        v.Info.IsGroup || chat == waTypes.GroupServer,
		Broadcast:    chat == waTypes.BroadcastServer || chat == waTypes.NewsletterServer,
		Text:         text,
		Timestamp:    v.Info.Timestamp,
	}
}
