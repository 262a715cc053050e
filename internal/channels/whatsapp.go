package channels

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/skip2/go-qrcode"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	waEvents "go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"

	"github.com/MinderBot/MinderBot/internal/bus"
	"github.com/MinderBot/MinderBot/internal/config"
)

// WhatsAppChannel is a native WhatsApp client. Session state lives in its
// own sqlite database next to the bot's.
type WhatsAppChannel struct {
	BaseChannel
	config    config.WhatsAppConfig
	dataDir   string
	log       *slog.Logger
	client    *whatsmeow.Client
	container *sqlstore.Container
	allowlist map[string]bool
}

// NewWhatsAppChannel creates the WhatsApp channel.
func NewWhatsAppChannel(cfg config.WhatsAppConfig, dataDir string, messageBus *bus.MessageBus, log *slog.Logger) *WhatsAppChannel {
	allow := make(map[string]bool, len(cfg.AllowFrom))
	for _, a := range cfg.AllowFrom {
		allow[a] = true
	}
	return &WhatsAppChannel{
		BaseChannel: BaseChannel{Bus: messageBus},
		config:      cfg,
		dataDir:     dataDir,
		log:         log,
		allowlist:   allow,
	}
}

func (c *WhatsAppChannel) Name() string { return "whatsapp" }

// Start connects (pairing via QR code on first run) and begins feeding
// inbound messages onto the bus.
func (c *WhatsAppChannel) Start(ctx context.Context) error {
	if !c.config.Enabled {
		return nil
	}

	dbLog := waLog.Stdout("Database", "WARN", true)
	clientLog := waLog.Stdout("Client", "WARN", true)

	dbPath := filepath.Join(c.dataDir, "whatsapp.db")
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	container, err := sqlstore.New(ctx, "sqlite",
		"file:"+dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", dbLog)
	if err != nil {
		return fmt.Errorf("init whatsapp db: %w", err)
	}
	c.container = container

	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return fmt.Errorf("get device: %w", err)
	}

	c.client = whatsmeow.NewClient(deviceStore, clientLog)
	c.client.AddEventHandler(c.eventHandler)

	if c.client.Store.ID == nil {
		qrChan, _ := c.client.GetQRChannel(context.Background())
		if err := c.client.Connect(); err != nil {
			return fmt.Errorf("connect: %w", err)
		}
		for evt := range qrChan {
			if evt.Event == "code" {
				qrPath := filepath.Join(c.dataDir, "whatsapp-qr.png")
				if err := qrcode.WriteFile(evt.Code, qrcode.Medium, 512, qrPath); err == nil {
					fmt.Printf("WhatsApp login QR code saved to %s — scan it with your phone.\n", qrPath)
				}
			} else {
				c.log.Info("whatsapp login event", "event", evt.Event)
			}
		}
	} else {
		if err := c.client.Connect(); err != nil {
			return fmt.Errorf("connect: %w", err)
		}
		c.log.Info("whatsapp connected")
	}

	c.Bus.Subscribe(c.Name(), func(msg *bus.OutboundMessage) {
		go func() {
			if err := c.Send(context.Background(), msg.Recipient, msg.Content); err != nil {
				c.log.Error("whatsapp send failed", "recipient", msg.Recipient, "error", err)
			}
		}()
	})
	return nil
}

func (c *WhatsAppChannel) Stop() error {
	if c.client != nil {
		c.client.Disconnect()
	}
	if c.container != nil {
		return c.container.Close()
	}
	return nil
}

// Send delivers one text message.
func (c *WhatsAppChannel) Send(ctx context.Context, recipient, text string) error {
	if c.client == nil {
		return fmt.Errorf("whatsapp client not started")
	}
	jid, err := types.ParseJID(recipient)
	if err != nil {
		// Bare phone numbers come in without a server part.
		jid = types.NewJID(recipient, types.DefaultUserServer)
	}
	_, err = c.client.SendMessage(ctx, jid, &waE2E.Message{
		Conversation: proto.String(text),
	})
	return err
}

func (c *WhatsAppChannel) eventHandler(evt interface{}) {
	msg, ok := evt.(*waEvents.Message)
	if !ok {
		return
	}
	if msg.Info.IsFromMe {
		return
	}

	content := msg.Message.GetConversation()
	if content == "" {
		content = msg.Message.GetExtendedTextMessage().GetText()
	}
	if content == "" {
		return
	}

	sender := msg.Info.Sender.User
	if !c.isAllowed(sender) {
		c.log.Warn("unauthorized whatsapp sender", "sender", sender)
		if c.config.DropUnauthorized {
			return
		}
	}

	c.Bus.PublishInbound(&bus.InboundMessage{
		Channel:   c.Name(),
		SenderID:  msg.Info.Chat.String(),
		Content:   content,
		Timestamp: msg.Info.Timestamp,
	})
}

// isAllowed checks the sender against the allowlist. An empty allowlist
// admits nobody; the bot is personal by default.
func (c *WhatsAppChannel) isAllowed(sender string) bool {
	return c.allowlist[sender]
}
