package channels

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/MinderBot/MinderBot/internal/bus"
	"github.com/MinderBot/MinderBot/internal/config"
)

// SlackChannel talks to Slack over Socket Mode, so no inbound webhook or
// public endpoint is needed.
type SlackChannel struct {
	BaseChannel
	config config.SlackConfig
	log    *slog.Logger
	api    *slack.Client
	socket *socketmode.Client
}

// NewSlackChannel creates the Slack channel.
func NewSlackChannel(cfg config.SlackConfig, messageBus *bus.MessageBus, log *slog.Logger) *SlackChannel {
	return &SlackChannel{
		BaseChannel: BaseChannel{Bus: messageBus},
		config:      cfg,
		log:         log,
	}
}

func (c *SlackChannel) Name() string { return "slack" }

// Start opens the Socket Mode connection and begins feeding direct messages
// onto the bus.
func (c *SlackChannel) Start(ctx context.Context) error {
	if !c.config.Enabled {
		return nil
	}
	if c.config.BotToken == "" || c.config.AppToken == "" {
		return fmt.Errorf("slack channel needs both botToken and appToken")
	}

	c.api = slack.New(c.config.BotToken, slack.OptionAppLevelToken(c.config.AppToken))
	c.socket = socketmode.New(c.api)

	go func() {
		if err := c.socket.RunContext(ctx); err != nil && ctx.Err() == nil {
			c.log.Error("slack socket closed", "error", err)
		}
	}()
	go c.eventLoop(ctx)

	c.Bus.Subscribe(c.Name(), func(msg *bus.OutboundMessage) {
		go func() {
			if err := c.Send(context.Background(), msg.Recipient, msg.Content); err != nil {
				c.log.Error("slack send failed", "recipient", msg.Recipient, "error", err)
			}
		}()
	})
	return nil
}

func (c *SlackChannel) Stop() error { return nil }

// Send posts one text message to a channel or DM.
func (c *SlackChannel) Send(ctx context.Context, recipient, text string) error {
	if c.api == nil {
		return fmt.Errorf("slack client not started")
	}
	_, _, err := c.api.PostMessageContext(ctx, recipient,
		slack.MsgOptionText(text, false))
	return err
}

func (c *SlackChannel) eventLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-c.socket.Events:
			if !ok {
				return
			}
			if evt.Type != socketmode.EventTypeEventsAPI {
				continue
			}
			apiEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
			if !ok {
				continue
			}
			c.socket.Ack(*evt.Request)
			c.handleEvent(apiEvent)
		}
	}
}

func (c *SlackChannel) handleEvent(evt slackevents.EventsAPIEvent) {
	if evt.Type != slackevents.CallbackEvent {
		return
	}
	msg, ok := evt.InnerEvent.Data.(*slackevents.MessageEvent)
	if !ok {
		return
	}
	// Bot and edit echoes would loop the dialogue back onto itself.
	if msg.BotID != "" || msg.SubType != "" || msg.Text == "" {
		return
	}
	c.Bus.PublishInbound(&bus.InboundMessage{
		Channel:  c.Name(),
		SenderID: msg.Channel,
		Content:  msg.Text,
	})
}
