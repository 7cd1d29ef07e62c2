package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tele "gopkg.in/telebot.v3"

	"github.com/zhubert/ccbridge/binding"
	"github.com/zhubert/ccbridge/config"
	"github.com/zhubert/ccbridge/logger"
	"github.com/zhubert/ccbridge/syncgate"
)

// commandMenu is registered with Telegram so the client offers command
// completion.
var commandMenu = []tele.Command{
	{Text: "start", Description: "Start new Claude session in tmux"},
	{Text: "stop", Description: "Pause sync (resume with /start, /resume, or /continue)"},
	{Text: "escape", Description: "Interrupt Claude (send Escape)"},
	{Text: "terminate", Description: "Disconnect completely (need /start to reconnect)"},
	{Text: "resume", Description: "Resume session (shows picker)"},
	{Text: "continue", Description: "Continue most recent session"},
	{Text: "clear", Description: "Clear conversation"},
	{Text: "bind", Description: "Bind this chat to current session"},
	{Text: "loop", Description: "Ralph Loop: /loop <prompt>"},
	{Text: "status", Description: "Check tmux status"},
	{Text: "projects", Description: "Browse projects and sessions"},
	{Text: "report", Description: "Token usage report"},
}

// blockedCommands only make sense inside Claude's own interactive UI
// and are refused rather than forwarded to the pane.
var blockedCommands = map[string]bool{
	"/mcp": true, "/help": true, "/settings": true, "/config": true,
	"/model": true, "/compact": true, "/cost": true, "/doctor": true,
	"/init": true, "/login": true, "/logout": true, "/memory": true,
	"/permissions": true, "/pr": true, "/review": true, "/terminal": true,
	"/vim": true, "/approved-tools": true, "/listen": true,
}

// Bot is the Telegram transport over a Service.
type Bot struct {
	tb  *tele.Bot
	svc *Service
	cfg *config.Config
	log *slog.Logger
	ctx context.Context
}

// New connects to Telegram and registers all handlers. With a webhook
// URL configured it listens for deliveries on the configured port;
// otherwise it long-polls.
func New(cfg *config.Config, svc *Service, gate *syncgate.Gate, bindings *binding.Store) (*Bot, error) {
	var poller tele.Poller
	if cfg.WebhookURL != "" {
		poller = &tele.Webhook{
			Listen:      fmt.Sprintf(":%d", cfg.Port),
			SecretToken: cfg.WebhookSecret,
			Endpoint:    &tele.WebhookEndpoint{PublicURL: cfg.WebhookURL},
		}
	} else {
		poller = &tele.LongPoller{Timeout: 10 * time.Second}
	}

	log := logger.WithComponent("bot")
	tb, err := tele.NewBot(tele.Settings{
		Token:  cfg.BotToken,
		Poller: poller,
		OnError: func(err error, c tele.Context) {
			log.Error("handler error", "error", err)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to telegram: %w", err)
	}

	typist := NewTypist(gate, time.Duration(cfg.TypingSeconds)*time.Second, func(chatID int64) {
		if err := tb.Notify(tele.ChatID(chatID), tele.Typing); err != nil {
			log.Debug("typing action failed", "error", err)
		}
	})
	svc.SetTypingStarter(typist.Start)

	b := &Bot{tb: tb, svc: svc, cfg: cfg, log: log, ctx: context.Background()}
	b.register(bindings)
	return b, nil
}

// register installs middleware and all handlers.
func (b *Bot) register(bindings *binding.Store) {
	// Every inbound message refreshes the last-known chat marker so
	// the reconciliation loop has a chat to auto-bind against.
	b.tb.Use(func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if c.Chat() != nil {
				bindings.RememberChat(c.Chat().ID)
			}
			return next(c)
		}
	})

	b.tb.Handle("/status", func(c tele.Context) error {
		return b.send(c, b.svc.Status(b.ctx, c.Chat().ID))
	})
	b.tb.Handle("/start", func(c tele.Context) error {
		return b.send(c, b.svc.StartNew(b.ctx, c.Chat().ID))
	})
	b.tb.Handle("/stop", func(c tele.Context) error {
		return b.send(c, b.svc.Stop())
	})
	b.tb.Handle("/escape", func(c tele.Context) error {
		return b.send(c, b.svc.Escape(b.ctx))
	})
	b.tb.Handle("/terminate", func(c tele.Context) error {
		return b.send(c, b.svc.Terminate())
	})
	b.tb.Handle("/bind", func(c tele.Context) error {
		return b.send(c, b.svc.BindCurrent(b.ctx, c.Chat().ID))
	})
	b.tb.Handle("/clear", func(c tele.Context) error {
		return b.send(c, b.svc.ClearConversation(b.ctx))
	})
	b.tb.Handle("/continue", func(c tele.Context) error {
		return b.send(c, b.svc.ContinueRecent(b.ctx, c.Chat().ID))
	})
	b.tb.Handle("/loop", func(c tele.Context) error {
		return b.send(c, b.svc.Loop(b.ctx, c.Chat().ID, c.Message().Payload))
	})
	b.tb.Handle("/resume", func(c tele.Context) error {
		return b.send(c, b.svc.ResumePicker())
	})
	b.tb.Handle("/projects", func(c tele.Context) error {
		return b.send(c, b.svc.ProjectsPicker())
	})
	b.tb.Handle("/report", func(c tele.Context) error {
		if err := c.Send("Scanning sessions..."); err != nil {
			return err
		}
		return b.send(c, b.svc.Report())
	})

	b.tb.Handle(tele.OnText, b.onText)
	b.tb.Handle(tele.OnCallback, b.onCallback)
}

// onText handles free text and unregistered slash commands.
func (b *Bot) onText(c tele.Context) error {
	msg := c.Text()
	if strings.HasPrefix(msg, "/") {
		cmd := strings.ToLower(strings.Fields(msg)[0])
		if blockedCommands[cmd] {
			return c.Send(fmt.Sprintf("'%s' not supported (interactive)", cmd))
		}
	}
	logger.WithChat(c.Chat().ID).Info("forwarding message", "length", len(msg))
	return b.send(c, b.svc.FreeText(b.ctx, c.Chat().ID, msg))
}

// onCallback handles inline keyboard presses.
func (b *Bot) onCallback(c tele.Context) error {
	cb := c.Callback()
	if cb == nil || c.Chat() == nil {
		return nil
	}
	if err := c.Respond(); err != nil {
		b.log.Debug("callback ack failed", "error", err)
	}
	data := strings.TrimPrefix(cb.Data, "\f")
	return b.send(c, b.svc.Callback(b.ctx, c.Chat().ID, data))
}

// send delivers a Reply, attaching the inline keyboard when present.
func (b *Bot) send(c tele.Context, r Reply) error {
	if r.Text == "" {
		return nil
	}
	if len(r.Keyboard) > 0 {
		return c.Send(r.Text, &tele.ReplyMarkup{InlineKeyboard: r.Keyboard})
	}
	return c.Send(r.Text)
}

// Start registers the command menu and serves updates until the
// context is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	b.ctx = ctx
	if err := b.tb.SetCommands(commandMenu); err != nil {
		b.log.Warn("failed to register command menu", "error", err)
	} else {
		b.log.Info("command menu registered")
	}

	go func() {
		<-ctx.Done()
		b.tb.Stop()
	}()

	mode := "long polling"
	if b.cfg.WebhookURL != "" {
		mode = fmt.Sprintf("webhook on :%d", b.cfg.Port)
	}
	b.log.Info("bot started", "mode", mode, "tmuxSession", b.cfg.TmuxSession)
	b.tb.Start()
	return ctx.Err()
}
