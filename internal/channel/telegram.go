package channel

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/spoonos-ai/spoonbot/internal/bus"
	"github.com/spoonos-ai/spoonbot/internal/config"
)

const telegramChannelName = "telegram"

// Telegram rejects messages over 4096 chars; long replies are split a bit
// below that so the HTML markup has headroom.
const telegramMaxLen = 4000

const telegramStartReply = `Hello! I'm spoonbot, your local AI assistant.

Send me a message and I'll help with shell commands, file operations,
code, and research. Type /help for more.`

const telegramHelpReply = `spoonbot commands:

/start - introduction
/help - this help

Anything else goes straight to the agent.`

// TelegramBot is the slice of the bot API the channel uses, split out so
// tests can substitute a fake.
type TelegramBot interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetSelf() tgbotapi.User
}

type tgBotWrapper struct {
	bot *tgbotapi.BotAPI
}

func (w *tgBotWrapper) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return w.bot.GetUpdatesChan(config)
}

func (w *tgBotWrapper) StopReceivingUpdates() {
	w.bot.StopReceivingUpdates()
}

func (w *tgBotWrapper) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	return w.bot.Send(c)
}

func (w *tgBotWrapper) GetSelf() tgbotapi.User {
	return w.bot.Self
}

// BotFactory creates TelegramBot instances (allows mocking).
type BotFactory func(token, apiEndpoint string, client *http.Client) (TelegramBot, error)

var defaultBotFactory BotFactory = func(token, apiEndpoint string, client *http.Client) (TelegramBot, error) {
	bot, err := tgbotapi.NewBotAPIWithClient(token, apiEndpoint, client)
	if err != nil {
		return nil, err
	}
	return &tgBotWrapper{bot: bot}, nil
}

// TelegramChannel polls the Telegram Bot API for updates and relays text
// messages to the bus.
type TelegramChannel struct {
	BaseChannel
	token      string
	proxy      string
	bot        TelegramBot
	cancel     context.CancelFunc
	botFactory BotFactory
}

func NewTelegramChannel(cfg config.TelegramConfig, b *bus.MessageBus) (*TelegramChannel, error) {
	return NewTelegramChannelWithFactory(cfg, b, defaultBotFactory)
}

// NewTelegramChannelWithFactory creates a TelegramChannel with a custom bot
// factory (for testing).
func NewTelegramChannelWithFactory(cfg config.TelegramConfig, b *bus.MessageBus, factory BotFactory) (*TelegramChannel, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram token is required")
	}

	return &TelegramChannel{
		BaseChannel: NewBaseChannel(telegramChannelName, b, cfg.AllowFrom),
		token:       cfg.Token,
		proxy:       cfg.Proxy,
		botFactory:  factory,
	}, nil
}

func (t *TelegramChannel) initBot() error {
	client := http.DefaultClient
	if t.proxy != "" {
		proxyURL, err := url.Parse(t.proxy)
		if err != nil {
			return fmt.Errorf("parse proxy url: %w", err)
		}
		client = &http.Client{
			Transport: &http.Transport{Proxy: http.ProxyURL(proxyURL)},
		}
	}

	bot, err := t.botFactory(t.token, tgbotapi.APIEndpoint, client)
	if err != nil {
		return fmt.Errorf("create telegram bot: %w", err)
	}
	t.bot = bot
	log.Printf("[telegram] authorized as @%s", bot.GetSelf().UserName)
	return nil
}

func (t *TelegramChannel) Start(ctx context.Context) error {
	if err := t.initBot(); err != nil {
		return err
	}

	ctx, t.cancel = context.WithCancel(ctx)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := t.bot.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case update := <-updates:
				if update.Message == nil {
					continue
				}
				t.handleMessage(update.Message)
			case <-ctx.Done():
				return
			}
		}
	}()

	log.Printf("[telegram] polling started")
	return nil
}

func (t *TelegramChannel) handleMessage(msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}

	senderID := strconv.FormatInt(msg.From.ID, 10)
	if !t.IsAllowed(senderID) {
		log.Printf("[telegram] rejected message from %s (%s)", senderID, msg.From.UserName)
		return
	}

	if msg.IsCommand() {
		t.handleCommand(msg)
		return
	}

	content := msg.Text
	if content == "" {
		content = msg.Caption
	}
	if content == "" {
		return
	}

	chatID := strconv.FormatInt(msg.Chat.ID, 10)

	in := bus.NewInboundMessage(telegramChannelName, senderID, chatID, content)
	if msg.Date != 0 {
		in.Timestamp = time.Unix(int64(msg.Date), 0)
	}
	in.Metadata = map[string]any{
		"username":   msg.From.UserName,
		"first_name": msg.From.FirstName,
		"message_id": msg.MessageID,
	}

	t.bus.Inbound <- in
}

func (t *TelegramChannel) handleCommand(msg *tgbotapi.Message) {
	var reply string
	switch msg.Command() {
	case "start":
		reply = telegramStartReply
	case "help":
		reply = telegramHelpReply
	default:
		return
	}

	if _, err := t.bot.Send(tgbotapi.NewMessage(msg.Chat.ID, reply)); err != nil {
		log.Printf("[telegram] command reply failed: %v", err)
	}
}

func (t *TelegramChannel) Stop() error {
	if t.cancel != nil {
		t.cancel()
	}
	if t.bot != nil {
		t.bot.StopReceivingUpdates()
	}
	log.Printf("[telegram] stopped")
	return nil
}

// SetBot sets the bot (for testing).
func (t *TelegramChannel) SetBot(bot TelegramBot) {
	t.bot = bot
}

func (t *TelegramChannel) Send(msg bus.OutboundMessage) error {
	if t.bot == nil {
		return fmt.Errorf("telegram bot not initialized")
	}

	chatID, err := strconv.ParseInt(msg.ChatID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat id %q: %w", msg.ChatID, err)
	}

	for _, chunk := range splitMessage(toTelegramHTML(msg.Content), telegramMaxLen) {
		tgMsg := tgbotapi.NewMessage(chatID, chunk)
		tgMsg.ParseMode = tgbotapi.ModeHTML
		if _, err := t.bot.Send(tgMsg); err == nil {
			continue
		}
		// Markup the API refuses goes out again as plain text.
		if _, err := t.bot.Send(tgbotapi.NewMessage(chatID, chunk)); err != nil {
			return fmt.Errorf("send telegram message: %w", err)
		}
	}
	return nil
}

// splitMessage breaks content into chunks of at most max bytes, preferring
// to cut at a newline.
func splitMessage(s string, max int) []string {
	var chunks []string
	for len(s) > max {
		cut := strings.LastIndex(s[:max], "\n")
		if cut <= 0 {
			cut = max
		}
		chunks = append(chunks, s[:cut])
		s = strings.TrimPrefix(s[cut:], "\n")
	}
	if s != "" {
		chunks = append(chunks, s)
	}
	return chunks
}

// toTelegramHTML converts basic markdown to Telegram HTML.
func toTelegramHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")

	s = convertFences(s)
	s = convertDelim(s, "`", "<code>", "</code>")
	s = convertDelim(s, "**", "<b>", "</b>")
	s = convertDelim(s, "*", "<i>", "</i>")
	return s
}

// convertFences rewrites ```...``` blocks as <pre>...</pre>, dropping an
// optional language tag on the opening line.
func convertFences(s string) string {
	for {
		start := strings.Index(s, "```")
		if start == -1 {
			return s
		}
		rest := s[start+3:]
		end := strings.Index(rest, "```")
		if end == -1 {
			return s
		}
		code := rest[:end]
		if nl := strings.Index(code, "\n"); nl >= 0 {
			lang := strings.TrimSpace(code[:nl])
			if lang != "" && !strings.Contains(lang, " ") {
				code = code[nl+1:]
			}
		}
		s = s[:start] + "<pre>" + code + "</pre>" + rest[end+3:]
	}
}

// convertDelim rewrites delim-wrapped spans with the given open/close tags.
// Unbalanced delimiters are left alone.
func convertDelim(s, delim, open, close string) string {
	for {
		start := strings.Index(s, delim)
		if start == -1 {
			return s
		}
		rest := s[start+len(delim):]
		end := strings.Index(rest, delim)
		if end == -1 {
			return s
		}
		s = s[:start] + open + rest[:end] + close + rest[end+len(delim):]
	}
}
