package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/haytac/neighbourhood-emoji/internal/config"
	"github.com/haytac/neighbourhood-emoji/internal/metrics"
	"github.com/haytac/neighbourhood-emoji/pkg/interfaces"
)

const (
	maxMessageLength        = 4096
	globalMessagesPerSecond = 25
	chatMessagesPerSecond   = 1
)

// Client wraps the Telegram Bot API client with rate limiting.
type Client struct {
	clientFactory  interfaces.HTTPClientFactory
	apiEndpoint    string
	bots           map[string]*tgbotapi.BotAPI
	botsMu         sync.RWMutex
	globalLimiter  *rate.Limiter
	chatLimiters   map[string]*rate.Limiter
	chatLimitersMu sync.Mutex
}

// NewClient creates a new Telegram client. An empty apiEndpoint selects the public Bot API.
func NewClient(clientFactory interfaces.HTTPClientFactory, apiEndpoint string) *Client {
	if apiEndpoint == "" {
		apiEndpoint = tgbotapi.APIEndpoint
	}
	return &Client{
		clientFactory: clientFactory,
		apiEndpoint:   apiEndpoint,
		bots:          make(map[string]*tgbotapi.BotAPI),
		globalLimiter: rate.NewLimiter(rate.Limit(globalMessagesPerSecond), globalMessagesPerSecond*2),
		chatLimiters:  make(map[string]*rate.Limiter),
	}
}

func (c *Client) getBotAPI(botToken string, proxy *config.Proxy) (*tgbotapi.BotAPI, error) {
	c.botsMu.RLock()
	bot, exists := c.bots[botToken]
	c.botsMu.RUnlock()
	if exists {
		return bot, nil
	}

	c.botsMu.Lock()
	defer c.botsMu.Unlock()
	if bot, exists = c.bots[botToken]; exists {
		return bot, nil
	}
	httpClient, err := c.clientFactory.GetClient(proxy)
	if err != nil {
		return nil, fmt.Errorf("failed to get HTTP client for Telegram bot: %w", err)
	}
	api, err := tgbotapi.NewBotAPIWithClient(botToken, c.apiEndpoint, httpClient)
	if err != nil {
		metrics.TelegramAPICalls.WithLabelValues("getMe", "error").Inc()
		return nil, fmt.Errorf("failed to create bot API instance: %w", err)
	}
	metrics.TelegramAPICalls.WithLabelValues("getMe", "success").Inc()
	log.Info().Str("bot_username", api.Self.UserName).Msg("Telegram bot authorized")
	c.bots[botToken] = api
	return api, nil
}

func (c *Client) getChatLimiter(chatID string) *rate.Limiter {
	c.chatLimitersMu.Lock()
	defer c.chatLimitersMu.Unlock()
	limiter, exists := c.chatLimiters[chatID]
	if !exists {
		limiter = rate.NewLimiter(rate.Limit(chatMessagesPerSecond), chatMessagesPerSecond*2)
		c.chatLimiters[chatID] = limiter
	}
	return limiter
}

// Send delivers parts to chatID in order, stopping at the first failure.
func (c *Client) Send(ctx context.Context, botToken, chatID string, parts []interfaces.MessagePart, proxy *config.Proxy) error {
	bot, err := c.getBotAPI(botToken, proxy)
	if err != nil {
		return fmt.Errorf("getting bot API: %w", err)
	}

	l := log.With().Str("chat_id", chatID).Str("bot_username", bot.Self.UserName).Logger()
	chatLimiter := c.getChatLimiter(chatID)

	for i, part := range parts {
		msg, method := buildChattable(chatID, part)
		if msg == nil {
			l.Warn().Int("part_index", i).Msg("Skipping message part: no text or photo provided.")
			continue
		}

		if err := c.globalLimiter.Wait(ctx); err != nil {
			return fmt.Errorf("global rate limiter wait: %w", err)
		}
		if err := chatLimiter.Wait(ctx); err != nil {
			metrics.TelegramAPICalls.WithLabelValues(method, "rate_limited").Inc()
			return fmt.Errorf("chat rate limiter wait for %s: %w", chatID, err)
		}

		if _, err := bot.Send(msg); err != nil {
			metrics.TelegramAPICalls.WithLabelValues(method, "error").Inc()
			l.Error().Err(err).Int("part_index", i).Msg("Failed to send message to Telegram")
			return fmt.Errorf("sending message part %d to chat '%s': %w", i, chatID, err)
		}
		metrics.TelegramAPICalls.WithLabelValues(method, "success").Inc()
		l.Debug().Int("part_index", i).Str("method", method).Msg("Message part sent")
	}
	return nil
}

// Name identifies the notifier in logs and metrics.
func (c *Client) Name() string {
	return "telegram"
}

// buildChattable maps a part to a send config. Numeric chat IDs address chats,
// anything else is treated as a channel username.
func buildChattable(chatID string, part interfaces.MessagePart) (tgbotapi.Chattable, string) {
	numericID, errParse := strconv.ParseInt(chatID, 10, 64)
	isChannel := errParse != nil

	switch {
	case part.PhotoURL != "":
		var cfg tgbotapi.PhotoConfig
		if isChannel {
			cfg = tgbotapi.NewPhotoToChannel(chatID, tgbotapi.FileURL(part.PhotoURL))
		} else {
			cfg = tgbotapi.NewPhoto(numericID, tgbotapi.FileURL(part.PhotoURL))
		}
		cfg.Caption = part.Text
		cfg.ParseMode = part.ParseMode
		return cfg, "sendPhoto"
	case part.Text != "":
		var cfg tgbotapi.MessageConfig
		if isChannel {
			cfg = tgbotapi.NewMessageToChannel(chatID, part.Text)
		} else {
			cfg = tgbotapi.NewMessage(numericID, part.Text)
		}
		cfg.ParseMode = part.ParseMode
		return cfg, "sendMessage"
	}
	return nil, ""
}

// SplitMessage breaks text into parts no longer than the Telegram limit, counted
// in runes. Cuts prefer the last newline inside the window.
func SplitMessage(text, parseMode string) []interfaces.MessagePart {
	if utf8.RuneCountInString(text) <= maxMessageLength {
		return []interfaces.MessagePart{{Text: text, ParseMode: parseMode}}
	}

	var parts []interfaces.MessagePart
	runes := []rune(text)
	for start := 0; start < len(runes); {
		end := start + maxMessageLength
		if end >= len(runes) {
			end = len(runes)
		} else if nl := strings.LastIndex(string(runes[start:end]), "\n"); nl > 0 {
			end = start + utf8.RuneCountInString(string(runes[start:end])[:nl]) + 1
		}
		parts = append(parts, interfaces.MessagePart{Text: string(runes[start:end]), ParseMode: parseMode})
		start = end
	}
	log.Warn().Int("original_len_runes", len(runes)).Int("num_parts", len(parts)).Msg("Message split due to length")
	return parts
}
