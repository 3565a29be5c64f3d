package alerting

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"swapwatch/internal/httpx"
)

// ErrNotificationFailed 表示通知渠道拒绝或未能投递消息。
var ErrNotificationFailed = errors.New("notification failed")

// Message 是一条待推送的告警文本。
type Message struct {
	Text    string
	ReplyTo int64
}

// SendResult 描述一次推送结果。
type SendResult struct {
	OK        bool
	MessageID int64
}

// Notifier 定义告警输送接口。
type Notifier interface {
	Send(ctx context.Context, msg Message) (SendResult, error)
}

// TelegramNotifier 通过 Telegram Bot API 推送消息。
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	http     *httpx.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier 构造 Telegram 告警器。
func NewTelegramNotifier(botToken, chatID, baseURL string, client *httpx.Client, logger zerolog.Logger) *TelegramNotifier {
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     client,
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
	ReplyToMessageID      int64  `json:"reply_to_message_id,omitempty"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	Result      struct {
		MessageID int64 `json:"message_id"`
	} `json:"result"`
}

// Send 调用 sendMessage API 推送 HTML 文本。
func (n *TelegramNotifier) Send(ctx context.Context, msg Message) (SendResult, error) {
	payload := sendMessageRequest{
		ChatID:                n.chatID,
		Text:                  msg.Text,
		ParseMode:             "HTML",
		DisableWebPagePreview: true,
		ReplyToMessageID:      msg.ReplyTo,
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	var resp sendMessageResponse
	if err := n.http.SendJSON(ctx, http.MethodPost, url, nil, payload, &resp); err != nil {
		return SendResult{}, fmt.Errorf("%w: telegram: %w", ErrNotificationFailed, err)
	}
	if !resp.OK {
		desc := resp.Description
		if desc == "" {
			desc = "ok=false"
		}
		return SendResult{}, fmt.Errorf("%w: telegram: %s", ErrNotificationFailed, desc)
	}

	n.logger.Info().
		Int64("message_id", resp.Result.MessageID).
		Int64("reply_to", msg.ReplyTo).
		Msg("alert sent (telegram)")
	return SendResult{OK: true, MessageID: resp.Result.MessageID}, nil
}

// LogNotifier 仅记录消息，用于未配置 Telegram 或演练模式。
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier constructs a notifier that writes messages to the log.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "alert_log").Logger()}
}

// Send logs the message and reports success without a message id.
func (n *LogNotifier) Send(_ context.Context, msg Message) (SendResult, error) {
	n.logger.Info().Str("text", msg.Text).Int64("reply_to", msg.ReplyTo).Msg("alert (dry run)")
	return SendResult{OK: true}, nil
}

var (
	_ Notifier = (*TelegramNotifier)(nil)
	_ Notifier = (*LogNotifier)(nil)
)
