package journal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// TelegramNotifier sends Markdown alerts via the Telegram Bot API.
type TelegramNotifier struct {
	token  string
	chatID string
	client *http.Client
	// baseURL is overridable for tests.
	baseURL string
}

// Ensure TelegramNotifier implements Notifier
var _ Notifier = (*TelegramNotifier)(nil)

// NewTelegramNotifier creates a notifier for the given bot token and chat.
func NewTelegramNotifier(token, chatID string) *TelegramNotifier {
	return &TelegramNotifier{
		token:   token,
		chatID:  chatID,
		client:  &http.Client{Timeout: 10 * time.Second},
		baseURL: "https://api.telegram.org",
	}
}

// Send posts a single Markdown message.
func (t *TelegramNotifier) Send(message string) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)

	payload, err := json.Marshal(map[string]string{
		"chat_id":    t.chatID,
		"text":       message,
		"parse_mode": "Markdown",
	})
	if err != nil {
		return fmt.Errorf("encoding telegram payload: %w", err)
	}

	resp, err := t.client.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("sending telegram message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram API returned status %d", resp.StatusCode)
	}
	return nil
}

// FormatTradeAlert renders an event as the Markdown alert message.
func FormatTradeAlert(event Event) string {
	msg := fmt.Sprintf("🔔 *Trade Alert - %s*\n\n", event.Symbol)
	msg += fmt.Sprintf("*Action:* %s %s\n", event.Action, event.LegType)
	msg += fmt.Sprintf("*Strike:* $%.2f\n", event.Strike)
	if !event.Expiry.IsZero() {
		msg += fmt.Sprintf("*Expiry:* %s\n", event.Expiry.Format("2006-01-02"))
	}
	msg += fmt.Sprintf("*Price:* $%.2f\n", event.Price)
	if event.Delta != 0 {
		msg += fmt.Sprintf("*Delta:* %.3f\n", event.Delta)
	}
	if event.PnL != 0 {
		msg += fmt.Sprintf("*Pnl:* $%.2f\n", event.PnL)
	}
	if event.CumulativePnL != 0 {
		msg += fmt.Sprintf("*Total Pnl:* $%.2f\n", event.CumulativePnL)
	}
	if event.Note != "" {
		msg += fmt.Sprintf("*Notes:* %s\n", event.Note)
	}
	return msg
}

// FormatStopLossAlert renders the stop-loss liquidation alert.
func FormatStopLossAlert(symbol, reason string, loss float64) string {
	return fmt.Sprintf("🛑 *STOP LOSS TRIGGERED - %s*\n\n*Reason:* %s\n*Loss:* $%.2f",
		symbol, reason, loss)
}
