package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const DefaultTelegramURL = "https://api.telegram.org"

// Telegram talks to the Bot API. Only replies from chatID are returned by
// Poll.
type Telegram struct {
	baseURL    string
	token      string
	chatID     string
	httpClient *http.Client
}

// NewTelegram creates a Bot API client. An empty baseURL uses DefaultTelegramURL.
func NewTelegram(token, chatID, baseURL string) *Telegram {
	if baseURL == "" {
		baseURL = DefaultTelegramURL
	}
	return &Telegram{
		baseURL: baseURL,
		token:   token,
		chatID:  chatID,
		httpClient: &http.Client{
			// long polls wait up to 5s server side
			Timeout: 15 * time.Second,
		},
	}
}

func (t *Telegram) ChatID() string { return t.chatID }

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description,omitempty"`
	Result      json.RawMessage `json:"result"`
}

type update struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		Date int64  `json:"date"`
		Text string `json:"text"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
	} `json:"message"`
}

func (t *Telegram) endpoint(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", t.baseURL, t.token, method)
}

func (t *Telegram) do(req *http.Request) (json.RawMessage, error) {
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	var out apiResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if !out.OK {
		return nil, fmt.Errorf("telegram API error: %s", out.Description)
	}
	return out.Result, nil
}

// Send posts a Markdown message to the configured chat.
func (t *Telegram) Send(ctx context.Context, text string) error {
	payload, err := json.Marshal(map[string]string{
		"chat_id":    t.chatID,
		"text":       text,
		"parse_mode": "Markdown",
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint("sendMessage"), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	_, err = t.do(req)
	return err
}

func (t *Telegram) updates(ctx context.Context, offset int64, wait int) ([]update, error) {
	q := url.Values{}
	q.Set("offset", strconv.FormatInt(offset, 10))
	q.Set("timeout", strconv.Itoa(wait))
	q.Set("allowed_updates", `["message"]`)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.endpoint("getUpdates")+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	raw, err := t.do(req)
	if err != nil {
		return nil, err
	}
	var ups []update
	if err := json.Unmarshal(raw, &ups); err != nil {
		return nil, fmt.Errorf("failed to decode updates: %w", err)
	}
	return ups, nil
}

// Offset returns the update id after the newest pending update, or 0 when
// there are none.
func (t *Telegram) Offset(ctx context.Context) (int64, error) {
	ups, err := t.updates(ctx, 0, 0)
	if err != nil {
		return 0, err
	}
	if len(ups) == 0 {
		return 0, nil
	}
	return ups[len(ups)-1].UpdateID + 1, nil
}

// Poll returns text messages with update id >= since. Callers filter by
// SenderID against ChatID.
func (t *Telegram) Poll(ctx context.Context, since int64) ([]Message, error) {
	ups, err := t.updates(ctx, since, 5)
	if err != nil {
		return nil, err
	}

	var out []Message
	for _, u := range ups {
		if u.Message == nil {
			continue
		}
		out = append(out, Message{
			UpdateID: u.UpdateID,
			SenderID: strconv.FormatInt(u.Message.Chat.ID, 10),
			Text:     u.Message.Text,
			Time:     time.Unix(u.Message.Date, 0),
		})
	}
	return out, nil
}
