package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// DefaultAPIBase is the hosted Bot API endpoint.
const DefaultAPIBase = "https://api.telegram.org"

const maxFileBytes = 20 << 20 // Bot API download ceiling

// ChatResolver maps a submission to the chat the result notification goes to.
// The bot API has no notion of submissions; the caller supplies the lookup
// (candidate's telegram user ID doubles as the private chat ID).
type ChatResolver func(ctx context.Context, submissionID string) (int64, error)

// BotClient talks to the Telegram Bot API over HTTP.
type BotClient struct {
	token       string
	apiBase     string
	httpc       *http.Client
	resolveChat ChatResolver

	mu   sync.Mutex
	sent map[string]string // submissionID -> message ID, process-local dedupe
}

// NewBotClient creates a Client backed by the hosted Bot API.
func NewBotClient(token string, resolveChat ChatResolver) (*BotClient, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram bot token is required")
	}
	if resolveChat == nil {
		return nil, fmt.Errorf("chat resolver is required")
	}
	return &BotClient{
		token:       token,
		apiBase:     DefaultAPIBase,
		httpc:       &http.Client{Timeout: 30 * time.Second},
		resolveChat: resolveChat,
		sent:        make(map[string]string),
	}, nil
}

// apiResponse is the Bot API envelope.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
	ErrorCode   int             `json:"error_code"`
}

func (b *BotClient) call(ctx context.Context, method string, params url.Values) (json.RawMessage, error) {
	endpoint := fmt.Sprintf("%s/bot%s/%s", b.apiBase, b.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint,
		strings.NewReader(params.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := b.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telegram %s: %w", method, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("telegram %s: read response: %w", method, err)
	}
	var envelope apiResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("telegram %s: unexpected response (status %d)", method, resp.StatusCode)
	}
	if !envelope.OK {
		if envelope.ErrorCode == http.StatusBadRequest || envelope.ErrorCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, envelope.Description)
		}
		return nil, fmt.Errorf("telegram %s: %s (code %d)", method, envelope.Description, envelope.ErrorCode)
	}
	return envelope.Result, nil
}

// GetFileBytes implements Client. Two round trips: getFile resolves the
// file_id to a server path, then the file endpoint serves the bytes.
func (b *BotClient) GetFileBytes(ctx context.Context, fileID string) ([]byte, error) {
	params := url.Values{}
	params.Set("file_id", fileID)
	result, err := b.call(ctx, "getFile", params)
	if err != nil {
		return nil, err
	}

	var file struct {
		FilePath string `json:"file_path"`
	}
	if err := json.Unmarshal(result, &file); err != nil || file.FilePath == "" {
		return nil, fmt.Errorf("%w: no file_path for %s", ErrFileNotFound, fileID)
	}

	downloadURL := fmt.Sprintf("%s/file/bot%s/%s", b.apiBase, b.token, file.FilePath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telegram file download: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, fileID)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("telegram file download: status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxFileBytes))
}

// SendResultNotification implements Client. Dedupe is process-local; the
// delivery record is the durable guard against cross-process resends.
func (b *BotClient) SendResultNotification(ctx context.Context, submissionID, message string) (string, error) {
	b.mu.Lock()
	if id, ok := b.sent[submissionID]; ok {
		b.mu.Unlock()
		return id, nil
	}
	b.mu.Unlock()

	chatID, err := b.resolveChat(ctx, submissionID)
	if err != nil {
		return "", fmt.Errorf("resolve chat for %s: %w", submissionID, err)
	}

	params := url.Values{}
	params.Set("chat_id", strconv.FormatInt(chatID, 10))
	params.Set("text", message)
	result, err := b.call(ctx, "sendMessage", params)
	if err != nil {
		return "", err
	}

	var sent struct {
		MessageID int64 `json:"message_id"`
	}
	if err := json.Unmarshal(result, &sent); err != nil {
		return "", fmt.Errorf("telegram sendMessage: malformed result")
	}
	messageID := strconv.FormatInt(sent.MessageID, 10)

	b.mu.Lock()
	b.sent[submissionID] = messageID
	b.mu.Unlock()
	return messageID, nil
}
