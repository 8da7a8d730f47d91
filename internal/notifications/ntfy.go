package notifications

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"quill/internal/config"
	"quill/internal/content"
	"quill/internal/logging"
)

const (
	userAgent = "Quill/0.1.0"

	ntfyQueueSize     = 32
	ntfyTerminalLimit = 512
)

// ErrNtfyClosed is returned by NotifyUpdated after Close.
var ErrNtfyClosed = errors.New("ntfy notifier closed")

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

// Ntfy pushes milestone notifications (outline ready, SEO ready, finalized,
// failed) to an ntfy topic. Intermediate step updates are not sent, and a
// milestone is sent once per workflow until the workflow moves on.
//
// NotifyUpdated only enqueues; a single worker delivers pushes in order.
// When the queue is full the push is dropped and an error is returned.
type Ntfy struct {
	endpoint string
	client   *http.Client
	logger   *slog.Logger

	mu       sync.Mutex
	last     map[string]string
	terminal []string
	limit    int
	queue    chan payload
	closed   bool
	done     chan struct{}
}

// NewNtfy builds an ntfy notifier, or returns nil when no topic is configured.
// The returned notifier owns a delivery goroutine; call Close to drain it.
func NewNtfy(cfg *config.Config, logger *slog.Logger) *Ntfy {
	if cfg == nil {
		return nil
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return nil
	}
	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return newNtfy(topic, timeout, logger, ntfyQueueSize)
}

func newNtfy(endpoint string, timeout time.Duration, logger *slog.Logger, queueSize int) *Ntfy {
	if logger == nil {
		logger = logging.NewNop()
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	n := &Ntfy{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
		last:     make(map[string]string),
		limit:    ntfyTerminalLimit,
		queue:    make(chan payload, queueSize),
		done:     make(chan struct{}),
	}
	go n.deliver()
	return n
}

// NotifyUpdated implements Notifier.
func (n *Ntfy) NotifyUpdated(_ context.Context, wf *content.Workflow) error {
	if n == nil || wf == nil {
		return nil
	}
	key, data, ok := milestone(wf)

	n.mu.Lock()
	defer n.mu.Unlock()
	previous := n.last[wf.ID]
	n.remember(wf.ID, key)
	if !ok || key == previous {
		return nil
	}
	if n.closed {
		return ErrNtfyClosed
	}
	select {
	case n.queue <- data:
		return nil
	default:
		return fmt.Errorf("ntfy queue full, dropped %q for workflow %s", data.title, wf.ID)
	}
}

// remember records the latest milestone for id. Finished workflows are kept
// so repeated saves stay quiet, but only the most recent limit of them.
// Caller holds mu.
func (n *Ntfy) remember(id, key string) {
	if key == "" {
		delete(n.last, id)
		return
	}
	if n.last[id] == key {
		return
	}
	n.last[id] = key
	if !terminalMilestone(key) {
		return
	}
	n.terminal = append(n.terminal, id)
	for len(n.terminal) > n.limit {
		oldest := n.terminal[0]
		n.terminal = n.terminal[1:]
		if terminalMilestone(n.last[oldest]) {
			delete(n.last, oldest)
		}
	}
}

func terminalMilestone(key string) bool {
	return key == "final" || key == "failed"
}

// Close stops accepting pushes and waits for queued ones to be delivered.
func (n *Ntfy) Close() error {
	if n == nil {
		return nil
	}
	n.mu.Lock()
	if !n.closed {
		n.closed = true
		close(n.queue)
	}
	n.mu.Unlock()
	<-n.done
	return nil
}

func (n *Ntfy) deliver() {
	defer close(n.done)
	for data := range n.queue {
		if err := n.send(context.Background(), data); err != nil {
			logging.WarnWithContext(n.logger, "ntfy notification failed", "ntfy_send_failed",
				logging.Error(err),
				logging.String("title", data.title),
				logging.String(logging.FieldImpact, "milestone push was not delivered"),
			)
		}
	}
}

// Test sends a low priority test notification synchronously.
func (n *Ntfy) Test(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "Quill - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"quill", "test"},
		priority: "low",
	})
}

func milestone(wf *content.Workflow) (string, payload, bool) {
	topic := strings.TrimSpace(wf.Topic)
	switch wf.State {
	case content.StateWaitingApproval:
		return "outline", payload{
			title:   "Quill - Outline Ready",
			message: fmt.Sprintf("📝 Outline ready for review: %s", topic),
			tags:    []string{"quill", "outline", "review"},
		}, true
	case content.StateOptimizing:
		if wf.SEO == nil {
			return "", payload{}, false
		}
		return "seo", payload{
			title:   "Quill - SEO Ready",
			message: fmt.Sprintf("🔍 SEO analysis ready (score %d): %s", wf.SEO.Score, topic),
			tags:    []string{"quill", "seo", "review"},
		}, true
	case content.StateFinal:
		return "final", payload{
			title:    "Quill - Complete",
			message:  fmt.Sprintf("✅ Content finalized: %s", topic),
			tags:     []string{"quill", "workflow", "completed"},
			priority: "high",
		}, true
	case content.StateFailed:
		message := fmt.Sprintf("❌ Workflow failed: %s", topic)
		if reason := lastSystemMessage(wf); reason != "" {
			message += "\n" + reason
		}
		return "failed", payload{
			title:    "Quill - Failed",
			message:  message,
			tags:     []string{"quill", "error", "alert"},
			priority: "high",
		}, true
	default:
		return "", payload{}, false
	}
}

func lastSystemMessage(wf *content.Workflow) string {
	for i := len(wf.ChatHistory) - 1; i >= 0; i-- {
		if wf.ChatHistory[i].Role == content.RoleSystem {
			return strings.TrimSpace(wf.ChatHistory[i].Content)
		}
	}
	return ""
}

func (n *Ntfy) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
