package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"
	"golang.org/x/time/rate"

	"github.com/azamon/support-chat/internal/conversation"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeCaller records the prompt and returns canned output.
type fakeCaller struct {
	text   string
	err    error
	delay  time.Duration
	prompt string
	model  string
}

func (f *fakeCaller) generate(ctx context.Context, model, prompt string) (string, error) {
	f.model = model
	f.prompt = prompt
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.text, f.err
}

func testGenerator(caller modelCaller) *Generator {
	return newGenerator(caller, "gemini-2.0-flash", Options{
		Limiter: rate.NewLimiter(rate.Inf, 1),
	})
}

func userMsg(text string) conversation.Message {
	return conversation.Message{Sender: conversation.SenderUser, Text: text}
}

func aiMsg(text string) conversation.Message {
	return conversation.Message{Sender: conversation.SenderAI, Text: text}
}

func TestGenerateReply(t *testing.T) {
	caller := &fakeCaller{text: "  You can return it within 30 days.  "}
	gen := testGenerator(caller)

	reply, err := gen.GenerateReply(context.Background(), nil, "Can I return my order?")
	if err != nil {
		t.Fatalf("GenerateReply: %v", err)
	}
	if reply.Degraded {
		t.Error("reply should not be degraded")
	}
	if reply.Text != "You can return it within 30 days." {
		t.Errorf("reply text = %q, want trimmed model output", reply.Text)
	}
	if caller.model != "gemini-2.0-flash" {
		t.Errorf("model = %q", caller.model)
	}
}

func TestGenerateReplyPromptShape(t *testing.T) {
	caller := &fakeCaller{text: "ok"}
	gen := testGenerator(caller)

	history := []conversation.Message{
		userMsg("Where is my package?"),
		aiMsg("It shipped yesterday."),
	}
	if _, err := gen.GenerateReply(context.Background(), history, "How long until it arrives?"); err != nil {
		t.Fatalf("GenerateReply: %v", err)
	}

	prompt := caller.prompt
	if !strings.Contains(prompt, `support agent for "Azamon"`) {
		t.Error("prompt missing system framing")
	}
	if !strings.Contains(prompt, "SHIPPING POLICY:") {
		t.Error("prompt missing FAQ knowledge")
	}
	if !strings.Contains(prompt, "Customer: Where is my package?") {
		t.Error("prompt missing customer history line")
	}
	if !strings.Contains(prompt, "Support Agent: It shipped yesterday.") {
		t.Error("prompt missing agent history line")
	}
	if !strings.HasSuffix(prompt, "Support Agent:") {
		t.Error("prompt should end with the open agent turn")
	}
	if !strings.Contains(prompt, "Customer: How long until it arrives?") {
		t.Error("prompt missing new customer message")
	}
}

func TestGenerateReplyContextWindow(t *testing.T) {
	caller := &fakeCaller{text: "ok"}
	gen := testGenerator(caller)

	history := make([]conversation.Message, 0, 15)
	for i := 0; i < 15; i++ {
		history = append(history, userMsg("turn-"+string(rune('a'+i))))
	}

	if _, err := gen.GenerateReply(context.Background(), history, "latest"); err != nil {
		t.Fatalf("GenerateReply: %v", err)
	}

	if strings.Contains(caller.prompt, "turn-a") {
		t.Error("oldest turn should have been dropped from the prompt")
	}
	if !strings.Contains(caller.prompt, "turn-o") {
		t.Error("newest turn missing from the prompt")
	}
}

func TestGenerateReplyEmptyOutputDegrades(t *testing.T) {
	for _, text := range []string{"", "   \n\t "} {
		caller := &fakeCaller{text: text}
		gen := testGenerator(caller)

		reply, err := gen.GenerateReply(context.Background(), nil, "hello")
		if err != nil {
			t.Fatalf("GenerateReply: %v", err)
		}
		if !reply.Degraded {
			t.Error("empty output should degrade")
		}
		if reply.Text != fallbackEmptyReply {
			t.Errorf("reply text = %q", reply.Text)
		}
	}
}

func TestGenerateReplyClassifiedErrors(t *testing.T) {
	tests := []struct {
		name    string
		callErr error
		want    error
	}{
		{"api key", errors.New("request failed: API key not valid"), ErrConfiguration},
		{"quota", errors.New("RESOURCE_EXHAUSTED: quota exceeded for model"), ErrRateLimited},
		{"rate limit", errors.New("rate limit reached, retry later"), ErrRateLimited},
		{"timeout", errors.New("upstream timeout contacting model"), ErrTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := testGenerator(&fakeCaller{err: tt.callErr})

			_, err := gen.GenerateReply(context.Background(), nil, "hello")
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestGenerateReplyUnclassifiedErrorDegrades(t *testing.T) {
	gen := testGenerator(&fakeCaller{err: errors.New("connection reset by peer")})

	reply, err := gen.GenerateReply(context.Background(), nil, "hello")
	if err != nil {
		t.Fatalf("unclassified failure should not error, got %v", err)
	}
	if !reply.Degraded {
		t.Error("reply should be degraded")
	}
	if reply.Text != fallbackProviderError {
		t.Errorf("reply text = %q", reply.Text)
	}
}

func TestGenerateReplyTimeout(t *testing.T) {
	caller := &fakeCaller{text: "too late", delay: 200 * time.Millisecond}
	gen := newGenerator(caller, "gemini-2.0-flash", Options{
		Timeout: 20 * time.Millisecond,
		Limiter: rate.NewLimiter(rate.Inf, 1),
	})

	_, err := gen.GenerateReply(context.Background(), nil, "hello")
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("error = %v, want ErrTimeout", err)
	}
}

func TestGenerateReplyCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	gen := newGenerator(&fakeCaller{text: "ok"}, "gemini-2.0-flash", Options{
		Limiter: rate.NewLimiter(1, 1),
	})
	gen.limiter.Allow() // drain the burst so Wait must block

	if _, err := gen.GenerateReply(ctx, nil, "hello"); err == nil {
		t.Error("expected error from canceled context")
	}
}

func TestBuildConversationContextEmptyHistory(t *testing.T) {
	if got := buildConversationContext(nil, DefaultHistoryWindow); got != "" {
		t.Errorf("context for empty history = %q, want empty", got)
	}
}
