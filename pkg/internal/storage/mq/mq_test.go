package mq

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"

	"github.com/yeisme/skelvault/pkg/configs"
)

func TestNewGoChannelRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := New(ctx, &configs.MQConfig{Type: configs.MQTypeGoChannel, BufferSize: 8})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer client.Close()

	ch, err := client.Subscribe(ctx, "sv.test")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	if err := client.Publish(ctx, "sv.test", message.NewMessage(watermill.NewUUID(), []byte("hello"))); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case msg := <-ch:
		if string(msg.Payload) != "hello" {
			t.Fatalf("payload = %q", msg.Payload)
		}

		msg.Ack()
	case <-ctx.Done():
		t.Fatal("message not delivered")
	}

	if err := client.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if err := client.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestNewUnknownType(t *testing.T) {
	if _, err := New(context.Background(), &configs.MQConfig{Type: "kafka"}); err == nil {
		t.Fatal("expected error for unregistered type")
	}

	types := GetRegisteredMQTypes()
	if len(types) != 3 || types[0] != configs.MQTypeGoChannel {
		t.Fatalf("registered = %v", types)
	}
}

func TestLoggerAdapter(t *testing.T) {
	var buf bytes.Buffer

	zl := zerolog.New(&buf).Level(zerolog.InfoLevel)
	l := NewLogger(&zl).With(watermill.LogFields{"topic": "sv.gc.scan"})

	l.Debug("dropped", nil)
	l.Info("subscribed", watermill.LogFields{"consumer": 2})
	l.Error("handler failed", errors.New("boom"), nil)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %q", lines)
	}

	for _, want := range []string{`"component":"mq"`, `"topic":"sv.gc.scan"`, `"consumer":2`, `"message":"subscribed"`} {
		if !strings.Contains(lines[0], want) {
			t.Errorf("info line %s missing %s", lines[0], want)
		}
	}

	if !strings.Contains(lines[1], `"error":"boom"`) || !strings.Contains(lines[1], `"level":"error"`) {
		t.Errorf("error line = %s", lines[1])
	}
}
