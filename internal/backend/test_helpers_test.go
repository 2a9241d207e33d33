package backend

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/vovakirdan/partychat/internal/proto"
)

func mustFrame(t *testing.T, ch <-chan proto.Frame, typ string) proto.Frame {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case f := <-ch:
			if f.Type == typ {
				return f
			}
		case <-deadline:
			t.Fatalf("expected frame type %q not received", typ)
			return proto.Frame{}
		}
	}
}

func request(t *testing.T, typ, callbackID string, data any) proto.Frame {
	t.Helper()

	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal %s: %v", typ, err)
	}
	return proto.Frame{Type: typ, Data: raw, CallbackID: callbackID}
}

func decode[T any](t *testing.T, f proto.Frame) T {
	t.Helper()

	var v T
	if err := json.Unmarshal(f.Data, &v); err != nil {
		t.Fatalf("decode %s: %v", f.Type, err)
	}
	return v
}

func drain(ch <-chan proto.Frame) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}
