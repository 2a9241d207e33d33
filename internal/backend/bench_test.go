package backend

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/vovakirdan/partychat/internal/proto"
)

func benchmarkRoomBroadcast(b *testing.B, recipients int) {
	hub := NewHub(nil, DefaultHistoryLimit, nil)

	sender := NewClient("sender")
	hub.Connect(sender)
	create, _ := json.Marshal(proto.CreateSessionData{UserSettings: proto.UserSettings{Nickname: "sender"}})
	hub.Dispatch(sender, proto.Frame{Type: proto.RequestCreateSession, Data: create, CallbackID: "cb"})

	var roomID string
	for roomID == "" {
		f := <-sender.Events
		if f.CallbackID == "cb" {
			var reply proto.CreateSessionReply
			_ = json.Unmarshal(f.Data, &reply)
			roomID = reply.SessionID
		}
	}
	go func() {
		for range sender.Events {
		}
	}()

	clients := make([]*Client, 0, recipients)
	for i := 0; i < recipients; i++ {
		c := NewClient(fmt.Sprintf("c%d", i))
		hub.Connect(c)
		join, _ := json.Marshal(proto.JoinSessionData{
			SessionID:    roomID,
			UserSettings: proto.UserSettings{Nickname: c.ID},
		})
		hub.Dispatch(c, proto.Frame{Type: proto.RequestJoinSession, Data: join})
		clients = append(clients, c)
	}

	// Drain events for all but the first recipient to avoid channel backpressure.
	target := clients[0]
	for _, c := range clients[1:] {
		go func(cl *Client) {
			for range cl.Events {
			}
		}(c)
	}
	drain(target.Events)

	payload, _ := json.Marshal(proto.SendMessageData{Body: "payload"})
	msg := proto.Frame{Type: string(proto.SendMessage), Data: payload}

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		hub.Dispatch(sender, msg)
		for f := range target.Events {
			if f.Type == proto.InboundChatMessage {
				break
			}
		}
	}
}

func BenchmarkRoomBroadcast_10(b *testing.B)  { benchmarkRoomBroadcast(b, 10) }
func BenchmarkRoomBroadcast_100(b *testing.B) { benchmarkRoomBroadcast(b, 100) }
