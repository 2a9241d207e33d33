package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/samber/lo"

	"github.com/vovakirdan/partychat/internal/proto"
)

var errMissingUserID = errors.New("missing user id")

type inboundFunc func(c *Controller, data json.RawMessage) error

var inboundHandlers = map[string]inboundFunc{
	proto.InboundChatMessage:    (*Controller).handleChatMessage,
	proto.InboundUserID:         (*Controller).handleUserID,
	proto.InboundTypingPresence: (*Controller).handleTypingPresence,
	proto.InboundUserList:       (*Controller).handleUserList,
}

func (c *Controller) onMessage(epoch uint64, msg proto.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		return
	}

	handle, ok := inboundHandlers[msg.Type]
	if !ok {
		c.log.Warn().Str("type", msg.Type).Msg("ignoring unknown inbound message")
		return
	}
	if err := handle(c, msg.Data); err != nil {
		c.log.Warn().Err(err).Str("type", msg.Type).Msg("ignoring malformed inbound message")
	}
}

func (c *Controller) handleChatMessage(data json.RawMessage) error {
	var m proto.ChatMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("decode chat message: %w", err)
	}
	if c.pending {
		// The room feed is replaced when the pending create/join resolves.
		c.backlog = append(c.backlog, messageFromWire(m))
		return nil
	}
	c.messages = append(c.messages, messageFromWire(m))
	c.publishLocked()
	return nil
}

func (c *Controller) handleUserID(data json.RawMessage) error {
	var d proto.UserIDData
	if err := json.Unmarshal(data, &d); err != nil {
		return fmt.Errorf("decode user id: %w", err)
	}
	if d.UserID == "" {
		return errMissingUserID
	}
	c.selfID = d.UserID
	c.recomputeOthersTypingLocked()
	c.publishLocked()
	return nil
}

func (c *Controller) handleTypingPresence(data json.RawMessage) error {
	var d proto.TypingData
	if err := json.Unmarshal(data, &d); err != nil {
		return fmt.Errorf("decode typing presence: %w", err)
	}
	c.typingBroadcast = slices.Clone(d.UsersTyping)
	c.recomputeOthersTypingLocked()
	c.publishLocked()
	return nil
}

func (c *Controller) handleUserList(data json.RawMessage) error {
	var members []proto.UserSettings
	if err := json.Unmarshal(data, &members); err != nil {
		return fmt.Errorf("decode user list: %w", err)
	}
	c.log.Debug().Int("members", len(members)).Msg("user list changed")
	return nil
}

// recomputeOthersTypingLocked derives othersTyping from the last broadcast,
// so the self id is excluded whichever of the two arrived first.
func (c *Controller) recomputeOthersTypingLocked() {
	others := lo.Uniq(lo.Filter(c.typingBroadcast, func(id string, _ int) bool {
		return id != "" && id != c.selfID
	}))
	slices.Sort(others)
	c.othersTyping = others
}
