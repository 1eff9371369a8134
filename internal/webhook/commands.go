package webhook

import (
	"context"
	"strings"

	"gardenbot/internal/store"
	"gardenbot/internal/transport"
	"gardenbot/pkg/logx"
)

const (
	replyWelcome       = "✅ You're subscribed! I'll message you whenever tracked stock shows up."
	replyAlready       = "You're already subscribed. Sit tight!"
	replyUnsubscribed  = "👋 You've been unsubscribed. Message \"subscribe\" any time to come back."
	replyNotSubscribed = "You weren't subscribed, so there's nothing to cancel."
	replyHelp          = "Commands:\n• subscribe — get stock notifications\n• unsubscribe — stop notifications\n• help — this message"
	replyUnknown       = "Sorry, I didn't understand that. Send \"help\" to see what I can do."
	replyStoreTrouble  = "Sorry, something went wrong on our end. Please try again in a moment."
)

// HandleCommand interprets one inbound message as a command and replies.
// Matching is by trimmed, case-insensitive equality so "Subscribe " works
// but "please subscribe me" does not silently opt anyone in.
func (s *Server) HandleCommand(ctx context.Context, senderID, text string) {
	if s.counters != nil {
		s.counters.Commands.Add(1)
	}

	switch strings.ToLower(strings.TrimSpace(text)) {
	case "subscribe":
		s.subscribe(ctx, senderID)
	case "unsubscribe":
		s.unsubscribe(ctx, senderID)
	case "help":
		s.reply(ctx, senderID, replyHelp)
	default:
		s.reply(ctx, senderID, replyUnknown)
	}
}

func (s *Server) subscribe(ctx context.Context, senderID string) {
	res, err := s.store.Add(ctx, senderID)
	if err != nil {
		s.log.Error("subscribe failed", logx.String("sender", senderID), logx.Err(err))
		s.reply(ctx, senderID, replyStoreTrouble)
		return
	}
	switch res {
	case store.Inserted:
		s.log.Info("subscriber added", logx.String("sender", senderID))
		s.reply(ctx, senderID, replyWelcome)
		if s.summary != nil {
			s.reply(ctx, senderID, s.summary.Summary())
		}
	case store.AlreadySubscribed:
		s.reply(ctx, senderID, replyAlready)
	}
}

func (s *Server) unsubscribe(ctx context.Context, senderID string) {
	res, err := s.store.Remove(ctx, senderID)
	if err != nil {
		s.log.Error("unsubscribe failed", logx.String("sender", senderID), logx.Err(err))
		s.reply(ctx, senderID, replyStoreTrouble)
		return
	}
	switch res {
	case store.Removed:
		s.log.Info("subscriber removed", logx.String("sender", senderID))
		s.reply(ctx, senderID, replyUnsubscribed)
	case store.NotSubscribed:
		s.reply(ctx, senderID, replyNotSubscribed)
	}
}

func (s *Server) reply(ctx context.Context, senderID, text string) {
	if _, err := s.sender.SendText(ctx, transport.Recipient{ID: senderID}, text); err != nil {
		s.log.Warn("reply failed", logx.String("sender", senderID), logx.Err(err))
	}
}
