package game

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/dmmcquay/chess-arbiter/internal/lichess"
)

func (s *Session) handleChat(ctx context.Context, ev lichess.GameEvent) {
	text := strings.TrimSpace(ev.Text)
	reply, ok := s.chat[text]
	if !ok || strings.EqualFold(ev.Username, s.opts.Account) {
		return
	}
	if !s.cooldowns.Allow(text) {
		s.logger.Debug("Chat command on cooldown", "command", text, "user", ev.Username)
		return
	}

	room := ev.Room
	if room == "" {
		room = lichess.RoomSpectator
	}
	if err := s.client.Chat(ctx, s.id, room, reply()); err != nil {
		s.logger.Warn("Chat reply failed", "command", text, "error", err)
	}
}

func (s *Session) sayCommands() string {
	names := make([]string, 0, len(s.chat))
	for name := range s.chat {
		names = append(names, name)
	}
	sort.Strings(names)
	return "Known commands: " + strings.Join(names, " ")
}

func (s *Session) sayVetoes() string {
	var searched, vetoes int
	if s.stats != nil {
		gs := s.stats.Game(s.id)
		searched = gs.Moves - gs.BookMoves
		vetoes = gs.Vetoes
	}
	return fmt.Sprintf("%s has vetoed %d of %d moves.", s.opts.VetoerName, vetoes, searched)
}

func (s *Session) saySettings() string {
	return s.opts.Settings
}
