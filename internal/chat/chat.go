// Package chat implements the real-time chat events: directed whispers,
// global broadcasts and the help command.
package chat

import (
	"context"
	"strings"

	"github.com/zeusync/arena/internal/core/dispatch"
	"github.com/zeusync/arena/internal/core/hub"
	"github.com/zeusync/arena/internal/core/observability/log"
)

// Event names on the wire.
const (
	EventWhisper   = "whisper"
	EventBroadcast = "broadcast"
	EventCommand   = "command"
	EventHelp      = "help"
)

const DefaultHelpText = "Commands: whisper <recipient> <message> sends privately, " +
	"broadcast <message> reaches everyone else, command help shows this text."

// Directory is the view of connected peers the handlers need.
type Directory interface {
	Lookup(name string) []hub.Peer
	Broadcast(origin hub.Peer, event string, args ...any) hub.BroadcastResult
}

var _ Directory = (*hub.Hub)(nil)

type Service struct {
	directory Directory
	helpText  string
	logger    log.Log
}

func NewService(directory Directory, helpText string, logger log.Log) *Service {
	if helpText == "" {
		helpText = DefaultHelpText
	}
	if logger == nil {
		logger = log.Provide()
	}
	return &Service{
		directory: directory,
		helpText:  helpText,
		logger:    logger.With(log.String("component", "chat")),
	}
}

func (s *Service) HelpText() string { return s.helpText }

// Bind registers the chat events for conn. The sender of every event is the
// name conn claimed when it connected.
func (s *Service) Bind(b *dispatch.Builder, conn hub.Peer) error {
	if err := b.Register(EventWhisper, dispatch.Func2(func(_ context.Context, recipient, message string) error {
		s.HandleWhisper(conn, conn.Name(), recipient, message)
		return nil
	})); err != nil {
		return err
	}
	if err := b.Register(EventBroadcast, dispatch.Func1(func(_ context.Context, message string) error {
		s.HandleBroadcast(conn, conn.Name(), message)
		return nil
	})); err != nil {
		return err
	}
	return b.Register(EventCommand, dispatch.Func1(func(_ context.Context, request string) error {
		return s.HandleCommand(conn, conn.Name(), request)
	}))
}

// HandleWhisper delivers message to every connection registered as
// recipient and returns how many accepted it. An absent recipient is not an
// error; nothing is queued for later.
func (s *Service) HandleWhisper(conn hub.Peer, sender, recipient, message string) int {
	s.logger.Info("Whisper",
		log.String("client_id", conn.ID()),
		log.String("sender", sender),
		log.String("recipient", recipient))

	delivered := 0
	for _, peer := range s.directory.Lookup(recipient) {
		if err := peer.Emit(EventWhisper, recipient, message); err != nil {
			s.logger.Warn("Whisper delivery failed",
				log.String("recipient", recipient),
				log.String("client_id", peer.ID()),
				log.Error(err))
			continue
		}
		delivered++
	}

	if delivered == 0 {
		s.logger.Debug("Whisper not delivered", log.String("recipient", recipient))
	}
	return delivered
}

// HandleBroadcast fans message out to every connection except conn.
func (s *Service) HandleBroadcast(conn hub.Peer, sender, message string) hub.BroadcastResult {
	result := s.directory.Broadcast(conn, EventBroadcast, message)
	s.logger.Info("Broadcast",
		log.String("client_id", conn.ID()),
		log.String("sender", sender),
		log.Int("delivered", result.Delivered),
		log.Int("failed", result.Failed))
	return result
}

// HandleHelp answers the originating connection only.
func (s *Service) HandleHelp(conn hub.Peer, sender string) error {
	s.logger.Info("Help requested", log.String("client_id", conn.ID()), log.String("sender", sender))
	return conn.Emit(EventHelp, s.helpText)
}

// HandleCommand answers every request with help; it is the only command.
func (s *Service) HandleCommand(conn hub.Peer, sender, request string) error {
	if cmd := strings.ToLower(strings.TrimSpace(request)); cmd != "" && cmd != "help" {
		s.logger.Debug("Unknown command, answering with help",
			log.String("client_id", conn.ID()),
			log.String("command", cmd))
	}
	return s.HandleHelp(conn, sender)
}
