package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"drone_chat/internal/chatclient"
	"drone_chat/internal/domain"
	"drone_chat/internal/protocol"
	"drone_chat/pkg/logger"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Open an interactive chat session",
	Long: `Join the chat as a visitor, or as an operator when --token is given.

Input lines are sent as messages. Lines starting with a slash are commands:
  /join <conversation>   switch the operator to a conversation
  /read                  mark received messages as read
  /resend <tempId>       resend a failed message
  /pending               list local messages and their status
  /quit`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().String("token", "", "operator access token")
	chatCmd.Flags().String("name", "Visitor", "display name")
	chatCmd.Flags().String("email", "", "contact email")
	chatCmd.Flags().String("conversation", "", "conversation to join")
}

func runChat(cmd *cobra.Command, args []string) error {
	token, _ := cmd.Flags().GetString("token")
	name, _ := cmd.Flags().GetString("name")
	email, _ := cmd.Flags().GetString("email")
	conversation, _ := cmd.Flags().GetString("conversation")

	ctx := cmd.Context()
	log := newLogger(cmd)
	api := newAPI(cmd)

	client, err := chatclient.Dial(ctx, api.WebSocketURL(), token)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer client.Close()

	role := domain.RoleVisitor
	if token != "" {
		role = domain.RoleAdmin
	}

	s := &session{
		client:         client,
		outbox:         chatclient.NewOutbox(),
		timeline:       chatclient.NewTimeline(),
		user:           protocol.User{Name: name, Email: email, Type: role},
		log:            log,
		conversationID: conversation,
	}

	if err := client.Join(conversation, s.user); err != nil {
		return fmt.Errorf("join: %w", err)
	}

	typing := chatclient.NewTypingDebouncer(chatclient.DefaultTypingIdle,
		func() { s.emitTyping(true) },
		func() { s.emitTyping(false) },
	)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case env, ok := <-client.Events():
			if !ok {
				return client.Err()
			}
			s.handle(env)
		case line, ok := <-lines:
			if !ok || !s.input(line, typing) {
				return nil
			}
		}
	}
}

type session struct {
	client   *chatclient.Client
	outbox   *chatclient.Outbox
	timeline *chatclient.Timeline
	user     protocol.User
	log      logger.Logger

	mu             sync.Mutex
	conversationID string
	unread         []string
}

func (s *session) current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversationID
}

func (s *session) emitTyping(active bool) {
	convID := s.current()
	if convID == "" {
		return
	}
	if err := s.client.Typing(convID, s.user, active); err != nil {
		s.log.Debug("Failed to send typing", "error", err)
	}
}

// input handles one stdin line and reports whether the client should keep running.
func (s *session) input(line string, typing *chatclient.TypingDebouncer) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return true
	}

	if !strings.HasPrefix(line, "/") {
		typing.Keystroke()
		s.send(s.outbox.Add(line, time.Now()))
		typing.Flush()
		return true
	}

	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch cmd {
	case "/quit":
		return false
	case "/join":
		if s.user.Type != domain.RoleAdmin || arg == "" {
			fmt.Println("usage: /join <conversation> (operators only)")
			return true
		}
		if err := s.client.Join(arg, s.user); err != nil {
			s.log.Error("Failed to join", "error", err)
		}
	case "/read":
		s.markRead()
	case "/resend":
		entry, ok := s.outbox.Resend(arg, time.Now())
		if !ok {
			fmt.Printf("no failed message %q\n", arg)
			return true
		}
		s.send(entry)
	case "/pending":
		for _, e := range s.outbox.Entries() {
			fmt.Printf("  %s  %-9s %s\n", e.TempID, e.Status, e.Body)
		}
	default:
		fmt.Printf("unknown command %s\n", cmd)
	}
	return true
}

func (s *session) send(entry chatclient.OutboxEntry) {
	convID := s.current()
	if convID == "" {
		fmt.Println("not in a conversation yet")
		return
	}
	err := s.client.SendMessage(protocol.SendMessagePayload{
		TempID:         entry.TempID,
		ConversationID: convID,
		SenderName:     s.user.Name,
		SenderEmail:    s.user.Email,
		SenderType:     s.user.Type,
		Message:        entry.Body,
	})
	if err != nil {
		_, _ = s.outbox.Fail(protocol.MessageFailedPayload{TempID: entry.TempID, Status: domain.StatusFailed, Error: err.Error()})
		fmt.Printf("! %s failed: %v (use /resend %s)\n", entry.TempID, err, entry.TempID)
	}
}

func (s *session) markRead() {
	s.mu.Lock()
	ids := s.unread
	s.unread = nil
	convID := s.conversationID
	s.mu.Unlock()

	if len(ids) == 0 || convID == "" {
		return
	}
	if err := s.client.MarkRead(convID, ids); err != nil {
		s.log.Error("Failed to mark read", "error", err)
	}
}

func (s *session) handle(env protocol.Envelope) {
	switch env.Event {
	case protocol.EventJoined:
		var p protocol.JoinedPayload
		if s.decode(env, &p) {
			s.mu.Lock()
			s.conversationID = p.ConversationID
			s.mu.Unlock()
			fmt.Printf("* joined %s as %s\n", p.ConversationID, s.user.Name)
		}
	case protocol.EventConversationHistory:
		var history []domain.Message
		if s.decode(env, &history) {
			fresh := s.timeline.Merge(history)
			for i := range fresh {
				printMessage(&fresh[i])
			}
		}
	case protocol.EventNewMessage:
		var m domain.Message
		if s.decode(env, &m) && s.timeline.Add(m) {
			printMessage(&m)
			if m.SenderType != s.user.Type {
				s.mu.Lock()
				s.unread = append(s.unread, m.ID)
				s.mu.Unlock()
			}
		}
	case protocol.EventMessageDelivered:
		var p protocol.MessageDeliveredPayload
		if s.decode(env, &p) {
			if entry, ok := s.outbox.Ack(p); ok {
				fmt.Printf("  [%s] %s\n", entry.Status, entry.Body)
			}
		}
	case protocol.EventMessageFailed:
		var p protocol.MessageFailedPayload
		if s.decode(env, &p) {
			if entry, ok := s.outbox.Fail(p); ok && entry.Status == domain.StatusFailed {
				fmt.Printf("! %s failed: %s (use /resend %s)\n", entry.TempID, entry.Error, entry.TempID)
			}
		}
	case protocol.EventMessagesRead:
		var p protocol.MessagesReadPayload
		if s.decode(env, &p) {
			for _, entry := range s.outbox.MarkRead(p.MessageIDs) {
				fmt.Printf("  [read] %s\n", entry.Body)
			}
		}
	case protocol.EventTyping, protocol.EventStopTyping:
		var p protocol.TypingPayload
		if s.decode(env, &p) && env.Event == protocol.EventTyping {
			fmt.Printf("  %s is typing...\n", p.User.Name)
		}
	case protocol.EventAdminOnline:
		fmt.Println("* support is online")
	case protocol.EventAdminOffline:
		fmt.Println("* support is offline, we will reply by email")
	case protocol.EventVisitorConnected:
		var p protocol.VisitorDescriptor
		if s.decode(env, &p) {
			fmt.Printf("* visitor %s <%s> connected: %s\n", p.Name, p.Email, p.ConversationID)
		}
	case protocol.EventVisitorDisconnected:
		var p protocol.VisitorDisconnectedPayload
		if s.decode(env, &p) {
			fmt.Printf("* visitor left %s\n", p.ConversationID)
		}
	case protocol.EventError:
		var p protocol.ErrorPayload
		if s.decode(env, &p) {
			fmt.Printf("! %s: %s\n", p.Code, p.Message)
		}
	default:
		s.log.Debug("Ignoring event", "event", env.Event)
	}
}

func (s *session) decode(env protocol.Envelope, v interface{}) bool {
	if err := env.Decode(v); err != nil {
		s.log.Warn("Malformed event", "event", env.Event, "error", err)
		return false
	}
	return true
}

func printMessage(m *domain.Message) {
	fmt.Printf("%s %s (%s): %s\n", m.CreatedAt.Local().Format("15:04"), m.SenderName, m.SenderType, m.Body)
}
