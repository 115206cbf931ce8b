package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/npezzotti/go-chatsync/internal/session"
	"github.com/npezzotti/go-chatsync/internal/types"
)

const transcriptTail = 20

var (
	errEmptyLine = errors.New("empty line")
	errUsage     = errors.New("usage: /select channel|direct <id>, /channel <name>, /dm <userId>, /reload, /state, /quit")
)

type commandKind int

const (
	cmdSend commandKind = iota
	cmdSelect
	cmdCreateChannel
	cmdCreateDirectMessage
	cmdReload
	cmdState
	cmdQuit
)

type command struct {
	kind commandKind
	arg  string
	ref  types.ConversationRef
}

// driver is the part of a session the command loop uses.
type driver interface {
	Select(ctx context.Context, ref types.ConversationRef) error
	SendMessage(ctx context.Context, content string) error
	CreateChannel(ctx context.Context, name string) error
	CreateDirectMessage(ctx context.Context, otherUserId string) error
	LoadHistory(ctx context.Context, ref types.ConversationRef) error
	Snapshot(ctx context.Context) (session.State, error)
}

// parseCommand reads one input line. Lines starting with a slash are
// commands, anything else is sent as a message.
func parseCommand(line string) (command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return command{}, errEmptyLine
	}
	if !strings.HasPrefix(line, "/") {
		return command{kind: cmdSend, arg: line}, nil
	}

	fields := strings.Fields(line)
	switch fields[0] {
	case "/select":
		if len(fields) != 3 {
			return command{}, errUsage
		}
		ref := types.ConversationRef{Kind: types.ConversationKind(fields[1]), Id: fields[2]}
		if !ref.Valid() {
			return command{}, fmt.Errorf("invalid conversation %q: %w", ref, errUsage)
		}
		return command{kind: cmdSelect, ref: ref}, nil
	case "/channel":
		name := strings.TrimSpace(strings.TrimPrefix(line, "/channel"))
		if name == "" {
			return command{}, errUsage
		}
		return command{kind: cmdCreateChannel, arg: name}, nil
	case "/dm":
		if len(fields) != 2 {
			return command{}, errUsage
		}
		return command{kind: cmdCreateDirectMessage, arg: fields[1]}, nil
	case "/reload":
		return command{kind: cmdReload}, nil
	case "/state":
		return command{kind: cmdState}, nil
	case "/quit":
		return command{kind: cmdQuit}, nil
	default:
		return command{}, fmt.Errorf("unknown command %q: %w", fields[0], errUsage)
	}
}

// execute runs cmd against d and reports whether the loop should stop.
func execute(ctx context.Context, d driver, cmd command, out io.Writer) (bool, error) {
	switch cmd.kind {
	case cmdSend:
		return false, d.SendMessage(ctx, cmd.arg)
	case cmdSelect:
		return false, d.Select(ctx, cmd.ref)
	case cmdCreateChannel:
		return false, d.CreateChannel(ctx, cmd.arg)
	case cmdCreateDirectMessage:
		return false, d.CreateDirectMessage(ctx, cmd.arg)
	case cmdReload:
		st, err := d.Snapshot(ctx)
		if err != nil {
			return false, err
		}
		if st.Active == nil {
			return false, session.ErrNoActiveConversation
		}
		return false, d.LoadHistory(ctx, *st.Active)
	case cmdState:
		st, err := d.Snapshot(ctx)
		if err != nil {
			return false, err
		}
		printState(out, st)
		return false, nil
	case cmdQuit:
		return true, nil
	default:
		return false, fmt.Errorf("unknown command kind %d", cmd.kind)
	}
}

func printState(out io.Writer, st session.State) {
	if st.CurrentUser != nil {
		fmt.Fprintf(out, "user: %s (%s) %s\n", st.CurrentUser.DisplayName, st.CurrentUser.Id, st.CurrentUser.Status)
	}

	active := "none"
	if st.Active != nil {
		active = st.Active.String()
	}
	fmt.Fprintf(out, "active: %s\n", active)

	fmt.Fprintln(out, "channels:")
	for _, c := range st.Channels {
		fmt.Fprintf(out, "  #%s (%s) unread=%d\n", c.Name, c.Id, c.UnreadCount)
	}

	fmt.Fprintln(out, "direct messages:")
	for _, d := range st.DirectMessageThreads {
		fmt.Fprintf(out, "  %s [%s] unread=%d\n", d.Id, strings.Join(d.ParticipantIds, ", "), d.UnreadCount)
	}

	fmt.Fprintln(out, "users:")
	for _, u := range st.Users {
		fmt.Fprintf(out, "  %s (%s) %s\n", u.DisplayName, u.Id, u.Status)
	}

	msgs := st.Transcript
	if len(msgs) > transcriptTail {
		msgs = msgs[len(msgs)-transcriptTail:]
	}
	fmt.Fprintln(out, "transcript:")
	for _, m := range msgs {
		fmt.Fprintf(out, "  [%s] %s: %s\n", m.CreatedAt.Format("15:04:05"), m.SenderId, m.Content)
	}
}
