package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	contractx "github.com/tanpawarit/Chative-Travel-Router/agent/contract"
	statex "github.com/tanpawarit/Chative-Travel-Router/agent/state"
	"github.com/tanpawarit/Chative-Travel-Router/agent/transport/httpapi"
	logx "github.com/tanpawarit/Chative-Travel-Router/pkg/logger"
)

// maxContinuations bounds how many paused steps one input may resume.
const maxContinuations = 3

type chatStyles struct {
	prompt    lipgloss.Style
	worker    lipgloss.Style
	assistant lipgloss.Style
	failure   lipgloss.Style
	faint     lipgloss.Style
}

func newChatStyles() chatStyles {
	return chatStyles{
		prompt:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		worker:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("159")),
		assistant: lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		failure:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203")),
		faint:     lipgloss.NewStyle().Faint(true),
	}
}

func newChatCmd() *cobra.Command {
	var tenantID, userID, sessionID string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the travel planner in the terminal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if sessionID == "" {
				sessionID = uuid.NewString()
			}
			key := statex.NewKey(tenantID, userID, sessionID)
			if err := key.Validate(); err != nil {
				return err
			}

			app, err := wireApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			return runChat(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), app.router, key)
		},
	}
	cmd.Flags().StringVar(&tenantID, "tenant", "default", "tenant id")
	cmd.Flags().StringVar(&userID, "user", "local", "user id")
	cmd.Flags().StringVar(&sessionID, "session", "", "session id to continue (default: a new session)")

	return cmd
}

// runChat reads one message per line until EOF or "exit".
func runChat(ctx context.Context, in io.Reader, out io.Writer, stepper httpapi.Stepper, key statex.Key) error {
	st := newChatStyles()
	fmt.Fprintln(out, st.faint.Render(fmt.Sprintf("session %s (type exit to quit)", key.SessionID)))

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, st.prompt.Render("you> "))
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		text := strings.TrimSpace(scanner.Text())
		switch text {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		for i := 0; i <= maxContinuations; i++ {
			res, err := stepper.Step(ctx, key, text)
			if err != nil {
				logx.Component("chat").Error().Err(err).Str("session_id", key.SessionID).Msg("chat turn failed")
				fmt.Fprintln(out, st.failure.Render(contractx.FailureReply))
				break
			}
			printMessages(out, st, res.Messages)
			if res.Halted {
				break
			}
			if i == maxContinuations {
				fmt.Fprintln(out, st.faint.Render("(paused at the step limit; the next message starts a new turn)"))
				break
			}
			text = ""
		}
	}
}

func printMessages(out io.Writer, st chatStyles, msgs []contractx.Message) {
	for _, m := range msgs {
		if m.Role != contractx.RoleAssistant {
			continue
		}
		name := m.Worker
		if name == "" {
			name = "assistant"
		}
		fmt.Fprintf(out, "%s %s\n", st.worker.Render(name+">"), st.assistant.Render(m.Content))
	}
}
