package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/entrhq/webpilot/pkg/agent"
	"github.com/entrhq/webpilot/pkg/logging"
	"github.com/entrhq/webpilot/pkg/types"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("75"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("78"))

	answerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("78")).
			Padding(0, 1)
)

// repl is the interactive read-eval-print loop around the controller.
type repl struct {
	controller *agent.Controller
	recorder   *logging.SessionRecorder
	reader     *bufio.Reader
	debug      bool
}

func newREPL(controller *agent.Controller, recorder *logging.SessionRecorder, debug bool) *repl {
	return &repl{
		controller: controller,
		recorder:   recorder,
		reader:     bufio.NewReader(os.Stdin),
		debug:      debug,
	}
}

// Run reads tasks and slash commands until /exit, EOF, or cancellation.
func (r *repl) Run(ctx context.Context) error {
	r.printWelcome()

	for {
		if ctx.Err() != nil {
			return nil
		}

		fmt.Print("> ")
		line, err := r.reader.ReadString('\n')
		if err != nil {
			fmt.Println()
			return nil
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			if exit := r.handleCommand(input); exit {
				fmt.Println(successStyle.Render("Goodbye!"))
				return nil
			}
			continue
		}

		r.processTask(ctx, input)
	}
}

func (r *repl) printWelcome() {
	fmt.Println()
	fmt.Println(titleStyle.Render("webpilot"))
	fmt.Println("LLM-powered browser automation")
	fmt.Println("Type /help for commands, /exit to quit")
	fmt.Println()
}

// handleCommand executes a slash command and reports whether to exit.
func (r *repl) handleCommand(input string) bool {
	parts := strings.Fields(input)
	cmd := strings.ToLower(parts[0])

	switch cmd {
	case "/help":
		r.printHelp()
	case "/exit", "/quit":
		return true
	case "/reset":
		if err := r.controller.Reset(); err != nil {
			fmt.Println(errorStyle.Render("Error: " + err.Error()))
			break
		}
		fmt.Println(infoStyle.Render("Conversation history cleared (browser session kept)"))
	case "/debug":
		switch {
		case len(parts) > 1 && isOn(parts[1]):
			r.setDebug(true)
		case len(parts) > 1 && isOff(parts[1]):
			r.setDebug(false)
		default:
			status := "off"
			if r.debug {
				status = "on"
			}
			fmt.Println(infoStyle.Render("Debug mode is " + status))
		}
	case "/stats":
		r.printStats()
	default:
		fmt.Println(errorStyle.Render("Unknown command: " + cmd))
	}
	return false
}

// setDebug flips the render flag and the controller's debug event emission
// together, so /debug on mid-session starts producing iteration and tool
// debug events on the next task.
func (r *repl) setDebug(enabled bool) {
	if err := r.controller.SetDebug(enabled); err != nil {
		fmt.Println(errorStyle.Render("Error: " + err.Error()))
		return
	}
	r.debug = enabled
	if enabled {
		fmt.Println(infoStyle.Render("Debug mode enabled"))
	} else {
		fmt.Println(infoStyle.Render("Debug mode disabled"))
	}
}

func (r *repl) printStats() {
	stats := r.controller.Stats()
	fmt.Println(infoStyle.Render(fmt.Sprintf(
		"Session tokens: %d prompt + %d completion = %d total",
		stats.LifetimePromptTokens, stats.LifetimeCompletionTokens, stats.LifetimeTotal())))
	fmt.Println(infoStyle.Render(fmt.Sprintf(
		"Last task: %d prompt + %d completion",
		stats.TaskPromptTokens, stats.TaskCompletionTokens)))
	fmt.Println(infoStyle.Render(fmt.Sprintf(
		"History: %d messages, ~%d tokens for the next call",
		r.controller.HistoryLen(), r.controller.ContextTokens())))
}

func isOn(s string) bool {
	switch strings.ToLower(s) {
	case "on", "true", "1":
		return true
	}
	return false
}

func isOff(s string) bool {
	switch strings.ToLower(s) {
	case "off", "false", "0":
		return true
	}
	return false
}

func (r *repl) printHelp() {
	fmt.Println(`
Available Commands:

  /help       - Show this help message
  /exit       - Exit the CLI
  /reset      - Clear conversation history
  /stats      - Show session token usage and context size
  /debug on   - Enable debug mode
  /debug off  - Disable debug mode

Usage:

  Simply type a task and press Enter. For example:
  - "Find the pricing page and summarize the tiers"
  - "Search for Go tutorials and list the top 3"
  - "Open example.com and tell me what's on the page"`)
	fmt.Println()
}

// processTask runs one task to completion, rendering the event stream.
func (r *repl) processTask(ctx context.Context, task string) {
	taskCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var response strings.Builder
	streaming := false

	flush := func(final bool) {
		if response.Len() == 0 {
			return
		}
		text := strings.TrimSpace(response.String())
		if final {
			fmt.Println(answerStyle.Render(text))
		} else {
			fmt.Println(text)
		}
		response.Reset()
	}

	for event := range r.controller.ProcessTask(taskCtx, task) {
		switch event.Type {
		case types.EventTypeMessageStart:
			response.Reset()
			streaming = false

		case types.EventTypeContent:
			response.WriteString(event.Content)
			streaming = true

		case types.EventTypeMessageEnd:
			if event.IsFinal && !streaming && response.Len() == 0 {
				fmt.Println(warnStyle.Render("Model completed without providing a text response"))
				break
			}
			fmt.Println()
			flush(event.IsFinal)

		case types.EventTypeToolCall:
			fmt.Println(dimStyle.Render(fmt.Sprintf("-> %s(%v)", event.ToolName, event.ToolArgs)))

		case types.EventTypeToolResult:
			if r.debug && event.Result != nil {
				fmt.Println(dimStyle.Render(fmt.Sprintf("   ok=%t", event.Result.OK)))
			}

		case types.EventTypeLoopDetected:
			fmt.Println(warnStyle.Render(fmt.Sprintf("Loop detected: %s(%v)", event.ToolName, event.ToolArgs)))
			fmt.Println(warnStyle.Render("Agent is repeating actions. Press Enter to continue, or type stop to abort."))
			answer, err := r.reader.ReadString('\n')
			if err != nil || strings.TrimSpace(answer) != "" {
				fmt.Println(warnStyle.Render("Stopping execution."))
				cancel()
			}

		case types.EventTypeWarning:
			fmt.Println(warnStyle.Render("Warning: " + event.Content))

		case types.EventTypeError:
			fmt.Println(errorStyle.Render("Error: " + event.Err.Error()))

		case types.EventTypeDebug:
			if r.debug {
				fmt.Println(dimStyle.Render("[DEBUG] " + event.Content))
			}

		case types.EventTypeUsage:
			u := event.Usage
			fmt.Println(dimStyle.Render(fmt.Sprintf(
				"Tokens: %d prompt + %d completion = %d total | Cost: $%.4f",
				u.PromptTokens, u.CompletionTokens, u.TotalTokens, u.CostUSD)))
		}
	}

	fmt.Println(dimStyle.Render("Session saved to: " + r.recorder.SessionDir()))
	fmt.Println()
}
