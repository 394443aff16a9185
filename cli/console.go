package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"
)

const consolePageSize = 20

// Console is an interactive shell over a remote error log server
type Console struct {
	rl      *readline.Instance
	running bool
	client  *Client
	app     string
	out     io.Writer
}

// NewConsole connects to serverURL and prepares the readline prompt
func NewConsole(ctx context.Context, serverURL, app string) (*Console, error) {
	client := NewClient(serverURL)

	// Test connectivity
	if err := client.HealthCheck(ctx); err != nil {
		return nil, fmt.Errorf("cannot connect to server: %w", err)
	}

	// Create readline instance; ignore Ctrl+C
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "elmah> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	return &Console{
		rl:      rl,
		running: true,
		client:  client,
		app:     app,
		out:     os.Stdout,
	}, nil
}

// Start runs the console loop until exit or EOF
func (c *Console) Start() {
	defer c.rl.Close()
	c.printWelcome()

	for c.running {
		line, err := c.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				fmt.Fprintln(c.out, "\nCtrl+C detected. Use 'exit' or 'quit' to leave.")
				continue
			}
			break
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		c.handleCommand(input)
	}
}

func (c *Console) printWelcome() {
	PrintBanner(c.out, "ELMAH - Remote Console")
	fmt.Fprintf(c.out, "\nConnected to: %s\n", c.client.BaseURL())
	fmt.Fprintln(c.out, "Type 'help' for available commands")
}

// handleCommand routes user commands
func (c *Console) handleCommand(input string) {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return
	}

	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "h", "?":
		c.showHelp()
	case "apps":
		c.listApplications()
	case "use":
		if len(args) == 0 {
			fmt.Fprintln(c.out, "Usage: use <application>")
			return
		}
		c.app = args[0]
		fmt.Fprintf(c.out, "Using application %s\n", c.app)
	case "list", "ls":
		page := 1
		if len(args) > 0 {
			if p, err := strconv.Atoi(args[0]); err == nil && p > 0 {
				page = p
			}
		}
		c.listErrors(page)
	case "show", "get":
		if len(args) == 0 {
			fmt.Fprintln(c.out, "Usage: show <id>")
			return
		}
		c.showError(args[0])
	case "xml":
		if len(args) == 0 {
			fmt.Fprintln(c.out, "Usage: xml <id>")
			return
		}
		c.showXML(args[0])
	case "clear":
		fmt.Fprint(c.out, "\033[H\033[2J")
	case "exit", "quit", "q":
		fmt.Fprintln(c.out, "Bye.")
		c.running = false
	default:
		fmt.Fprintf(c.out, "Unknown command: %s. Type 'help' for available commands.\n", cmd)
	}
}

func (c *Console) showHelp() {
	fmt.Fprintln(c.out)
	PrintBanner(c.out, "Available Commands")
	fmt.Fprintln(c.out)

	commands := [][]string{
		{"help, h, ?", "Show this help message"},
		{"apps", "List applications"},
		{"use <app>", "Switch application"},
		{"list [page]", "List errors, newest first"},
		{"show <id>", "Show error details"},
		{"xml <id>", "Print the error as XML"},
		{"clear", "Clear screen"},
		{"exit, quit, q", "Exit the console"},
	}
	for _, cmd := range commands {
		fmt.Fprintf(c.out, "  %-20s %s\n", cmd[0], cmd[1])
	}
}

func (c *Console) listApplications() {
	apps, err := c.client.Applications(context.Background())
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	for i, app := range apps {
		marker := " "
		if app == c.app || (c.app == "" && i == 0) {
			marker = "*"
		}
		fmt.Fprintf(c.out, " %s %s\n", marker, app)
	}
}

// listErrors shows a one-based page of errors
func (c *Console) listErrors(page int) {
	result, err := c.client.ListErrors(context.Background(), c.app, page-1, consolePageSize)
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}

	if result.Total == 0 {
		fmt.Fprintln(c.out, "No errors logged.")
		return
	}

	totalPages := (result.Total + consolePageSize - 1) / consolePageSize

	fmt.Fprintln(c.out)
	PrintBanner(c.out, fmt.Sprintf("Errors (Page %d/%d, Total: %d)", page, totalPages, result.Total))
	fmt.Fprintln(c.out)

	fmt.Fprintf(c.out, "%-36s %-19s %-6s %-25s %s\n", "ID", "Time", "Code", "Type", "Message")
	fmt.Fprintln(c.out, strings.Repeat("-", 120))

	for _, e := range result.Entries {
		fmt.Fprintf(c.out, "%-36s %-19s %-6s %-25s %s\n",
			e.ID,
			e.Time.Local().Format("2006-01-02 15:04:05"),
			statusText(e.StatusCode),
			truncate(e.Type, 25),
			truncate(e.Message, 40),
		)
	}

	fmt.Fprintf(c.out, "\nUse 'show <id>' to view details\n")
}

func (c *Console) showError(id string) {
	e, err := c.client.GetError(context.Background(), c.app, id)
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}

	fmt.Fprintln(c.out)
	PrintBanner(c.out, "Error "+e.ID)
	fmt.Fprintln(c.out)

	fmt.Fprintf(c.out, "Application: %s\n", e.Application)
	fmt.Fprintf(c.out, "Time:        %s\n", e.Time.Local().Format(time.RFC3339))
	fmt.Fprintf(c.out, "Host:        %s\n", e.Host)
	fmt.Fprintf(c.out, "Type:        %s\n", e.Type)
	fmt.Fprintf(c.out, "Source:      %s\n", e.Source)
	fmt.Fprintf(c.out, "User:        %s\n", e.User)
	fmt.Fprintf(c.out, "Status:      %s\n", statusText(e.StatusCode))
	fmt.Fprintf(c.out, "Message:     %s\n", e.Message)

	if e.Detail != "" {
		fmt.Fprintf(c.out, "\nDetail:\n%s\n", truncate(e.Detail, 4000))
	}
	for _, section := range []struct {
		title string
		items int
	}{
		{"Server variables", len(e.ServerVariables)},
		{"Query string", len(e.QueryString)},
		{"Form", len(e.Form)},
		{"Cookies", len(e.Cookies)},
	} {
		if section.items > 0 {
			fmt.Fprintf(c.out, "%s: %d item(s)\n", section.title, section.items)
		}
	}
}

func (c *Console) showXML(id string) {
	doc, err := c.client.GetErrorXML(context.Background(), c.app, id)
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintln(c.out, doc)
}

func statusText(code int) string {
	if code == 0 {
		return "-"
	}
	return strconv.Itoa(code)
}

// truncate shortens a string to at most maxLen runes
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
