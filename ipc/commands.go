package ipc

import (
	"fmt"
	"sort"
	"strings"
)

// CommandPrefix marks input handled by the client instead of the server.
const CommandPrefix = "#"

// ClientCommand is a local command such as #cls. Run receives everything
// after the command name, trimmed.
type ClientCommand struct {
	Name        string
	Aliases     []string
	Usage       string
	Description string
	Run         func(args string) error
}

// Commands is a case-insensitive registry of client commands.
type Commands struct {
	byName map[string]*ClientCommand
}

func NewCommands() *Commands {
	return &Commands{byName: make(map[string]*ClientCommand)}
}

func (c *Commands) Register(cmd ClientCommand) {
	p := &cmd
	c.byName[strings.ToLower(cmd.Name)] = p
	for _, a := range cmd.Aliases {
		c.byName[strings.ToLower(a)] = p
	}
}

// IsCommand reports whether input should be handled locally.
func IsCommand(input string) bool {
	return strings.HasPrefix(strings.TrimSpace(input), CommandPrefix)
}

// Execute runs the command named by input ("#set hp 10"). It returns an
// error for unknown commands.
func (c *Commands) Execute(input string) error {
	rest, ok := strings.CutPrefix(strings.TrimSpace(input), CommandPrefix)
	if !ok {
		return fmt.Errorf("not a client command: %q", input)
	}
	name, args, _ := strings.Cut(rest, " ")
	cmd, ok := c.byName[strings.ToLower(name)]
	if !ok {
		return fmt.Errorf("unknown command %s%s", CommandPrefix, name)
	}
	return cmd.Run(strings.TrimSpace(args))
}

// Help lists each registered command once, sorted by name.
func (c *Commands) Help() []string {
	seen := make(map[*ClientCommand]bool)
	var help []string
	for _, cmd := range c.byName {
		if seen[cmd] {
			continue
		}
		seen[cmd] = true
		line := CommandPrefix + cmd.Name
		if cmd.Usage != "" {
			line += " " + cmd.Usage
		}
		if len(cmd.Aliases) > 0 {
			line += " (aliases: " + strings.Join(cmd.Aliases, ", ") + ")"
		}
		help = append(help, line+": "+cmd.Description)
	}
	sort.Strings(help)
	return help
}
