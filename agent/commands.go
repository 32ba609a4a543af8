package agent

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nstehr/mudlark/mudlark-core/ipc"
	"github.com/nstehr/mudlark/mudlark-core/model"
)

const clearScreen = "\x1b[2J\x1b[H"

func (a *Agent) clientCommands() *ipc.Commands {
	cmds := ipc.NewCommands()
	cmds.Register(ipc.ClientCommand{
		Name:        "help",
		Description: "List client commands",
		Run: func(string) error {
			for _, line := range cmds.Help() {
				a.Conn.Info(a.styles.info.Render(line))
			}
			return nil
		},
	})
	cmds.Register(ipc.ClientCommand{
		Name:        "cls",
		Aliases:     []string{"clear"},
		Description: "Clear the screen",
		Run: func(string) error {
			return a.Conn.Send(ipc.TypeLine, clearScreen)
		},
	})
	cmds.Register(ipc.ClientCommand{
		Name:        "vars",
		Usage:       "[name]",
		Description: "Show variables, or one variable",
		Run: func(args string) error {
			vars := a.Store.Variables()
			if args != "" {
				value, ok := model.LookupVariable(vars, args)
				if !ok {
					return fmt.Errorf("%s is not set", args)
				}
				a.Conn.Info(a.styles.info.Render(fmt.Sprintf("%s = %q", args, value)))
				return nil
			}
			if len(vars) == 0 {
				a.Conn.Info("no variables")
			}
			for _, v := range vars {
				a.Conn.Info(a.styles.info.Render(fmt.Sprintf("%s = %q", v.Name, v.Value)))
			}
			return nil
		},
	})
	cmds.Register(ipc.ClientCommand{
		Name:        "set",
		Usage:       "name value",
		Description: "Set a variable",
		Run: func(args string) error {
			name, value, _ := strings.Cut(args, " ")
			if name == "" {
				return errors.New("usage: #set name value")
			}
			return a.Store.Set(name, strings.TrimSpace(value))
		},
	})
	cmds.Register(ipc.ClientCommand{
		Name:        "recv",
		Usage:       "line",
		Description: "Process a line as if the server sent it",
		Run: func(args string) error {
			a.HandleLine(args)
			return nil
		},
	})
	cmds.Register(ipc.ClientCommand{
		Name:        "reload",
		Description: "Reload the profile from disk",
		Run: func(string) error {
			if a.Reload == nil {
				return errors.New("reload is not available in this session")
			}
			p, err := a.Reload()
			if err != nil {
				return fmt.Errorf("reload: %w", err)
			}
			a.Swap(p)
			a.Conn.Info("profile reloaded")
			return nil
		},
	})
	return cmds
}
