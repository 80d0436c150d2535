package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/phrazzld/tasker-api/internal/api"
	"github.com/spf13/pflag"
)

// cli carries what every command needs once flags are resolved.
type cli struct {
	client *Client
	out    *printer
}

// call sends one request and prints the response body.
func (c *cli) call(ctx context.Context, method, path string, body any) error {
	data, err := c.client.Do(ctx, method, path, body)
	if err != nil {
		return err
	}
	return c.out.Print(data)
}

type command struct {
	name    string
	args    string
	summary string
	flags   func(fs *pflag.FlagSet)
	run     func(ctx context.Context, c *cli, fs *pflag.FlagSet) error
}

func noFlags(*pflag.FlagSet) {}

var commands = map[string]command{
	"signup": {
		name:    "signup",
		args:    "--username NAME --email EMAIL --password PASSWORD",
		summary: "Register a new user",
		flags: func(fs *pflag.FlagSet) {
			fs.String("username", "", "username")
			fs.String("email", "", "email address")
			fs.String("password", "", "password (8 to 72 characters)")
		},
		run: runSignup,
	},
	"token": {
		name:    "token",
		args:    "--username NAME --password PASSWORD",
		summary: "Exchange credentials for an access and refresh token",
		flags: func(fs *pflag.FlagSet) {
			fs.String("username", "", "username")
			fs.String("password", "", "password")
		},
		run: runToken,
	},
	"refresh": {
		name:    "refresh",
		args:    "--refresh TOKEN",
		summary: "Exchange a refresh token for a new token pair",
		flags: func(fs *pflag.FlagSet) {
			fs.String("refresh", "", "refresh token")
		},
		run: runRefresh,
	},
	"list": {
		name:    "list",
		args:    "[--status STATUS]",
		summary: "List your tasks",
		flags: func(fs *pflag.FlagSet) {
			fs.String("status", "", "only tasks in this status (cr, ru, co, fa)")
		},
		run: runList,
	},
	"get": {
		name:    "get",
		args:    "TASK_ID",
		summary: "Show one task",
		flags:   noFlags,
		run:     runGet,
	},
	"create": {
		name:    "create",
		args:    "--name NAME [--status STATUS] [--timer SECONDS]",
		summary: "Create a task",
		flags: func(fs *pflag.FlagSet) {
			fs.String("name", "", "task name")
			fs.String("status", "", "initial status (cr or ru)")
			fs.Int("timer", 0, "execution time in seconds when created running")
		},
		run: runCreate,
	},
	"update": {
		name:    "update",
		args:    "TASK_ID [--name NAME] [--status STATUS] [--timer SECONDS]",
		summary: "Change a task's name or status",
		flags: func(fs *pflag.FlagSet) {
			fs.String("name", "", "new name")
			fs.String("status", "", "new status")
			fs.Int("timer", 0, "execution time in seconds when moving to running")
		},
		run: runUpdate,
	},
	"delete": {
		name:    "delete",
		args:    "TASK_ID",
		summary: "Delete a task",
		flags:   noFlags,
		run:     runDelete,
	},
	"fork": {
		name:    "fork",
		args:    "TASK_ID",
		summary: "Copy a task into a new created task",
		flags:   noFlags,
		run:     runFork,
	},
}

func runSignup(ctx context.Context, c *cli, fs *pflag.FlagSet) error {
	if err := requireFlags(fs, "username", "email", "password"); err != nil {
		return err
	}
	req := api.SignupRequest{
		Username: stringFlag(fs, "username"),
		Email:    stringFlag(fs, "email"),
		Password: stringFlag(fs, "password"),
	}
	return c.call(ctx, http.MethodPost, "/api/auth/signup", req)
}

func runToken(ctx context.Context, c *cli, fs *pflag.FlagSet) error {
	if err := requireFlags(fs, "username", "password"); err != nil {
		return err
	}
	req := api.TokenRequest{
		Username: stringFlag(fs, "username"),
		Password: stringFlag(fs, "password"),
	}
	return c.call(ctx, http.MethodPost, "/api/auth/token", req)
}

func runRefresh(ctx context.Context, c *cli, fs *pflag.FlagSet) error {
	if err := requireFlags(fs, "refresh"); err != nil {
		return err
	}
	req := api.RefreshTokenRequest{Refresh: stringFlag(fs, "refresh")}
	return c.call(ctx, http.MethodPost, "/api/auth/refresh", req)
}

func runList(ctx context.Context, c *cli, fs *pflag.FlagSet) error {
	path := "/api/tasks"
	if status := stringFlag(fs, "status"); status != "" {
		path += "?" + url.Values{"status": {status}}.Encode()
	}
	return c.call(ctx, http.MethodGet, path, nil)
}

func runGet(ctx context.Context, c *cli, fs *pflag.FlagSet) error {
	id, err := taskIDArg(fs)
	if err != nil {
		return err
	}
	return c.call(ctx, http.MethodGet, taskPath(id), nil)
}

func runCreate(ctx context.Context, c *cli, fs *pflag.FlagSet) error {
	if err := requireFlags(fs, "name"); err != nil {
		return err
	}
	req := api.CreateTaskRequest{
		Name:   stringFlag(fs, "name"),
		Status: stringFlag(fs, "status"),
		Timer:  intFlagIfSet(fs, "timer"),
	}
	return c.call(ctx, http.MethodPost, "/api/tasks", req)
}

func runUpdate(ctx context.Context, c *cli, fs *pflag.FlagSet) error {
	id, err := taskIDArg(fs)
	if err != nil {
		return err
	}
	if !fs.Changed("name") && !fs.Changed("status") {
		return fmt.Errorf("%w: update needs --name or --status", errUsage)
	}

	req := api.UpdateTaskRequest{Timer: intFlagIfSet(fs, "timer")}
	if fs.Changed("name") {
		name := stringFlag(fs, "name")
		req.Name = &name
	}
	if fs.Changed("status") {
		status := stringFlag(fs, "status")
		req.Status = &status
	}
	return c.call(ctx, http.MethodPut, taskPath(id), req)
}

func runDelete(ctx context.Context, c *cli, fs *pflag.FlagSet) error {
	id, err := taskIDArg(fs)
	if err != nil {
		return err
	}
	return c.call(ctx, http.MethodDelete, taskPath(id), nil)
}

func runFork(ctx context.Context, c *cli, fs *pflag.FlagSet) error {
	id, err := taskIDArg(fs)
	if err != nil {
		return err
	}
	return c.call(ctx, http.MethodPost, "/api/tasks", api.CreateTaskRequest{ForkTaskID: id})
}

func taskPath(id string) string {
	return "/api/tasks/" + url.PathEscape(id)
}

// taskIDArg returns the single positional task id.
func taskIDArg(fs *pflag.FlagSet) (string, error) {
	if fs.NArg() != 1 || strings.TrimSpace(fs.Arg(0)) == "" {
		return "", fmt.Errorf("%w: expected exactly one TASK_ID", errUsage)
	}
	return fs.Arg(0), nil
}

func requireFlags(fs *pflag.FlagSet, names ...string) error {
	var missing []string
	for _, name := range names {
		if stringFlag(fs, name) == "" {
			missing = append(missing, "--"+name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", errUsage, strings.Join(missing, ", "))
	}
	return nil
}

func stringFlag(fs *pflag.FlagSet, name string) string {
	value, _ := fs.GetString(name)
	return value
}

func intFlagIfSet(fs *pflag.FlagSet, name string) *int {
	if !fs.Changed(name) {
		return nil
	}
	value, _ := fs.GetInt(name)
	return &value
}
