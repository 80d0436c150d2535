// Package main implements taskerctl, a command line client for the tasker API.
//
// Usage:
//
//	taskerctl [--server URL] [--token TOKEN] [-o json|yaml] <command> [flags] [args]
//
// The server URL and token may also be supplied through the
// TASKER_SERVER_URL and TASKER_TOKEN environment variables.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// envPrefix matches the server's configuration prefix.
const envPrefix = "TASKER"

// Exit codes.
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

// errUsage marks errors caused by bad command line input.
var errUsage = errors.New("usage error")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes one taskerctl invocation and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	global := pflag.NewFlagSet("taskerctl", pflag.ContinueOnError)
	global.SetOutput(stderr)
	global.SetInterspersed(false)
	global.String("server", "", "tasker server URL (env TASKER_SERVER_URL)")
	global.String("token", "", "access token (env TASKER_TOKEN)")
	global.StringP("output", "o", outputJSON, "output format: json or yaml")
	global.Usage = func() { printUsage(stderr, global) }

	if err := global.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	rest := global.Args()
	if len(rest) == 0 {
		printUsage(stderr, global)
		return exitUsage
	}

	cmd, ok := commands[rest[0]]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n\n", rest[0])
		printUsage(stderr, global)
		return exitUsage
	}

	fs := pflag.NewFlagSet("taskerctl "+cmd.name, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	cmd.flags(fs)
	fs.AddFlagSet(global)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: taskerctl %s %s\n\n%s\n\nFlags:\n", cmd.name, cmd.args, cmd.summary)
		fs.PrintDefaults()
	}
	if err := fs.Parse(rest[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	// Flags win over the environment only when set explicitly.
	for key, flag := range map[string]string{"server_url": "server", "token": "token", "output": "output"} {
		if err := v.BindPFlag(key, global.Lookup(flag)); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitError
		}
	}

	out, err := newPrinter(stdout, v.GetString("output"))
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}

	client, err := NewClient(v.GetString("server_url"), v.GetString("token"))
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}

	c := &cli{client: client, out: out}
	if err := cmd.run(ctx, c, fs); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		if errors.Is(err, errUsage) {
			fs.Usage()
			return exitUsage
		}
		return exitError
	}

	return exitOK
}

func printUsage(w io.Writer, global *pflag.FlagSet) {
	fmt.Fprintln(w, "Usage: taskerctl [global flags] <command> [flags] [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")

	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-8s %s\n", name, commands[name].summary)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Global flags:")
	global.SetOutput(w)
	global.PrintDefaults()
}
