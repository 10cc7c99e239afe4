package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/sandertv/gophertunnel/minecraft/text"

	"github.com/oriumgames/deathchest"
)

// consoleSource is the process console. It has every permission.
type consoleSource struct{}

func (consoleSource) Name() string { return "CONSOLE" }

func (consoleSource) HasPermission(string) bool { return true }

// consoleOutput writes command replies to the console without colour codes.
type consoleOutput struct {
	w io.Writer
}

func (o consoleOutput) Print(msg string) {
	_, _ = fmt.Fprintln(o.w, text.Clean(msg))
}

func (o consoleOutput) Error(msg string) {
	_, _ = fmt.Fprintln(o.w, "error: "+text.Clean(msg))
}

// parseConsoleLine splits a console line into death chest command arguments.
// It accepts the command with or without a leading slash and name, so
// "/deathchest info", "dc info" and "info" are equivalent. ok is false for
// empty lines.
func parseConsoleLine(line string) (args []string, ok bool) {
	fields := strings.Fields(strings.TrimPrefix(strings.TrimSpace(line), "/"))
	if len(fields) == 0 {
		return nil, false
	}
	switch strings.ToLower(fields[0]) {
	case "deathchest", "dc":
		fields = fields[1:]
	}
	return fields, true
}

// runConsole executes every line read from r as a death chest command until r
// is exhausted or ctx is done.
func runConsole(ctx context.Context, r io.Reader, w io.Writer, commands *deathchest.Commands) {
	scanner := bufio.NewScanner(r)
	out := consoleOutput{w: w}
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		args, ok := parseConsoleLine(scanner.Text())
		if !ok {
			continue
		}
		commands.Execute(consoleSource{}, args, out)
	}
}
