package deathchest

import (
	"fmt"
	"log/slog"
	"strings"
)

// Permission nodes checked by death chests.
const (
	PermCreate = "deathchest.create"
	PermBreak  = "deathchest.break"
	PermAdmin  = "deathchest.admin"
)

// Source is whoever runs a death chest command.
type Source interface {
	Name() string
	HasPermission(perm string) bool
}

// Output receives the replies to a command.
type Output interface {
	Print(msg string)
	Error(msg string)
}

// Commands implements the /deathchest command.
type Commands struct {
	manager *Manager
	version string
	log     *slog.Logger
}

// NewCommands creates the command handler for m. version is shown by the info
// subcommand.
func NewCommands(m *Manager, version string, log *slog.Logger) *Commands {
	if log == nil {
		log = slog.Default()
	}
	return &Commands{manager: m, version: version, log: log}
}

// Execute runs the subcommand in args on behalf of src.
func (c *Commands) Execute(src Source, args []string, out Output) {
	sub := ""
	if len(args) > 0 {
		sub = strings.ToLower(args[0])
	}
	switch sub {
	case "", "help", "status":
		c.help(out)
	case "reload":
		c.reload(src, out)
	case "info":
		c.info(out)
	default:
		out.Error(c.msg("&cUnknown subcommand: &f" + args[0]))
		c.help(out)
	}
}

func (c *Commands) msg(s string) string {
	return prefixed(c.manager.settings.Config(), s)
}

func (c *Commands) help(out Output) {
	out.Print(c.msg("&eCommands:"))
	for _, line := range []string{
		"&e/deathchest help &7- show this help",
		"&e/deathchest info &7- show plugin information",
		"&e/deathchest reload &7- reload the configuration",
	} {
		out.Print(Colorize(line))
	}
}

func (c *Commands) reload(src Source, out Output) {
	if !src.HasPermission(PermAdmin) {
		out.Error(c.msg("&cYou do not have permission to use this command."))
		return
	}
	if err := c.manager.settings.Reload(); err != nil {
		logError(c.log, "reloading configuration", err)
		out.Error(c.msg("&cFailed to reload configuration: " + err.Error()))
		return
	}
	c.log.Info("configuration reloaded by command", "source", src.Name())
	out.Print(c.msg("&aConfiguration reloaded."))
}

func (c *Commands) info(out Output) {
	m := c.manager
	caps := m.Capabilities()
	out.Print(c.msg("&eDeathChest &f" + c.version))
	out.Print(Colorize(fmt.Sprintf("&7Active chests: &f%d", m.ActiveCount())))
	out.Print(Colorize(fmt.Sprintf("&7Falling chests: &f%d", m.PendingCount())))
	out.Print(Colorize(fmt.Sprintf("&7Server version: &f%s", caps.Version)))
	out.Print(Colorize(fmt.Sprintf("&7Holograms supported: &f%s", yesNo(caps.Holograms))))
	out.Print(Colorize(fmt.Sprintf("&7Active holograms: &f%d", m.Holograms().ActiveCount())))
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
