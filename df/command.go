package df

import (
	"strings"

	"github.com/df-mc/dragonfly/server/cmd"
	"github.com/df-mc/dragonfly/server/player"
	"github.com/df-mc/dragonfly/server/world"
)

// Command is the in-game /deathchest command. Players run it through the
// death chest Handler attached to them.
type Command struct {
	Args cmd.Optional[cmd.Varargs] `cmd:"args"`
}

// RegisterCommand registers /deathchest with Dragonfly's command registry.
func RegisterCommand() {
	cmd.Register(cmd.New("deathchest", "Manage death chests.", []string{"dc"}, Command{}))
}

// Allow only lets players with a death chest handler run the command.
func (Command) Allow(src cmd.Source) bool {
	p, ok := src.(*player.Player)
	return ok && handlerOf(p) != nil
}

// Run parses the arguments and hands them to the death chest commands.
func (c Command) Run(src cmd.Source, o *cmd.Output, _ *world.Tx) {
	p, ok := src.(*player.Player)
	if !ok {
		o.Error("This command can only be run by players.")
		return
	}
	h := handlerOf(p)
	if h == nil || h.deps.Commands == nil {
		o.Error("Death chests are not available.")
		return
	}

	var args []string
	if v, ok := c.Args.Load(); ok {
		args = strings.Fields(string(v))
	}
	h.deps.Commands.Execute(playerSource{p: p, perms: h.deps.Permissions}, args, output{o: o})
}

// playerSource adapts a player to deathchest.Source.
type playerSource struct {
	p     *player.Player
	perms *Permissions
}

func (s playerSource) Name() string {
	return s.p.Name()
}

func (s playerSource) HasPermission(perm string) bool {
	return s.perms.Has(s.p.Name(), perm)
}

// output adapts a command output to deathchest.Output.
type output struct {
	o *cmd.Output
}

func (o output) Print(msg string) {
	o.o.Print(msg)
}

func (o output) Error(msg string) {
	o.o.Error(msg)
}
