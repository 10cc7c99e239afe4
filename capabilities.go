package deathchest

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// Capabilities describes what the host server supports. It is computed once at
// startup and passed to the Manager.
type Capabilities struct {
	// Version is the host version the capabilities were derived from.
	Version string
	// Holograms reports whether floating text entities can be shown.
	Holograms bool
	// FallingBlocks reports whether a chest can be animated as a falling block.
	FallingBlocks bool
	// BlockSounds reports whether block specific break sounds are available.
	// Without them a generic chest sound is played.
	BlockSounds bool
}

var (
	hologramConstraint    = mustConstraint(">= 1.16.0")
	fallingConstraint     = mustConstraint(">= 1.13.0")
	blockSoundsConstraint = mustConstraint(">= 1.19.0")
)

func mustConstraint(c string) *semver.Constraints {
	cs, err := semver.NewConstraint(c)
	if err != nil {
		panic(fmt.Sprintf("deathchest: invalid constraint %q: %v", c, err))
	}
	return cs
}

// DetectCapabilities derives capabilities from the host's game version, for
// example "1.21.130". An unparsable version disables every optional feature.
func DetectCapabilities(hostVersion string) Capabilities {
	caps := Capabilities{Version: hostVersion}
	v, err := semver.NewVersion(hostVersion)
	if err != nil {
		return caps
	}
	caps.Holograms = hologramConstraint.Check(v)
	caps.FallingBlocks = fallingConstraint.Check(v)
	caps.BlockSounds = blockSoundsConstraint.Check(v)
	return caps
}

func (c Capabilities) String() string {
	return fmt.Sprintf("version=%s holograms=%t falling=%t block-sounds=%t", c.Version, c.Holograms, c.FallingBlocks, c.BlockSounds)
}
