// Package version holds build information set via -ldflags.
package version

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

var (
	Version = "0.1.0-dev"
	Commit  = "unknown"
)

// Compatible reports whether a peer running version peer can talk to this
// build: both must parse as semver and share the major version (minor too
// while major is 0).
func Compatible(peer string) error {
	self, err := semver.NewVersion(Version)
	if err != nil {
		return fmt.Errorf("own version %q: %w", Version, err)
	}
	other, err := semver.NewVersion(peer)
	if err != nil {
		return fmt.Errorf("peer version %q: %w", peer, err)
	}
	expr := fmt.Sprintf("^%d.%d.0-0", self.Major(), self.Minor())
	if self.Major() > 0 {
		expr = fmt.Sprintf("^%d.0.0-0", self.Major())
	}
	c, err := semver.NewConstraint(expr)
	if err != nil {
		return err
	}
	if !c.Check(other) {
		return fmt.Errorf("version %s is not compatible with %s", other, self)
	}
	return nil
}
