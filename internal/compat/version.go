// Package compat checks that a suite config's declared minimum engine
// version is satisfied by the running binary, using the teacher's
// blang/semver dependency (SPEC_FULL.md "Compatibility check").
package compat

import (
	"fmt"

	"github.com/blang/semver"
)

// EngineVersion is the running binary's version, set at build time via
// -ldflags (falling back to a development placeholder).
var EngineVersion = "0.0.0-dev"

// CheckMinVersion returns an error if the running EngineVersion is older
// than minVersion. An empty minVersion means the suite config declared no
// requirement and always passes.
func CheckMinVersion(minVersion string) error {
	if minVersion == "" {
		return nil
	}
	min, err := semver.Parse(normalize(minVersion))
	if err != nil {
		return fmt.Errorf("compat: invalid minEngineVersion %q: %w", minVersion, err)
	}
	running, err := semver.Parse(normalize(EngineVersion))
	if err != nil {
		return fmt.Errorf("compat: invalid running engine version %q: %w", EngineVersion, err)
	}
	if running.LT(min) {
		return fmt.Errorf("compat: suite requires engine >= %s, running %s", min, running)
	}
	return nil
}

// normalize strips a leading "v", which semver.Parse rejects but suite
// authors and git tags commonly write.
func normalize(v string) string {
	if len(v) > 0 && v[0] == 'v' {
		return v[1:]
	}
	return v
}
