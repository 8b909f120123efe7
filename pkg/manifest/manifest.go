// Package manifest loads an optional run manifest: a YAML file naming the
// paths, include/exclude patterns, and job concurrency for one invocation
// of jakttest run, so a project can check a manifest into its repository
// instead of repeating the same flags on every invocation.
//
// Example manifest:
//
//	paths:
//	  - tests/
//	  - examples/smoke.jakt
//	include:
//	  - "**/*.jakt"
//	exclude:
//	  - "**/fixtures/**"
//	jobs: 8
package manifest

// RunManifest is the decoded shape of a --manifest file. Every field is
// optional: an absent field leaves the corresponding CLI flag or default
// untouched, since the manifest is loaded before flag overrides are
// applied.
type RunManifest struct {
	// Paths are files or directories to discover tests from, the same
	// shape as the CLI's positional arguments.
	Paths []string `yaml:"paths" mapstructure:"paths"`

	// Include are glob patterns a discovered file must match at least
	// one of. Empty means pkg/discover's default (**/*.jakt).
	Include []string `yaml:"include" mapstructure:"include"`

	// Exclude are glob patterns a discovered file must not match any of.
	Exclude []string `yaml:"exclude" mapstructure:"exclude"`

	// Jobs caps scheduler concurrency. Zero means "use the flag/config
	// value instead."
	Jobs int `yaml:"jobs" mapstructure:"jobs"`
}
