package config

import "fmt"

// set via ldflags on release builds
var (
	version = "0.1.0"
	commit  = "dev"
)

type Version struct {
	Version string
	Commit  string
}

func NewVersion() *Version {
	return &Version{
		Version: version,
		Commit:  commit,
	}
}

func (v *Version) String() string {
	return fmt.Sprintf("tpkutils %s (%s)", v.Version, v.Commit)
}
