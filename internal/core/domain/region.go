package domain

import "strings"

// Region scopes retrieval to one regulatory jurisdiction.
type Region string

const (
	RegionUS      Region = "US"
	RegionDE      Region = "DE"
	RegionUnknown Region = "unknown"
)

func ParseRegion(raw string) Region {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "US", "USA":
		return RegionUS
	case "DE", "GER", "GERMANY":
		return RegionDE
	default:
		return RegionUnknown
	}
}

func (r Region) Known() bool {
	return r == RegionUS || r == RegionDE
}

func (r Region) String() string {
	return string(r)
}
