package scenario

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// AppMode selects which family of datasets a map session shows.
type AppMode string

const (
	ModePast   AppMode = "past"
	ModeFuture AppMode = "future"
)

// PlaceholderScenario stands in for the scenario id in modes that have no
// scenario dimension.
const PlaceholderScenario = "default"

// Key identifies cached region detail for one (mode, scenario, region) tuple.
type Key string

func ParseMode(raw string) (AppMode, bool) {
	switch AppMode(strings.ToLower(strings.TrimSpace(raw))) {
	case ModePast, "":
		return ModePast, true
	case ModeFuture:
		return ModeFuture, true
	default:
		return "", false
	}
}

// HasScenarios reports whether data in this mode varies by scenario.
func (m AppMode) HasScenarios() bool {
	return m == ModeFuture
}

// Resolve derives the cache key. The scenario part is path-escaped so ids
// containing the separator cannot alias another key.
func Resolve(mode AppMode, scenarioID string, regionID int) Key {
	if mode == "" {
		mode = ModePast
	}
	sid := strings.TrimSpace(scenarioID)
	if !mode.HasScenarios() || sid == "" {
		sid = PlaceholderScenario
	}
	return Key(string(mode) + "/" + url.PathEscape(sid) + "/" + strconv.Itoa(regionID))
}

// Split is the inverse of Resolve.
func (k Key) Split() (AppMode, string, int, error) {
	parts := strings.Split(string(k), "/")
	if len(parts) != 3 {
		return "", "", 0, fmt.Errorf("malformed scenario key %q", string(k))
	}
	sid, err := url.PathUnescape(parts[1])
	if err != nil {
		return "", "", 0, fmt.Errorf("malformed scenario in key %q: %w", string(k), err)
	}
	region, err := strconv.Atoi(parts[2])
	if err != nil {
		return "", "", 0, fmt.Errorf("malformed region in key %q: %w", string(k), err)
	}
	return AppMode(parts[0]), sid, region, nil
}

func (k Key) String() string { return string(k) }
