// Package iptables monitors firewall ruleset drift. The agent ships the
// output of iptables-save style rules as one section; discovery pins a
// hash of the ruleset seen at discovery time, and the check compares the
// current ruleset against the one stored in the value store, reporting
// any change with a diff.
package iptables

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/supporttools/fleet-doctor/pkg/check"
	"github.com/supporttools/fleet-doctor/pkg/section"
	"github.com/supporttools/fleet-doctor/pkg/types"
	"github.com/supporttools/fleet-doctor/pkg/valuestore"
)

func init() {
	section.MustRegister(section.Info{
		Name:        "iptables",
		Parse:       parseIptables,
		Description: "Firewall filter table rules, one rule per row",
	})
	check.MustRegister(check.Info{
		Name:        "iptables",
		ServiceName: "Iptables",
		Discover:    discoverIptables,
		Check:       checkIptables,
		Description: "Detects changes in the firewall filter table between cycles",
	})
}

// parseIptables joins each row back into a rule line and the lines into
// one canonical config string.
func parseIptables(table section.StringTable) (interface{}, error) {
	lines := make([]string, 0, len(table))
	for _, row := range table {
		lines = append(lines, strings.Join(row, " "))
	}
	return strings.Join(lines, "\n"), nil
}

func configHash(config string) string {
	sum := sha256.Sum256([]byte(config))
	return hex.EncodeToString(sum[:])
}

// discoverIptables pins the ruleset hash at discovery time so a service
// rediscovery accepts the then-current ruleset as the new baseline.
func discoverIptables(parsed interface{}) []check.Service {
	config := parsed.(string)
	return []check.Service{{
		Item:   "",
		Params: check.Parameters{"config_hash": configHash(config)},
	}}
}

// snapshot is the value-store entry holding the last accepted ruleset.
type snapshot struct {
	Config string `json:"config"`
	Hash   string `json:"hash"`
}

func checkIptables(_ string, params check.Parameters, parsed interface{}, store *valuestore.ScopedStore) ([]types.Result, error) {
	config := parsed.(string)

	var prev snapshot
	if !store.Get("config", &prev) {
		if err := store.Set("config", snapshot{Config: config, Hash: configHash(config)}); err != nil {
			return nil, err
		}
		return nil, valuestore.InsufficientData(
			"initial ruleset snapshot saved, the next cycle will produce a valid state")
	}

	discoveredHash, _ := params.String("config_hash")
	currentHash := configHash(config)

	if discoveredHash == currentHash {
		if currentHash != prev.Hash {
			if err := store.Set("config", snapshot{Config: config, Hash: currentHash}); err != nil {
				return nil, err
			}
			return []types.Result{{
				State:   types.StateOK,
				Summary: "accepted new filters after service rediscovery / reboot",
			}}, nil
		}
		return []types.Result{{
			State:   types.StateOK,
			Summary: "no changes in filters table detected",
		}}, nil
	}

	return []types.Result{{
		State:   types.StateCrit,
		Summary: "changes in filters table detected",
		Details: diffLines(prev.Config, config),
	}}, nil
}

// diffLines renders a line-based diff between the reference and the
// current ruleset: removed lines prefixed "-", added lines prefixed "+".
// Output order is reference order for removals, current order for
// additions, which keeps the diff deterministic.
func diffLines(before, after string) string {
	beforeLines := strings.Split(before, "\n")
	afterLines := strings.Split(after, "\n")

	count := func(lines []string) map[string]int {
		m := make(map[string]int, len(lines))
		for _, l := range lines {
			m[l]++
		}
		return m
	}
	inAfter := count(afterLines)
	inBefore := count(beforeLines)

	var out []string
	out = append(out, "--- before", "+++ after")
	for _, l := range beforeLines {
		if inAfter[l] > 0 {
			inAfter[l]--
			continue
		}
		out = append(out, "- "+l)
	}
	for _, l := range afterLines {
		if inBefore[l] > 0 {
			inBefore[l]--
			continue
		}
		out = append(out, "+ "+l)
	}
	return strings.Join(out, "\n")
}
