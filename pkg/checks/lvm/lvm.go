// Package lvm monitors logical volume state as reported by the agent in
// lsvg style output: one stanza per volume group, one row per logical
// volume with its extent counts and access/sync state.
package lvm

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/supporttools/fleet-doctor/pkg/check"
	"github.com/supporttools/fleet-doctor/pkg/section"
	"github.com/supporttools/fleet-doctor/pkg/types"
	"github.com/supporttools/fleet-doctor/pkg/valuestore"
)

func init() {
	section.MustRegister(section.Info{
		Name:        "lvm",
		Parse:       parseVolumes,
		Description: "Logical volumes grouped by volume group, with extent counts and state",
	})
	check.MustRegister(check.Info{
		Name:        "lvm",
		ServiceName: "Logical Volume %s",
		Discover:    discoverVolumes,
		Check:       checkVolume,
		Description: "Checks logical volume access and mirror sync state",
	})
}

// Volume is one logical volume row. Access and Sync are the two halves
// of the reported state, e.g. "open/syncd".
type Volume struct {
	Name       string
	Type       string
	LogicalPE  int
	PhysicalPE int
	Volumes    int
	Access     string
	Sync       string
	MountPoint string
}

// parseVolumes reads stanzas. A row whose single field ends in ":" opens
// a volume group; the "LV NAME" header row and malformed rows are
// skipped. Items are keyed "<vg>/<lv>".
func parseVolumes(table section.StringTable) (interface{}, error) {
	volumes := make(map[string]Volume)
	group := ""
	for _, row := range table {
		if len(row) == 1 && strings.HasSuffix(row[0], ":") {
			group = strings.TrimSuffix(row[0], ":")
			continue
		}
		if len(row) < 6 || row[0] == "LV" || group == "" {
			continue
		}

		lps, err1 := strconv.Atoi(row[2])
		pps, err2 := strconv.Atoi(row[3])
		pvs, err3 := strconv.Atoi(row[4])
		if err1 != nil || err2 != nil || err3 != nil {
			continue
		}

		access, sync := splitState(row[5])
		mount := ""
		if len(row) > 6 {
			mount = row[6]
		}
		volumes[group+"/"+row[0]] = Volume{
			Name:       row[0],
			Type:       row[1],
			LogicalPE:  lps,
			PhysicalPE: pps,
			Volumes:    pvs,
			Access:     access,
			Sync:       sync,
			MountPoint: mount,
		}
	}
	return volumes, nil
}

func splitState(state string) (access, sync string) {
	parts := strings.SplitN(state, "/", 2)
	access = parts[0]
	if len(parts) == 2 {
		sync = parts[1]
	}
	return access, sync
}

func discoverVolumes(parsed interface{}) []check.Service {
	volumes := parsed.(map[string]Volume)
	items := make([]string, 0, len(volumes))
	for item := range volumes {
		items = append(items, item)
	}
	sort.Strings(items)

	services := make([]check.Service, 0, len(items))
	for _, item := range items {
		services = append(services, check.Service{Item: item})
	}
	return services
}

func checkVolume(item string, _ check.Parameters, parsed interface{}, _ *valuestore.ScopedStore) ([]types.Result, error) {
	volumes := parsed.(map[string]Volume)
	vol, ok := volumes[item]
	if !ok {
		return []types.Result{{
			State:   types.StateUnknown,
			Summary: "no such volume found",
		}}, nil
	}

	var results []types.Result

	// Mirrored volumes carry an integer multiple of logical extents as
	// physical extents. Anything else means a mirror lost a leg or was
	// never fully allocated.
	if vol.LogicalPE > 0 && vol.PhysicalPE%vol.LogicalPE != 0 {
		results = append(results, types.Result{
			State: types.StateWarn,
			Summary: fmt.Sprintf("mirrors are misaligned (%d LPs, %d PPs on %d PVs)",
				vol.LogicalPE, vol.PhysicalPE, vol.Volumes),
		})
	}

	// Boot volumes stay closed during normal operation.
	if vol.Access != "open" && vol.Type != "boot" {
		results = append(results, types.Result{
			State:   types.StateWarn,
			Summary: fmt.Sprintf("LV is %s", vol.Access),
		})
	}
	if vol.Sync != "syncd" {
		results = append(results, types.Result{
			State:   types.StateCrit,
			Summary: fmt.Sprintf("LV is not in sync (%s)", vol.Sync),
		})
	}

	if len(results) == 0 {
		results = append(results, types.Result{
			State:   types.StateOK,
			Summary: fmt.Sprintf("LV is %s/%s", vol.Access, vol.Sync),
		})
	}
	return results, nil
}
