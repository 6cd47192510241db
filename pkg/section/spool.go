package section

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/supporttools/fleet-doctor/pkg/logger"
)

// ReadSpoolDirectory reads one raw input per host from dir. The fetch
// layer drops one agent-format file per host, named after the host.
// Unreadable files are skipped with a log line so a single bad drop
// never stops a cycle; hidden and temporary files are ignored.
func ReadSpoolDirectory(dir string) (map[string]RawInput, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading spool directory %s: %w", dir, err)
	}

	inputs := make(map[string]RawInput)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".tmp") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			logger.WithField("host", name).Warnf("Skipping unreadable spool file: %v", err)
			continue
		}
		inputs[name] = SplitAgentOutput(data)
	}

	return inputs, nil
}
