package plugin

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// scanDirs walks each plugin directory's immediate children and loads
// every descriptor found. Malformed descriptors are skipped and reported
// without stopping the scan; a duplicate id keeps the earlier bundle and
// reports a conflict.
func scanDirs(dirs []string, known map[string]*Metadata) (found []*Metadata, problems []error) {
	seen := make(map[string]string, len(known)) // id -> dir
	for id, m := range known {
		seen[id] = m.Dir()
	}

	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			problems = append(problems, fmt.Errorf("scan %s: %w", dir, err))
			continue
		}

		names := make([]string, 0, len(entries))
		for _, e := range entries {
			if e.IsDir() {
				names = append(names, e.Name())
			}
		}
		sort.Strings(names)

		for _, name := range names {
			bundle := filepath.Join(dir, name)
			descriptor := FindDescriptor(bundle)
			if descriptor == "" {
				continue
			}

			meta, err := LoadMetadata(descriptor)
			if err != nil {
				problems = append(problems, fmt.Errorf("%s: %w", descriptor, err))
				continue
			}

			if prev, dup := seen[meta.ID]; dup && prev != bundle {
				problems = append(problems, fmt.Errorf("%w: %s already provided by %s",
					ErrDiscoveryConflict, meta.ID, prev))
				continue
			}
			seen[meta.ID] = bundle
			found = append(found, meta)
		}
	}
	return found, problems
}
