// compose.go reads Docker Compose files to find the services they define.
//
// Only the top-level "services" mapping is decoded. Compose merges
// multiple files in order, so a service defined in any of them counts.
package devcontainer

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// composeFile is the subset of a Compose file the launcher reads.
type composeFile struct {
	Services map[string]yaml.Node `yaml:"services"`
}

// ComposeServices returns the sorted, de-duplicated service names defined
// across the given Compose files.
func ComposeServices(files []string) ([]string, error) {
	set := make(map[string]bool)
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read compose file: %w", err)
		}

		var cf composeFile
		if err := yaml.Unmarshal(data, &cf); err != nil {
			return nil, fmt.Errorf("failed to parse compose file %s: %w", f, err)
		}
		for name := range cf.Services {
			set[name] = true
		}
	}

	services := make([]string, 0, len(set))
	for name := range set {
		services = append(services, name)
	}
	sort.Strings(services)
	return services, nil
}

// HasService reports whether service is defined in any of the files.
func HasService(files []string, service string) (bool, error) {
	services, err := ComposeServices(files)
	if err != nil {
		return false, err
	}
	i := sort.SearchStrings(services, service)
	return i < len(services) && services[i] == service, nil
}
