// validate.go checks that a devcontainer.json describes exactly one way of
// obtaining a container, with everything that way needs.
package devcontainer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mmr-tortoise/devlaunch/internal/model"
)

// ValidationError represents a specific validation failure in a
// devcontainer.json file.
type ValidationError struct {
	// Field is the JSON field path that failed validation (e.g., "build.dockerfile").
	Field string

	// Message describes what's wrong with the field value.
	Message string
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("devcontainer.json validation error: %s: %s", e.Field, e.Message)
}

// ValidateConfig returns every problem found (empty = valid).
//
// Checks performed:
//   - Pattern consistency: dockerComposeFile excludes image and build
//   - Some source: one of image, build or dockerComposeFile is set
//   - Compose fields: service must be set when dockerComposeFile is present
//   - Port entries: forwardPorts and appPort values must parse
func ValidateConfig(raw *RawDevContainer) []ValidationError {
	var errs []ValidationError

	hasImage := raw.Image != ""
	hasBuild := raw.Build != nil
	hasCompose := raw.DockerComposeFile != nil

	if hasCompose && (hasImage || hasBuild) {
		errs = append(errs, ValidationError{
			Field:   "dockerComposeFile",
			Message: "dockerComposeFile should not be combined with image or build fields",
		})
	}

	if !hasImage && !hasBuild && !hasCompose {
		errs = append(errs, ValidationError{
			Field:   "(root)",
			Message: "one of image, build or dockerComposeFile is required",
		})
	}

	if hasCompose && raw.Service == "" {
		errs = append(errs, ValidationError{
			Field:   "service",
			Message: "service field is required when dockerComposeFile is specified",
		})
	}

	if hasCompose && len(GetComposeFiles(raw)) == 0 {
		errs = append(errs, ValidationError{
			Field:   "dockerComposeFile",
			Message: "must be a string or an array of strings",
		})
	}

	for i, fp := range raw.ForwardPorts {
		if !validPortEntry(fp, true) {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("forwardPorts[%d]", i),
				Message: fmt.Sprintf("invalid port %v", fp),
			})
		}
	}
	for i, ap := range appPortItems(raw.AppPort) {
		if !validPortEntry(ap, false) {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("appPort[%d]", i),
				Message: fmt.Sprintf("invalid port %v", ap),
			})
		}
	}

	return errs
}

// validPortEntry accepts an integer port or a string. forwardPorts strings
// are "port" or "service:port"; appPort strings use the "docker run -p"
// forms.
func validPortEntry(v interface{}, forward bool) bool {
	switch p := v.(type) {
	case float64:
		return p >= 1 && p <= 65535 && p == float64(int(p))
	case string:
		if !forward {
			_, err := model.ParsePortMapping(p)
			return err == nil
		}
		svc, portStr, hasService := strings.Cut(p, ":")
		if !hasService {
			portStr = svc
		} else if svc == "" {
			return false
		}
		n, err := strconv.Atoi(portStr)
		return err == nil && n >= 1 && n <= 65535
	default:
		return false
	}
}
