package dataset

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// File names inside a data directory.
const (
	ComplexityFile  = "complexity.yml"
	CostsFile       = "costs.yml"
	MembersFile     = "members.yml"
	AllocationsFile = "allocations.yml"
	CalendarFile    = "calendar.yml"
	TemplatesFile   = "templates.yml"
)

// Load reads and validates every workspace data file from dataDir. Validation
// problems across all files are returned together as ValidationErrors.
// calendar.yml, allocations.yml and templates.yml are optional.
func Load(dataDir string) (*Snapshot, error) {
	if strings.TrimSpace(dataDir) == "" {
		dataDir = "data"
	}
	info, err := os.Stat(dataDir)
	if err != nil {
		return nil, fmt.Errorf("data directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("data directory is not a directory: %s", dataDir)
	}

	snap := &Snapshot{}
	var vErrs ValidationErrors
	collect := func(err error) error {
		if err == nil {
			return nil
		}
		var ve ValidationErrors
		if errors.As(err, &ve) {
			vErrs = append(vErrs, ve...)
			return nil
		}
		return err
	}

	data, path, err := readFile(dataDir, ComplexityFile, true)
	if err != nil {
		return nil, err
	}
	settings, parseErr := ParseComplexity(data, path)
	if err := collect(parseErr); err != nil {
		return nil, err
	}
	snap.Settings = settings

	if data, path, err = readFile(dataDir, CostsFile, true); err != nil {
		return nil, err
	}
	costs, parseErr := ParseCosts(data, path)
	if err := collect(parseErr); err != nil {
		return nil, err
	}
	snap.Costs = costs

	if data, path, err = readFile(dataDir, MembersFile, true); err != nil {
		return nil, err
	}
	members, parseErr := ParseMembers(data, path)
	if err := collect(parseErr); err != nil {
		return nil, err
	}
	snap.Members = members

	if data, path, err = readFile(dataDir, AllocationsFile, false); err != nil {
		return nil, err
	}
	if data != nil {
		allocations, parseErr := ParseAllocations(data, path)
		if err := collect(parseErr); err != nil {
			return nil, err
		}
		snap.Allocations = allocations
	}

	if data, path, err = readFile(dataDir, CalendarFile, false); err != nil {
		return nil, err
	}
	if data != nil {
		holidays, leaves, parseErr := ParseCalendar(data, path)
		if err := collect(parseErr); err != nil {
			return nil, err
		}
		snap.Holidays = holidays
		snap.Leaves = leaves
	}

	if data, path, err = readFile(dataDir, TemplatesFile, false); err != nil {
		return nil, err
	}
	if data != nil {
		templates, parseErr := ParseTemplates(data, path)
		if err := collect(parseErr); err != nil {
			return nil, err
		}
		snap.Templates = templates
	}

	if len(vErrs) > 0 {
		return nil, vErrs
	}
	if refErrs := validateReferences(snap, filepath.Join(dataDir, AllocationsFile)); len(refErrs) > 0 {
		return nil, refErrs
	}
	return snap, nil
}

// validateReferences checks that allocation templates exist. Unknown resources and
// complexities are left to the engines, which report them in-band.
func validateReferences(snap *Snapshot, source string) ValidationErrors {
	var errs ValidationErrors
	for idx, a := range snap.Allocations {
		if a.Template == "" {
			continue
		}
		if _, ok := snap.Template(a.Template); !ok {
			errs = append(errs, ValidationError{
				File:    source,
				Field:   fmt.Sprintf("allocations[%d].template", idx),
				Message: fmt.Sprintf("unknown template %q", a.Template),
			})
		}
	}
	return errs
}

func readFile(dir, name string, required bool) ([]byte, string, error) {
	path := filepath.Join(dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		if !required && errors.Is(err, fs.ErrNotExist) {
			return nil, path, nil
		}
		return nil, path, fmt.Errorf("read %s: %w", path, err)
	}
	return data, path, nil
}
