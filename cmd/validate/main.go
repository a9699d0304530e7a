package main

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pantheonmod/pantheon/internal/declarative"
	"github.com/pantheonmod/pantheon/pkg/deity"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <deity.yaml> [more files...]\n", os.Args[0])
		os.Exit(1)
	}

	failed := false
	for _, filename := range os.Args[1:] {
		v := &DeityValidator{}
		if err := v.validateFile(filename); err != nil {
			fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
			failed = true
			continue
		}
		fmt.Printf("%s is valid\n", filename)
	}
	if failed {
		os.Exit(1)
	}
}

type DeityValidator struct {
	errors []string
}

func (v *DeityValidator) validateFile(filename string) error {
	fmt.Printf("Validating %s...\n", filename)

	ext := strings.ToLower(filepath.Ext(filename))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("deity file must have .yaml or .yml extension: %s", filepath.Base(filename))
	}

	defs, err := declarative.ParseFile(filename)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", filename, err)
	}
	if len(defs) == 0 {
		return fmt.Errorf("file %s contains no deity definitions", filename)
	}

	v.errors = nil
	seen := make(map[string]bool)
	for i := range defs {
		v.validateDefinition(&defs[i], seen)
	}

	if len(v.errors) > 0 {
		return fmt.Errorf("validation errors in %s:\n%s", filename, strings.Join(v.errors, "\n"))
	}
	return nil
}

func (v *DeityValidator) validateDefinition(def *deity.Definition, seen map[string]bool) {
	if err := def.Validate(); err != nil {
		v.addError(err.Error())
		return
	}
	if seen[def.ID] {
		v.addError(fmt.Sprintf("duplicate deity id '%s'", def.ID))
		return
	}
	seen[def.ID] = true

	if !isValidDeityID(def.ID) {
		v.addError(fmt.Sprintf("deity id '%s' should be namespace:name in lowercase snake_case (e.g. grove:sylvan)", def.ID))
	}
	if strings.TrimSpace(def.Personality) == "" {
		v.addError(fmt.Sprintf("deity %s has no personality; responses will be flavorless", def.ID))
	}

	for name, pc := range def.Prayers {
		if !isValidName(name) {
			v.addError(fmt.Sprintf("deity %s: prayer type '%s' should be lowercase snake_case", def.ID, name))
		}
		for _, verb := range pc.AllowedVerbs {
			if !isValidName(verb) {
				v.addError(fmt.Sprintf("deity %s: prayer %s: allowed verb '%s' should be a single lowercase word", def.ID, name, verb))
			}
		}
	}

	v.validateStages(def)
	v.validateLinks(def)
}

func (v *DeityValidator) validateStages(def *deity.Definition) {
	thresholds := make(map[float64]string)
	for _, st := range def.Stages {
		if !isValidName(st.Name) {
			v.addError(fmt.Sprintf("deity %s: stage name '%s' should be lowercase snake_case", def.ID, st.Name))
		}
		if prev, dup := thresholds[st.Threshold]; dup {
			v.addError(fmt.Sprintf("deity %s: stages '%s' and '%s' share threshold %.1f", def.ID, prev, st.Name, st.Threshold))
		}
		thresholds[st.Threshold] = st.Name
	}
}

func (v *DeityValidator) validateLinks(def *deity.Definition) {
	for _, ally := range def.Allies {
		if ally == def.ID {
			v.addError(fmt.Sprintf("deity %s lists itself as an ally", def.ID))
		}
	}
	for _, rival := range def.Rivals {
		if rival == def.ID {
			v.addError(fmt.Sprintf("deity %s lists itself as a rival", def.ID))
		}
	}
}

func (v *DeityValidator) addError(msg string) {
	v.errors = append(v.errors, "  - "+msg)
}

var (
	validNameRegex    = regexp.MustCompile(`^[a-z][a-z0-9_]*[a-z0-9]$|^[a-z]$`)
	validDeityIDRegex = regexp.MustCompile(`^[a-z][a-z0-9_]*:[a-z][a-z0-9_]*$`)
)

func isValidName(name string) bool {
	return validNameRegex.MatchString(name)
}

func isValidDeityID(id string) bool {
	return validDeityIDRegex.MatchString(id)
}
