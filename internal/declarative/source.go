// Package declarative loads deity definitions from YAML files and watches
// them for changes. It is the only place YAML exists; everything past the
// parse boundary works with normalized definitions.
package declarative

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pantheonmod/pantheon/pkg/deity"
)

// Source reads deity definitions from a directory of YAML files, one or
// more definitions per file.
type Source struct {
	dir    string
	logger *slog.Logger
}

func NewSource(dir string, logger *slog.Logger) *Source {
	return &Source{
		dir:    dir,
		logger: logger,
	}
}

// Load parses every .yaml/.yml file in the directory. A file that fails
// to parse is skipped with a warning; the load itself only fails when the
// directory is unreadable. Key aliases are normalized here, so duplicate
// spellings never reach the store.
func (s *Source) Load() ([]deity.Definition, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read deity directory %s: %w", s.dir, err)
	}

	var defs []deity.Definition
	for _, entry := range entries {
		if entry.IsDir() || !isYAML(entry.Name()) {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		fileDefs, err := s.loadFile(path)
		if err != nil {
			s.logger.Warn("Skipping unparseable deity file", "file", path, "error", err)
			continue
		}
		defs = append(defs, fileDefs...)
	}
	s.logger.Debug("Loaded deity definitions", "dir", s.dir, "count", len(defs))
	return defs, nil
}

// loadFile decodes every YAML document in one file.
func (s *Source) loadFile(path string) ([]deity.Definition, error) {
	return ParseFile(path)
}

// ParseFile decodes every YAML document in one definition file.
func ParseFile(path string) ([]deity.Definition, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var defs []deity.Definition
	dec := yaml.NewDecoder(f)
	for {
		var raw map[string]any
		if err := dec.Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("yaml decode: %w", err)
		}
		if len(raw) == 0 {
			continue
		}
		def, err := toDefinition(raw)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// toDefinition routes a raw decoded document through key normalization
// into the typed definition.
func toDefinition(raw map[string]any) (deity.Definition, error) {
	normalized := deity.NormalizeKeys(raw)
	buf, err := json.Marshal(normalized)
	if err != nil {
		return deity.Definition{}, fmt.Errorf("normalize: %w", err)
	}
	var def deity.Definition
	if err := json.Unmarshal(buf, &def); err != nil {
		return deity.Definition{}, fmt.Errorf("definition shape: %w", err)
	}
	return def, nil
}

func isYAML(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}
