package declarative

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const sylvanYAML = `
id: grove:sylvan
provider: anthropic
personality: An ancient spirit of the deep forest.
rating: PG
prayers:
  blessing:
    max_actions: 2
    cooldown_seconds: 600
    allowed_verbs: [effect, give, heal]
stages:
  - name: initiate
    threshold: 10
`

func TestSourceLoad(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "sylvan.yaml", sylvanYAML)
	writeFile(t, dir, "notes.txt", "not a definition")

	defs, err := NewSource(dir, testLogger()).Load()
	require.NoError(t, err)
	require.Len(t, defs, 1)

	def := defs[0]
	assert.Equal(t, "grove:sylvan", def.ID)
	assert.Equal(t, "anthropic", def.Provider)
	require.Contains(t, def.Prayers, "blessing")
	pc := def.Prayers["blessing"]
	require.NotNil(t, pc.MaxActions)
	assert.Equal(t, 2, *pc.MaxActions)
	assert.Equal(t, []string{"effect", "give", "heal"}, pc.AllowedVerbs)
	require.Len(t, def.Stages, 1)
	assert.Equal(t, "initiate", def.Stages[0].Name)
}

func TestSourceLoadNormalizesAliases(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "aliased.yml", `
identifier: sea:maelka
persona: The storm queen.
prayer_types:
  storm:
    max_commands: 1
    cooldown: 300
    allowed_commands: [effect]
`)

	defs, err := NewSource(dir, testLogger()).Load()
	require.NoError(t, err)
	require.Len(t, defs, 1)

	def := defs[0]
	assert.Equal(t, "sea:maelka", def.ID)
	assert.Equal(t, "The storm queen.", def.Personality)
	pc := def.Prayers["storm"]
	require.NotNil(t, pc.CooldownSeconds)
	assert.Equal(t, 300, *pc.CooldownSeconds)
	require.NotNil(t, pc.MaxActions)
	assert.Equal(t, 1, *pc.MaxActions)
}

func TestSourceLoadKeepsJudgmentTierScores(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "tiers.yaml", `
id: grove:sylvan
personality: forest
prayers:
  judgment:
    min_score: 25
    judgment_tiers:
      - name: friendly
        min_score: 10
        max_score: 50
`)

	defs, err := NewSource(dir, testLogger()).Load()
	require.NoError(t, err)
	require.Len(t, defs, 1)

	pc := defs[0].Prayers["judgment"]
	require.NotNil(t, pc.MinReputation)
	assert.Equal(t, 25.0, *pc.MinReputation)
	require.Len(t, pc.JudgmentTiers, 1)
	assert.Equal(t, 10.0, pc.JudgmentTiers[0].MinScore)
	assert.Equal(t, 50.0, pc.JudgmentTiers[0].MaxScore)
}

func TestSourceLoadMultiDocument(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "pantheon.yaml", `
id: grove:sylvan
personality: forest
---
id: sea:maelka
personality: storm
`)

	defs, err := NewSource(dir, testLogger()).Load()
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, "grove:sylvan", defs[0].ID)
	assert.Equal(t, "sea:maelka", defs[1].ID)
}

func TestSourceLoadSkipsBadFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "good.yaml", "id: grove:sylvan\npersonality: forest\n")
	writeFile(t, dir, "bad.yaml", "id: [unclosed\n")

	defs, err := NewSource(dir, testLogger()).Load()
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, "grove:sylvan", defs[0].ID)
}

func TestSourceLoadMissingDir(t *testing.T) {
	_, err := NewSource(filepath.Join(t.TempDir(), "nope"), testLogger()).Load()
	assert.Error(t, err)
}

func TestWatcherFiresOnChange(t *testing.T) {
	dir := t.TempDir()
	changed := make(chan struct{}, 1)

	w, err := NewWatcher(dir, func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	}, testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)

	// Give the watch loop a moment to come up before the write.
	time.Sleep(50 * time.Millisecond)
	writeFile(t, dir, "sylvan.yaml", sylvanYAML)

	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not fire after file change")
	}
}

func TestWatcherIgnoresNonYAML(t *testing.T) {
	dir := t.TempDir()
	changed := make(chan struct{}, 1)

	w, err := NewWatcher(dir, func() { changed <- struct{}{} }, testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)

	time.Sleep(50 * time.Millisecond)
	writeFile(t, dir, "README.md", "docs")

	select {
	case <-changed:
		t.Fatal("watcher fired for a non-YAML file")
	case <-time.After(1 * time.Second):
	}
}
