package exercise

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rockPack = `
metadata:
  id: rock_straight_v1
  display_name: Rock Straight
groove:
  meter: "4/4"
  cycle_bars: 2
  subdivision: binary
  tempo_range_bpm: [90, 130]
  accent_grid:
    strong_beats: [2, 4]
`

const foundationsSet = `
id: groove_foundations_v1
display_name: Groove Foundations
version: 1.0.0
tags: [starter]
unlock:
  flags: [free]
packs:
  - pack_id: rock_straight_v1
  - pack_id: samba_traditional_v1
`

func catalog(t *testing.T) PackCatalog {
	t.Helper()
	rock, err := ParseGroovePack([]byte(rockPack))
	require.NoError(t, err)
	samba, err := ParseGroovePack([]byte(sambaPack))
	require.NoError(t, err)
	return PackCatalog{rock.Metadata.ID: rock, samba.Metadata.ID: samba}
}

func TestParseGroovePackSet(t *testing.T) {
	s, err := ParseGroovePackSet([]byte(foundationsSet))
	require.NoError(t, err)

	assert.Equal(t, "groove_foundations_v1", s.ID)
	assert.Equal(t, "core", s.Tier)
	assert.Equal(t, []string{"rock_straight_v1", "samba_traditional_v1"}, s.PackIDs())
	assert.Equal(t, []string{"free"}, s.Unlock.Flags)
}

func TestGroovePackSetRejectsBadDocuments(t *testing.T) {
	bad := map[string]string{
		"duplicate pack": "id: set_v1\ndisplay_name: S\nversion: '1'\npacks: [{pack_id: a}, {pack_id: a}]",
		"no packs":       "id: set_v1\ndisplay_name: S\nversion: '1'\npacks: []",
		"short id":       "id: s\ndisplay_name: S\nversion: '1'\npacks: [{pack_id: a}]",
		"bad tier":       "id: set_v1\ndisplay_name: S\nversion: '1'\ntier: gold\npacks: [{pack_id: a}]",
		"empty pack id":  "id: set_v1\ndisplay_name: S\nversion: '1'\npacks: [{pack_id: ''}]",
		"no version":     "id: set_v1\ndisplay_name: S\npacks: [{pack_id: a}]",
	}
	for name, doc := range bad {
		_, err := ParseGroovePackSet([]byte(doc))
		assert.ErrorIs(t, err, ErrInvalidExercise, name)
	}

	_, err := ParseGroovePackSet([]byte("id: set_v1\ndisplay_name: S\nversion: '1'\nprice: 3\npacks: [{pack_id: a}]"))
	assert.Error(t, err, "unknown keys are rejected")
}

func TestValidateReferences(t *testing.T) {
	s, err := ParseGroovePackSet([]byte(foundationsSet))
	require.NoError(t, err)
	require.NoError(t, s.ValidateReferences(catalog(t)))

	s.Packs = append(s.Packs, PackRef{PackID: "waltz_v1"}, PackRef{PackID: "polka_v1"})
	err = s.ValidateReferences(catalog(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownPack)
	assert.Contains(t, err.Error(), "waltz_v1")
	assert.Contains(t, err.Error(), "polka_v1")
}

func TestDefaultsForSet(t *testing.T) {
	s, err := ParseGroovePackSet([]byte(foundationsSet))
	require.NoError(t, err)

	d, err := DefaultsForSet(s, catalog(t))
	require.NoError(t, err)
	assert.Equal(t, "groove_foundations_v1", d.SetID)
	assert.Equal(t, "Groove Foundations", d.DisplayName)
	assert.Equal(t, "core", d.Tier)
	require.Len(t, d.Packs, 2)
	assert.Equal(t, "rock_straight_v1", d.Packs[0].PackID)
	assert.Equal(t, "Rock Straight", d.Packs[0].Name)
	assert.Equal(t, 110.0, d.Packs[0].Defaults.TempoTargetBPM)

	samba, ok := d.Binding("samba_traditional_v1")
	require.True(t, ok)
	assert.Equal(t, catalog(t)["samba_traditional_v1"].Defaults(), samba.Defaults)

	_, ok = d.Binding("waltz_v1")
	assert.False(t, ok)
}

func TestDefaultsForSetUnknownPack(t *testing.T) {
	s, err := ParseGroovePackSet([]byte(foundationsSet))
	require.NoError(t, err)

	_, err = DefaultsForSet(s, PackCatalog{})
	assert.ErrorIs(t, err, ErrUnknownPack)
}

func TestPackDirResolvesByFileName(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rock_straight_v1.yaml"), []byte(rockPack), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "misnamed_v1.yaml"), []byte(sambaPack), 0o644))

	p, err := PackDir(dir).Pack("rock_straight_v1")
	require.NoError(t, err)
	assert.Equal(t, "Rock Straight", p.Metadata.DisplayName)

	_, err = PackDir(dir).Pack("missing_v1")
	assert.ErrorIs(t, err, ErrUnknownPack)

	_, err = PackDir(dir).Pack("misnamed_v1")
	assert.ErrorIs(t, err, ErrUnknownPack)
}
