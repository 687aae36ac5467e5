package exercise

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// #region set-types
// GroovePackSet is a curated bundle of groove packs. It only references packs by id;
// the tier and unlock metadata never change how a pack is practised.
type GroovePackSet struct {
	ID          string          `yaml:"id"`
	DisplayName string          `yaml:"display_name"`
	Version     string          `yaml:"version"`
	License     string          `yaml:"license,omitempty"`
	Description *SetDescription `yaml:"description,omitempty"`
	SKU         string          `yaml:"sku,omitempty"`
	Tier        string          `yaml:"tier,omitempty"` // core | plus | pro
	Unlock      SetUnlock       `yaml:"unlock,omitempty"`
	Tags        []string        `yaml:"tags,omitempty"`
	Packs       []PackRef       `yaml:"packs"`
}

type SetDescription struct {
	Short string `yaml:"short"`
	Long  string `yaml:"long"`
}

type SetUnlock struct {
	Flags    []string `yaml:"flags,omitempty"`
	Requires []string `yaml:"requires,omitempty"`
}

type PackRef struct {
	PackID string `yaml:"pack_id"`
}

// PackBinding pairs a referenced pack with the assignment defaults it implies.
type PackBinding struct {
	PackID   string             `json:"pack_id"`
	Name     string             `json:"display_name"`
	Defaults AssignmentDefaults `json:"defaults"`
	Pack     GroovePack         `json:"-"`
}

// SetDefaults are the assignment defaults for every pack of a set, in set order.
type SetDefaults struct {
	SetID       string        `json:"set_id"`
	DisplayName string        `json:"display_name"`
	Tier        string        `json:"tier"`
	Packs       []PackBinding `json:"packs"`
}

// PackSource resolves pack ids to packs.
type PackSource interface {
	Pack(id string) (GroovePack, error)
}

// #endregion set-types

const defaultTier = "core"

// #region set-load
// LoadGroovePackSet reads and validates a pack set from a YAML file.
func LoadGroovePackSet(path string) (GroovePackSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return GroovePackSet{}, fmt.Errorf("read pack set: %w", err)
	}
	return ParseGroovePackSet(data)
}

// ParseGroovePackSet decodes a pack set document. Unknown keys are rejected.
func ParseGroovePackSet(data []byte) (GroovePackSet, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var s GroovePackSet
	if err := dec.Decode(&s); err != nil {
		return GroovePackSet{}, fmt.Errorf("parse pack set: %w", err)
	}
	if s.Tier == "" {
		s.Tier = defaultTier
	}
	if err := s.Validate(); err != nil {
		return GroovePackSet{}, err
	}
	return s, nil
}

// #endregion set-load

// #region set-validate
func (s GroovePackSet) Validate() error {
	if len(s.ID) < 3 {
		return fmt.Errorf("%w: pack set id %q is too short", ErrInvalidExercise, s.ID)
	}
	if s.DisplayName == "" || s.Version == "" {
		return fmt.Errorf("%w: pack set %s needs display_name and version", ErrInvalidExercise, s.ID)
	}
	switch s.Tier {
	case "", "core", "plus", "pro":
	default:
		return fmt.Errorf("%w: pack set %s tier %q", ErrInvalidExercise, s.ID, s.Tier)
	}
	if len(s.Packs) == 0 {
		return fmt.Errorf("%w: pack set %s has no packs", ErrInvalidExercise, s.ID)
	}
	seen := make(map[string]bool, len(s.Packs))
	for _, ref := range s.Packs {
		if ref.PackID == "" {
			return fmt.Errorf("%w: pack set %s has an empty pack_id", ErrInvalidExercise, s.ID)
		}
		if seen[ref.PackID] {
			return fmt.Errorf("%w: pack set %s lists %s twice", ErrInvalidExercise, s.ID, ref.PackID)
		}
		seen[ref.PackID] = true
	}
	return nil
}

// ValidateReferences checks that every referenced pack resolves.
func (s GroovePackSet) ValidateReferences(src PackSource) error {
	var errs []error
	for _, ref := range s.Packs {
		if _, err := src.Pack(ref.PackID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PackIDs lists the referenced pack ids in set order.
func (s GroovePackSet) PackIDs() []string {
	ids := make([]string, len(s.Packs))
	for i, ref := range s.Packs {
		ids[i] = ref.PackID
	}
	return ids
}

// #endregion set-validate

// #region set-defaults
// DefaultsForSet resolves every pack of the set and derives its assignment defaults.
func DefaultsForSet(s GroovePackSet, src PackSource) (SetDefaults, error) {
	out := SetDefaults{SetID: s.ID, DisplayName: s.DisplayName, Tier: s.Tier}
	for _, ref := range s.Packs {
		p, err := src.Pack(ref.PackID)
		if err != nil {
			return SetDefaults{}, fmt.Errorf("pack set %s: %w", s.ID, err)
		}
		out.Packs = append(out.Packs, PackBinding{
			PackID:   ref.PackID,
			Name:     p.Metadata.DisplayName,
			Defaults: p.Defaults(),
			Pack:     p,
		})
	}
	return out, nil
}

// Binding returns the binding for one pack id.
func (d SetDefaults) Binding(packID string) (PackBinding, bool) {
	for _, b := range d.Packs {
		if b.PackID == packID {
			return b, true
		}
	}
	return PackBinding{}, false
}

// #endregion set-defaults

// #region sources
// PackDir resolves pack ids to <dir>/<id>.yaml files.
type PackDir string

func (d PackDir) Pack(id string) (GroovePack, error) {
	p, err := LoadGroovePack(filepath.Join(string(d), id+".yaml"))
	if errors.Is(err, fs.ErrNotExist) {
		return GroovePack{}, fmt.Errorf("%w: %s", ErrUnknownPack, id)
	}
	if err != nil {
		return GroovePack{}, err
	}
	if p.Metadata.ID != id {
		return GroovePack{}, fmt.Errorf("%w: %s.yaml declares id %s", ErrUnknownPack, id, p.Metadata.ID)
	}
	return p, nil
}

// PackCatalog is an in-memory source keyed by pack id.
type PackCatalog map[string]GroovePack

func (c PackCatalog) Pack(id string) (GroovePack, error) {
	p, ok := c[id]
	if !ok {
		return GroovePack{}, fmt.Errorf("%w: %s", ErrUnknownPack, id)
	}
	return p, nil
}

// #endregion sources
