// Package songio loads and saves song topology as YAML. Only machine ids,
// element factories and params are stored. Adapters, adders and
// spreaders are recreated by the setup.
package songio

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v2"

	"github.com/buzztrax/core/song"
)

// ErrKindMismatch is returned when loaded machine has a different kind.
var ErrKindMismatch = errors.New("machine kind mismatch")

// Document is the YAML representation of a song.
type Document struct {
	Name     string    `yaml:"name,omitempty"`
	Machines []Machine `yaml:"machines"`
	Wires    []Wire    `yaml:"wires"`
}

// Machine is the stored machine.
type Machine struct {
	ID      string             `yaml:"id"`
	Kind    string             `yaml:"kind,omitempty"`
	Element string             `yaml:"element"`
	Params  map[string]float64 `yaml:"params,omitempty"`
}

// Wire is the stored wire.
type Wire struct {
	Src string `yaml:"src"`
	Dst string `yaml:"dst"`
}

// Decode reads the document.
func Decode(r io.Reader) (Document, error) {
	var doc Document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return Document{}, fmt.Errorf("decode song: %w", err)
	}
	return doc, nil
}

// Load reads the document and adds its machines and wires to the song.
// Machines are added before wires. The master machine already exists,
// only its params are applied.
func Load(r io.Reader, s *song.Song) error {
	doc, err := Decode(r)
	if err != nil {
		return err
	}
	for _, m := range doc.Machines {
		if err := loadMachine(s, m); err != nil {
			return fmt.Errorf("machine %q: %w", m.ID, err)
		}
	}
	for _, w := range doc.Wires {
		if _, err := s.Connect(w.Src, w.Dst); err != nil {
			return fmt.Errorf("wire %s -> %s: %w", w.Src, w.Dst, err)
		}
	}
	return nil
}

func loadMachine(s *song.Song, m Machine) error {
	if m.ID == song.MasterID {
		for _, name := range sortedKeys(m.Params) {
			if err := s.Master().SetParam(name, m.Params[name]); err != nil {
				return err
			}
		}
		return nil
	}
	added, err := s.AddMachine(m.ID, m.Element, m.Params)
	if err != nil {
		return err
	}
	if m.Kind != "" && m.Kind != added.Kind().String() {
		return multierr.Append(
			fmt.Errorf("%w: %s is %v", ErrKindMismatch, m.Kind, added.Kind()),
			s.Setup().RemoveMachine(added),
		)
	}
	return nil
}

// Save writes machines and wires of the song.
func Save(w io.Writer, s *song.Song) error {
	doc := Document{Name: s.Name()}
	for _, m := range s.Setup().Machines() {
		stored := Machine{
			ID:      m.ID(),
			Kind:    m.Kind().String(),
			Element: m.Unit().Factory(),
		}
		for _, p := range m.Params() {
			v, err := m.Param(p.Name)
			if err != nil {
				return err
			}
			if stored.Params == nil {
				stored.Params = make(map[string]float64)
			}
			stored.Params[p.Name] = v
		}
		doc.Machines = append(doc.Machines, stored)
	}
	for _, wire := range s.Setup().Wires() {
		doc.Wires = append(doc.Wires, Wire{
			Src: wire.Src().ID(),
			Dst: wire.Dst().ID(),
		})
	}
	enc := yaml.NewEncoder(w)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}

func sortedKeys(params map[string]float64) []string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
