package storage

import (
	"fmt"
	"os"
	"path"
	"sort"

	"gopkg.in/yaml.v3"
)

// Group is a named node of an Archive holding scalar attributes, string
// labels and flat numeric datasets.
type Group struct {
	Attributes map[string]float64   `yaml:"attributes,omitempty"`
	Labels     map[string]string    `yaml:"labels,omitempty"`
	Datasets   map[string][]float64 `yaml:"datasets,omitempty"`
}

// Archive is a hierarchical document of groups addressed by slash paths,
// persisted as YAML.
type Archive struct {
	Groups map[string]*Group `yaml:"groups"`
}

func NewArchive() *Archive {
	return &Archive{Groups: make(map[string]*Group)}
}

// Join builds a clean absolute group path.
func Join(parts ...string) string {
	return path.Clean("/" + path.Join(parts...))
}

// Group returns the group at p, creating it if needed.
func (a *Archive) Group(p string) *Group {
	p = Join(p)
	g, ok := a.Groups[p]
	if !ok {
		g = &Group{}
		a.Groups[p] = g
	}
	return g
}

// Lookup returns the group at p if it exists.
func (a *Archive) Lookup(p string) (*Group, error) {
	g, ok := a.Groups[Join(p)]
	if !ok {
		return nil, fmt.Errorf("group %s: %w", Join(p), ErrNotFound)
	}
	return g, nil
}

// Paths returns the group paths in sorted order.
func (a *Archive) Paths() []string {
	out := make([]string, 0, len(a.Groups))
	for p := range a.Groups {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func (g *Group) SetAttribute(name string, v float64) {
	if g.Attributes == nil {
		g.Attributes = make(map[string]float64)
	}
	g.Attributes[name] = v
}

func (g *Group) Attribute(name string) (float64, error) {
	v, ok := g.Attributes[name]
	if !ok {
		return 0, fmt.Errorf("attribute %s: %w", name, ErrNotFound)
	}
	return v, nil
}

func (g *Group) SetLabel(name, v string) {
	if g.Labels == nil {
		g.Labels = make(map[string]string)
	}
	g.Labels[name] = v
}

func (g *Group) Label(name string) (string, error) {
	v, ok := g.Labels[name]
	if !ok {
		return "", fmt.Errorf("label %s: %w", name, ErrNotFound)
	}
	return v, nil
}

func (g *Group) SetDataset(name string, v []float64) {
	if g.Datasets == nil {
		g.Datasets = make(map[string][]float64)
	}
	g.Datasets[name] = append([]float64(nil), v...)
}

func (g *Group) Dataset(name string) ([]float64, error) {
	v, ok := g.Datasets[name]
	if !ok {
		return nil, fmt.Errorf("dataset %s: %w", name, ErrNotFound)
	}
	return append([]float64(nil), v...), nil
}

func (a *Archive) Save(p string) error {
	data, err := yaml.Marshal(a)
	if err != nil {
		return err
	}
	return os.WriteFile(p, data, 0644)
}

func LoadArchive(p string) (*Archive, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, err
	}
	a := NewArchive()
	if err := yaml.Unmarshal(data, a); err != nil {
		return nil, fmt.Errorf("parse archive %s: %w", p, err)
	}
	if a.Groups == nil {
		a.Groups = make(map[string]*Group)
	}
	return a, nil
}
