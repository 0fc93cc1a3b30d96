package command

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Action names usable in command files.
const (
	ActionNavigate = "navigate"
	ActionStop     = "stop"
)

// ErrUnknownAction is returned when a command names an action the binder cannot resolve.
var ErrUnknownAction = errors.New("unknown command action")

// Definition is the declarative form of an Entry, with the action given by name.
type Definition struct {
	Key     string   `yaml:"key"`
	Phrases []string `yaml:"phrases"`
	Action  string   `yaml:"action"`
}

// File is the on-disk command table layout.
type File struct {
	Commands []Definition `yaml:"commands"`
}

// ActionBinder resolves action names to callables.
type ActionBinder interface {
	Bind(name string) (Action, error)
}

// Binder is a map-backed ActionBinder.
type Binder map[string]Action

// Bind returns the action registered under name.
func (b Binder) Bind(name string) (Action, error) {
	a, ok := b[name]
	if !ok || a == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, name)
	}
	return a, nil
}

// DefaultDefinitions returns the built-in Spanish site navigation commands.
func DefaultDefinitions() []Definition {
	return []Definition{
		{Key: "inicio", Phrases: []string{"inicio"}, Action: ActionNavigate},
		{Key: "nosotros", Phrases: []string{"nosotros"}, Action: ActionNavigate},
		{Key: "servicio", Phrases: []string{"servicio", "servicios"}, Action: ActionNavigate},
		{Key: "contacto", Phrases: []string{"contacto", "contactenos"}, Action: ActionNavigate},
		{Key: "detener", Phrases: []string{"detener", "tener"}, Action: ActionStop},
	}
}

// Default builds the built-in table.
func Default(b ActionBinder) (*Table, error) {
	return FromDefinitions(DefaultDefinitions(), b)
}

// FromDefinitions binds each definition's action and builds a Table.
func FromDefinitions(defs []Definition, b ActionBinder) (*Table, error) {
	entries := make([]Entry, 0, len(defs))
	for _, d := range defs {
		action, err := b.Bind(d.Action)
		if err != nil {
			return nil, fmt.Errorf("command %s: %w", d.Key, err)
		}
		entries = append(entries, Entry{Key: d.Key, Phrases: d.Phrases, Action: action})
	}
	return NewTable(entries...)
}

// Parse decodes a YAML command file.
func Parse(data []byte, b ActionBinder) (*Table, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse command file: %w", err)
	}
	return FromDefinitions(f.Commands, b)
}

// LoadFile reads and parses the YAML command file at path.
func LoadFile(path string, b ActionBinder) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read command file: %w", err)
	}
	return Parse(data, b)
}
