// Package model holds the resolver configuration records. Their persistence
// lives in an external configuration store; this layer only consumes them.
package model

// Model binds a resolver entity type to a target index.
type Model struct {
	Name  string `yaml:"name" json:"name"`
	Type  string `yaml:"type" json:"type"`
	Index string `yaml:"index" json:"index"`
}

// Relation links two models for cross-type resolution.
type Relation struct {
	Name   string `yaml:"name" json:"name"`
	Source string `yaml:"source" json:"source"`
	Target string `yaml:"target" json:"target"`
}

// Scorer is a named field weight set applied on top of a model.
type Scorer struct {
	Name    string             `yaml:"name" json:"name"`
	Weights map[string]float64 `yaml:"weights" json:"weights"`
}

// FullModel is the composite of a model, its relations, and its scorers.
type FullModel struct {
	Model     Model      `yaml:"model" json:"model"`
	Relations []Relation `yaml:"relations" json:"relations"`
	Scorers   []Scorer   `yaml:"scorers" json:"scorers"`
}
