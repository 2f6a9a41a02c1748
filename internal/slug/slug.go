// Package slug generates the human-readable default names given to new
// workflows.
package slug

import (
	petname "github.com/dustinkirkland/golang-petname"
)

// Generator produces workflow names. Names are not required to be unique.
type Generator interface {
	Generate() string
}

// Petname yields names like "quickly-amused-otter".
type Petname struct {
	Words     int
	Separator string
}

// NewPetname returns a three-word, dash-separated generator.
func NewPetname() *Petname {
	return &Petname{Words: 3, Separator: "-"}
}

func (p *Petname) Generate() string {
	return petname.Generate(p.Words, p.Separator)
}

// Fixed always returns the same name.
type Fixed string

func (f Fixed) Generate() string { return string(f) }
