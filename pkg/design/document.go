// Package design holds the system design document produced by the
// generation pipeline: actors, use cases, classes, relationships,
// narratives and requirements.
package design

import (
	"encoding/json"
	"fmt"
	"os"
)

// RelationType is the kind of a relationship between two document elements.
type RelationType string

const (
	RelUsage          RelationType = "usage"
	RelAssociation    RelationType = "association"
	RelAggregation    RelationType = "aggregation"
	RelComposition    RelationType = "composition"
	RelGeneralization RelationType = "generalization"
)

// Document is a complete system design.
type Document struct {
	SystemName    string         `json:"systemName,omitempty"`
	Actors        []Actor        `json:"actors" validate:"dive"`
	UseCases      []UseCase      `json:"useCases" validate:"dive"`
	Classes       []Class        `json:"classes" validate:"dive"`
	Relationships []Relationship `json:"relationships" validate:"dive"`
	Narratives    []Narrative    `json:"narratives,omitempty" validate:"dive"`
	Requirements  Requirements   `json:"requirements"`
}

// Actor is an external entity interacting with the system.
type Actor struct {
	ID   string `json:"id" validate:"required"`
	Name string `json:"name" validate:"required"`
}

// UseCase is a unit of system functionality.
type UseCase struct {
	ID   string `json:"id" validate:"required"`
	Name string `json:"name" validate:"required"`
}

// Class is a structural entity with attributes and methods.
type Class struct {
	ID         string   `json:"id" validate:"required"`
	Name       string   `json:"name" validate:"required"`
	Attributes []string `json:"attributes"`
	Methods    []string `json:"methods"`
}

// Relationship links two elements by id.
type Relationship struct {
	Source string       `json:"source" validate:"required"`
	Target string       `json:"target" validate:"required"`
	Type   RelationType `json:"type" validate:"required,oneof=usage association aggregation composition generalization"`
}

// Narrative describes one use case step by step.
type Narrative struct {
	UseCaseID        string   `json:"useCaseId" validate:"required"`
	UseCaseName      string   `json:"useCaseName" validate:"required"`
	PrimaryActor     string   `json:"primaryActor"`
	SecondaryActors  []string `json:"secondaryActors,omitempty"`
	Priority         string   `json:"priority,omitempty" validate:"omitempty,oneof=High Medium Low"`
	BriefDescription string   `json:"briefDescription,omitempty"`
	PreConditions    []string `json:"preConditions,omitempty"`
	PostConditions   []string `json:"postConditions,omitempty"`
	FlowOfEvents     []Step   `json:"flowOfEvents,omitempty" validate:"dive"`
	AlternativeFlows []string `json:"alternativeFlows,omitempty"`
}

// Step is one entry in a narrative's flow of events. Only one of
// ActorAction and SystemResponse is normally filled.
type Step struct {
	Step           int    `json:"step" validate:"gte=0"`
	ActorAction    string `json:"actorAction"`
	SystemResponse string `json:"systemResponse"`
}

// Requirements groups functional and non-functional requirements.
type Requirements struct {
	Functional    []Requirement `json:"functional" validate:"dive"`
	NonFunctional []Requirement `json:"nonFunctional" validate:"dive"`
}

// Requirement is a single numbered requirement.
type Requirement struct {
	ID             string `json:"id" validate:"required"`
	Description    string `json:"description" validate:"required"`
	Classification string `json:"classification,omitempty" validate:"omitempty,oneof=Essencial Importante Desejável"`
}

// Parse decodes a design document from JSON. It does not validate.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Load reads, parses and validates a design document file.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return doc, nil
}

// ToJSON encodes a document.
func ToJSON(doc *Document, pretty bool) ([]byte, error) {
	if pretty {
		return json.MarshalIndent(doc, "", "  ")
	}
	return json.Marshal(doc)
}

// Element returns the name of the element with the given id and whether
// it exists. Actors, use cases and classes share one id namespace.
func (d *Document) Element(id string) (string, bool) {
	for _, a := range d.Actors {
		if a.ID == id {
			return a.Name, true
		}
	}
	for _, u := range d.UseCases {
		if u.ID == id {
			return u.Name, true
		}
	}
	for _, c := range d.Classes {
		if c.ID == id {
			return c.Name, true
		}
	}
	return "", false
}

// Stats summarises a document for display.
type Stats struct {
	Actors, UseCases, Classes, Relationships int
	Narratives                               int
	Functional, NonFunctional                int
	Dangling                                 int // relationships with an unknown endpoint
}

// Stats counts the elements of a document.
func (d *Document) Stats() Stats {
	s := Stats{
		Actors:        len(d.Actors),
		UseCases:      len(d.UseCases),
		Classes:       len(d.Classes),
		Relationships: len(d.Relationships),
		Narratives:    len(d.Narratives),
		Functional:    len(d.Requirements.Functional),
		NonFunctional: len(d.Requirements.NonFunctional),
	}
	for _, r := range d.Relationships {
		_, okS := d.Element(r.Source)
		_, okT := d.Element(r.Target)
		if !okS || !okT {
			s.Dangling++
		}
	}
	return s
}
