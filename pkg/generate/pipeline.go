package generate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/template"
	"time"

	"go.uber.org/zap"

	"github.com/ha1tch/uml-toolkit/pkg/design"
)

// ErrNoDescription is returned for an empty system description.
var ErrNoDescription = errors.New("missing system description")

// Completer sends a prompt to a language model and returns its text.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Stage names one step of the generation pipeline.
type Stage string

const (
	StageStructure    Stage = "structure"
	StageNarratives   Stage = "narratives"
	StageRequirements Stage = "requirements"
)

// StageError records which step of the pipeline failed.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s stage: %v", e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

// Pipeline produces a complete design document in three calls: structure
// first, then narratives with the structure as context, then requirements
// with both as context.
type Pipeline struct {
	llm      Completer
	language string
	logger   *zap.Logger
}

// NewPipeline creates a pipeline writing in the given language tag.
func NewPipeline(llm Completer, language string, logger *zap.Logger) *Pipeline {
	if language == "" {
		language = "pt-BR"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{llm: llm, language: language, logger: logger.Named("pipeline")}
}

// Generate runs the pipeline and returns the merged, validated document.
func (p *Pipeline) Generate(ctx context.Context, description string) (*design.Document, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, ErrNoDescription
	}
	lang := LanguageName(p.language)
	start := time.Now()

	// Structure
	var doc design.Document
	if err := p.stage(ctx, StageStructure, structurePrompt, promptData{Language: lang, Description: description}, &doc); err != nil {
		return nil, err
	}
	if doc.SystemName == "" {
		return nil, &StageError{StageStructure, fmt.Errorf("%w: structure has no systemName", ErrMalformed)}
	}
	doc.Narratives = nil
	doc.Requirements = design.Requirements{}

	// Narratives
	structure, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var narratives narrativeList
	if err := p.stage(ctx, StageNarratives, narrativesPrompt, promptData{Language: lang, Context: string(structure)}, &narratives); err != nil {
		return nil, err
	}

	// Requirements
	reqContext, err := json.Marshal(struct {
		Structure  json.RawMessage    `json:"structure"`
		Narratives []design.Narrative `json:"narratives"`
	}{structure, narratives})
	if err != nil {
		return nil, err
	}
	var reqs design.Requirements
	if err := p.stage(ctx, StageRequirements, requirementsPrompt, promptData{Language: lang, Context: string(reqContext)}, &reqs); err != nil {
		return nil, err
	}

	doc.Narratives = narratives
	doc.Requirements = reqs
	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("generated design: %w", err)
	}

	p.logger.Info("Design generated",
		zap.String("system", doc.SystemName),
		zap.Int("actors", len(doc.Actors)),
		zap.Int("useCases", len(doc.UseCases)),
		zap.Int("classes", len(doc.Classes)),
		zap.Int("narratives", len(doc.Narratives)),
		zap.Duration("duration", time.Since(start)))
	return &doc, nil
}

func (p *Pipeline) stage(ctx context.Context, stage Stage, t *template.Template, data promptData, out any) error {
	prompt, err := render(t, data)
	if err != nil {
		return &StageError{stage, err}
	}
	start := time.Now()
	text, err := p.llm.Complete(ctx, prompt)
	if err != nil {
		return &StageError{stage, err}
	}
	if err := json.Unmarshal([]byte(StripFences(text)), out); err != nil {
		return &StageError{stage, fmt.Errorf("%w: %v", ErrMalformed, err)}
	}
	p.logger.Debug("Stage completed",
		zap.String("stage", string(stage)),
		zap.Duration("duration", time.Since(start)))
	return nil
}

// narrativeList accepts the narratives as a bare array, as an object
// wrapping the array, or as a single narrative object.
type narrativeList []design.Narrative

func (l *narrativeList) UnmarshalJSON(b []byte) error {
	var list []design.Narrative
	if err := json.Unmarshal(b, &list); err == nil {
		*l = list
		return nil
	}
	var wrapped struct {
		Narratives []design.Narrative `json:"narratives"`
	}
	if err := json.Unmarshal(b, &wrapped); err == nil && wrapped.Narratives != nil {
		*l = wrapped.Narratives
		return nil
	}
	var one design.Narrative
	if err := json.Unmarshal(b, &one); err != nil {
		return err
	}
	if one.UseCaseID == "" {
		return errors.New("no narratives found")
	}
	*l = narrativeList{one}
	return nil
}
