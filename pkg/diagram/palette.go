package diagram

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Palette names the colors used to draw a diagram.
type Palette struct {
	ClassFill     string `json:"classFill" yaml:"classFill" validate:"hexcolor"`
	ClassStroke   string `json:"classStroke" yaml:"classStroke" validate:"hexcolor"`
	ClassText     string `json:"classText" yaml:"classText" validate:"hexcolor"`
	UseCaseFill   string `json:"useCaseFill" yaml:"useCaseFill" validate:"hexcolor"`
	UseCaseStroke string `json:"useCaseStroke" yaml:"useCaseStroke" validate:"hexcolor"`
	UseCaseText   string `json:"useCaseText" yaml:"useCaseText" validate:"hexcolor"`
	ActorStroke   string `json:"actorStroke" yaml:"actorStroke" validate:"hexcolor"`
	ActorText     string `json:"actorText" yaml:"actorText" validate:"hexcolor"`
	LinkColor     string `json:"linkColor" yaml:"linkColor" validate:"hexcolor"`
	ArrowStroke   string `json:"arrowStroke" yaml:"arrowStroke" validate:"hexcolor"`

	// Background is only painted by raster output.
	Background string `json:"background,omitempty" yaml:"background,omitempty" validate:"omitempty,hexcolor"`
}

// DefaultPalette returns the on-screen colors.
func DefaultPalette() Palette {
	return Palette{
		ClassFill:     "#4a044e",
		ClassStroke:   "#f0abfc",
		ClassText:     "#f5d0fe",
		UseCaseFill:   "#2563eb",
		UseCaseStroke: "#93c5fd",
		UseCaseText:   "#e0e7ff",
		ActorStroke:   "#d1d5db",
		ActorText:     "#e0e7ff",
		LinkColor:     "#999",
		ArrowStroke:   "#999",
		Background:    "#1f2937",
	}
}

// PrintPalette returns black-on-white colors for documents.
func PrintPalette() Palette {
	return Palette{
		ClassFill:     "#ffffff",
		ClassStroke:   "#333333",
		ClassText:     "#000000",
		UseCaseFill:   "#ffffff",
		UseCaseStroke: "#333333",
		UseCaseText:   "#000000",
		ActorStroke:   "#000000",
		ActorText:     "#000000",
		LinkColor:     "#666666",
		ArrowStroke:   "#000000",
		Background:    "#ffffff",
	}
}

// PaletteByName returns "default" (alias "screen") or "print".
func PaletteByName(name string) (Palette, error) {
	switch strings.ToLower(name) {
	case "", "default", "screen":
		return DefaultPalette(), nil
	case "print":
		return PrintPalette(), nil
	}
	return Palette{}, fmt.Errorf("unknown palette %q", name)
}

func (p *Palette) slots() map[string]*string {
	return map[string]*string{
		"classFill":     &p.ClassFill,
		"classStroke":   &p.ClassStroke,
		"classText":     &p.ClassText,
		"useCaseFill":   &p.UseCaseFill,
		"useCaseStroke": &p.UseCaseStroke,
		"useCaseText":   &p.UseCaseText,
		"actorStroke":   &p.ActorStroke,
		"actorText":     &p.ActorText,
		"linkColor":     &p.LinkColor,
		"arrowStroke":   &p.ArrowStroke,
		"background":    &p.Background,
	}
}

// SlotNames lists the overridable slot names in sorted order.
func SlotNames() []string {
	var p Palette
	names := make([]string, 0, 11)
	for name := range p.slots() {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Override returns a copy of p with the named slots replaced. Empty values
// leave the slot unchanged. Unknown slot names fail with ErrUnknownSlot and
// invalid colors fail validation.
func (p Palette) Override(overrides map[string]string) (Palette, error) {
	out := p
	slots := out.slots()
	names := make([]string, 0, len(overrides))
	for name := range overrides {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		v := strings.TrimSpace(overrides[name])
		if v == "" {
			continue
		}
		slot, ok := slots[name]
		if !ok {
			return p, fmt.Errorf("%w: %q", ErrUnknownSlot, name)
		}
		*slot = v
	}
	if err := out.Validate(); err != nil {
		return p, err
	}
	return out, nil
}

// Merge fills every empty slot of p from base.
func (p Palette) Merge(base Palette) Palette {
	out := p
	src := base.slots()
	for name, slot := range out.slots() {
		if *slot == "" {
			*slot = *src[name]
		}
	}
	return out
}

var paletteValidator = sync.OnceValue(func() *validator.Validate {
	return validator.New()
})

// Validate checks that every slot holds a hex color.
func (p Palette) Validate() error {
	err := paletteValidator().Struct(p)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	msgs := make([]string, len(fieldErrs))
	for i, fe := range fieldErrs {
		msgs[i] = fmt.Sprintf("%s: %q is not a hex color", fe.Field(), fe.Value())
	}
	return fmt.Errorf("invalid palette: %s", strings.Join(msgs, "; "))
}
