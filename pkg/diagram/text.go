package diagram

import (
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/text/unicode/norm"
)

// FontStyle selects a typeface.
type FontStyle int

const (
	FontSans FontStyle = iota
	FontSansBold
	FontMono
)

// TTF returns the embedded Go font data for the style.
func (s FontStyle) TTF() []byte {
	switch s {
	case FontSansBold:
		return gobold.TTF
	case FontMono:
		return gomono.TTF
	}
	return goregular.TTF
}

// Measurer reports the advance width of a string in rendering units.
type Measurer interface {
	Measure(s string, size float64, style FontStyle) float64
}

// ApproxMeasurer estimates widths as a fixed fraction of the font size per
// rune. It is used when no font can be loaded.
type ApproxMeasurer struct{}

// Measure implements Measurer.
func (ApproxMeasurer) Measure(s string, size float64, style FontStyle) float64 {
	k := 0.6
	if style == FontSansBold {
		k = 0.65
	}
	return float64(utf8.RuneCountInString(s)) * size * k
}

type faceKey struct {
	style FontStyle
	size  float64
}

// FontMeasurer measures text with the embedded Go fonts.
// It is safe for concurrent use.
type FontMeasurer struct {
	mu    sync.Mutex
	fonts map[FontStyle]*opentype.Font
	faces map[faceKey]font.Face
}

// NewFontMeasurer parses the embedded fonts.
func NewFontMeasurer() (*FontMeasurer, error) {
	m := &FontMeasurer{
		fonts: make(map[FontStyle]*opentype.Font),
		faces: make(map[faceKey]font.Face),
	}
	for _, st := range []FontStyle{FontSans, FontSansBold, FontMono} {
		f, err := opentype.Parse(st.TTF())
		if err != nil {
			return nil, err
		}
		m.fonts[st] = f
	}
	return m, nil
}

// Measure implements Measurer.
func (m *FontMeasurer) Measure(s string, size float64, style FontStyle) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := faceKey{style, size}
	face, ok := m.faces[key]
	if !ok {
		var err error
		face, err = opentype.NewFace(m.fonts[style], &opentype.FaceOptions{
			Size:    size,
			DPI:     72,
			Hinting: font.HintingNone,
		})
		if err != nil {
			return ApproxMeasurer{}.Measure(s, size, style)
		}
		m.faces[key] = face
	}
	return float64(font.MeasureString(face, s)) / 64
}

var defaultMeasurer = sync.OnceValue(func() Measurer {
	m, err := NewFontMeasurer()
	if err != nil {
		return ApproxMeasurer{}
	}
	return m
})

// DefaultMeasurer returns a shared FontMeasurer, or ApproxMeasurer if the
// embedded fonts cannot be parsed.
func DefaultMeasurer() Measurer {
	return defaultMeasurer()
}

// NormalizeLabel returns the NFC form of a label with surrounding space
// trimmed, so composed and decomposed input measure the same.
func NormalizeLabel(s string) string {
	return strings.TrimSpace(norm.NFC.String(s))
}

// WrapLabel greedily packs words onto lines no wider than width. A word
// that alone exceeds width gets a line of its own. With no measurer, a
// non-positive width or an empty label the result is a single line.
func WrapLabel(text string, width, size float64, style FontStyle, m Measurer) []string {
	text = NormalizeLabel(text)
	words := strings.Fields(text)
	if m == nil || width <= 0 || len(words) == 0 {
		return []string{text}
	}

	var lines []string
	line := words[0]
	for _, w := range words[1:] {
		candidate := line + " " + w
		if m.Measure(candidate, size, style) > width {
			lines = append(lines, line)
			line = w
			continue
		}
		line = candidate
	}
	return append(lines, line)
}
