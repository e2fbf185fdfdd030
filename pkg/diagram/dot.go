package diagram

import (
	"bytes"
	"fmt"
	"io"
	"strings"
)

// RenderDOT writes the scene as a Graphviz digraph. Placed nodes carry
// their layout position in points, so `neato -n` reproduces the drawing
// while dot and the other engines lay it out afresh. An empty scene
// writes nothing.
func RenderDOT(w io.Writer, sc *Scene) error {
	if sc.Empty() {
		return nil
	}
	p := sc.Palette
	var sb strings.Builder

	sb.WriteString("digraph UML {\n")
	if sc.Kind == KindClass {
		// Generalization arrows point up at the superclass.
		sb.WriteString("    rankdir=BT;\n")
	} else {
		sb.WriteString("    rankdir=LR;\n")
	}
	if p.Background != "" {
		fmt.Fprintf(&sb, "    bgcolor=\"%s\";\n", p.Background)
	}
	sb.WriteString("    node [fontname=\"Helvetica\", fontsize=11];\n")
	fmt.Fprintf(&sb, "    edge [fontname=\"Helvetica\", fontsize=10, color=\"%s\"];\n", p.LinkColor)
	sb.WriteString("\n")

	if sc.Title != "" {
		sb.WriteString("    labelloc=\"t\";\n")
		fmt.Fprintf(&sb, "    label=\"%s\";\n", escapeDOT(sc.Title))
		sb.WriteString("\n")
	}

	for _, n := range sc.Nodes {
		attrs := nodeAttrs(n, p)
		if n.Placed {
			attrs = append(attrs, fmt.Sprintf("pos=\"%s,%s\"", num(n.Pos.X), num(-n.Pos.Y)))
		}
		fmt.Fprintf(&sb, "    \"%s\" [%s];\n", escapeDOT(n.ID), strings.Join(attrs, ", "))
	}
	sb.WriteString("\n")

	for _, e := range sc.Edges {
		fmt.Fprintf(&sb, "    \"%s\" -> \"%s\"", escapeDOT(e.Source), escapeDOT(e.Target))
		if attrs := edgeAttrs(e.Type, p); len(attrs) > 0 {
			fmt.Fprintf(&sb, " [%s]", strings.Join(attrs, ", "))
		}
		sb.WriteString(";\n")
	}

	sb.WriteString("}\n")
	_, err := io.WriteString(w, sb.String())
	return err
}

// DOTBytes renders the scene as DOT into memory.
func DOTBytes(sc *Scene) ([]byte, error) {
	var buf bytes.Buffer
	if err := RenderDOT(&buf, sc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func nodeAttrs(n SceneNode, p Palette) []string {
	switch n.Group {
	case GroupActor:
		return []string{
			"shape=plaintext",
			fmt.Sprintf("label=\"«actor»\\n%s\"", escapeDOT(n.Data.Name)),
			fmt.Sprintf("fontcolor=\"%s\"", p.ActorText),
		}
	case GroupUseCase:
		return []string{
			"shape=ellipse",
			"style=filled",
			fmt.Sprintf("label=\"%s\"", escapeDOT(n.Data.Name)),
			fmt.Sprintf("fillcolor=\"%s\"", p.UseCaseFill),
			fmt.Sprintf("color=\"%s\"", p.UseCaseStroke),
			fmt.Sprintf("fontcolor=\"%s\"", p.UseCaseText),
		}
	}
	return []string{
		"shape=record",
		"style=filled",
		fmt.Sprintf("label=\"%s\"", classRecord(n.Data)),
		fmt.Sprintf("fillcolor=\"%s\"", p.ClassFill),
		fmt.Sprintf("color=\"%s\"", p.ClassStroke),
		fmt.Sprintf("fontcolor=\"%s\"", p.ClassText),
	}
}

// classRecord builds the three-compartment record label of a class with
// left-justified members.
func classRecord(d NodeData) string {
	var sb strings.Builder
	sb.WriteString("{")
	sb.WriteString(escapeRecord(d.Name))
	sb.WriteString("|")
	for _, a := range d.Attributes {
		sb.WriteString(escapeRecord(a))
		sb.WriteString("\\l")
	}
	sb.WriteString("|")
	for _, m := range d.Methods {
		sb.WriteString(escapeRecord(m))
		sb.WriteString("\\l")
	}
	sb.WriteString("}")
	return sb.String()
}

func edgeAttrs(t EdgeType, p Palette) []string {
	switch t {
	case EdgeGeneralization:
		return []string{"arrowhead=empty", fmt.Sprintf("color=\"%s\"", p.ArrowStroke)}
	case EdgeAggregation:
		return []string{"dir=back", "arrowtail=odiamond"}
	case EdgeComposition:
		return []string{"dir=back", "arrowtail=diamond"}
	}
	return []string{"arrowhead=none"}
}

func escapeDOT(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	return strings.ReplaceAll(s, "\n", "\\n")
}

var recordReplacer = strings.NewReplacer(
	"{", "\\{", "}", "\\}", "|", "\\|", "<", "\\<", ">", "\\>",
)

// escapeRecord escapes the record label metacharacters as well.
func escapeRecord(s string) string {
	return recordReplacer.Replace(escapeDOT(s))
}
