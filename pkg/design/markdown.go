package design

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Export suffixes used for file names.
const (
	SuffixRequirements = "Requisitos"
	SuffixNarratives   = "Narrativas"
)

// RequirementsMarkdown renders the requirement lists as markdown tables.
func RequirementsMarkdown(d *Document) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# %s - Requisitos\n\n", d.SystemName)
	sb.WriteString("## Requisitos Funcionais\n\n")
	writeRequirementTable(&sb, d.Requirements.Functional)
	sb.WriteString("\n## Requisitos Não Funcionais\n\n")
	writeRequirementTable(&sb, d.Requirements.NonFunctional)

	return sb.String()
}

func writeRequirementTable(sb *strings.Builder, reqs []Requirement) {
	sb.WriteString("| ID | Descrição | Classificação |\n|:---|:---|:---|\n")
	for _, r := range reqs {
		fmt.Fprintf(sb, "| %s | %s | %s |\n", cell(r.ID), cell(r.Description), cell(r.Classification))
	}
}

// NarrativesMarkdown renders each narrative with its flow of events.
func NarrativesMarkdown(d *Document) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# %s - Narrativas de Caso de Uso\n\n", d.SystemName)
	for _, n := range d.Narratives {
		fmt.Fprintf(&sb, "## Caso de Uso: %s\n\n", n.UseCaseName)
		fmt.Fprintf(&sb, "**Ator Primário:** %s\n\n", n.PrimaryActor)
		if len(n.SecondaryActors) > 0 {
			fmt.Fprintf(&sb, "**Atores Secundários:** %s\n\n", strings.Join(n.SecondaryActors, ", "))
		}
		if n.Priority != "" {
			fmt.Fprintf(&sb, "**Prioridade:** %s\n\n", n.Priority)
		}
		if n.BriefDescription != "" {
			fmt.Fprintf(&sb, "**Descrição:** %s\n\n", n.BriefDescription)
		}
		writeList(&sb, "Pré-condições", n.PreConditions)

		sb.WriteString("### Fluxo de Eventos\n\n")
		sb.WriteString("| Passo | Ação do Ator | Resposta do Sistema |\n|:---|:---|:---|\n")
		for _, f := range n.FlowOfEvents {
			fmt.Fprintf(&sb, "| %d | %s | %s |\n", f.Step, cell(f.ActorAction), cell(f.SystemResponse))
		}
		sb.WriteString("\n")

		writeList(&sb, "Pós-condições", n.PostConditions)
		writeList(&sb, "Fluxos Alternativos", n.AlternativeFlows)
		sb.WriteString("---\n\n")
	}

	return sb.String()
}

func writeList(sb *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(sb, "### %s\n\n", title)
	for _, it := range items {
		fmt.Fprintf(sb, "- %s\n", it)
	}
	sb.WriteString("\n")
}

// cell escapes text for a markdown table cell.
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

// ExportName builds a file name like "Loja_Online_Requisitos.md".
// Whitespace runs become underscores and accents are folded so the
// name is safe on every filesystem.
func ExportName(systemName, suffix, ext string) string {
	base := strings.Join(strings.Fields(foldAccents(systemName)), "_")
	if base == "" {
		base = "design"
	}
	name := base
	if suffix != "" {
		name += "_" + suffix
	}
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return name + ext
}

func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
