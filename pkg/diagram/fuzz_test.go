package diagram

import (
	"strings"
	"testing"

	"github.com/ha1tch/uml-toolkit/pkg/design"
)

// Run with: go test -fuzz=FuzzLayoutDocument -fuzztime=30s ./pkg/diagram/
func FuzzLayoutDocument(f *testing.F) {
	f.Add([]byte(`{"systemName":"Loja","actors":[{"id":"A1","name":"Cliente"},{"id":"A2","name":"Gerente"}],"useCases":[{"id":"U1","name":"Comprar"}],"relationships":[{"source":"A1","target":"U1","type":"usage"},{"source":"A2","target":"A1","type":"generalization"}]}`))
	f.Add([]byte(`{"classes":[{"id":"C1","name":"A"},{"id":"C2","name":"B"}],"relationships":[{"source":"C1","target":"C2","type":"generalization"},{"source":"C2","target":"C1","type":"generalization"}]}`))
	f.Add([]byte(`{"classes":[{"id":"C1","name":"{a|b}","attributes":["<x>"]}],"relationships":[{"source":"C1","target":"C1","type":"composition"}]}`))
	f.Add([]byte(`{"useCases":[{"id":"U1","name":""}],"relationships":[{"source":"U1","target":"missing","type":"usage"}]}`))

	f.Fuzz(func(t *testing.T, data []byte) {
		doc, err := design.Parse(data)
		if err != nil || doc == nil {
			return
		}
		uc, cl := FromDocument(doc)

		for _, lr := range []*LayoutResult{
			LayoutColumns(uc, DefaultColumnOptions()),
			LayoutLayered(cl, DefaultLayeredOptions()),
		} {
			g := uc
			if lr.Strategy == StrategyLayered {
				g = cl
			}
			if len(lr.Order) != len(lr.Nodes) {
				t.Fatalf("%s: order has %d ids for %d nodes", lr.Strategy, len(lr.Order), len(lr.Nodes))
			}
			for id := range lr.Nodes {
				if !g.Has(id) {
					t.Fatalf("%s placed unknown node %q", lr.Strategy, id)
				}
			}
			sc := Compose(g, lr, DefaultPalette(), ApproxMeasurer{})
			_ = sc.Overlaps()
			if _, err := DOTBytes(sc); err != nil {
				t.Fatalf("DOTBytes: %v", err)
			}
		}
	})
}

func FuzzWrapLabel(f *testing.F) {
	f.Add("Fazer Pedido", 180.0)
	f.Add("Gerenciar Cadastro de Clientes e Fornecedores", 60.0)
	f.Add("", 180.0)
	f.Add("   ", -1.0)
	f.Add("Supercalifragilisticexpialidocious", 10.0)

	f.Fuzz(func(t *testing.T, text string, width float64) {
		lines := WrapLabel(text, width, LabelFontSize, FontSans, ApproxMeasurer{})
		if len(lines) == 0 {
			t.Fatal("no lines")
		}
		want := strings.Fields(NormalizeLabel(text))
		got := strings.Fields(strings.Join(lines, " "))
		if strings.Join(got, " ") != strings.Join(want, " ") {
			t.Fatalf("words changed: %q -> %q", want, got)
		}
	})
}
