package diagram

import "github.com/ha1tch/uml-toolkit/pkg/design"

// FromDocument splits a design document into the use-case diagram
// (actors and use cases joined by usage or generalization edges) and the
// class diagram (classes joined by any other relationship, plus
// generalization). A generalization is routed by its endpoints.
func FromDocument(doc *design.Document) (useCase, class *Graph) {
	if doc == nil {
		return NewGraph(KindUseCase, nil, nil), NewGraph(KindClass, nil, nil)
	}

	ucNodes := make([]Node, 0, len(doc.Actors)+len(doc.UseCases))
	for _, a := range doc.Actors {
		ucNodes = append(ucNodes, Node{ID: a.ID, Group: GroupActor, Data: NodeData{Name: a.Name}})
	}
	for _, u := range doc.UseCases {
		ucNodes = append(ucNodes, Node{ID: u.ID, Group: GroupUseCase, Data: NodeData{Name: u.Name}})
	}

	classNodes := make([]Node, 0, len(doc.Classes))
	for _, c := range doc.Classes {
		classNodes = append(classNodes, Node{
			ID:    c.ID,
			Group: GroupClass,
			Data:  NodeData{Name: c.Name, Attributes: c.Attributes, Methods: c.Methods},
		})
	}

	edges := make([]Edge, 0, len(doc.Relationships))
	for _, r := range doc.Relationships {
		t, ok := ParseEdgeType(string(r.Type))
		if !ok {
			continue
		}
		edges = append(edges, Edge{Source: r.Source, Target: r.Target, Type: t})
	}

	return NewGraph(KindUseCase, ucNodes, edges), NewGraph(KindClass, classNodes, edges)
}
