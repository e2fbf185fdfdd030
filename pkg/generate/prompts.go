package generate

import (
	"bytes"
	"strings"
	"text/template"
)

// languageNames maps language tags to how prompts name the language.
var languageNames = map[string]string{
	"pt-br": "português do Brasil",
	"pt":    "português",
	"en":    "inglês",
	"es":    "espanhol",
}

// LanguageName returns the prompt wording for a language tag. Unknown tags
// are used verbatim.
func LanguageName(tag string) string {
	if name, ok := languageNames[strings.ToLower(tag)]; ok {
		return name
	}
	return tag
}

type promptData struct {
	Language    string
	Description string
	Context     string
}

var (
	structurePrompt = template.Must(template.New("structure").Parse(`Você é um arquiteto de software sênior. Analise a descrição de sistema abaixo e extraia seus componentes principais em JSON.
A resposta DEVE estar inteiramente em {{.Language}}, exceto pelas chaves do schema, que permanecem em inglês.

Descrição do sistema: "{{.Description}}"

Siga estritamente este schema JSON:
{
  "systemName": "(nome do sistema)",
  "actors": [{"id": "ATOR_ID", "name": "Nome do Ator"}],
  "useCases": [{"id": "UC_ID", "name": "Nome do Caso de Uso"}],
  "classes": [{"id": "CLASSE_ID", "name": "NomeDaClasse", "attributes": ["+ atributo: tipo"], "methods": ["+ metodo(param): tipoRetorno"]}],
  "relationships": [
    {"source": "ID_ORIGEM", "target": "ID_DESTINO", "type": "usage | association | aggregation | composition | generalization"}
  ]
}

REGRAS:
1. IDs curtos, descritivos e únicos entre atores, casos de uso e classes (ex: ATOR_CLIENTE, UC_LOGIN, CLASSE_CONTA).
2. Todo relacionamento referencia IDs existentes nas listas acima.
3. Use 'usage' entre ator e caso de uso, 'generalization' para herança e 'association', 'aggregation' ou 'composition' entre classes.
4. Não inclua propriedades fora do schema.
5. Responda APENAS com o JSON, sem texto adicional nem blocos de código.`))

	narrativesPrompt = template.Must(template.New("narratives").Parse(`Você é um escritor técnico especialista em engenharia de software. Escreva narrativas de caso de uso em JSON para a estrutura de sistema abaixo.
A resposta DEVE estar inteiramente em {{.Language}}.

Estrutura do sistema:
{{.Context}}

Gere um array JSON com uma narrativa por caso de uso, cada uma neste schema:
{
  "useCaseId": "(UC_ID da estrutura)",
  "useCaseName": "(nome do caso de uso)",
  "primaryActor": "(nome do ator principal)",
  "secondaryActors": ["(atores secundários, se houver)"],
  "priority": "High | Medium | Low",
  "briefDescription": "(resumo do objetivo)",
  "preConditions": ["(condições antes do fluxo)"],
  "postConditions": ["(condições após o fluxo bem-sucedido)"],
  "flowOfEvents": [
    {"step": 1, "actorAction": "Ação do ator.", "systemResponse": ""},
    {"step": 2, "actorAction": "", "systemResponse": "Resposta do sistema."}
  ],
  "alternativeFlows": ["(fluxos alternativos ou de exceção)"]
}

REGRAS:
1. 'useCaseId' corresponde a um ID de caso de uso da estrutura.
2. Em cada passo de 'flowOfEvents' preencha APENAS 'actorAction' OU 'systemResponse'; o outro fica vazio.
3. O fluxo alterna entre ações do ator e respostas do sistema.
4. Responda APENAS com o array JSON, sem texto adicional nem blocos de código.`))

	requirementsPrompt = template.Must(template.New("requirements").Parse(`Você é um analista de sistemas experiente. Derive requisitos funcionais e não funcionais do design de sistema abaixo.
A resposta DEVE estar inteiramente em {{.Language}}.

Design do sistema (estrutura e narrativas):
{{.Context}}

Siga estritamente este schema JSON:
{
  "functional": [
    {"id": "RF-001", "description": "(requisito funcional)", "classification": "Essencial | Importante | Desejável"}
  ],
  "nonFunctional": [
    {"id": "RNF-001", "description": "(requisito não funcional)", "classification": "Essencial | Importante | Desejável"}
  ]
}

REGRAS:
1. Derive os requisitos dos atores, casos de uso, classes e narrativas do contexto.
2. Numere os IDs em sequência (RF-001, RF-002, RNF-001, ...).
3. Responda APENAS com o JSON, sem texto adicional nem blocos de código.`))
)

func render(t *template.Template, d promptData) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, d); err != nil {
		return "", err
	}
	return buf.String(), nil
}
