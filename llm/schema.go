package llm

import "github.com/gsaaad/ag1-researchagent/tools"

// schemaToJSONSchema renders a tool schema as the plain JSON-schema maps
// that the OpenAI and Bedrock wire formats expect.
func schemaToJSONSchema(s tools.Schema) (properties map[string]interface{}, required []string) {
	properties = make(map[string]interface{}, len(s.Properties))
	for name, p := range s.Properties {
		prop := map[string]interface{}{
			"type":        p.Type,
			"description": p.Description,
		}
		if p.Default != nil {
			prop["default"] = p.Default
		}
		properties[name] = prop
	}
	return properties, s.Required
}
