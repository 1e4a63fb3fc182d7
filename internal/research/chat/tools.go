package chat

import (
	"encoding/json"

	"github.com/sashabaranov/go-openai/jsonschema"
	"github.com/sirupsen/logrus"
)

// convertToolsForOpenAI converts in-memory ToolDescriptors to the
// go-openai tool-call wire shape. Spec §4.6 documents a P0 crash in the
// reference implementation caused by a backend that assumed every
// descriptor's Parameters map already matched the SDK's schema type; a
// descriptor with an unconvertible Parameters map is dropped with a logged
// warning instead of propagating a marshal panic up through the Judge or
// Synthesizer call.
func convertToolsForOpenAI(tools []ToolDescriptor, log *logrus.Logger) []openAITool {
	converted := make([]openAITool, 0, len(tools))
	for _, t := range tools {
		schema, err := toJSONSchema(t.Parameters)
		if err != nil {
			log.WithFields(logrus.Fields{
				"tool":  t.Name,
				"error": err,
			}).Warn("dropping tool descriptor: parameters did not convert to JSON schema")
			continue
		}
		converted = append(converted, openAITool{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  schema,
		})
	}
	return converted
}

type openAITool struct {
	Name        string
	Description string
	Parameters  jsonschema.Definition
}

// toJSONSchema round-trips the open map[string]interface{} parameter
// description through the SDK's typed Definition via JSON, so a malformed
// descriptor fails here (and is dropped by the caller) rather than deep
// inside the SDK's request marshaling.
func toJSONSchema(params map[string]interface{}) (jsonschema.Definition, error) {
	if params == nil {
		return jsonschema.Definition{Type: jsonschema.Object}, nil
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return jsonschema.Definition{}, err
	}
	var def jsonschema.Definition
	if err := json.Unmarshal(raw, &def); err != nil {
		return jsonschema.Definition{}, err
	}
	return def, nil
}
