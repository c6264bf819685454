package swadl

import "github.com/xeipuuv/gojsonschema"

// SWADL top-level schema. Activity bodies are validated structurally by the
// decoder and the graph builder, so the schema only pins down the document
// shape shared by every workflow.
const schemaDocument = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["id", "activities"],
  "properties": {
    "id": {"type": "string", "minLength": 1},
    "version": {"type": "string"},
    "to-publish": {"type": "boolean"},
    "expiration-date": {"type": "string"},
    "variables": {"type": "object"},
    "activities": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "minProperties": 1,
        "maxProperties": 1,
        "additionalProperties": {"type": "object"}
      }
    }
  },
  "additionalProperties": false
}`

var schemaLoader = gojsonschema.NewStringLoader(schemaDocument)
