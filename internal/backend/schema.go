package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const jobSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["status"],
  "properties": {
    "job_id": {"type": ["string", "null"]},
    "status": {"type": "string"},
    "error_message": {"type": ["string", "null"]},
    "documents": {
      "type": ["array", "null"],
      "items": {
        "type": "object",
        "required": ["document_id", "status"],
        "properties": {
          "document_id": {"type": "string", "minLength": 1},
          "filename": {"type": ["string", "null"]},
          "status": {"type": "string"},
          "started_at": {"type": ["string", "number", "null"]},
          "error_message": {"type": ["string", "null"]}
        }
      }
    },
    "recent_logs": {"$ref": "#/definitions/logs"},
    "logs": {"$ref": "#/definitions/logs"}
  },
  "definitions": {
    "logs": {
      "type": ["array", "null"],
      "items": {
        "type": "object",
        "required": ["message"],
        "properties": {
          "timestamp": {"type": ["string", "number", "null"]},
          "level": {"type": ["string", "null"]},
          "message": {"type": "string"},
          "document_id": {"type": ["string", "null"]},
          "extractor": {"type": ["string", "null"]}
        }
      }
    }
  }
}`

const resultSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["document_id", "success"],
  "properties": {
    "document_id": {"type": "string", "minLength": 1},
    "filename": {"type": ["string", "null"]},
    "success": {"type": "boolean"},
    "conversion_score": {"type": ["number", "null"]},
    "pass_all_thresholds": {"type": ["boolean", "null"]},
    "message": {"type": ["string", "null"]},
    "vector_optimized": {"type": ["boolean", "null"]}
  }
}`

var (
	schemasOnce sync.Once
	schemasErr  error
	jobSch      *jsonschema.Schema
	resultSch   *jsonschema.Schema
)

func compileSchemas() error {
	schemasOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("job.json", bytes.NewReader([]byte(jobSchema))); err != nil {
			schemasErr = fmt.Errorf("failed to load job schema: %w", err)
			return
		}
		if err := compiler.AddResource("result.json", bytes.NewReader([]byte(resultSchema))); err != nil {
			schemasErr = fmt.Errorf("failed to load result schema: %w", err)
			return
		}
		if jobSch, schemasErr = compiler.Compile("job.json"); schemasErr != nil {
			return
		}
		resultSch, schemasErr = compiler.Compile("result.json")
	})
	return schemasErr
}

// validate checks raw against sch, wrapping failures in ErrInvalidPayload.
func validate(sch *jsonschema.Schema, raw []byte) error {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := sch.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}
