package tracklist

import (
	"encoding/json"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/tracklist-extractor/internal/common"
	"github.com/joseph-ayodele/tracklist-extractor/internal/llm"
)

var (
	answerSchemaOnce sync.Once
	answerSchema     *jsonschema.Schema
	answerSchemaErr  error
)

func compiledAnswerSchema() (*jsonschema.Schema, error) {
	answerSchemaOnce.Do(func() {
		answerSchema, answerSchemaErr = llm.CompileSchema(llm.BuildTracklistJSONSchema())
	})
	return answerSchema, answerSchemaErr
}

// DecodeAnswer extracts, validates and decodes a model answer. When strict
// validation fails the answer is repaired with llm.SanitizeTracks and checked
// again; the returned slice lists the repaired fields.
func DecodeAnswer(content string) (Answer, []string, error) {
	raw, err := llm.ExtractJSON(content)
	if err != nil {
		return Answer{}, nil, common.ResponseValidationError("answer is not JSON", err)
	}
	schema, err := compiledAnswerSchema()
	if err != nil {
		return Answer{}, nil, err
	}

	var repaired []string
	if verr := llm.ValidateJSON(schema, raw); verr != nil {
		fixed, changed, serr := llm.SanitizeTracks(raw)
		if serr != nil {
			return Answer{}, nil, common.ResponseValidationError("answer does not match schema", verr)
		}
		if err := llm.ValidateJSON(schema, fixed); err != nil {
			return Answer{}, changed, common.ResponseValidationError("answer does not match schema", err)
		}
		raw, repaired = fixed, changed
	}

	var ans Answer
	if err := json.Unmarshal(raw, &ans); err != nil {
		return Answer{}, repaired, common.ResponseValidationError("decode answer", err)
	}
	return ans, repaired, nil
}
