package searchindex

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/sha1n/mcp-sitesearch-server/internal/domain"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const pageIndexSchemaURL = "https://schemas.sitesearch.dev/page-index.json"

// pageIndexSchema describes the array-of-records shape emitted by the site generator.
// Extra properties are tolerated; missing ones are not.
const pageIndexSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "array",
  "items": {
    "type": "object",
    "required": ["breadcrumb", "content", "description", "tags", "title", "uri"],
    "properties": {
      "breadcrumb": {"type": "string"},
      "content": {"type": "string"},
      "description": {"type": "string"},
      "tags": {"type": "array", "items": {"type": "string"}},
      "title": {"type": "string"},
      "uri": {"type": "string", "minLength": 1}
    }
  }
}`

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(pageIndexSchema))
	if err != nil {
		return nil, err
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(pageIndexSchemaURL, doc); err != nil {
		return nil, err
	}
	return compiler.Compile(pageIndexSchemaURL)
})

// decodeRecords validates a JSON array body against the page index schema and
// builds the records from the validated instance.
func decodeRecords(body []byte) ([]domain.PageRecord, error) {
	schema, err := compiledSchema()
	if err != nil {
		return nil, newFormatError("schema compilation failed", err)
	}

	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return nil, newFormatError("invalid JSON", err)
	}

	if err := schema.Validate(inst); err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			return nil, formatErrorFromValidation(verr)
		}
		return nil, newFormatError("schema validation failed", err)
	}

	items, ok := inst.([]any)
	if !ok {
		return nil, newFormatError("payload is not an array of records", nil)
	}
	records := make([]domain.PageRecord, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, &FormatError{Reason: "record is not an object", Record: i}
		}
		if err := checkFieldNames(i, obj); err != nil {
			return nil, err
		}
		records[i] = domain.PageRecord{
			Breadcrumb:  obj[domain.PageFieldBreadcrumb].(string),
			Content:     obj[domain.PageFieldContent].(string),
			Description: obj[domain.PageFieldDescription].(string),
			Tags:        stringSlice(obj[domain.PageFieldTags]),
			Title:       obj[domain.PageFieldTitle].(string),
			URI:         obj[domain.PageFieldURI].(string),
		}
	}
	return records, nil
}

// checkFieldNames rejects extra properties that differ from a record field
// only by case, such as "Uri" next to "uri".
func checkFieldNames(record int, obj map[string]any) error {
	for key := range obj {
		for _, field := range domain.PageFields {
			if key != field && strings.EqualFold(key, field) {
				return &FormatError{
					Reason: fmt.Sprintf("property %q conflicts with field %q", key, field),
					Record: record,
					Field:  field,
				}
			}
		}
	}
	return nil
}

func stringSlice(v any) []string {
	items, _ := v.([]any)
	out := make([]string, len(items))
	for i, item := range items {
		out[i], _ = item.(string)
	}
	return out
}

var printer = message.NewPrinter(language.English)

// formatErrorFromValidation reduces a validation error tree to its first leaf.
func formatErrorFromValidation(verr *jsonschema.ValidationError) *FormatError {
	leaf := verr
	for len(leaf.Causes) > 0 {
		leaf = leaf.Causes[0]
	}

	fe := &FormatError{Record: -1}
	if leaf.ErrorKind != nil {
		fe.Reason = leaf.ErrorKind.LocalizedString(printer)
	}
	if len(leaf.InstanceLocation) > 0 {
		if idx, err := strconv.Atoi(leaf.InstanceLocation[0]); err == nil {
			fe.Record = idx
		}
	}
	if len(leaf.InstanceLocation) > 1 {
		fe.Field = leaf.InstanceLocation[1]
	}
	if fe.Reason == "" {
		fe.Reason = "schema validation failed"
	}
	return fe
}
