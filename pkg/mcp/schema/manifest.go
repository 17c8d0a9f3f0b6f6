package schema

import (
	"fmt"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// ValidateManifestSchema checks that doc is itself a well-formed JSON
// Schema document (draft 2020-12) before Parse is asked to turn it
// into a Schema. This is meta-validation of the *shape* of the schema,
// distinct from Validate, which checks data against an already-parsed
// Schema.
func ValidateManifestSchema(doc map[string]interface{}) error {
	compiled, err := compileAnonymous(doc)
	if err != nil {
		return fmt.Errorf("schema: manifest inputSchema is not valid JSON Schema: %w", err)
	}
	_ = compiled
	return nil
}

func compileAnonymous(doc map[string]interface{}) (*jsonschema.Schema, error) {
	const resourceURL = "mem://manifest-schema.json"
	c := jsonschema.NewCompiler()
	if err := c.AddResource(resourceURL, doc); err != nil {
		return nil, err
	}
	return c.Compile(resourceURL)
}
