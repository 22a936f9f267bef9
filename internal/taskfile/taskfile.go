// Package taskfile reads task sets from JSON or HCL files.
//
// JSON files hold either an array of tasks or an object with a "tasks" array:
//
//	[{"id": "fetch", "agent": "weather", "input": {"city": "Paris"}}]
//
// HCL files declare one block per task, labelled with the task id:
//
//	task "fetch" {
//	  agent      = "weather"
//	  input      = { city = "Paris" }
//	  depends_on = ["login"]
//	}
package taskfile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"

	"github.com/aristath/coordinator/internal/scheduler"
)

// Load reads the task file at path. The format follows the extension
// (.json, .hcl); other files are sniffed by their first character.
func Load(path string) ([]scheduler.TaskSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading task file: %w", err)
	}
	return Parse(data, path)
}

// Parse decodes task file contents. filename selects the format and is used
// in diagnostics.
func Parse(data []byte, filename string) ([]scheduler.TaskSpec, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".json":
		return parseJSON(data, filename)
	case ".hcl":
		return parseHCL(data, filename)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && (trimmed[0] == '[' || trimmed[0] == '{') {
		return parseJSON(data, filename)
	}
	return parseHCL(data, filename)
}

type jsonFile struct {
	Tasks []scheduler.TaskSpec `json:"tasks"`
}

func parseJSON(data []byte, filename string) ([]scheduler.TaskSpec, error) {
	trimmed := bytes.TrimSpace(data)

	var specs []scheduler.TaskSpec
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := decodeStrict(trimmed, &specs); err != nil {
			return nil, fmt.Errorf("failed to parse JSON task file %s: %w", filename, err)
		}
	} else {
		var file jsonFile
		if err := decodeStrict(trimmed, &file); err != nil {
			return nil, fmt.Errorf("failed to parse JSON task file %s: %w", filename, err)
		}
		specs = file.Tasks
	}

	if specs == nil {
		specs = []scheduler.TaskSpec{}
	}
	return specs, nil
}

func decodeStrict(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// hclFile is the top-level structure of an HCL task file.
type hclFile struct {
	Tasks []*hclTask `hcl:"task,block"`
}

type hclTask struct {
	ID        string    `hcl:"id,label"`
	Name      string    `hcl:"name,optional"`
	Agent     string    `hcl:"agent"`
	Input     cty.Value `hcl:"input,optional"`
	DependsOn []string  `hcl:"depends_on,optional"`
	Resources []string  `hcl:"resources,optional"`
}

func parseHCL(data []byte, filename string) ([]scheduler.TaskSpec, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL task file %s: %w", filename, diags)
	}

	var parsed hclFile
	diags = gohcl.DecodeBody(file.Body, nil, &parsed)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL task file %s: %w", filename, diags)
	}

	specs := make([]scheduler.TaskSpec, 0, len(parsed.Tasks))
	for _, task := range parsed.Tasks {
		input, err := inputFromCty(task.Input)
		if err != nil {
			return nil, fmt.Errorf("task %q in %s: %w", task.ID, filename, err)
		}

		specs = append(specs, scheduler.TaskSpec{
			ID:           task.ID,
			Name:         task.Name,
			Agent:        task.Agent,
			Input:        input,
			Dependencies: task.DependsOn,
			Resources:    task.Resources,
		})
	}

	return specs, nil
}

func inputFromCty(v cty.Value) (map[string]any, error) {
	if v.IsNull() {
		return nil, nil
	}

	native, err := ctyToNative(v)
	if err != nil {
		return nil, fmt.Errorf("input: %w", err)
	}

	input, ok := native.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("input must be an object, got %s", v.Type().FriendlyName())
	}
	return input, nil
}

// ctyToNative converts a cty.Value to the shape encoding/json would produce:
// numbers become float64, objects and maps become map[string]any.
func ctyToNative(v cty.Value) (any, error) {
	if v.IsNull() || !v.IsKnown() {
		return nil, nil
	}

	ty := v.Type()

	switch {
	case ty == cty.String:
		return v.AsString(), nil

	case ty == cty.Number:
		var f float64
		if err := gocty.FromCtyValue(v, &f); err != nil {
			return nil, fmt.Errorf("could not convert number to float64: %w", err)
		}
		return f, nil

	case ty == cty.Bool:
		return v.True(), nil

	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		slice := make([]any, 0, v.LengthInt())
		it := v.ElementIterator()
		for it.Next() {
			_, val := it.Element()
			nativeVal, err := ctyToNative(val)
			if err != nil {
				return nil, err
			}
			slice = append(slice, nativeVal)
		}
		return slice, nil

	case ty.IsObjectType() || ty.IsMapType():
		goMap := make(map[string]any)
		it := v.ElementIterator()
		for it.Next() {
			key, val := it.Element()
			keyStr := key.AsString()
			nativeVal, err := ctyToNative(val)
			if err != nil {
				return nil, fmt.Errorf("in attribute '%s': %w", keyStr, err)
			}
			goMap[keyStr] = nativeVal
		}
		return goMap, nil

	default:
		return nil, fmt.Errorf("unsupported value type %s", ty.FriendlyName())
	}
}
