package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"sync"

	yaml "go.yaml.in/yaml/v3"
)

// document is a config file split into its top-level keys, each value
// already in JSON form.
type document map[string]json.RawMessage

// readDocument splits a JSON or YAML (.yaml/.yml) config file into its
// top-level keys.
func readDocument(path string, data []byte) (document, string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		doc, err := readYAML(data)
		return doc, "yaml", err
	default:
		doc, err := readJSON(data)
		return doc, "json", err
	}
}

func readJSON(data []byte) (document, error) {
	var doc document
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	// Two concatenated documents are a broken file, not a config.
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return nil, errors.New("trailing data after config object")
		}
		return nil, err
	}
	if doc == nil {
		return nil, errors.New("config must be an object")
	}
	return doc, nil
}

func readYAML(data []byte) (document, error) {
	var top map[string]any
	if err := yaml.Unmarshal(data, &top); err != nil {
		return nil, err
	}
	doc := make(document, len(top))
	for key, v := range top {
		b, err := json.Marshal(jsonable(v))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		doc[key] = b
	}
	return doc, nil
}

// jsonable rewrites YAML mappings with non-string keys (e.g. `1: x`) so the
// value can be encoded as JSON.
func jsonable(in any) any {
	switch x := in.(type) {
	case map[any]any:
		m := make(map[string]any, len(x))
		for k, v := range x {
			m[fmt.Sprint(k)] = jsonable(v)
		}
		return m
	case map[string]any:
		for k, v := range x {
			x[k] = jsonable(v)
		}
		return x
	case []any:
		for i := range x {
			x[i] = jsonable(x[i])
		}
		return x
	default:
		return in
	}
}

var topLevelKeys = sync.OnceValue(func() map[string]struct{} {
	keys := map[string]struct{}{}
	t := reflect.TypeOf(Config{})
	for i := 0; i < t.NumField(); i++ {
		name, _, _ := strings.Cut(t.Field(i).Tag.Get("json"), ",")
		if name != "" && name != "-" {
			keys[name] = struct{}{}
		}
	}
	return keys
})

// decodeConfig decodes a config file. Unknown top-level keys are dropped and
// returned so the caller can warn about them; older config files carry keys
// this version does not read. Inside known sections decoding stays strict.
func decodeConfig(path string, data []byte) (*Config, []string, error) {
	doc, format, err := readDocument(path, data)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid %s config: %w", format, err)
	}

	known := topLevelKeys()
	var ignored []string
	for key := range doc {
		if _, ok := known[key]; !ok {
			ignored = append(ignored, key)
			delete(doc, key)
		}
	}
	sort.Strings(ignored)

	b, err := json.Marshal(doc)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid %s config: %w", format, err)
	}
	var cfg Config
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid %s config: %w", format, describeDecodeError(err))
	}
	return &cfg, ignored, nil
}

// describeDecodeError names the offending key path in type mismatches,
// e.g. "check_interval_minutes: want int, got string".
func describeDecodeError(err error) error {
	var te *json.UnmarshalTypeError
	if errors.As(err, &te) && te.Field != "" {
		return fmt.Errorf("%s: want %s, got %s", te.Field, te.Type, te.Value)
	}
	return err
}
