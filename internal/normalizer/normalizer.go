package normalizer

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/pkg/errors"
	"github.com/stanstork/mapscrape-api/internal/models"
	"github.com/tidwall/gjson"
)

// FieldError reports an input option that could not be turned into its
// payload form.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("could not parse field %q: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

func fieldError(field, format string, args ...any) *FieldError {
	return &FieldError{Field: field, Err: fmt.Errorf(format, args...)}
}

// Normalize converts rows[index] into the actor input payload. Options the row
// leaves unset, null or empty are omitted; required scalars fall back to their
// defaults.
func Normalize(rows []models.Row, index int) (models.Params, error) {
	if index < 0 || index >= len(rows) {
		return nil, errors.Errorf("row index %d out of range (%d rows)", index, len(rows))
	}
	values, err := Parse(rows[index])
	if err != nil {
		return nil, err
	}
	return Build(values), nil
}

// Parse validates every known option of row once and returns the present
// values keyed by option name. Unknown keys are ignored.
func Parse(row models.Row) (map[string]models.Value, error) {
	values := make(map[string]models.Value, len(options))
	for _, opt := range options {
		raw, ok := row[opt.Name]
		if !ok || isNull(raw) {
			if opt.Shape == ShapeScalar && !opt.Optional && opt.Default != nil {
				values[opt.Name] = models.Value{Kind: models.KindScalar, Scalar: opt.Default}
			}
			continue
		}

		v, present, err := parseValue(opt, raw)
		if err != nil {
			return nil, err
		}
		if present {
			values[opt.Name] = v
		}
	}
	return values, nil
}

// Build flattens parsed values into the payload map.
func Build(values map[string]models.Value) models.Params {
	params := make(models.Params, len(values))
	for name, v := range values {
		switch v.Kind {
		case models.KindScalar:
			params[name] = v.Scalar
		case models.KindList:
			params[name] = v.List
		case models.KindJSON:
			params[name] = v.JSON
		}
	}
	return params
}

func parseValue(opt Option, raw json.RawMessage) (models.Value, bool, error) {
	switch opt.Shape {
	case ShapeList, ShapeURLList:
		list, err := unwrapList(opt, raw)
		if err != nil {
			return models.Value{}, false, err
		}
		if len(list) == 0 {
			return models.Value{}, false, nil
		}
		return models.Value{Kind: models.KindList, List: list}, true, nil
	case ShapeJSON:
		parsed, present, err := parseEmbeddedJSON(opt, raw)
		if err != nil || !present {
			return models.Value{}, false, err
		}
		return models.Value{Kind: models.KindJSON, JSON: parsed}, true, nil
	default:
		return parseScalar(opt, raw)
	}
}

func parseScalar(opt Option, raw json.RawMessage) (models.Value, bool, error) {
	res := gjson.ParseBytes(raw)

	if res.Type == gjson.String && res.Str == "" {
		if opt.Optional {
			return models.Value{}, false, nil
		}
		if opt.Default != nil {
			return models.Value{Kind: models.KindScalar, Scalar: opt.Default}, true, nil
		}
	}

	switch opt.Type {
	case TypeString:
		if res.Type != gjson.String {
			return models.Value{}, false, fieldError(opt.Name, "expected string, got %s", res.Type)
		}
		if len(opt.Enum) > 0 && !slices.Contains(opt.Enum, res.Str) {
			return models.Value{}, false, fieldError(opt.Name, "unsupported value %q", res.Str)
		}
		return models.Value{Kind: models.KindScalar, Scalar: res.Str}, true, nil
	case TypeNumber:
		if res.Type != gjson.Number {
			return models.Value{}, false, fieldError(opt.Name, "expected number, got %s", res.Type)
		}
		return models.Value{Kind: models.KindScalar, Scalar: res.Num}, true, nil
	case TypeBool:
		if res.Type != gjson.True && res.Type != gjson.False {
			return models.Value{}, false, fieldError(opt.Name, "expected boolean, got %s", res.Type)
		}
		return models.Value{Kind: models.KindScalar, Scalar: res.Bool()}, true, nil
	default:
		return models.Value{Kind: models.KindScalar, Scalar: res.Value()}, true, nil
	}
}

// unwrapList accepts {values:[{value:X}]}, {items:[X | {value:X}]} or a bare array.
func unwrapList(opt Option, raw json.RawMessage) ([]any, error) {
	res := gjson.ParseBytes(raw)

	var entries []gjson.Result
	switch {
	case res.IsObject() && res.Get("values").Exists():
		entries = res.Get("values.#.value").Array()
	case res.IsObject() && res.Get("items").Exists():
		for _, item := range res.Get("items").Array() {
			if item.IsObject() && item.Get("value").Exists() {
				item = item.Get("value")
			}
			entries = append(entries, item)
		}
	case res.IsArray():
		entries = res.Array()
	case res.IsObject():
		// an object without values/items is an empty fixed collection
		return nil, nil
	default:
		return nil, fieldError(opt.Name, "expected list, got %s", res.Type)
	}

	list := make([]any, 0, len(entries))
	for _, e := range entries {
		if e.Type == gjson.Null || (e.Type == gjson.String && strings.TrimSpace(e.Str) == "") {
			continue
		}
		if len(opt.Enum) > 0 && (e.Type != gjson.String || !slices.Contains(opt.Enum, e.Str)) {
			return nil, fieldError(opt.Name, "unsupported value %s", e.Raw)
		}
		if opt.Shape == ShapeURLList {
			list = append(list, toStartURL(e))
			continue
		}
		list = append(list, e.Value())
	}
	return list, nil
}

func toStartURL(e gjson.Result) any {
	if e.IsObject() && e.Get("url").Exists() {
		return e.Value()
	}
	return map[string]any{"url": e.String()}
}

// parseEmbeddedJSON parses JSON text carried in a string field. Objects and
// arrays given directly are accepted as already parsed.
func parseEmbeddedJSON(opt Option, raw json.RawMessage) (any, bool, error) {
	res := gjson.ParseBytes(raw)
	if res.IsObject() || res.IsArray() {
		return res.Value(), true, nil
	}
	if res.Type != gjson.String {
		return nil, false, fieldError(opt.Name, "expected JSON text, got %s", res.Type)
	}

	text := strings.TrimSpace(res.Str)
	if text == "" {
		return nil, false, nil
	}
	var parsed any
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return nil, false, &FieldError{Field: opt.Name, Err: err}
	}
	if parsed == nil {
		return nil, false, nil
	}
	return parsed, true, nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || gjson.ParseBytes(raw).Type == gjson.Null
}
