package reconcile

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/openfroyo/zbxsync/pkg/engine"
	"github.com/openfroyo/zbxsync/pkg/rpc"
)

// Object is a live API object as returned by a get method. Scalars are
// strings or json.Number values.
type Object map[string]interface{}

// Str returns a field as a string.
func (o Object) Str(field string) string {
	return scalar(o[field])
}

// List returns a field holding a list of objects.
func (o Object) List(field string) []Object {
	raw, _ := o[field].([]interface{})
	out := make([]Object, 0, len(raw))
	for _, e := range raw {
		if m, ok := e.(map[string]interface{}); ok {
			out = append(out, Object(m))
		}
	}
	return out
}

// IDs returns the idField of every object in a list field.
func (o Object) IDs(listField, idField string) []string {
	var out []string
	for _, e := range o.List(listField) {
		out = append(out, e.Str(idField))
	}
	return out
}

// Params is a request parameter object.
type Params map[string]interface{}

// byName builds get parameters filtering one field.
func byName(field, value string) Params {
	return Params{
		"output": "extend",
		"filter": map[string]interface{}{field: []string{value}},
	}
}

// get calls a get method and decodes the result list.
func get(ctx context.Context, c rpc.Caller, method string, params Params) ([]Object, error) {
	var raw json.RawMessage
	if err := c.Call(ctx, method, params, &raw); err != nil {
		return nil, err
	}

	var out []Object
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return nil, engine.NewApplicationError("unexpected result shape", err).
			WithOperation(method).WithCode(engine.ErrCodeBadResponse)
	}
	return out, nil
}

// first calls a get method and returns the first object, if any.
func first(ctx context.Context, c rpc.Caller, method string, params Params) (Object, bool, error) {
	objs, err := get(ctx, c, method, params)
	if err != nil || len(objs) == 0 {
		return nil, false, err
	}
	return objs[0], true, nil
}

// create calls a create method and returns the single new id found under idsKey.
func create(ctx context.Context, c rpc.Caller, method, idsKey string, payload interface{}) (string, error) {
	ids, err := write(ctx, c, method, idsKey, payload)
	if err != nil {
		return "", err
	}
	if len(ids) == 0 {
		return "", engine.NewApplicationError(fmt.Sprintf("no %s in result", idsKey), nil).
			WithOperation(method).WithCode(engine.ErrCodeBadResponse)
	}
	return ids[0], nil
}

// write calls a create, update or delete method and returns the affected ids.
func write(ctx context.Context, c rpc.Caller, method, idsKey string, payload interface{}) ([]string, error) {
	var result map[string][]interface{}
	if err := c.Call(ctx, method, payload, &result); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(result[idsKey]))
	for _, v := range result[idsKey] {
		ids = append(ids, scalar(v))
	}
	return ids, nil
}

// withID renders an update payload: the id field plus every desired field
// except the dropped ones.
func withID(idField, id string, d interface{}, drop ...string) map[string]interface{} {
	m := toObject(d)
	if m == nil {
		m = make(map[string]interface{})
	}
	for _, f := range drop {
		delete(m, f)
	}
	m[idField] = id
	return m
}

func scalar(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case bool:
		if t {
			return "1"
		}
		return "0"
	default:
		return fmt.Sprint(t)
	}
}

// itoa renders an enum the way the API returns it.
func itoa(v int) string {
	return strconv.Itoa(v)
}

func sortedCopy(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}
