package coverage

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/input-output-hk/report-aggregator/internal/errors"
)

type field struct {
	key string
	raw string
}

// object is a JSON object that keeps its keys in document order, values are kept as raw JSON.
type object struct {
	fields []field
	index  map[string]int
}

func newObject() *object {
	return &object{index: map[string]int{}}
}

func parseObject(raw string) (*object, error) {
	if !gjson.Valid(raw) {
		return nil, errors.Errorf("invalid JSON")
	}

	result := gjson.Parse(raw)
	if !result.IsObject() {
		return nil, errors.Errorf("expected a JSON object, got %s", result.Type)
	}

	obj := newObject()

	result.ForEach(func(key, value gjson.Result) bool {
		obj.set(key.String(), value.Raw)
		return true
	})

	return obj, nil
}

func (obj *object) get(key string) (gjson.Result, bool) {
	i, ok := obj.index[key]
	if !ok {
		return gjson.Result{}, false
	}

	return gjson.Parse(obj.fields[i].raw), true
}

// set replaces the value of an existing key in place, new keys are appended.
func (obj *object) set(key, raw string) {
	if i, ok := obj.index[key]; ok {
		obj.fields[i].raw = raw
		return
	}

	obj.index[key] = len(obj.fields)
	obj.fields = append(obj.fields, field{key: key, raw: raw})
}

func (obj *object) len() int {
	return len(obj.fields)
}

func (obj *object) String() string {
	var sb strings.Builder

	sb.WriteByte('{')

	for i, f := range obj.fields {
		if i > 0 {
			sb.WriteByte(',')
		}

		key, _ := json.Marshal(f.key) //nolint:errchkjson
		sb.Write(key)
		sb.WriteByte(':')
		sb.WriteString(f.raw)
	}

	sb.WriteByte('}')

	return sb.String()
}

func formatNumber(num float64) string {
	return strconv.FormatFloat(num, 'f', -1, 64)
}

// union returns the sorted distinct elements of both arrays, numbers before strings.
func union(a, b gjson.Result) string {
	var (
		elems []gjson.Result
		seen  = map[string]bool{}
	)

	for _, arr := range []gjson.Result{a, b} {
		for _, elem := range arr.Array() {
			key := elem.Type.String() + ":" + elem.String()
			if seen[key] {
				continue
			}

			seen[key] = true
			elems = append(elems, elem)
		}
	}

	sort.SliceStable(elems, func(i, j int) bool {
		x, y := elems[i], elems[j]

		if x.Type == gjson.Number && y.Type == gjson.Number {
			return x.Num < y.Num
		}

		if (x.Type == gjson.Number) != (y.Type == gjson.Number) {
			return x.Type == gjson.Number
		}

		return x.String() < y.String()
	})

	raws := make([]string, 0, len(elems))
	for _, elem := range elems {
		raws = append(raws, elem.Raw)
	}

	return "[" + strings.Join(raws, ",") + "]"
}
