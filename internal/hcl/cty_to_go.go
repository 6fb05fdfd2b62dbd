// Free-form parameter blocks decode into map[string]any records instead of
// typed structs, which takes a manual walk over the cty values HCL hands
// back.

package hcl

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
)

// ctyToNative converts an evaluated HCL expression value into the plain Go
// value stored in a parameter record. Numbers always land as float64 so that
// records stay comparable regardless of how the plan spelled them.
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
			return nil, fmt.Errorf("number does not fit float64: %w", err)
		}
		return f, nil
	case ty == cty.Bool:
		return v.True(), nil
	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		return nativeSlice(v)
	case ty.IsObjectType() || ty.IsMapType():
		return nativeMap(v)
	}
	return nil, fmt.Errorf("cannot store a %s in a parameter record", ty.FriendlyName())
}

func nativeSlice(v cty.Value) ([]any, error) {
	items := make([]any, 0, v.LengthInt())
	for iter := v.ElementIterator(); iter.Next(); {
		_, elem := iter.Element()
		item, err := ctyToNative(elem)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func nativeMap(v cty.Value) (map[string]any, error) {
	attrs := make(map[string]any)
	for iter := v.ElementIterator(); iter.Next(); {
		key, elem := iter.Element()
		item, err := ctyToNative(elem)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", key.AsString(), err)
		}
		attrs[key.AsString()] = item
	}
	return attrs, nil
}
