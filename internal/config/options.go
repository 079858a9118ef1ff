package config

import (
	"reflect"
	"slices"
	"strings"
)

// OptionTag is the struct tag naming the option a field is decoded from:
// `mdao:"name"` or `mdao:"name,optional"`.
const OptionTag = "mdao"

// OptionField describes one tagged field of an options struct.
type OptionField struct {
	Name     string
	Optional bool
	Index    int
	Field    reflect.StructField
}

// OptionFields lists the tagged, exported fields of an options struct type
// in declaration order.
func OptionFields(t reflect.Type) []OptionField {
	var out []OptionField
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		parts := strings.Split(f.Tag.Get(OptionTag), ",")
		if parts[0] == "" || parts[0] == "-" {
			continue
		}
		out = append(out, OptionField{
			Name:     parts[0],
			Optional: slices.Contains(parts[1:], "optional"),
			Index:    i,
			Field:    f,
		})
	}
	return out
}
