package api

import (
	"reflect"
	"strings"

	"github.com/rs/zerolog/log"
)

const masked = "******"

// Scrub masks every field tagged `sensitive`. On a struct field the tag value lists the nested fields to
// mask, for example `sensitive:"Value,Default"`; any other value masks the whole nested struct.
func Scrub(o interface{}) {
	v := reflect.ValueOf(o).Elem()
	if v.Kind() != reflect.Struct {
		return
	}
	scrubStruct(v)
}

func scrubStruct(v reflect.Value) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := v.Field(i)
		sf := t.Field(i)
		if !f.CanSet() {
			continue
		}
		tag, sensitive := sf.Tag.Lookup("sensitive")

		if f.Kind() == reflect.Struct {
			if sensitive {
				scrubNested(f, tag)
			} else {
				scrubStruct(f)
			}
			continue
		}
		if sensitive {
			mask(f, sf.Name)
		}
	}
}

func scrubNested(v reflect.Value, tag string) {
	t := v.Type()
	names := map[string]bool{}
	for _, n := range strings.Split(tag, ",") {
		if _, ok := t.FieldByName(strings.TrimSpace(n)); ok {
			names[strings.TrimSpace(n)] = true
		}
	}

	for i := 0; i < t.NumField(); i++ {
		f := v.Field(i)
		sf := t.Field(i)
		if !f.CanSet() || (len(names) > 0 && !names[sf.Name]) {
			continue
		}
		if f.Kind() == reflect.Struct {
			scrubNested(f, "")
			continue
		}
		mask(f, sf.Name)
	}
}

func mask(f reflect.Value, name string) {
	switch f.Kind() {
	case reflect.String:
		if f.String() != "" {
			f.SetString(masked)
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		f.SetInt(0)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		f.SetUint(0)
	case reflect.Float32, reflect.Float64:
		f.SetFloat(0.00)
	case reflect.Bool:
		f.SetBool(false)
	default:
		log.Warn().
			Str("fieldName", name).
			Str("type", f.Kind().String()).
			Msg("field marked sensitive but was an unrecognized type")
	}
}
