package config

import (
	"reflect"
	"strings"
)

// buildTree arma el árbol map[string]any que consulta Get, usando los nombres
// de los tags yaml. Reglas de presencia:
//   - punteros nil, strings vacíos, mapas y slices vacíos quedan ausentes;
//   - ints y bools siempre están presentes: su cero es un valor real.
func buildTree(s Settings) map[string]any {
	tree, _ := treeValue(reflect.ValueOf(s)).(map[string]any)
	if tree == nil {
		tree = map[string]any{}
	}
	return tree
}

func treeValue(v reflect.Value) any {
	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			return nil
		}
		return treeValue(v.Elem())
	case reflect.Struct:
		out := map[string]any{}
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			name := yamlName(f)
			if name == "" {
				continue
			}
			if fv := treeValue(v.Field(i)); fv != nil {
				out[name] = fv
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	case reflect.Map:
		if v.Len() == 0 {
			return nil
		}
		out := make(map[string]any, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			if mv := treeValue(iter.Value()); mv != nil {
				out[iter.Key().String()] = mv
			}
		}
		return out
	case reflect.Slice:
		if v.Len() == 0 {
			return nil
		}
		out := make([]any, 0, v.Len())
		for i := 0; i < v.Len(); i++ {
			out = append(out, treeValue(v.Index(i)))
		}
		return out
	case reflect.String:
		if v.Len() == 0 {
			return nil
		}
		return v.String()
	case reflect.Bool:
		return v.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return int(v.Int())
	default:
		return nil
	}
}

func yamlName(f reflect.StructField) string {
	if !f.IsExported() {
		return ""
	}
	tag := f.Tag.Get("yaml")
	if tag == "-" {
		return ""
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "" {
		return strings.ToLower(f.Name)
	}
	return name
}
