// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package frame

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// ArrowSerializable is implemented by value types that occupy an Arrow struct
// column. Fields of the returned schema are matched to Go struct fields by
// their `arrow` tag. With the `binary` tag option the value is stored as an
// embedded IPC stream instead.
type ArrowSerializable interface {
	ArrowSchema() *arrow.Schema
}

// TypeNamer is implemented by value types that want their name recorded in
// the frame schema metadata under [MetaTypes].
type TypeNamer interface {
	TypeName() string
}

// MetaTypes is the schema metadata key holding a JSON object that maps column
// names to custom type names.
const MetaTypes = "ligavision.types"

const tagKey = "liga"

var (
	arrowSerializableType = reflect.TypeOf((*ArrowSerializable)(nil)).Elem()
	typeNamerType         = reflect.TypeOf((*TypeNamer)(nil)).Elem()
)

// tagInfo holds parsed information from a `liga` struct tag.
type tagInfo struct {
	Name      string
	ArrowType string // explicit type override: "int32", "float32", "binary"
}

// parseTag parses a liga struct tag like "name", "name,int32", "name,binary".
func parseTag(tag string) tagInfo {
	parts := strings.Split(tag, ",")
	info := tagInfo{Name: parts[0]}
	for _, part := range parts[1:] {
		info.ArrowType = part
	}
	return info
}

// binding ties one tagged Go struct field to one column.
type binding struct {
	Index    int
	Name     string
	Tag      tagInfo
	Type     reflect.Type
	TypeName string
}

func isSerializable(t reflect.Type) bool {
	return t.Implements(arrowSerializableType) || reflect.PointerTo(t).Implements(arrowSerializableType)
}

func typeName(t reflect.Type) string {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if !t.Implements(typeNamerType) {
		return ""
	}
	return reflect.Zero(t).Interface().(TypeNamer).TypeName()
}

func serializableSchema(t reflect.Type) *arrow.Schema {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return reflect.Zero(t).Interface().(ArrowSerializable).ArrowSchema()
}

// goTypeToArrowType maps a Go reflect.Type to an Arrow DataType.
// The tag provides additional type hints (e.g., "int32", "binary").
func goTypeToArrowType(t reflect.Type, tag tagInfo) (arrow.DataType, bool, error) {
	nullable := false

	// Handle pointer types (optional/nullable)
	if t.Kind() == reflect.Ptr {
		nullable = true
		t = t.Elem()
	}

	switch tag.ArrowType {
	case "int32":
		return arrow.PrimitiveTypes.Int32, nullable, nil
	case "float32":
		return arrow.PrimitiveTypes.Float32, nullable, nil
	case "binary":
		if !isSerializable(t) && !(t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8) {
			return nil, false, fmt.Errorf("binary option needs []byte or ArrowSerializable, got %v", t)
		}
		return arrow.BinaryTypes.Binary, true, nil
	case "":
	default:
		return nil, false, fmt.Errorf("unknown tag option %q", tag.ArrowType)
	}

	// Value types become struct columns
	if isSerializable(t) {
		return arrow.StructOf(serializableSchema(t).Fields()...), nullable, nil
	}

	switch t.Kind() {
	case reflect.String:
		return arrow.BinaryTypes.String, nullable, nil
	case reflect.Int64, reflect.Int:
		return arrow.PrimitiveTypes.Int64, nullable, nil
	case reflect.Int32:
		return arrow.PrimitiveTypes.Int32, nullable, nil
	case reflect.Float64:
		return arrow.PrimitiveTypes.Float64, nullable, nil
	case reflect.Float32:
		return arrow.PrimitiveTypes.Float32, nullable, nil
	case reflect.Bool:
		return &arrow.BooleanType{}, nullable, nil
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return arrow.BinaryTypes.Binary, true, nil
		}
		elemType, _, err := goTypeToArrowType(t.Elem(), tagInfo{})
		if err != nil {
			return nil, false, fmt.Errorf("list element: %w", err)
		}
		return arrow.ListOf(elemType), true, nil
	case reflect.Map:
		keyType, _, err := goTypeToArrowType(t.Key(), tagInfo{})
		if err != nil {
			return nil, false, fmt.Errorf("map key: %w", err)
		}
		valType, _, err := goTypeToArrowType(t.Elem(), tagInfo{})
		if err != nil {
			return nil, false, fmt.Errorf("map value: %w", err)
		}
		return arrow.MapOf(keyType, valType), true, nil
	default:
		return nil, false, fmt.Errorf("unsupported Go type: %v (kind: %v)", t, t.Kind())
	}
}

// structToSchema builds an Arrow schema from a Go row type using liga tags.
func structToSchema(t reflect.Type) (*arrow.Schema, []binding, error) {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, nil, fmt.Errorf("expected struct type, got %v", t.Kind())
	}
	var (
		fields   []arrow.Field
		bindings []binding
		types    = map[string]string{}
	)
	for i := range t.NumField() {
		f := t.Field(i)
		tag := f.Tag.Get(tagKey)
		if tag == "" || tag == "-" {
			continue
		}
		info := parseTag(tag)

		arrowType, nullable, err := goTypeToArrowType(f.Type, info)
		if err != nil {
			return nil, nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		fields = append(fields, arrow.Field{
			Name:     info.Name,
			Type:     arrowType,
			Nullable: nullable,
		})
		b := binding{Index: i, Name: info.Name, Tag: info, Type: f.Type, TypeName: typeName(f.Type)}
		if b.TypeName != "" {
			types[info.Name] = b.TypeName
		}
		bindings = append(bindings, b)
	}
	if len(fields) == 0 {
		return nil, nil, fmt.Errorf("%v has no fields tagged %q", t, tagKey)
	}
	var meta *arrow.Metadata
	if len(types) > 0 {
		data, err := json.Marshal(types)
		if err != nil {
			return nil, nil, err
		}
		md := arrow.NewMetadata([]string{MetaTypes}, []string{string(data)})
		meta = &md
	}
	return arrow.NewSchema(fields, meta), bindings, nil
}

// setFieldFromArrow sets a struct field value from an Arrow array at index idx.
func setFieldFromArrow(field reflect.Value, fieldType reflect.Type, col arrow.Array, idx int, info tagInfo) error {
	isPtr := fieldType.Kind() == reflect.Ptr
	if isPtr {
		fieldType = fieldType.Elem()
	}

	// Value types are either embedded IPC bytes or struct columns
	if isSerializable(fieldType) {
		switch c := col.(type) {
		case *array.Binary:
			val, err := deserializeArrowSerializable(fieldType, c.Value(idx))
			if err != nil {
				return err
			}
			store(field, fieldType, isPtr, func(v reflect.Value) { v.Set(val) })
			return nil
		case *array.Struct:
			return setStructField(field, fieldType, isPtr, c, idx)
		default:
			return fmt.Errorf("expected Binary or Struct array for %v, got %T", fieldType, col)
		}
	}

	switch c := col.(type) {
	case *array.String:
		store(field, fieldType, isPtr, func(v reflect.Value) { v.SetString(c.Value(idx)) })
	case *array.LargeString:
		store(field, fieldType, isPtr, func(v reflect.Value) { v.SetString(c.Value(idx)) })
	case *array.Int64:
		store(field, fieldType, isPtr, func(v reflect.Value) { v.SetInt(c.Value(idx)) })
	case *array.Int32:
		store(field, fieldType, isPtr, func(v reflect.Value) { v.SetInt(int64(c.Value(idx))) })
	case *array.Float64:
		store(field, fieldType, isPtr, func(v reflect.Value) { v.SetFloat(c.Value(idx)) })
	case *array.Float32:
		store(field, fieldType, isPtr, func(v reflect.Value) { v.SetFloat(float64(c.Value(idx))) })
	case *array.Boolean:
		store(field, fieldType, isPtr, func(v reflect.Value) { v.SetBool(c.Value(idx)) })
	case *array.Binary:
		// Copy out of the Arrow buffer; the frame may be released.
		field.SetBytes(bytes.Clone(c.Value(idx)))
		if field.IsNil() {
			field.SetBytes([]byte{})
		}
	case *array.List:
		return setListField(field, fieldType, isPtr, c, idx)
	case *array.Map:
		return setMapField(field, fieldType, isPtr, c, idx)
	case *array.Struct:
		return setStructField(field, fieldType, isPtr, c, idx)
	default:
		return fmt.Errorf("unsupported Arrow array type: %T", col)
	}
	return nil
}

// store applies set to field, or to a freshly allocated elem when the field
// is a pointer.
func store(field reflect.Value, elem reflect.Type, isPtr bool, set func(reflect.Value)) {
	if !isPtr {
		set(field)
		return
	}
	ptr := reflect.New(elem)
	set(ptr.Elem())
	field.Set(ptr)
}

func setListField(field reflect.Value, fieldType reflect.Type, isPtr bool, listArr *array.List, idx int) error {
	start, end := listArr.ValueOffsets(idx)
	values := listArr.ListValues()
	length := int(end - start)

	slice := reflect.MakeSlice(fieldType, length, length)
	for j := 0; j < length; j++ {
		if values.IsNull(int(start) + j) {
			continue
		}
		if err := setFieldFromArrow(slice.Index(j), fieldType.Elem(), values, int(start)+j, tagInfo{}); err != nil {
			return fmt.Errorf("list element [%d]: %w", j, err)
		}
	}

	store(field, fieldType, isPtr, func(v reflect.Value) { v.Set(slice) })
	return nil
}

func setStructField(field reflect.Value, fieldType reflect.Type, isPtr bool, structArr *array.Struct, idx int) error {
	// fieldType is already dereferenced by the caller
	result := reflect.New(fieldType).Elem()
	structType := structArr.DataType().(*arrow.StructType)

	for fi := range fieldType.NumField() {
		goField := fieldType.Field(fi)
		arrowTag := goField.Tag.Get("arrow")
		if arrowTag == "" {
			continue
		}

		childIdx, ok := structType.FieldIdx(arrowTag)
		if !ok {
			continue
		}

		childArr := structArr.Field(childIdx)
		if childArr.IsNull(idx) {
			continue
		}
		if err := setFieldFromArrow(result.Field(fi), goField.Type, childArr, idx, tagInfo{}); err != nil {
			return fmt.Errorf("struct field %s: %w", arrowTag, err)
		}
	}

	store(field, fieldType, isPtr, func(v reflect.Value) { v.Set(result) })
	return nil
}

func setMapField(field reflect.Value, fieldType reflect.Type, isPtr bool, mapArr *array.Map, idx int) error {
	start, end := mapArr.ValueOffsets(idx)
	keys := mapArr.Keys()
	items := mapArr.Items()
	length := int(end - start)

	m := reflect.MakeMapWithSize(fieldType, length)
	for j := 0; j < length; j++ {
		k := reflect.New(fieldType.Key()).Elem()
		v := reflect.New(fieldType.Elem()).Elem()
		if err := setFieldFromArrow(k, fieldType.Key(), keys, int(start)+j, tagInfo{}); err != nil {
			return fmt.Errorf("map key [%d]: %w", j, err)
		}
		if !items.IsNull(int(start) + j) {
			if err := setFieldFromArrow(v, fieldType.Elem(), items, int(start)+j, tagInfo{}); err != nil {
				return fmt.Errorf("map value [%d]: %w", j, err)
			}
		}
		m.SetMapIndex(k, v)
	}

	store(field, fieldType, isPtr, func(v reflect.Value) { v.Set(m) })
	return nil
}

// appendToBuilder appends a single value to an Arrow array builder. Nil
// pointers, slices and maps are appended as nulls.
func appendToBuilder(b array.Builder, dt arrow.DataType, value any) error {
	if value == nil {
		b.AppendNull()
		return nil
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Ptr:
		if rv.IsNil() {
			b.AppendNull()
			return nil
		}
		value = rv.Elem().Interface()
		rv = rv.Elem()
	case reflect.Slice, reflect.Map:
		if rv.IsNil() {
			b.AppendNull()
			return nil
		}
	}

	switch dt.ID() {
	case arrow.STRING:
		b.(*array.StringBuilder).Append(rv.String())
	case arrow.INT64:
		v, err := toInt64(value)
		if err != nil {
			return err
		}
		b.(*array.Int64Builder).Append(v)
	case arrow.INT32:
		v, err := toInt64(value)
		if err != nil {
			return err
		}
		b.(*array.Int32Builder).Append(int32(v))
	case arrow.FLOAT64:
		v, err := toFloat64(value)
		if err != nil {
			return err
		}
		b.(*array.Float64Builder).Append(v)
	case arrow.FLOAT32:
		v, err := toFloat64(value)
		if err != nil {
			return err
		}
		b.(*array.Float32Builder).Append(float32(v))
	case arrow.BOOL:
		b.(*array.BooleanBuilder).Append(rv.Bool())
	case arrow.BINARY:
		if as, ok := value.(ArrowSerializable); ok {
			data, err := serializeArrowSerializable(as)
			if err != nil {
				return err
			}
			b.(*array.BinaryBuilder).Append(data)
		} else {
			b.(*array.BinaryBuilder).Append(rv.Bytes())
		}
	case arrow.LIST:
		lb := b.(*array.ListBuilder)
		lb.Append(true)
		vb := lb.ValueBuilder()
		for i := range rv.Len() {
			if err := appendToBuilder(vb, dt.(*arrow.ListType).Elem(), rv.Index(i).Interface()); err != nil {
				return fmt.Errorf("list element [%d]: %w", i, err)
			}
		}
	case arrow.MAP:
		mb := b.(*array.MapBuilder)
		mb.Append(true)
		kb := mb.KeyBuilder()
		ib := mb.ItemBuilder()
		mapKeys := rv.MapKeys()
		sort.Slice(mapKeys, func(i, j int) bool {
			return fmt.Sprintf("%v", mapKeys[i].Interface()) < fmt.Sprintf("%v", mapKeys[j].Interface())
		})
		for _, k := range mapKeys {
			if err := appendToBuilder(kb, dt.(*arrow.MapType).KeyType(), k.Interface()); err != nil {
				return fmt.Errorf("map key: %w", err)
			}
			if err := appendToBuilder(ib, dt.(*arrow.MapType).ItemType(), rv.MapIndex(k).Interface()); err != nil {
				return fmt.Errorf("map value: %w", err)
			}
		}
	case arrow.STRUCT:
		sb := b.(*array.StructBuilder)
		sb.Append(true)
		structType := dt.(*arrow.StructType)
		rt := rv.Type()
		for ci := range structType.NumFields() {
			sf := structType.Field(ci)
			fb := sb.FieldBuilder(ci)
			// Find matching Go field by arrow tag
			found := false
			for fi := range rt.NumField() {
				if rt.Field(fi).Tag.Get("arrow") == sf.Name {
					if err := appendToBuilder(fb, sf.Type, rv.Field(fi).Interface()); err != nil {
						return fmt.Errorf("struct field %s: %w", sf.Name, err)
					}
					found = true
					break
				}
			}
			if !found {
				fb.AppendNull()
			}
		}
	default:
		return fmt.Errorf("unsupported type in appendToBuilder: %v", dt)
	}
	return nil
}

// serializeArrowSerializable converts a value type to single-row IPC stream bytes.
func serializeArrowSerializable(as ArrowSerializable) ([]byte, error) {
	schema := as.ArrowSchema()
	mem := memory.NewGoAllocator()

	rv := reflect.ValueOf(as)
	if rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}
	rt := rv.Type()

	cols := make([]arrow.Array, schema.NumFields())
	for i := range schema.NumFields() {
		f := schema.Field(i)
		val, err := findArrowField(rt, rv, f.Name)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		b := array.NewBuilder(mem, f.Type)
		err = appendToBuilder(b, f.Type, val)
		if err == nil {
			cols[i] = b.NewArray()
		}
		b.Release()
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		defer cols[i].Release()
	}

	batch := array.NewRecordBatch(schema, cols, 1)
	defer batch.Release()

	var buf bytes.Buffer
	w := ipc.NewWriter(&buf, ipc.WithSchema(schema))
	if err := w.Write(batch); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// findArrowField finds a struct field value with a matching "arrow" tag name.
func findArrowField(rt reflect.Type, rv reflect.Value, arrowName string) (any, error) {
	for i := range rt.NumField() {
		if rt.Field(i).Tag.Get("arrow") == arrowName {
			return rv.Field(i).Interface(), nil
		}
	}
	return nil, fmt.Errorf("no field with arrow tag %q", arrowName)
}

// deserializeArrowSerializable reads IPC stream bytes into a value type.
func deserializeArrowSerializable(targetType reflect.Type, data []byte) (reflect.Value, error) {
	reader, err := ipc.NewReader(bytes.NewReader(data))
	if err != nil {
		return reflect.Value{}, fmt.Errorf("reading embedded IPC: %w", err)
	}
	defer reader.Release()

	if !reader.Next() {
		return reflect.Value{}, fmt.Errorf("no batch in embedded IPC stream")
	}
	batch := reader.RecordBatch()

	result := reflect.New(targetType).Elem()
	for i := range targetType.NumField() {
		f := targetType.Field(i)
		tag := f.Tag.Get("arrow")
		if tag == "" {
			continue
		}
		indices := batch.Schema().FieldIndices(tag)
		if len(indices) == 0 {
			continue
		}
		col := batch.Column(indices[0])
		if col.IsNull(0) {
			continue
		}
		if err := setFieldFromArrow(result.Field(i), f.Type, col, 0, tagInfo{}); err != nil {
			return reflect.Value{}, fmt.Errorf("embedded field %s: %w", tag, err)
		}
	}
	return result, nil
}

func toInt64(v any) (int64, error) {
	if rv := reflect.ValueOf(v); rv.CanInt() {
		return rv.Int(), nil
	}
	return 0, fmt.Errorf("%T is not a signed integer", v)
}

func toFloat64(v any) (float64, error) {
	switch rv := reflect.ValueOf(v); {
	case rv.CanFloat():
		return rv.Float(), nil
	case rv.CanInt():
		return float64(rv.Int()), nil
	}
	return 0, fmt.Errorf("%T is not numeric", v)
}
