package apidoc

import (
	"reflect"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
)

var timeType = reflect.TypeOf(time.Time{})

func (d *Doc) schemaFor(example any) *openapi3.SchemaRef {
	d.mu.Lock()
	defer d.mu.Unlock()

	if example == nil {
		return &openapi3.SchemaRef{Value: openapi3.NewObjectSchema()}
	}
	return d.schemaFromType(reflect.TypeOf(example))
}

func (d *Doc) schemaFromType(t reflect.Type) *openapi3.SchemaRef {
	if t.Kind() == reflect.Pointer {
		inner := d.schemaFromType(t.Elem())
		if inner.Ref != "" {
			return &openapi3.SchemaRef{Value: &openapi3.Schema{
				AllOf:    openapi3.SchemaRefs{inner},
				Nullable: true,
			}}
		}
		inner.Value.Nullable = true
		return inner
	}

	switch t.Kind() {
	case reflect.String:
		return &openapi3.SchemaRef{Value: openapi3.NewStringSchema()}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return &openapi3.SchemaRef{Value: openapi3.NewIntegerSchema()}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &openapi3.SchemaRef{Value: openapi3.NewIntegerSchema().WithMin(0)}
	case reflect.Float32, reflect.Float64:
		return &openapi3.SchemaRef{Value: openapi3.NewFloat64Schema()}
	case reflect.Bool:
		return &openapi3.SchemaRef{Value: openapi3.NewBoolSchema()}
	case reflect.Slice, reflect.Array:
		schema := openapi3.NewArraySchema()
		schema.Items = d.schemaFromType(t.Elem())
		return &openapi3.SchemaRef{Value: schema}
	case reflect.Map:
		schema := openapi3.NewObjectSchema()
		schema.AdditionalProperties = openapi3.AdditionalProperties{Schema: d.schemaFromType(t.Elem())}
		return &openapi3.SchemaRef{Value: schema}
	case reflect.Struct:
		if t == timeType {
			return &openapi3.SchemaRef{Value: openapi3.NewDateTimeSchema()}
		}
		return d.structRef(t)
	default:
		return &openapi3.SchemaRef{Value: openapi3.NewObjectSchema()}
	}
}

// structRef registers named structs under components/schemas and returns a
// reference. Anonymous structs are inlined.
func (d *Doc) structRef(t reflect.Type) *openapi3.SchemaRef {
	if t.Name() == "" {
		return &openapi3.SchemaRef{Value: d.structSchema(t)}
	}
	if name, ok := d.schemas[t]; ok {
		return openapi3.NewSchemaRef("#/components/schemas/"+name, d.spec.Components.Schemas[name].Value)
	}

	name := t.Name()
	d.schemas[t] = name
	if d.spec.Components.Schemas == nil {
		d.spec.Components.Schemas = make(openapi3.Schemas)
	}
	// registered before the fields are walked so recursive types resolve
	schema := &openapi3.Schema{}
	d.spec.Components.Schemas[name] = &openapi3.SchemaRef{Value: schema}
	*schema = *d.structSchema(t)
	return openapi3.NewSchemaRef("#/components/schemas/"+name, schema)
}

func (d *Doc) structSchema(t reflect.Type) *openapi3.Schema {
	schema := openapi3.NewObjectSchema()
	schema.Properties = make(openapi3.Schemas)

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		tag := field.Tag.Get("json")
		if tag == "-" {
			continue
		}

		name := field.Name
		parts := strings.Split(tag, ",")
		if parts[0] != "" {
			name = parts[0]
		}

		ref := d.schemaFromType(field.Type)
		if ref.Ref == "" && ref.Value != nil {
			if doc := field.Tag.Get("doc"); doc != "" {
				ref.Value.Description = doc
			}
			if ex := field.Tag.Get("example"); ex != "" {
				ref.Value.Example = ex
			}
		}
		schema.Properties[name] = ref

		if !hasOption(parts[1:], "omitempty") {
			schema.Required = append(schema.Required, name)
		}
	}
	return schema
}

func hasOption(options []string, want string) bool {
	for _, option := range options {
		if option == want {
			return true
		}
	}
	return false
}
