package apidoc

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

type RouteBuilder struct {
	doc       *Doc
	method    string
	path      string
	operation *openapi3.Operation
	form      *openapi3.Schema
}

// FormField describes one application/x-www-form-urlencoded body field.
type FormField struct {
	Name        string
	Description string
	Required    bool
	Format      string
}

func (rb *RouteBuilder) extractPathParams() {
	for _, part := range strings.Split(rb.path, "/") {
		if !strings.HasPrefix(part, ":") {
			continue
		}
		rb.param(strings.TrimPrefix(part, ":"), "path").Required = true
	}
}

func (rb *RouteBuilder) param(name, in string) *openapi3.Parameter {
	for _, p := range rb.operation.Parameters {
		if p.Value != nil && p.Value.Name == name && p.Value.In == in {
			return p.Value
		}
	}
	param := &openapi3.Parameter{
		Name:   name,
		In:     in,
		Schema: &openapi3.SchemaRef{Value: openapi3.NewStringSchema()},
	}
	rb.operation.Parameters = append(rb.operation.Parameters, &openapi3.ParameterRef{Value: param})
	return param
}

func (rb *RouteBuilder) Summary(summary string) *RouteBuilder {
	rb.operation.Summary = summary
	return rb
}

func (rb *RouteBuilder) Description(description string) *RouteBuilder {
	rb.operation.Description = description
	return rb
}

func (rb *RouteBuilder) Tags(tags ...string) *RouteBuilder {
	rb.operation.Tags = append(rb.operation.Tags, tags...)
	return rb
}

func (rb *RouteBuilder) PathParam(name, description string) *RouteBuilder {
	param := rb.param(name, "path")
	param.Required = true
	param.Description = description
	return rb
}

// PathEnum documents a path parameter and restricts it to values.
func (rb *RouteBuilder) PathEnum(name, description string, values ...string) *RouteBuilder {
	param := rb.param(name, "path")
	param.Required = true
	param.Description = description
	for _, v := range values {
		param.Schema.Value.Enum = append(param.Schema.Value.Enum, v)
	}
	return rb
}

func (rb *RouteBuilder) QueryParam(name, description string) *RouteBuilder {
	rb.param(name, "query").Description = description
	return rb
}

func (rb *RouteBuilder) Form(fields ...FormField) *RouteBuilder {
	if rb.form == nil {
		rb.form = openapi3.NewObjectSchema()
		rb.form.Properties = make(openapi3.Schemas)
	}
	for _, f := range fields {
		schema := openapi3.NewStringSchema()
		schema.Description = f.Description
		schema.Format = f.Format
		rb.form.Properties[f.Name] = &openapi3.SchemaRef{Value: schema}
		if f.Required {
			rb.form.Required = append(rb.form.Required, f.Name)
		}
	}
	return rb
}

func (rb *RouteBuilder) Response(statusCode int, example any, description string) *RouteBuilder {
	response := openapi3.NewResponse().WithDescription(description)
	if example != nil {
		response.Content = openapi3.NewContentWithJSONSchemaRef(rb.doc.schemaFor(example))
	}
	rb.operation.Responses.Set(strconv.Itoa(statusCode), &openapi3.ResponseRef{Value: response})
	return rb
}

// Redirect documents a 303 response whose Location carries the outcome.
func (rb *RouteBuilder) Redirect(description string) *RouteBuilder {
	response := openapi3.NewResponse().WithDescription(description)
	response.Headers = openapi3.Headers{
		"Location": &openapi3.HeaderRef{Value: &openapi3.Header{
			Parameter: openapi3.Parameter{
				Schema: &openapi3.SchemaRef{Value: openapi3.NewStringSchema()},
			},
		}},
	}
	rb.operation.Responses.Set(strconv.Itoa(http.StatusSeeOther), &openapi3.ResponseRef{Value: response})
	return rb
}

func (rb *RouteBuilder) Security(schemes ...string) *RouteBuilder {
	if rb.operation.Security == nil {
		rb.operation.Security = &openapi3.SecurityRequirements{}
	}
	for _, scheme := range schemes {
		*rb.operation.Security = append(*rb.operation.Security, openapi3.SecurityRequirement{scheme: []string{}})
	}
	return rb
}

func (rb *RouteBuilder) Build() {
	if rb.form != nil {
		rb.operation.RequestBody = &openapi3.RequestBodyRef{
			Value: &openapi3.RequestBody{
				Required: len(rb.form.Required) > 0,
				Content: openapi3.Content{
					"application/x-www-form-urlencoded": &openapi3.MediaType{
						Schema: &openapi3.SchemaRef{Value: rb.form},
					},
				},
			},
		}
	}
	rb.doc.addOperation(rb.method, rb.path, rb.operation)
}
