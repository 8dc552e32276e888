// Package records holds the configuration of the records REST endpoint and
// its search facets, filters and sort options.
package records

import (
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const (
	// EndpointKey is the resource key of the records endpoint.
	EndpointKey = "testrepo-records"

	// IndexName is the search index records are written to.
	IndexName = "testrepo-record"

	// MediaTypeJSON is the default record media type.
	MediaTypeJSON = "application/json"

	// PIDValuePlaceholder is the path wildcard of item routes.
	PIDValuePlaceholder = "{pid_value}"
)

// Endpoint is the REST registration of a record resource.
type Endpoint struct {
	PIDType    string
	PIDMinter  string
	PIDFetcher string

	// DefaultEndpointPrefix mounts the routes under the API prefix.
	DefaultEndpointPrefix bool

	SearchIndex string

	RecordSerializers map[string]RecordSerializer
	SearchSerializers map[string]SearchSerializer
	RecordLoaders     map[string]RecordLoader

	// ListRoute is the collection path, ItemRoute the path of a single
	// record. ItemRoute contains PIDValuePlaceholder.
	ListRoute string
	ItemRoute string

	DefaultMediaType string
	MaxResultWindow  int

	ReadPermission   Permission
	CreatePermission Permission
	UpdatePermission Permission
	DeletePermission Permission
}

// RESTEndpoints are the record endpoints served by the API.
var RESTEndpoints = map[string]*Endpoint{
	EndpointKey: {
		PIDType:               "recid",
		PIDMinter:             "recid",
		PIDFetcher:            "recid",
		DefaultEndpointPrefix: true,
		SearchIndex:           IndexName,
		RecordSerializers: map[string]RecordSerializer{
			MediaTypeJSON: JSONV1RecordSerializer,
		},
		SearchSerializers: map[string]SearchSerializer{
			MediaTypeJSON: JSONV1SearchSerializer,
		},
		RecordLoaders: map[string]RecordLoader{
			MediaTypeJSON: JSONLoader,
		},
		ListRoute:        "/records/",
		ItemRoute:        "/records/" + PIDValuePlaceholder,
		DefaultMediaType: MediaTypeJSON,
		MaxResultWindow:  10000,
		ReadPermission:   AllowAll,
		CreatePermission: AllowAll,
		UpdatePermission: AllowAll,
		DeletePermission: AllowAll,
	},
}

// Validate validates the endpoint registration.
func (e Endpoint) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.PIDType, validation.Required),
		validation.Field(&e.PIDMinter, validation.Required),
		validation.Field(&e.PIDFetcher, validation.Required),
		validation.Field(&e.SearchIndex, validation.Required),
		validation.Field(&e.ListRoute, validation.Required,
			validation.By(hasPrefix("/"))),
		validation.Field(&e.ItemRoute, validation.Required,
			validation.By(hasPrefix("/")),
			validation.By(containsPIDPlaceholder)),
		validation.Field(&e.RecordSerializers, validation.Required,
			validation.Map(validation.Key(e.DefaultMediaType, validation.Required)).AllowExtraKeys()),
		validation.Field(&e.SearchSerializers, validation.Required,
			validation.Map(validation.Key(e.DefaultMediaType, validation.Required)).AllowExtraKeys()),
		validation.Field(&e.RecordLoaders, validation.Required),
		validation.Field(&e.DefaultMediaType, validation.Required),
		validation.Field(&e.MaxResultWindow, validation.Required, validation.Min(1)),
	)
}

// Permissions returns the read, create, update and delete permissions with
// unset entries defaulting to AllowAll.
func (e Endpoint) Permissions() (read, create, update, del Permission) {
	pick := func(p Permission) Permission {
		if p == nil {
			return AllowAll
		}
		return p
	}
	return pick(e.ReadPermission), pick(e.CreatePermission),
		pick(e.UpdatePermission), pick(e.DeletePermission)
}

func hasPrefix(prefix string) validation.RuleFunc {
	return func(value interface{}) error {
		s, _ := value.(string)
		if !strings.HasPrefix(s, prefix) {
			return errors.New("must start with " + prefix)
		}
		return nil
	}
}

func containsPIDPlaceholder(value interface{}) error {
	s, _ := value.(string)
	if !strings.Contains(s, PIDValuePlaceholder) {
		return errors.New("must contain " + PIDValuePlaceholder)
	}
	return nil
}
