package records

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Category is the kind of a record.
type Category string

const (
	CategoryArticle      Category = "Article"
	CategoryBook         Category = "Book"
	CategoryResearchData Category = "Research Data"
)

// Categories is the fixed set of record categories.
var Categories = []Category{
	CategoryArticle,
	CategoryBook,
	CategoryResearchData,
}

// Valid returns true if c is one of Categories.
func (c Category) Valid() bool {
	for _, v := range Categories {
		if c == v {
			return true
		}
	}
	return false
}

// Profile is an author profile.
type Profile struct {
	Name            string    `json:"name"`
	Sex             string    `json:"sex,omitempty"`
	Job             string    `json:"job,omitempty"`
	Company         string    `json:"company,omitempty"`
	SSN             string    `json:"ssn,omitempty"`
	Residence       string    `json:"residence,omitempty"`
	CurrentLocation [2]string `json:"current_location"`
	BloodGroup      string    `json:"blood_group,omitempty"`
	Website         []string  `json:"website,omitempty"`
	Username        string    `json:"username,omitempty"`
	Address         string    `json:"address,omitempty"`
	Mail            string    `json:"mail,omitempty"`
	Birthdate       string    `json:"birthdate,omitempty"`
}

// Record is the metadata of a record as submitted to the records endpoint.
type Record struct {
	Title    string   `json:"title"`
	Author   Profile  `json:"author"`
	Category Category `json:"category"`
}

// Validate validates the record.
func (r Record) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required),
		validation.Field(&r.Author),
		validation.Field(&r.Category, validation.Required,
			validation.In(CategoryArticle, CategoryBook, CategoryResearchData)),
	)
}

// Validate validates the author profile.
func (p Profile) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Name, validation.Required),
		validation.Field(&p.Sex, validation.In("M", "F")),
		validation.Field(&p.Birthdate, validation.Date("2006-01-02")),
	)
}
