// Package seed generates fake records and posts them to the records API.
package seed

import (
	"strconv"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/repokit/testrepo/pkg/records"
)

var bloodGroups = []string{"A+", "A-", "B+", "B-", "AB+", "AB-", "O+", "O-"}

// Generator generates fake records.
type Generator struct {
	faker *gofakeit.Faker
}

// NewGenerator returns a generator seeded with seed. A zero seed picks a
// random one.
func NewGenerator(seed int64) *Generator {
	return &Generator{faker: gofakeit.New(seed)}
}

// Words returns a sentence of n words, n drawn from [minWords, maxWords],
// without trailing punctuation.
func (g *Generator) Words(minWords, maxWords int) string {
	if maxWords < minWords {
		maxWords = minWords
	}
	n := g.faker.Number(minWords, maxWords)
	if n <= 0 {
		return ""
	}

	raw := strings.Trim(g.faker.Sentence(n), ".")
	words := strings.Fields(raw)
	// Sentences of n words are not guaranteed to tokenize to n fields.
	for len(words) < n {
		words = append(words, g.faker.Word())
	}
	return strings.Join(words[:n], " ")
}

// Category returns one of records.Categories.
func (g *Generator) Category() records.Category {
	return records.Categories[g.faker.Number(0, len(records.Categories)-1)]
}

// Job returns a fake job title.
func (g *Generator) Job() string {
	return g.faker.JobTitle()
}

// Profile returns a fake author profile.
func (g *Generator) Profile() records.Profile {
	person := g.faker.Person()
	addr := g.faker.Address()

	sex := "F"
	if person.Gender == "male" {
		sex = "M"
	}

	birth := g.faker.DateRange(
		time.Date(1930, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2005, 12, 31, 0, 0, 0, 0, time.UTC),
	)

	websites := make([]string, g.faker.Number(1, 3))
	for i := range websites {
		websites[i] = g.faker.URL()
	}

	return records.Profile{
		Name:      person.FirstName + " " + person.LastName,
		Sex:       sex,
		Job:       g.Job(),
		Company:   g.faker.Company(),
		SSN:       person.SSN,
		Residence: g.faker.Address().Address,
		CurrentLocation: [2]string{
			formatCoordinate(g.faker.Latitude()),
			formatCoordinate(g.faker.Longitude()),
		},
		BloodGroup: g.faker.RandomString(bloodGroups),
		Website:    websites,
		Username:   g.faker.Username(),
		Address:    addr.Address,
		Mail:       g.faker.Email(),
		Birthdate:  birth.Format("2006-01-02"),
	}
}

// Batch returns count records. Author jobs are drawn from a pool of
// max(1, count/5) jobs.
func (g *Generator) Batch(count int, minWords, maxWords int) []records.Record {
	if count <= 0 {
		return nil
	}

	jobs := make([]string, max(1, count/5))
	for i := range jobs {
		jobs[i] = g.Job()
	}

	recs := make([]records.Record, 0, count)
	for range count {
		profile := g.Profile()
		profile.Job = jobs[g.faker.Number(0, len(jobs)-1)]
		recs = append(recs, records.Record{
			Title:    g.Words(minWords, maxWords),
			Author:   profile,
			Category: g.Category(),
		})
	}
	return recs
}

func formatCoordinate(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
