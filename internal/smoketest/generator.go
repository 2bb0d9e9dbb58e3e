package smoketest

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
)

// Generated boxer ranges. Weight spans every class from flyweight to heavyweight.
const (
	minWeight, maxWeight = 125, 260
	minHeight, maxHeight = 160, 205
	minAge, maxAge       = 18, 40
	minReachRatio        = 0.95
	maxReachRatio        = 1.08
)

// Generator produces valid boxers with unique names.
type Generator struct {
	faker *gofakeit.Faker
	run   string
}

// NewGenerator creates a generator. A zero seed picks a random one.
func NewGenerator(seed uint64) *Generator {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &Generator{faker: gofakeit.New(seed), run: uuid.NewString()[:8]}
}

// Boxers returns n boxers. Names carry a per-generator run tag and index so
// repeated runs against the same service do not collide; the seed fixes
// everything else.
func (g *Generator) Boxers(n int) []Boxer {
	out := make([]Boxer, 0, n)
	for i := range n {
		height := g.faker.Number(minHeight, maxHeight)
		reach := float64(height) * g.faker.Float64Range(minReachRatio, maxReachRatio)
		out = append(out, Boxer{
			Name:   fmt.Sprintf("%s %s-%d", g.faker.Name(), g.run, i+1),
			Weight: g.faker.Number(minWeight, maxWeight),
			Height: height,
			Reach:  math.Round(reach*10) / 10,
			Age:    g.faker.Number(minAge, maxAge),
		})
	}
	return out
}

// Pair picks two distinct indexes below n.
func (g *Generator) Pair(n int) (int, int) {
	a := g.faker.Number(0, n-1)
	b := g.faker.Number(0, n-2)
	if b >= a {
		b++
	}
	return a, b
}

// Key returns a fresh idempotency key. Keys stay unique across seeded runs.
func (g *Generator) Key() string {
	return uuid.NewString()
}
