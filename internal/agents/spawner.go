// Agent spawning. Server agents get stable ids (B1, B2, ...) so their
// durable progress survives restarts, gendered Spanish names, and a preset
// avatar matching the gender.
package agents

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/varelagames/aldea/internal/world"
)

// DefaultMoney is the starting balance for a freshly spawned agent.
const DefaultMoney = 400

// Spawner creates server agents deterministically from a seed.
type Spawner struct {
	rng *rand.Rand
}

// NewSpawner returns a spawner seeded for reproducible populations.
func NewSpawner(seed int64) *Spawner {
	return &Spawner{rng: rand.New(rand.NewSource(seed))}
}

// Spawn creates the i-th server agent (zero-based). The id is stable across
// restarts; everything else is drawn from the spawner's stream.
func (s *Spawner) Spawn(i int) *Player {
	id := fmt.Sprintf("B%d", i+1)

	female := s.rng.Float64() < 0.5
	var name, avatar, gender string
	if female {
		name = femaleNames[s.rng.Intn(len(femaleNames))]
		avatar = femaleAvatars[s.rng.Intn(len(femaleAvatars))]
		gender = "F"
	} else {
		name = maleNames[s.rng.Intn(len(maleNames))]
		avatar = maleAvatars[s.rng.Intn(len(maleAvatars))]
		gender = "M"
	}

	return &Player{
		ID:       id,
		Username: name,
		IsBot:    true,
		Gender:   gender,
		Avatar:   avatar,
		Money:    DefaultMoney,
		Speed:    100 + s.rng.Float64()*100,
		X:        s.rng.Float64() * world.Width,
		Y:        s.rng.Float64() * world.Height,
		Activity: ActIdle,
		Grid:     NewExploreGrid(),
	}
}

// MarkerInitial derives the map marker for an agent's rented house from its
// name, suffixing a counter when the same initial is already in use.
func MarkerInitial(name string, taken map[string]bool) string {
	initial := "A"
	if name != "" {
		initial = strings.ToUpper(name[:1])
	}
	if !taken[initial] {
		return initial
	}
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s%d", initial, n)
		if !taken[candidate] {
			return candidate
		}
	}
}

var maleNames = []string{
	"Mateo", "Santiago", "Sebastián", "Diego", "Nicolás", "Samuel",
	"Alejandro", "Daniel", "Gabriel", "Tomás", "Emiliano", "Joaquín",
	"Andrés", "Felipe", "Martín", "Lucas", "Benjamín", "Rodrigo",
}

var femaleNames = []string{
	"Sofía", "Valentina", "Isabela", "Camila", "Valeria", "Mariana",
	"Gabriela", "Daniela", "Lucía", "Victoria", "Ximena", "Catalina",
	"Renata", "Antonella", "Emilia", "Josefa", "Paula", "Florencia",
}

var maleAvatars = []string{
	"avatars/m1.png", "avatars/m2.png", "avatars/m3.png", "avatars/m4.png",
}

var femaleAvatars = []string{
	"avatars/f1.png", "avatars/f2.png", "avatars/f3.png", "avatars/f4.png",
}
