package guide

// Vector clock mapping an actor to the index (1-based) of its latest transition that happened before
type vclock map[int]int

func (c vclock) copy() vclock {
	out := make(vclock, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// join sets c to the pointwise maximum of c and o
func (c vclock) join(o vclock) {
	for k, v := range o {
		if v > c[k] {
			c[k] = v
		}
	}
}

// Reports whether the transition at index i executed by actor is included in c
func (c vclock) includes(actor, i int) bool {
	return c[actor] >= i+1
}
