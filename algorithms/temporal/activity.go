package temporal

// Activity marks the samples whose envelope exceeds both the local
// threshold and the global floor.
func Activity(envelope, local []float64, floor float64) []bool {
	active := make([]bool, len(envelope))
	for i, v := range envelope {
		active[i] = v > floor && (i >= len(local) || v > local[i])
	}
	return active
}

// Edges returns the transition positions of an activity indicator. A rising
// edge at i means sample i is inactive and i+1 active; a falling edge at i
// means sample i is active and i+1 inactive.
func Edges(active []bool) (rising, falling []int) {
	rising = []int{}
	falling = []int{}
	for i := 0; i+1 < len(active); i++ {
		switch {
		case !active[i] && active[i+1]:
			rising = append(rising, i)
		case active[i] && !active[i+1]:
			falling = append(falling, i)
		}
	}
	return rising, falling
}
