package demand

import "sort"

// Route assigns each observed switch state to every actuator bound to that
// switch. Switches without bindings are ignored.
//
// Switches are visited in ascending id order. An actuator bound to two
// switches that disagree takes the state of the higher switch id; see
// Conflicts for detecting such bindings.
func Route(states SwitchStates, bindings SwitchMap) Batch {
	batch := make(Batch)
	for _, sw := range sortedKeys(states) {
		state := states[sw]
		for _, id := range bindings[sw] {
			batch[id] = state
		}
	}
	return batch
}

// Conflicts returns actuators bound to more than one switch, mapped to the
// switch ids that drive them (ascending).
func Conflicts(bindings SwitchMap) map[int][]int {
	drivers := make(map[int][]int)
	for _, sw := range sortedKeys(bindings) {
		for _, id := range bindings[sw] {
			drivers[id] = append(drivers[id], sw)
		}
	}
	out := make(map[int][]int)
	for id, sws := range drivers {
		if len(sws) > 1 {
			out[id] = sws
		}
	}
	return out
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
