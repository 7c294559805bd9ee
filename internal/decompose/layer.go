package decompose

import "sort"

// Layer assigns wave numbers by longest-path layering: items without
// dependencies get wave 1, every other item gets one more than its
// deepest dependency. floors, when non-nil, gives per-id minimum waves.
// Items must be in emission order with dependencies referring to earlier
// items only.
func Layer(items []WorkItem, floors map[string]int) map[string]int {
	waves := make(map[string]int, len(items))
	for _, item := range items {
		wave := 1
		if f := floors[item.ID]; f > wave {
			wave = f
		}
		for _, dep := range item.DependsOn {
			if w := waves[dep] + 1; w > wave {
				wave = w
			}
		}
		waves[item.ID] = wave
	}
	return waves
}

// CapWaves re-layers until no wave holds more than maxParallelism items.
// When a wave overflows, the items with the lowest emission order stay and
// the surplus is pushed to the next wave, then the layering is re-run so
// dependents move along. The result preserves dependency order: a
// dependent is always in a strictly later wave than its dependencies.
func CapWaves(items []WorkItem, maxParallelism int) map[string]int {
	waves := Layer(items, nil)
	if maxParallelism < 1 {
		return waves
	}

	order := make(map[string]int, len(items))
	for i, item := range items {
		order[item.ID] = i
	}

	floors := make(map[string]int)
	for {
		overflow, wave := findOverflow(items, waves, maxParallelism)
		if overflow == nil {
			return waves
		}
		// Keep the lowest-order items, push the rest one wave out.
		sort.Slice(overflow, func(i, j int) bool {
			return order[overflow[i]] < order[overflow[j]]
		})
		for _, id := range overflow[maxParallelism:] {
			floors[id] = wave + 1
		}
		waves = Layer(items, floors)
	}
}

// findOverflow returns the ids of the lowest overflowing wave, or nil.
func findOverflow(items []WorkItem, waves map[string]int, maxParallelism int) ([]string, int) {
	byWave := make(map[int][]string)
	maxWave := 0
	for _, item := range items {
		w := waves[item.ID]
		byWave[w] = append(byWave[w], item.ID)
		if w > maxWave {
			maxWave = w
		}
	}
	for w := 1; w <= maxWave; w++ {
		if len(byWave[w]) > maxParallelism {
			return byWave[w], w
		}
	}
	return nil, 0
}
