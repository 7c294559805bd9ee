package decompose

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func items(specs ...WorkItem) []WorkItem { return specs }

func TestLayerNoDependencies(t *testing.T) {
	waves := Layer(items(
		WorkItem{ID: "a"},
		WorkItem{ID: "b"},
		WorkItem{ID: "c"},
	), nil)
	assert.Equal(t, map[string]int{"a": 1, "b": 1, "c": 1}, waves)
}

func TestLayerLongestPath(t *testing.T) {
	waves := Layer(items(
		WorkItem{ID: "a"},
		WorkItem{ID: "b", DependsOn: []string{"a"}},
		WorkItem{ID: "c", DependsOn: []string{"a"}},
		WorkItem{ID: "d", DependsOn: []string{"b", "c"}},
		WorkItem{ID: "e", DependsOn: []string{"a", "d"}},
	), nil)
	assert.Equal(t, 1, waves["a"])
	assert.Equal(t, 2, waves["b"])
	assert.Equal(t, 2, waves["c"])
	assert.Equal(t, 3, waves["d"])
	assert.Equal(t, 4, waves["e"])
}

func TestLayerHonorsFloors(t *testing.T) {
	waves := Layer(items(
		WorkItem{ID: "a"},
		WorkItem{ID: "b", DependsOn: []string{"a"}},
	), map[string]int{"a": 3})
	assert.Equal(t, 3, waves["a"])
	assert.Equal(t, 4, waves["b"])
}

func TestCapWavesSplitsOversizedWave(t *testing.T) {
	waves := CapWaves(items(
		WorkItem{ID: "a"},
		WorkItem{ID: "b"},
		WorkItem{ID: "c"},
		WorkItem{ID: "d"},
	), 2)
	counts := map[int]int{}
	for _, w := range waves {
		counts[w]++
	}
	assert.Equal(t, map[int]int{1: 2, 2: 2}, counts)
	// Lowest emission order stays in the earlier wave.
	assert.Equal(t, 1, waves["a"])
	assert.Equal(t, 1, waves["b"])
	assert.Equal(t, 2, waves["c"])
	assert.Equal(t, 2, waves["d"])
}

func TestCapWavesPushesDependentsAlong(t *testing.T) {
	waves := CapWaves(items(
		WorkItem{ID: "a"},
		WorkItem{ID: "b"},
		WorkItem{ID: "c"},
		WorkItem{ID: "d", DependsOn: []string{"c"}},
	), 2)
	// c is pushed out of wave 1, so d must follow past c's new wave.
	assert.Equal(t, 2, waves["c"])
	assert.Equal(t, 3, waves["d"])
}

func TestCapWavesIteratesUntilStable(t *testing.T) {
	// Six roots with parallelism 2 need three waves.
	waves := CapWaves(items(
		WorkItem{ID: "a"},
		WorkItem{ID: "b"},
		WorkItem{ID: "c"},
		WorkItem{ID: "d"},
		WorkItem{ID: "e"},
		WorkItem{ID: "f"},
	), 2)
	counts := map[int]int{}
	for _, w := range waves {
		counts[w]++
	}
	assert.Equal(t, map[int]int{1: 2, 2: 2, 3: 2}, counts)
}

func TestCapWavesRespectsDependencyOrder(t *testing.T) {
	specs := items(
		WorkItem{ID: "a"},
		WorkItem{ID: "b", DependsOn: []string{"a"}},
		WorkItem{ID: "c", DependsOn: []string{"a"}},
		WorkItem{ID: "d", DependsOn: []string{"a"}},
		WorkItem{ID: "e", DependsOn: []string{"b", "c", "d"}},
	)
	waves := CapWaves(specs, 2)
	for _, item := range specs {
		for _, dep := range item.DependsOn {
			assert.Greater(t, waves[item.ID], waves[dep],
				"%s must come after %s", item.ID, dep)
		}
	}
	counts := map[int]int{}
	for _, w := range waves {
		counts[w]++
	}
	for w, n := range counts {
		assert.LessOrEqual(t, n, 2, "wave %d overflows", w)
	}
}

func TestCapWavesSingleItem(t *testing.T) {
	waves := CapWaves(items(WorkItem{ID: "only"}), 4)
	assert.Equal(t, map[string]int{"only": 1}, waves)
}
