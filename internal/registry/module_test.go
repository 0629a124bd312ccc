package registry

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/templaudit/internal/types"
)

func module(path string, components ...types.ComponentInfo) *types.ModuleInfo {
	return &types.ModuleInfo{Path: path, Package: "ui", Components: components}
}

func TestModuleRegistry_AddGetEvict(t *testing.T) {
	registry := NewModuleRegistry(0)

	m := module("/project/ui/button.templ", types.ComponentInfo{Name: "Button"})
	registry.Add(m)

	got, ok := registry.Get("/project/ui/../ui/button.templ")
	require.True(t, ok)
	assert.Same(t, m, got)
	assert.Equal(t, 1, registry.Len())

	assert.True(t, registry.Evict("/project/ui/button.templ"))
	assert.False(t, registry.Evict("/project/ui/button.templ"))
	_, ok = registry.Get("/project/ui/button.templ")
	assert.False(t, ok)
}

func TestModuleRegistry_EvictLeavesOtherEntries(t *testing.T) {
	registry := NewModuleRegistry(8)
	registry.Add(module("/p/card.templ", types.ComponentInfo{Name: "Card", Dependencies: []string{"Body"}}))
	registry.Add(module("/p/body.templ", types.ComponentInfo{Name: "Body"}))

	registry.Evict("/p/card.templ")

	assert.Equal(t, []string{"/p/body.templ"}, registry.Paths())
}

func TestModuleRegistry_SizeBound(t *testing.T) {
	registry := NewModuleRegistry(2)
	for i := 0; i < 5; i++ {
		registry.Add(module(fmt.Sprintf("/p/m%d.templ", i)))
	}

	assert.Equal(t, 2, registry.Len())
	assert.Equal(t, []string{"/p/m3.templ", "/p/m4.templ"}, registry.Paths())
}

func TestModuleRegistry_Dependents(t *testing.T) {
	registry := NewModuleRegistry(8)
	registry.Add(module("/p/card.templ", types.ComponentInfo{Name: "Card", Dependencies: []string{"Body"}}))
	registry.Add(module("/p/page.templ", types.ComponentInfo{Name: "Page", Dependencies: []string{"Card", "Body"}}))
	registry.Add(module("/p/body.templ", types.ComponentInfo{Name: "Body"}))
	registry.Add(module("/other/x.templ", types.ComponentInfo{Name: "X", Dependencies: []string{"Body"}}))

	assert.Equal(t, []string{"/p/card.templ", "/p/page.templ"}, registry.Dependents("/p/body.templ"))
	assert.Empty(t, registry.Dependents("/p/page.templ"))
	assert.Nil(t, registry.Dependents("/p/missing.templ"))
}

func TestModuleRegistry_Watch(t *testing.T) {
	registry := NewModuleRegistry(4)
	events := registry.Watch()

	registry.Add(module("/p/a.templ"))
	registry.Add(module("/p/a.templ"))
	registry.Evict("/p/a.templ")

	for _, want := range []EventType{EventTypeAdded, EventTypeUpdated, EventTypeEvicted} {
		select {
		case event := <-events:
			assert.Equal(t, want, event.Type)
			assert.Equal(t, "/p/a.templ", event.Path)
		case <-time.After(time.Second):
			t.Fatalf("expected %s event", want)
		}
	}

	registry.UnWatch(events)
	_, open := <-events
	assert.False(t, open)
}

func TestModuleRegistry_DisplacesOldest(t *testing.T) {
	registry := NewModuleRegistry(2)
	events := registry.Watch()
	defer registry.UnWatch(events)

	registry.Add(module("/p/a.templ"))
	registry.Add(module("/p/b.templ"))
	registry.Add(module("/p/b.templ"))
	assert.Equal(t, 2, registry.Len())

	registry.Add(module("/p/c.templ"))
	assert.Equal(t, []string{"/p/b.templ", "/p/c.templ"}, registry.Paths())

	var got []string
	for range 5 {
		select {
		case event := <-events:
			got = append(got, event.Type.String()+" "+event.Path)
		case <-time.After(time.Second):
			t.Fatal("missing registry event")
		}
	}
	assert.Equal(t, []string{
		"added /p/a.templ",
		"added /p/b.templ",
		"updated /p/b.templ",
		"displaced /p/a.templ",
		"added /p/c.templ",
	}, got)
}
