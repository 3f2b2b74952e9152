package core_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codesync/collab/internal/core"
	"github.com/codesync/collab/internal/domain"
)

func TestRegistryCreateAndRemove(t *testing.T) {
	reg := core.NewRegistry()

	a := reg.GetOrCreate("r1")
	assert.Same(t, a, reg.GetOrCreate("r1"))
	assert.Equal(t, 1, reg.Len())

	assert.True(t, reg.RemoveIfEmpty("r1"))
	assert.False(t, reg.RemoveIfEmpty("r1"))
	_, ok := reg.Get("r1")
	assert.False(t, ok)
}

func TestRegistryUpdate(t *testing.T) {
	reg := core.NewRegistry()

	called := false
	assert.False(t, reg.Update("r1", false, func(*core.Room) { called = true }))
	assert.False(t, called, "unknown room without create")
	assert.Equal(t, 0, reg.Len())

	assert.True(t, reg.Update("r1", true, func(room *core.Room) {
		room.Put(member("u1", "A", domain.RoleGuest, nil))
	}))
	assert.Equal(t, 1, reg.Len())

	assert.True(t, reg.Update("r1", false, func(room *core.Room) {
		room.Remove("u1")
	}))
	assert.Equal(t, 0, reg.Len(), "room emptied inside Update is dropped")

	// a create that leaves the room empty does not leak it either
	assert.True(t, reg.Update("r2", true, func(*core.Room) {}))
	assert.Equal(t, 0, reg.Len())
}

func TestRegistryViewClosedRoom(t *testing.T) {
	reg := core.NewRegistry()
	room := reg.GetOrCreate("r1")
	require.True(t, reg.RemoveIfEmpty("r1"))

	assert.False(t, reg.View("r1", func(*core.Room) { t.Fatal("view of removed room") }))
	assert.Equal(t, domain.RoomID("r1"), room.ID())
}

func TestRegistryListSorted(t *testing.T) {
	reg := core.NewRegistry()
	for _, id := range []domain.RoomID{"b", "c", "a"} {
		reg.Update(id, true, func(room *core.Room) {
			room.Put(member("u", "U", domain.RoleGuest, nil))
		})
	}
	list := reg.List()
	require.Len(t, list, 3)
	assert.Equal(t, []domain.RoomID{"a", "b", "c"}, []domain.RoomID{list[0].ID, list[1].ID, list[2].ID})
}

func TestRegistryConcurrentJoinLeave(t *testing.T) {
	reg := core.NewRegistry()
	rooms := []domain.RoomID{"r1", "r2", "r3"}

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			uid := domain.UserID(fmt.Sprintf("u%d", i))
			for j := 0; j < 200; j++ {
				id := rooms[(i+j)%len(rooms)]
				reg.Update(id, true, func(room *core.Room) {
					room.Put(member(string(uid), "x", domain.RoleGuest, nil))
				})
				reg.Update(id, false, func(room *core.Room) {
					room.Remove(uid)
				})
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 0, reg.Len(), "no empty room survives")
	assert.Empty(t, reg.List())
}
