package entities

import (
	"errors"

	"github.com/orbitalrush/grid/internal/config"
	"github.com/orbitalrush/grid/internal/physics"
)

// ErrOutOfEntities is returned by Store.New when the arena has no free
// slot and is already at config.MaxEntities.
var ErrOutOfEntities = errors.New("entities: arena is full")

type slot struct {
	entity     Entity
	generation uint32
	live       bool
}

// Store is the generational entity arena (§4.C). Slot 0 is reserved so
// that EntityID's zero value (Nil) never aliases a live entity. Store
// is not safe for concurrent use; the server loop owns it exclusively
// during a step.
type Store struct {
	slots    []slot
	freeList []uint32
}

// NewStore creates an empty arena with slot 0 reserved.
func NewStore() *Store {
	s := &Store{slots: make([]slot, 1, config.MaxEntities+1)}
	return s
}

// New allocates a fresh entity of the given kind, returning its ID.
// Fails closed with ErrOutOfEntities once config.MaxEntities live
// entities are allocated, rather than growing the arena unbounded.
func (s *Store) New(kind Kind) (EntityID, error) {
	if len(s.freeList) > 0 {
		index := s.freeList[len(s.freeList)-1]
		s.freeList = s.freeList[:len(s.freeList)-1]
		sl := &s.slots[index]
		sl.entity = Entity{Kind: kind}
		sl.live = true
		return EntityID{Index: index, Generation: sl.generation}, nil
	}

	if len(s.slots) > config.MaxEntities {
		return Nil, ErrOutOfEntities
	}

	index := uint32(len(s.slots))
	s.slots = append(s.slots, slot{entity: Entity{Kind: kind}, live: true})
	return EntityID{Index: index, Generation: 0}, nil
}

// NewAt (re)creates an entity at a specific EntityID, growing the arena
// and filling any gap with dead placeholder slots as needed. Used only
// by client-side snapshot reconstruction (rules.ApplySnapshot), where
// entities must keep the server's IDs rather than being freshly
// allocated, so that EntityID references embedded elsewhere in the
// same snapshot (ParentGrid, PlayerInside, ...) still resolve.
func (s *Store) NewAt(id EntityID) (EntityID, error) {
	if id.IsNil() {
		return Nil, ErrOutOfEntities
	}
	if int(id.Index) >= int(config.MaxEntities)+1 {
		return Nil, ErrOutOfEntities
	}
	for len(s.slots) <= int(id.Index) {
		s.slots = append(s.slots, slot{})
	}
	sl := &s.slots[id.Index]
	sl.entity = Entity{}
	sl.generation = id.Generation
	sl.live = true
	return id, nil
}

// Get resolves an EntityID to its entity, returning ok=false if the
// slot is free or its generation no longer matches (a stale reference
// across a Destroy).
func (s *Store) Get(id EntityID) (*Entity, bool) {
	if id.IsNil() || int(id.Index) >= len(s.slots) {
		return nil, false
	}
	sl := &s.slots[id.Index]
	if !sl.live || sl.generation != id.Generation {
		return nil, false
	}
	return &sl.entity, true
}

// DestroyFunc is invoked with the entity being freed, before its slot
// is recycled, so callers can release kind-specific resources (e.g. a
// Grid's physics body) that the arena itself does not own.
type DestroyFunc func(e *Entity)

// Destroy frees id's slot, bumping its generation so stale IDs fail
// Get. Idempotent: destroying an already-free or unknown ID is a
// no-op. If non-nil, onDestroy runs first with the entity's final
// state.
func (s *Store) Destroy(id EntityID, onDestroy DestroyFunc) {
	if id.IsNil() || int(id.Index) >= len(s.slots) {
		return
	}
	sl := &s.slots[id.Index]
	if !sl.live || sl.generation != id.Generation {
		return
	}
	if onDestroy != nil {
		onDestroy(&sl.entity)
	}
	sl.live = false
	sl.generation++
	sl.entity = Entity{}
	s.freeList = append(s.freeList, id.Index)
}

// ReleasePhysics is the common DestroyFunc for Grid/Missile/Orb
// entities that own a physics body directly, used as:
//
//	store.Destroy(id, entities.ReleasePhysics(world))
func ReleasePhysics(world *physics.World) DestroyFunc {
	return func(e *Entity) {
		if e.Body != physics.NilBody {
			world.DestroyBody(e.Body)
		}
	}
}

// Each calls fn for every live entity, in slot order. fn must not call
// New or Destroy on s; collect IDs and mutate afterward if needed.
func (s *Store) Each(fn func(id EntityID, e *Entity)) {
	for i := 1; i < len(s.slots); i++ {
		sl := &s.slots[i]
		if !sl.live {
			continue
		}
		fn(EntityID{Index: uint32(i), Generation: sl.generation}, &sl.entity)
	}
}

// EachKind calls fn for every live entity of the given kind.
func (s *Store) EachKind(kind Kind, fn func(id EntityID, e *Entity)) {
	s.Each(func(id EntityID, e *Entity) {
		if e.Kind == kind {
			fn(id, e)
		}
	})
}

// Count returns the number of live entities.
func (s *Store) Count() int {
	n := 0
	for i := 1; i < len(s.slots); i++ {
		if s.slots[i].live {
			n++
		}
	}
	return n
}
