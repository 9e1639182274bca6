package ledger

import (
	"github.com/fdg312/diet-hub/internal/storage"
)

// State is the ledger of one day as seen by the planners: Absent or Present.
type State interface {
	isState()
}

// Absent — документа дня ещё нет.
type Absent struct{}

// Present — документ дня существует.
type Present struct {
	Entries []storage.MealEntry
	Totals  storage.Macros
}

func (Absent) isState()  {}
func (Present) isState() {}

// StateOf converts a stored document (nil when the day does not exist).
func StateOf(doc *storage.DayDocument) State {
	if doc == nil {
		return Absent{}
	}
	return Present{
		Entries: append([]storage.MealEntry(nil), doc.Entries...),
		Totals:  doc.Totals,
	}
}

// Plan is the outcome of a planner: the next state and whether anything changed.
// Once a day exists, Next.Totals is the in-order sum of Next.Entries.
type Plan struct {
	Next    Present
	Changed bool
}

// PlanAdd inserts entry with set-union semantics by id.
// Same id with an identical value is a no-op; a different value is ErrDuplicateEntry.
func PlanAdd(state State, entry storage.MealEntry) (Plan, error) {
	switch st := state.(type) {
	case Absent:
		return Plan{
			Next: Present{
				Entries: []storage.MealEntry{entry},
				Totals:  entry.Macros,
			},
			Changed: true,
		}, nil
	case Present:
		if idx := indexOf(st.Entries, entry.ID); idx >= 0 {
			if st.Entries[idx] == entry {
				return Plan{Next: st}, nil
			}
			return Plan{}, ErrDuplicateEntry
		}
		st.Entries = append(st.Entries, entry)
		st.Totals = sumMacros(st.Entries)
		return Plan{Next: st, Changed: true}, nil
	default:
		panic("ledger: unknown state")
	}
}

// PlanRemove drops the entry with id.
// A missing id is ErrEntryNotFound when strict, otherwise a no-op.
func PlanRemove(state State, id string, strict bool) (Plan, error) {
	switch st := state.(type) {
	case Absent:
		if strict {
			return Plan{}, ErrEntryNotFound
		}
		return Plan{}, nil
	case Present:
		idx := indexOf(st.Entries, id)
		if idx < 0 {
			if strict {
				return Plan{}, ErrEntryNotFound
			}
			return Plan{Next: st}, nil
		}
		st.Entries = append(st.Entries[:idx:idx], st.Entries[idx+1:]...)
		st.Totals = sumMacros(st.Entries)
		return Plan{Next: st, Changed: true}, nil
	default:
		panic("ledger: unknown state")
	}
}

// PlanReplace swaps the entry with id for entry, keeping id and position.
// A missing id is ErrEntryNotFound when strict, otherwise entry is added.
func PlanReplace(state State, id string, entry storage.MealEntry, strict bool) (Plan, error) {
	entry.ID = id

	st, ok := state.(Present)
	if !ok {
		if strict {
			return Plan{}, ErrEntryNotFound
		}
		return PlanAdd(state, entry)
	}

	idx := indexOf(st.Entries, id)
	if idx < 0 {
		if strict {
			return Plan{}, ErrEntryNotFound
		}
		return PlanAdd(st, entry)
	}

	old := st.Entries[idx]
	if old == entry {
		return Plan{Next: st}, nil
	}

	st.Entries = append([]storage.MealEntry(nil), st.Entries...)
	st.Entries[idx] = entry
	st.Totals = sumMacros(st.Entries)
	return Plan{Next: st, Changed: true}, nil
}

func indexOf(entries []storage.MealEntry, id string) int {
	for i, e := range entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}

// sumMacros складывает макросы записей в порядке списка.
func sumMacros(entries []storage.MealEntry) storage.Macros {
	var total storage.Macros
	for _, e := range entries {
		total = total.Add(e.Macros)
	}
	return total
}
