package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/fdg312/diet-hub/internal/ai"
	"github.com/fdg312/diet-hub/internal/storage"
	"github.com/fdg312/diet-hub/internal/storage/memory"
	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
)

const testDay = "2025-03-10"

type testEnv struct {
	service  *Service
	ledger   *memory.LedgerMemoryStorage
	profiles *memory.ProfilesMemoryStorage
}

func newTestEnv(t *testing.T, opts Options) testEnv {
	t.Helper()

	ledgerStore := memory.NewLedgerMemoryStorage()
	profiles := memory.NewProfilesMemoryStorage()
	svc := NewService(ledgerStore, profiles, ai.NewMockProvider(), opts, zap.NewNop())
	svc.now = func() time.Time { return time.Date(2025, 3, 10, 12, 30, 0, 0, time.UTC) }

	var mu sync.Mutex
	next := 0
	svc.newID = func() string {
		mu.Lock()
		defer mu.Unlock()
		next++
		return fmt.Sprintf("id-%d", next)
	}

	return testEnv{service: svc, ledger: ledgerStore, profiles: profiles}
}

func entryInput(name string, cal, p, c, f float64) EntryInput {
	return EntryInput{
		Name: name,
		Time: "08:00",
		Macros: MacrosInput{
			Calories: Number(cal),
			Protein:  Number(p),
			Carbs:    Number(c),
			Fat:      Number(f),
		},
	}
}

func addReq(in EntryInput) EntryRequest {
	return EntryRequest{DayQuery: DayQuery{Date: testDay}, Entry: in}
}

func assertSumInvariant(t *testing.T, view *DayView) {
	t.Helper()
	if diff := cmp.Diff(sumEntries(view.Entries), view.Totals); diff != "" {
		t.Fatalf("totals differ from sum of entries (-sum +totals):\n%s", diff)
	}
}

func TestService_ExampleBothModes(t *testing.T) {
	for _, mode := range []string{WriteModeAtomic, WriteModeSequential} {
		t.Run(mode, func(t *testing.T) {
			env := newTestEnv(t, Options{WriteMode: mode})
			ctx := context.Background()

			first, err := env.service.AddEntry(ctx, "userA", addReq(entryInput("Омлет", 500, 30, 50, 10)))
			if err != nil {
				t.Fatalf("add first: %v", err)
			}
			if first.Totals != (storage.Macros{Calories: 500, Protein: 30, Carbs: 50, Fat: 10}) {
				t.Fatalf("first insert totals: %+v", first.Totals)
			}

			view, err := env.service.AddEntry(ctx, "userA", addReq(entryInput("Салат", 300, 20, 20, 5)))
			if err != nil {
				t.Fatalf("add second: %v", err)
			}
			if diff := cmp.Diff(storage.Macros{Calories: 800, Protein: 50, Carbs: 70, Fat: 15}, view.Totals); diff != "" {
				t.Fatalf("totals after two adds (-want +got):\n%s", diff)
			}

			view, err = env.service.RemoveEntry(ctx, "userA", "id-1", DayQuery{Date: testDay})
			if err != nil {
				t.Fatalf("remove: %v", err)
			}
			if diff := cmp.Diff(storage.Macros{Calories: 300, Protein: 20, Carbs: 20, Fat: 5}, view.Totals); diff != "" {
				t.Fatalf("totals after remove (-want +got):\n%s", diff)
			}
			if len(view.Entries) != 1 || view.Entries[0].ID != "id-2" {
				t.Fatalf("unexpected entries after remove: %+v", view.Entries)
			}
			assertSumInvariant(t, view)
		})
	}
}

func TestService_ReplaceBothModes(t *testing.T) {
	// обе записи в 08:00, поэтому порядок в DayView совпадает с порядком хранения
	tests := []struct {
		mode      string
		wantOrder []string
	}{
		{mode: WriteModeAtomic, wantOrder: []string{"id-1", "id-2"}},
		// remove + add дописывает замену в конец списка
		{mode: WriteModeSequential, wantOrder: []string{"id-2", "id-1"}},
	}

	for _, tt := range tests {
		mode := tt.mode
		t.Run(mode, func(t *testing.T) {
			env := newTestEnv(t, Options{WriteMode: mode})
			ctx := context.Background()

			if _, err := env.service.AddEntry(ctx, "userA", addReq(entryInput("Каша", 200, 6, 35, 4))); err != nil {
				t.Fatal(err)
			}
			before, err := env.service.AddEntry(ctx, "userA", addReq(entryInput("Кофе", 50, 2, 5, 2)))
			if err != nil {
				t.Fatal(err)
			}

			view, err := env.service.ReplaceEntry(ctx, "userA", "id-1", addReq(entryInput("Каша с бананом", 305, 7, 62, 4)))
			if err != nil {
				t.Fatalf("replace: %v", err)
			}

			if len(view.Entries) != 2 {
				t.Fatalf("expected 2 entries, got %d", len(view.Entries))
			}
			wantDelta := storage.Macros{Calories: 105, Protein: 1, Carbs: 27, Fat: 0}
			if diff := cmp.Diff(before.Totals.Add(wantDelta), view.Totals); diff != "" {
				t.Fatalf("totals should change by new-old (-want +got):\n%s", diff)
			}
			assertSumInvariant(t, view)

			count := 0
			for _, e := range view.Entries {
				if e.ID == "id-1" {
					count++
					if e.Name != "Каша с бананом" {
						t.Fatalf("entry not replaced: %+v", e)
					}
				}
			}
			if count != 1 {
				t.Fatalf("expected exactly one entry with id-1, got %d", count)
			}

			order := make([]string, 0, len(view.Entries))
			for _, e := range view.Entries {
				order = append(order, e.ID)
			}
			if diff := cmp.Diff(tt.wantOrder, order); diff != "" {
				t.Fatalf("entry order after replace (-want +got):\n%s", diff)
			}
		})
	}
}

func TestService_AtomicReplaceKeepsPosition(t *testing.T) {
	env := newTestEnv(t, Options{})
	ctx := context.Background()

	for _, name := range []string{"a", "b", "c"} {
		if _, err := env.service.AddEntry(ctx, "userA", addReq(entryInput(name, 100, 1, 1, 1))); err != nil {
			t.Fatal(err)
		}
	}

	if _, err := env.service.ReplaceEntry(ctx, "userA", "id-2", addReq(entryInput("b2", 150, 2, 2, 2))); err != nil {
		t.Fatal(err)
	}

	doc, err := env.ledger.GetDay(ctx, "userA", testDay)
	if err != nil {
		t.Fatal(err)
	}
	got := []string{doc.Entries[0].Name, doc.Entries[1].Name, doc.Entries[2].Name}
	if diff := cmp.Diff([]string{"a", "b2", "c"}, got); diff != "" {
		t.Fatalf("stored order (-want +got):\n%s", diff)
	}
}

func TestService_RemoveMismatchPolicy(t *testing.T) {
	tests := []struct {
		policy  string
		wantErr error
	}{
		{RemoveMismatchIgnore, nil},
		{RemoveMismatchError, ErrEntryNotFound},
	}

	for _, tt := range tests {
		for _, mode := range []string{WriteModeAtomic, WriteModeSequential} {
			t.Run(tt.policy+"/"+mode, func(t *testing.T) {
				env := newTestEnv(t, Options{WriteMode: mode, RemoveMismatch: tt.policy})
				ctx := context.Background()

				if _, err := env.service.AddEntry(ctx, "userA", addReq(entryInput("Яблоко", 52, 0, 14, 0))); err != nil {
					t.Fatal(err)
				}

				view, err := env.service.RemoveEntry(ctx, "userA", "nope", DayQuery{Date: testDay})
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				if err == nil && view.Totals.Calories != 52 {
					t.Fatalf("ledger changed on mismatched remove: %+v", view.Totals)
				}
			})
		}
	}
}

func TestService_DuplicateAdd(t *testing.T) {
	env := newTestEnv(t, Options{})
	ctx := context.Background()

	in := entryInput("Творог", 242, 34, 6, 10)
	in.ID = "fixed"

	if _, err := env.service.AddEntry(ctx, "userA", addReq(in)); err != nil {
		t.Fatal(err)
	}
	view, err := env.service.AddEntry(ctx, "userA", addReq(in))
	if err != nil {
		t.Fatalf("identical re-add should succeed: %v", err)
	}
	if len(view.Entries) != 1 || view.Totals.Calories != 242 {
		t.Fatalf("identical re-add changed the ledger: %+v", view)
	}

	in.Macros.Calories = 300
	if _, err := env.service.AddEntry(ctx, "userA", addReq(in)); !errors.Is(err, ErrDuplicateEntry) {
		t.Fatalf("expected ErrDuplicateEntry, got %v", err)
	}
}

func TestService_AtomicConcurrentWriters(t *testing.T) {
	env := newTestEnv(t, Options{MaxRetries: 1000})
	ctx := context.Background()

	const writers = 20
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := env.service.AddEntry(ctx, "userA", addReq(entryInput(fmt.Sprintf("meal-%d", i), float64(100+i), 10, 10, 1)))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent add failed: %v", err)
		}
	}

	view, err := env.service.GetDay(ctx, "userA", DayQuery{Date: testDay})
	if err != nil {
		t.Fatal(err)
	}
	if len(view.Entries) != writers {
		t.Fatalf("expected %d entries, got %d", writers, len(view.Entries))
	}
	assertSumInvariant(t, view)
}

type alwaysConflict struct {
	*memory.LedgerMemoryStorage
	calls int
}

func (s *alwaysConflict) ApplyDay(ctx context.Context, ownerUserID, date string, fn storage.ApplyFunc) (*storage.DayDocument, error) {
	s.calls++
	return nil, storage.ErrConflict
}

func TestService_ConflictRetriesExhausted(t *testing.T) {
	store := &alwaysConflict{LedgerMemoryStorage: memory.NewLedgerMemoryStorage()}
	svc := NewService(store, memory.NewProfilesMemoryStorage(), ai.NewMockProvider(), Options{MaxRetries: 3}, zap.NewNop())

	_, err := svc.AddEntry(context.Background(), "userA", addReq(entryInput("x", 1, 1, 1, 1)))
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if store.calls != 4 {
		t.Fatalf("expected 1 attempt + 3 retries, got %d calls", store.calls)
	}
}

type failSecondUpdate struct {
	*memory.LedgerMemoryStorage
	updates int
}

func (s *failSecondUpdate) UpdateDay(ctx context.Context, ownerUserID, date string, update storage.DayUpdate) error {
	s.updates++
	if s.updates == 2 {
		return errors.New("connection reset")
	}
	return s.LedgerMemoryStorage.UpdateDay(ctx, ownerUserID, date, update)
}

func TestService_SequentialReplaceInterrupted(t *testing.T) {
	store := &failSecondUpdate{LedgerMemoryStorage: memory.NewLedgerMemoryStorage()}
	svc := NewService(store, memory.NewProfilesMemoryStorage(), ai.NewMockProvider(), Options{WriteMode: WriteModeSequential}, zap.NewNop())
	ctx := context.Background()

	in := entryInput("Суп", 180, 9, 20, 6)
	in.ID = "soup"
	if _, err := svc.AddEntry(ctx, "userA", addReq(in)); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.ReplaceEntry(ctx, "userA", "soup", addReq(entryInput("Суп с хлебом", 260, 11, 35, 7))); err == nil {
		t.Fatal("expected replace to fail")
	}

	doc, err := store.GetDay(ctx, "userA", testDay)
	if err != nil {
		t.Fatal(err)
	}
	if len(doc.Entries) != 0 || doc.Totals != (storage.Macros{}) {
		t.Fatalf("sequential replace should leave the entry removed, got %+v", doc)
	}
}

func TestService_EntryDefaultsAndValidation(t *testing.T) {
	env := newTestEnv(t, Options{})
	ctx := context.Background()

	view, err := env.service.AddEntry(ctx, "userA", EntryRequest{
		DayQuery: DayQuery{TZ: "UTC"},
		Entry:    EntryInput{Name: "  Банан  ", Macros: MacrosInput{Calories: 105}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if view.Date != testDay {
		t.Fatalf("expected date %s, got %s", testDay, view.Date)
	}
	got := view.Entries[0]
	if got.ID != "id-1" || got.Name != "Банан" || got.Time != "12:30" {
		t.Fatalf("unexpected defaults: %+v", got)
	}

	bad := []EntryRequest{
		{DayQuery: DayQuery{Date: testDay}, Entry: EntryInput{Name: "   "}},
		{DayQuery: DayQuery{Date: testDay}, Entry: EntryInput{Name: "x", Time: "25:99"}},
		{DayQuery: DayQuery{Date: "10.03.2025"}, Entry: EntryInput{Name: "x"}},
		{DayQuery: DayQuery{TZ: "Nowhere/City"}, Entry: EntryInput{Name: "x"}},
	}
	for i, req := range bad {
		if _, err := env.service.AddEntry(ctx, "userA", req); !errors.Is(err, ErrInvalidRequest) {
			t.Fatalf("case %d: expected ErrInvalidRequest, got %v", i, err)
		}
	}
}

func TestService_GetDay(t *testing.T) {
	env := newTestEnv(t, Options{})
	ctx := context.Background()

	view, err := env.service.GetDay(ctx, "userA", DayQuery{Date: testDay})
	if err != nil {
		t.Fatal(err)
	}
	if view.Exists || len(view.Entries) != 0 || view.Totals != (storage.Macros{}) {
		t.Fatalf("absent day should be empty: %+v", view)
	}
	if !view.IsDefault || view.Goals.Calories != 2000 {
		t.Fatalf("expected default goals, got %+v", view.Goals)
	}

	late := entryInput("Ужин", 1000, 60, 100, 30)
	late.Time = "19:00"
	early := entryInput("Завтрак", 500, 90, 100, 30)
	early.Time = "7:30"
	for _, in := range []EntryInput{late, early} {
		if _, err := env.service.AddEntry(ctx, "userA", addReq(in)); err != nil {
			t.Fatal(err)
		}
	}

	view, err = env.service.GetDay(ctx, "userA", DayQuery{Date: testDay})
	if err != nil {
		t.Fatal(err)
	}
	if view.Entries[0].Time != "07:30" || view.Entries[1].Time != "19:00" {
		t.Fatalf("entries not sorted by time: %+v", view.Entries)
	}
	want := PercentDTO{Calories: 75, Protein: 100, Carbs: 100, Fat: 100}
	if diff := cmp.Diff(want, view.Percent); diff != "" {
		t.Fatalf("percent (-want +got):\n%s", diff)
	}
}

func TestService_GetDayUsesProfileGoalsAndTimezone(t *testing.T) {
	env := newTestEnv(t, Options{})
	ctx := context.Background()

	_, err := env.profiles.UpsertProfile(ctx, storage.UserProfile{
		OwnerUserID: "userA",
		TimeZone:    "Asia/Tokyo",
		Goals:       storage.MacroGoals{Calories: 1800, Protein: 140, Carbs: 180, Fat: 55},
	})
	if err != nil {
		t.Fatal(err)
	}

	env.service.now = func() time.Time { return time.Date(2025, 3, 10, 20, 0, 0, 0, time.UTC) }

	view, err := env.service.GetDay(ctx, "userA", DayQuery{})
	if err != nil {
		t.Fatal(err)
	}
	if view.Date != "2025-03-11" {
		t.Fatalf("expected Tokyo date 2025-03-11, got %s", view.Date)
	}
	if view.IsDefault || view.Goals.Calories != 1800 {
		t.Fatalf("expected profile goals, got %+v", view.Goals)
	}

	view, err = env.service.GetDay(ctx, "userA", DayQuery{TZ: "America/New_York"})
	if err != nil {
		t.Fatal(err)
	}
	if view.Date != "2025-03-10" {
		t.Fatalf("tz param should win over profile timezone, got %s", view.Date)
	}
}

func TestService_History(t *testing.T) {
	env := newTestEnv(t, Options{MaxRangeDays: 31})
	ctx := context.Background()

	for _, date := range []string{"2025-03-01", "2025-03-05", "2025-03-05", "2025-04-01"} {
		req := EntryRequest{DayQuery: DayQuery{Date: date}, Entry: entryInput("x", 100, 5, 10, 2)}
		if _, err := env.service.AddEntry(ctx, "userA", req); err != nil {
			t.Fatal(err)
		}
	}

	resp, err := env.service.History(ctx, "userA", "2025-03-01", "2025-03-31")
	if err != nil {
		t.Fatal(err)
	}
	want := []HistoryDay{
		{Date: "2025-03-01", Totals: storage.Macros{Calories: 100, Protein: 5, Carbs: 10, Fat: 2}, EntriesCount: 1},
		{Date: "2025-03-05", Totals: storage.Macros{Calories: 200, Protein: 10, Carbs: 20, Fat: 4}, EntriesCount: 2},
	}
	if diff := cmp.Diff(want, resp.Days); diff != "" {
		t.Fatalf("history (-want +got):\n%s", diff)
	}

	if _, err := env.service.History(ctx, "userA", "2025-01-01", "2025-03-31"); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected range error, got %v", err)
	}
	if _, err := env.service.History(ctx, "userA", "2025-03-31", "2025-03-01"); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected order error, got %v", err)
	}
}

func TestService_AnalyzeMeal(t *testing.T) {
	env := newTestEnv(t, Options{})

	resp, err := env.service.AnalyzeMeal(context.Background(), "жареная курица")
	if err != nil {
		t.Fatal(err)
	}
	if resp.Name != "Куриная грудка" || resp.Macros.Protein != 46 {
		t.Fatalf("unexpected estimate: %+v", resp)
	}

	if _, err := env.service.AnalyzeMeal(context.Background(), "   "); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestService_OwnersAreIsolated(t *testing.T) {
	env := newTestEnv(t, Options{})
	ctx := context.Background()

	if _, err := env.service.AddEntry(ctx, "userA", addReq(entryInput("x", 100, 1, 1, 1))); err != nil {
		t.Fatal(err)
	}

	view, err := env.service.GetDay(ctx, "userB", DayQuery{Date: testDay})
	if err != nil {
		t.Fatal(err)
	}
	if view.Exists {
		t.Fatal("userB must not see userA's day")
	}
}
