package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/fdg312/diet-hub/internal/ai"
	"github.com/fdg312/diet-hub/internal/goals"
	"github.com/fdg312/diet-hub/internal/storage"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	WriteModeAtomic     = "atomic"
	WriteModeSequential = "sequential"

	RemoveMismatchIgnore = "ignore"
	RemoveMismatchError  = "error"

	defaultMaxRetries   = 5
	defaultMaxRangeDays = 90
	defaultHistoryDays  = 7
)

// Options tune how the ledger writes.
type Options struct {
	WriteMode      string
	RemoveMismatch string
	MaxRetries     int
	MaxRangeDays   int
}

// Service — дневной журнал питания: добавление, удаление, замена записей.
type Service struct {
	ledger   storage.LedgerStorage
	profiles storage.ProfilesStorage
	provider ai.Provider
	opts     Options
	logger   *zap.Logger
	now      func() time.Time
	newID    func() string
}

func NewService(
	ledger storage.LedgerStorage,
	profiles storage.ProfilesStorage,
	provider ai.Provider,
	opts Options,
	logger *zap.Logger,
) *Service {
	if opts.WriteMode != WriteModeSequential {
		opts.WriteMode = WriteModeAtomic
	}
	if opts.RemoveMismatch != RemoveMismatchError {
		opts.RemoveMismatch = RemoveMismatchIgnore
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	if opts.MaxRangeDays <= 0 {
		opts.MaxRangeDays = defaultMaxRangeDays
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		ledger:   ledger,
		profiles: profiles,
		provider: provider,
		opts:     opts,
		logger:   logger,
		now:      time.Now,
		newID:    func() string { return uuid.NewString() },
	}
}

// dayContext is a resolved day key plus the profile it was resolved against.
type dayContext struct {
	date    string
	loc     *time.Location
	profile *storage.UserProfile
}

// GetDay returns the day view for the resolved date.
func (s *Service) GetDay(ctx context.Context, ownerUserID string, q DayQuery) (*DayView, error) {
	day, err := s.resolveDay(ctx, ownerUserID, q)
	if err != nil {
		return nil, err
	}

	doc, err := s.ledger.GetDay(ctx, ownerUserID, day.date)
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger day: %w", err)
	}

	return buildView(day, doc), nil
}

// AddEntry records a meal in the resolved day.
func (s *Service) AddEntry(ctx context.Context, ownerUserID string, req EntryRequest) (*DayView, error) {
	day, err := s.resolveDay(ctx, ownerUserID, req.DayQuery)
	if err != nil {
		return nil, err
	}

	entry, err := s.buildEntry(req.Entry, day.loc)
	if err != nil {
		return nil, err
	}

	doc, err := s.addEntry(ctx, ownerUserID, day.date, entry)
	if err != nil {
		return nil, err
	}

	return buildView(day, doc), nil
}

// RemoveEntry deletes the entry with id from the resolved day.
func (s *Service) RemoveEntry(ctx context.Context, ownerUserID, id string, q DayQuery) (*DayView, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: id is required", ErrInvalidRequest)
	}

	day, err := s.resolveDay(ctx, ownerUserID, q)
	if err != nil {
		return nil, err
	}

	doc, err := s.removeEntry(ctx, ownerUserID, day.date, id)
	if err != nil {
		return nil, err
	}

	return buildView(day, doc), nil
}

// ReplaceEntry edits the entry with id; the entry keeps its id.
func (s *Service) ReplaceEntry(ctx context.Context, ownerUserID, id string, req EntryRequest) (*DayView, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: id is required", ErrInvalidRequest)
	}

	day, err := s.resolveDay(ctx, ownerUserID, req.DayQuery)
	if err != nil {
		return nil, err
	}

	req.Entry.ID = id
	entry, err := s.buildEntry(req.Entry, day.loc)
	if err != nil {
		return nil, err
	}

	doc, err := s.replaceEntry(ctx, ownerUserID, day.date, id, entry)
	if err != nil {
		return nil, err
	}

	return buildView(day, doc), nil
}

// History returns per-day totals for [from, to]. Empty bounds default to the last week.
func (s *Service) History(ctx context.Context, ownerUserID, from, to string) (*HistoryResponse, error) {
	profile, err := s.profiles.GetProfile(ctx, ownerUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	from = strings.TrimSpace(from)
	to = strings.TrimSpace(to)
	if to == "" {
		to = s.now().In(profileLocation(profile)).Format(dateLayout)
	}
	toDate, err := time.Parse(dateLayout, to)
	if err != nil {
		return nil, fmt.Errorf("%w: to must be YYYY-MM-DD", ErrInvalidRequest)
	}
	if from == "" {
		from = toDate.AddDate(0, 0, -(defaultHistoryDays - 1)).Format(dateLayout)
	}
	fromDate, err := time.Parse(dateLayout, from)
	if err != nil {
		return nil, fmt.Errorf("%w: from must be YYYY-MM-DD", ErrInvalidRequest)
	}

	if fromDate.After(toDate) {
		return nil, fmt.Errorf("%w: from must not be after to", ErrInvalidRequest)
	}
	if days := int(toDate.Sub(fromDate).Hours()/24) + 1; days > s.opts.MaxRangeDays {
		return nil, fmt.Errorf("%w: range exceeds %d days", ErrInvalidRequest, s.opts.MaxRangeDays)
	}

	docs, err := s.ledger.ListDays(ctx, ownerUserID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger days: %w", err)
	}

	g, _ := goals.Resolve(profile)
	resp := &HistoryResponse{
		From:  from,
		To:    to,
		Goals: goalsToDTO(g),
		Days:  make([]HistoryDay, 0, len(docs)),
	}
	for _, doc := range docs {
		resp.Days = append(resp.Days, HistoryDay{
			Date:         doc.Date,
			Totals:       doc.Totals,
			EntriesCount: len(doc.Entries),
		})
	}

	return resp, nil
}

// AnalyzeMeal asks the AI provider to estimate macros for a free-text description.
func (s *Service) AnalyzeMeal(ctx context.Context, description string) (*AnalyzeResponse, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, fmt.Errorf("%w: description is required", ErrInvalidRequest)
	}
	if len([]rune(description)) > 500 {
		return nil, fmt.Errorf("%w: description is too long", ErrInvalidRequest)
	}

	estimate, err := s.provider.AnalyzeFood(ctx, description)
	if err != nil {
		s.logger.Warn("food analysis failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrAIFailed, err)
	}

	name := strings.TrimSpace(estimate.Name)
	if name == "" {
		name = description
	}

	return &AnalyzeResponse{
		Name:   name,
		Amount: strings.TrimSpace(estimate.Amount),
		Macros: storage.Macros{
			Calories: Sanitize(estimate.Calories),
			Protein:  Sanitize(estimate.Protein),
			Carbs:    Sanitize(estimate.Carbs),
			Fat:      Sanitize(estimate.Fat),
		},
	}, nil
}

// Day returns the stored document for a resolved date. Used by chat.
func (s *Service) Day(ctx context.Context, ownerUserID, date string) (*storage.DayDocument, error) {
	doc, err := s.ledger.GetDay(ctx, ownerUserID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger day: %w", err)
	}
	return doc, nil
}

// ============================================================================
// write paths
// ============================================================================

func (s *Service) strictRemove() bool {
	return s.opts.RemoveMismatch == RemoveMismatchError
}

func (s *Service) addEntry(ctx context.Context, ownerUserID, date string, entry storage.MealEntry) (*storage.DayDocument, error) {
	if s.opts.WriteMode == WriteModeSequential {
		return s.addSequential(ctx, ownerUserID, date, entry)
	}
	return s.applyWithRetry(ctx, ownerUserID, date, func(state State) (Plan, error) {
		return PlanAdd(state, entry)
	})
}

func (s *Service) removeEntry(ctx context.Context, ownerUserID, date, id string) (*storage.DayDocument, error) {
	if s.opts.WriteMode == WriteModeSequential {
		return s.removeSequential(ctx, ownerUserID, date, id)
	}
	return s.applyWithRetry(ctx, ownerUserID, date, func(state State) (Plan, error) {
		return PlanRemove(state, id, s.strictRemove())
	})
}

func (s *Service) replaceEntry(ctx context.Context, ownerUserID, date, id string, entry storage.MealEntry) (*storage.DayDocument, error) {
	if s.opts.WriteMode == WriteModeSequential {
		return s.replaceSequential(ctx, ownerUserID, date, id, entry)
	}
	return s.applyWithRetry(ctx, ownerUserID, date, func(state State) (Plan, error) {
		return PlanReplace(state, id, entry, s.strictRemove())
	})
}

// applyWithRetry runs plan inside ApplyDay, retrying on version conflicts.
func (s *Service) applyWithRetry(ctx context.Context, ownerUserID, date string, plan func(State) (Plan, error)) (*storage.DayDocument, error) {
	for attempt := 0; attempt <= s.opts.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		doc, err := s.ledger.ApplyDay(ctx, ownerUserID, date, func(current *storage.DayDocument) (*storage.DayDocument, error) {
			p, err := plan(StateOf(current))
			if err != nil {
				return nil, err
			}
			if !p.Changed {
				return nil, nil
			}
			return &storage.DayDocument{
				Entries: p.Next.Entries,
				Totals:  p.Next.Totals,
			}, nil
		})
		if errors.Is(err, storage.ErrConflict) {
			s.logger.Debug("ledger write conflict, retrying",
				zap.String("owner", ownerUserID),
				zap.String("date", date),
				zap.Int("attempt", attempt+1),
			)
			continue
		}
		if err != nil {
			if isDomainError(err) {
				return nil, err
			}
			return nil, fmt.Errorf("failed to write ledger day: %w", err)
		}
		return doc, nil
	}

	s.logger.Warn("ledger write gave up after conflicts",
		zap.String("owner", ownerUserID),
		zap.String("date", date),
		zap.Int("retries", s.opts.MaxRetries),
	)
	return nil, ErrConflict
}

// Sequential mode issues separate get/set/update calls per operation.
// A replace is two updates; a failure between them leaves the entry removed,
// and the replacement lands at the end of the list instead of the old position.
// Totals are maintained by increments here, not re-summed.

func (s *Service) addSequential(ctx context.Context, ownerUserID, date string, entry storage.MealEntry) (*storage.DayDocument, error) {
	current, err := s.ledger.GetDay(ctx, ownerUserID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger day: %w", err)
	}

	p, err := PlanAdd(StateOf(current), entry)
	if err != nil {
		return nil, err
	}
	if !p.Changed {
		return current, nil
	}

	if current == nil {
		err = s.ledger.SetDay(ctx, storage.DayDocument{
			OwnerUserID: ownerUserID,
			Date:        date,
			Entries:     []storage.MealEntry{entry},
			Totals:      entry.Macros,
		})
	} else {
		err = s.ledger.UpdateDay(ctx, ownerUserID, date, storage.DayUpdate{
			AddEntries: []storage.MealEntry{entry},
			Increment:  entry.Macros,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to write ledger day: %w", err)
	}

	return s.Day(ctx, ownerUserID, date)
}

func (s *Service) removeSequential(ctx context.Context, ownerUserID, date, id string) (*storage.DayDocument, error) {
	current, err := s.ledger.GetDay(ctx, ownerUserID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger day: %w", err)
	}

	old, found := findEntry(current, id)
	if !found {
		if s.strictRemove() {
			return nil, ErrEntryNotFound
		}
		return current, nil
	}

	err = s.ledger.UpdateDay(ctx, ownerUserID, date, storage.DayUpdate{
		RemoveIDs: []string{id},
		Increment: old.Macros.Neg(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to write ledger day: %w", err)
	}

	return s.Day(ctx, ownerUserID, date)
}

func (s *Service) replaceSequential(ctx context.Context, ownerUserID, date, id string, entry storage.MealEntry) (*storage.DayDocument, error) {
	current, err := s.ledger.GetDay(ctx, ownerUserID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger day: %w", err)
	}

	entry.ID = id
	old, found := findEntry(current, id)
	if !found {
		if s.strictRemove() {
			return nil, ErrEntryNotFound
		}
		return s.addSequential(ctx, ownerUserID, date, entry)
	}
	if old == entry {
		return current, nil
	}

	err = s.ledger.UpdateDay(ctx, ownerUserID, date, storage.DayUpdate{
		RemoveIDs: []string{id},
		Increment: old.Macros.Neg(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to remove replaced entry: %w", err)
	}

	err = s.ledger.UpdateDay(ctx, ownerUserID, date, storage.DayUpdate{
		AddEntries: []storage.MealEntry{entry},
		Increment:  entry.Macros,
	})
	if err != nil {
		s.logger.Error("replace interrupted after remove",
			zap.String("owner", ownerUserID),
			zap.String("date", date),
			zap.String("entry_id", id),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to add replacement entry: %w", err)
	}

	return s.Day(ctx, ownerUserID, date)
}

// ============================================================================
// helpers
// ============================================================================

func (s *Service) resolveDay(ctx context.Context, ownerUserID string, q DayQuery) (dayContext, error) {
	profile, err := s.profiles.GetProfile(ctx, ownerUserID)
	if err != nil {
		return dayContext{}, fmt.Errorf("failed to get profile: %w", err)
	}

	date, loc, err := ResolveDate(s.now(), q.Date, q.TZ, profileLocation(profile))
	if err != nil {
		return dayContext{}, err
	}

	return dayContext{date: date, loc: loc, profile: profile}, nil
}

// ResolveDate picks the day key: an explicit date wins, otherwise today in tz,
// otherwise today in fallback.
func ResolveDate(now time.Time, date, tz string, fallback *time.Location) (string, *time.Location, error) {
	loc := fallback
	if loc == nil {
		loc = time.Local
	}

	if tz = strings.TrimSpace(tz); tz != "" {
		loaded, err := time.LoadLocation(tz)
		if err != nil {
			return "", nil, fmt.Errorf("%w: unknown timezone %q", ErrInvalidRequest, tz)
		}
		loc = loaded
	}

	if date = strings.TrimSpace(date); date != "" {
		if _, err := time.Parse(dateLayout, date); err != nil {
			return "", nil, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidRequest)
		}
		return date, loc, nil
	}

	return now.In(loc).Format(dateLayout), loc, nil
}

func profileLocation(profile *storage.UserProfile) *time.Location {
	if profile == nil || strings.TrimSpace(profile.TimeZone) == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(strings.TrimSpace(profile.TimeZone))
	if err != nil {
		return time.Local
	}
	return loc
}

func (s *Service) buildEntry(in EntryInput, loc *time.Location) (storage.MealEntry, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return storage.MealEntry{}, fmt.Errorf("%w: name is required", ErrInvalidRequest)
	}

	id := strings.TrimSpace(in.ID)
	if id == "" {
		id = s.newID()
	}

	clock := strings.TrimSpace(in.Time)
	if clock == "" {
		clock = s.now().In(loc).Format(timeLayout)
	} else {
		parsed, err := time.Parse(timeLayout, clock)
		if err != nil {
			return storage.MealEntry{}, fmt.Errorf("%w: time must be HH:MM", ErrInvalidRequest)
		}
		clock = parsed.Format(timeLayout)
	}

	return storage.MealEntry{
		ID:     id,
		Name:   name,
		Amount: strings.TrimSpace(in.Amount),
		Time:   clock,
		Macros: in.Macros.toMacros(),
	}, nil
}

func buildView(day dayContext, doc *storage.DayDocument) *DayView {
	g, isDefault := goals.Resolve(day.profile)

	view := &DayView{
		Date:      day.date,
		Entries:   []storage.MealEntry{},
		Goals:     goalsToDTO(g),
		IsDefault: isDefault,
	}

	if doc != nil {
		view.Exists = true
		view.Entries = append(view.Entries, doc.Entries...)
		view.Totals = doc.Totals
		sort.SliceStable(view.Entries, func(i, j int) bool {
			return view.Entries[i].Time < view.Entries[j].Time
		})
	}

	view.Percent = percentOf(view.Totals, g)
	return view
}

func findEntry(doc *storage.DayDocument, id string) (storage.MealEntry, bool) {
	if doc == nil {
		return storage.MealEntry{}, false
	}
	for _, e := range doc.Entries {
		if e.ID == id {
			return e, true
		}
	}
	return storage.MealEntry{}, false
}

func isDomainError(err error) bool {
	return errors.Is(err, ErrEntryNotFound) ||
		errors.Is(err, ErrDuplicateEntry) ||
		errors.Is(err, ErrInvalidRequest)
}
