package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound — документ отсутствует (UpdateDay на несуществующем дне).
	ErrNotFound = errors.New("not found")

	// ErrConflict — документ изменился между чтением и условной записью.
	ErrConflict = errors.New("version conflict")
)

// Storage — агрегирующий интерфейс хранилища (memory или postgres)
type Storage interface {
	GetProfilesStorage() ProfilesStorage
	GetLedgerStorage() LedgerStorage
	GetChatStorage() ChatStorage
	GetReportsStorage() ReportsStorage

	// Close закрывает соединение (для Postgres)
	Close() error
}

// ============================================================================
// Profiles (users/{uid})
// ============================================================================

// ProfilesStorage — интерфейс для работы с профилем и целями пользователя
type ProfilesStorage interface {
	// GetProfile возвращает профиль владельца, nil если профиля ещё нет
	GetProfile(ctx context.Context, ownerUserID string) (*UserProfile, error)

	// UpsertProfile создаёт или полностью перезаписывает профиль
	UpsertProfile(ctx context.Context, profile UserProfile) (*UserProfile, error)
}

// MacroGoals — дневные цели по калориям и БЖУ.
type MacroGoals struct {
	Calories int
	Protein  int
	Carbs    int
	Fat      int
}

// UserProfile — метрики тела, цель и рассчитанные нормы пользователя.
type UserProfile struct {
	OwnerUserID       string
	Name              string
	WeightKg          float64
	HeightCm          float64
	Age               int
	Gender            string // "male" | "female"
	ActivityFactor    float64
	GoalType          string // "cut" | "maintain" | "bulk"
	BasalRate         int
	ProteinMultiplier float64
	TimeZone          string
	TargetCalories    int
	Goals             MacroGoals
	ManualGoals       bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ============================================================================
// Ledger (users/{uid}/days/{date})
// ============================================================================

// Macros — калории (ккал) и белки/углеводы/жиры (г).
type Macros struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
}

// Add returns the element-wise sum.
func (m Macros) Add(o Macros) Macros {
	return Macros{
		Calories: m.Calories + o.Calories,
		Protein:  m.Protein + o.Protein,
		Carbs:    m.Carbs + o.Carbs,
		Fat:      m.Fat + o.Fat,
	}
}

// Sub returns the element-wise difference.
func (m Macros) Sub(o Macros) Macros {
	return Macros{
		Calories: m.Calories - o.Calories,
		Protein:  m.Protein - o.Protein,
		Carbs:    m.Carbs - o.Carbs,
		Fat:      m.Fat - o.Fat,
	}
}

// Neg returns the macros with every component negated.
func (m Macros) Neg() Macros {
	return Macros{}.Sub(m)
}

// MealEntry — одна запись приёма пищи внутри дня.
type MealEntry struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Amount string `json:"amount"`
	Time   string `json:"time"` // HH:MM
	Macros Macros `json:"macros"`
}

// DayDocument — документ дня: записи и агрегированные итоги.
type DayDocument struct {
	OwnerUserID string
	Date        string // YYYY-MM-DD
	Entries     []MealEntry
	Totals      Macros
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Clone returns a deep copy of the document.
func (d DayDocument) Clone() DayDocument {
	out := d
	out.Entries = append([]MealEntry(nil), d.Entries...)
	return out
}

// DayUpdate — частичное обновление документа дня (merge).
// RemoveIDs применяются первыми, затем AddEntries (set-union по id),
// затем Increment прибавляется к итогам.
type DayUpdate struct {
	AddEntries []MealEntry
	RemoveIDs  []string
	Increment  Macros
}

// ApplyFunc получает текущий документ (nil, если дня нет) и возвращает новый.
// Возврат nil без ошибки означает "ничего не менять".
type ApplyFunc func(current *DayDocument) (*DayDocument, error)

// LedgerStorage — документный интерфейс для дневных журналов питания
type LedgerStorage interface {
	// GetDay возвращает документ дня, nil если его ещё нет
	GetDay(ctx context.Context, ownerUserID, date string) (*DayDocument, error)

	// SetDay полностью перезаписывает документ дня
	SetDay(ctx context.Context, doc DayDocument) error

	// UpdateDay применяет merge-обновление; ErrNotFound если документа нет
	UpdateDay(ctx context.Context, ownerUserID, date string, update DayUpdate) error

	// ApplyDay выполняет read-modify-write с проверкой версии.
	// Возвращает ErrConflict, если документ изменился после чтения.
	ApplyDay(ctx context.Context, ownerUserID, date string, fn ApplyFunc) (*DayDocument, error)

	// ListDays возвращает документы за период [from, to] по возрастанию даты
	ListDays(ctx context.Context, ownerUserID, from, to string) ([]DayDocument, error)
}

// MergeDayUpdate applies a DayUpdate to doc in place.
func MergeDayUpdate(doc *DayDocument, update DayUpdate) {
	if len(update.RemoveIDs) > 0 {
		remove := make(map[string]struct{}, len(update.RemoveIDs))
		for _, id := range update.RemoveIDs {
			remove[id] = struct{}{}
		}
		kept := doc.Entries[:0:0]
		for _, e := range doc.Entries {
			if _, ok := remove[e.ID]; ok {
				continue
			}
			kept = append(kept, e)
		}
		doc.Entries = kept
	}

	for _, add := range update.AddEntries {
		present := false
		for _, e := range doc.Entries {
			if e.ID == add.ID {
				present = true
				break
			}
		}
		if !present {
			doc.Entries = append(doc.Entries, add)
		}
	}

	doc.Totals = doc.Totals.Add(update.Increment)
}

// ============================================================================
// Chat
// ============================================================================

// ChatStorage — интерфейс для хранения сообщений чата.
type ChatStorage interface {
	// InsertMessage сохраняет сообщение чата.
	InsertMessage(ctx context.Context, ownerUserID, role, content string) (ChatMessage, error)

	// ListMessages возвращает последние сообщения владельца и nextCursor.
	// before используется как курсор по created_at (strictly less than).
	ListMessages(ctx context.Context, ownerUserID string, limit int, before *time.Time) ([]ChatMessage, *time.Time, error)
}

// ChatMessage — сохранённое сообщение чата.
type ChatMessage struct {
	ID          uuid.UUID
	OwnerUserID string
	Role        string
	Content     string
	CreatedAt   time.Time
}

// ============================================================================
// Reports
// ============================================================================

// ReportsStorage — метаданные экспортов журнала, всегда в разрезе владельца.
// Чужой отчёт неотличим от отсутствующего: ErrNotFound.
type ReportsStorage interface {
	// CreateReport сохраняет отчёт, проставляя ID (если пустой) и timestamps
	CreateReport(ctx context.Context, report *ReportMeta) error

	GetReport(ctx context.Context, ownerUserID string, id uuid.UUID) (*ReportMeta, error)

	// ListReports — отчёты владельца, новые первыми
	ListReports(ctx context.Context, ownerUserID string, limit, offset int) ([]ReportMeta, error)

	DeleteReport(ctx context.Context, ownerUserID string, id uuid.UUID) error
}

// ReportMeta — метаданные отчёта
type ReportMeta struct {
	ID          uuid.UUID
	OwnerUserID string
	Format      string  // "pdf" or "csv"
	FromDate    string  // YYYY-MM-DD
	ToDate      string  // YYYY-MM-DD
	ObjectKey   *string // S3 object key (NULL for memory mode)
	SizeBytes   int64
	Status      string // "ready" or "failed"
	Error       *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Data        []byte `db:"-"` // только memory-режим, в БД не хранится
}
