package ledger

import (
	"errors"
	"math"

	"github.com/fdg312/diet-hub/internal/storage"
)

var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrEntryNotFound  = errors.New("entry not found")
	ErrDuplicateEntry = errors.New("duplicate entry")
	ErrConflict       = errors.New("ledger conflict")
	ErrAIFailed       = errors.New("ai failed")
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// MacrosInput — макросы из запроса клиента, парсятся нестрого.
type MacrosInput struct {
	Calories Number `json:"calories"`
	Protein  Number `json:"protein"`
	Carbs    Number `json:"carbs"`
	Fat      Number `json:"fat"`
}

func (m MacrosInput) toMacros() storage.Macros {
	return storage.Macros{
		Calories: m.Calories.Float(),
		Protein:  m.Protein.Float(),
		Carbs:    m.Carbs.Float(),
		Fat:      m.Fat.Float(),
	}
}

// EntryInput — запись приёма пищи в теле запроса.
type EntryInput struct {
	ID     string      `json:"id,omitempty"`
	Name   string      `json:"name"`
	Amount string      `json:"amount"`
	Time   string      `json:"time,omitempty"`
	Macros MacrosInput `json:"macros"`
}

// DayQuery selects a day: explicit date, or today in tz.
type DayQuery struct {
	Date string `json:"date,omitempty"`
	TZ   string `json:"tz,omitempty"`
}

// EntryRequest — тело POST /v1/ledger/entries и PUT /v1/ledger/entries/{id}
type EntryRequest struct {
	DayQuery
	Entry EntryInput `json:"entry"`
}

type GoalsDTO struct {
	Calories int `json:"calories"`
	Protein  int `json:"protein"`
	Carbs    int `json:"carbs"`
	Fat      int `json:"fat"`
}

type PercentDTO struct {
	Calories int `json:"calories"`
	Protein  int `json:"protein"`
	Carbs    int `json:"carbs"`
	Fat      int `json:"fat"`
}

// DayView — дневной журнал для дашборда.
type DayView struct {
	Date      string              `json:"date"`
	Exists    bool                `json:"exists"`
	Entries   []storage.MealEntry `json:"entries"`
	Totals    storage.Macros      `json:"totals"`
	Goals     GoalsDTO            `json:"goals"`
	IsDefault bool                `json:"goals_is_default"`
	Percent   PercentDTO          `json:"percent"`
}

type HistoryDay struct {
	Date         string         `json:"date"`
	Totals       storage.Macros `json:"totals"`
	EntriesCount int            `json:"entries_count"`
}

// HistoryResponse — ответ GET /v1/ledger/history
type HistoryResponse struct {
	From  string       `json:"from"`
	To    string       `json:"to"`
	Goals GoalsDTO     `json:"goals"`
	Days  []HistoryDay `json:"days"`
}

type AnalyzeRequest struct {
	Description string `json:"description"`
}

type AnalyzeResponse struct {
	Name   string         `json:"name"`
	Amount string         `json:"amount"`
	Macros storage.Macros `json:"macros"`
}

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PercentOfGoal returns value as a whole percentage of goal, capped to [0, 100].
// A non-positive goal yields 0.
func PercentOfGoal(value float64, goal int) int {
	if goal <= 0 || math.IsNaN(value) {
		return 0
	}
	pct := math.Round(100 * value / float64(goal))
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return int(pct)
}

func goalsToDTO(g storage.MacroGoals) GoalsDTO {
	return GoalsDTO{
		Calories: g.Calories,
		Protein:  g.Protein,
		Carbs:    g.Carbs,
		Fat:      g.Fat,
	}
}

func percentOf(totals storage.Macros, g storage.MacroGoals) PercentDTO {
	return PercentDTO{
		Calories: PercentOfGoal(totals.Calories, g.Calories),
		Protein:  PercentOfGoal(totals.Protein, g.Protein),
		Carbs:    PercentOfGoal(totals.Carbs, g.Carbs),
		Fat:      PercentOfGoal(totals.Fat, g.Fat),
	}
}
