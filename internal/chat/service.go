package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fdg312/diet-hub/internal/ai"
	"github.com/fdg312/diet-hub/internal/goals"
	"github.com/fdg312/diet-hub/internal/ledger"
	"github.com/fdg312/diet-hub/internal/storage"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrAIFailed       = errors.New("ai failed")
)

const maxContentLength = 4000

// dayReader returns the stored ledger day, nil when absent.
type dayReader interface {
	Day(ctx context.Context, ownerUserID, date string) (*storage.DayDocument, error)
}

type Service struct {
	chatStorage  storage.ChatStorage
	profiles     storage.ProfilesStorage
	days         dayReader
	provider     ai.Provider
	historyLimit int
	logger       *zap.Logger
	now          func() time.Time
}

func NewService(
	chatStorage storage.ChatStorage,
	profiles storage.ProfilesStorage,
	days dayReader,
	provider ai.Provider,
	historyLimit int,
	logger *zap.Logger,
) *Service {
	if historyLimit <= 0 {
		historyLimit = 20
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		chatStorage:  chatStorage,
		profiles:     profiles,
		days:         days,
		provider:     provider,
		historyLimit: historyLimit,
		logger:       logger,
		now:          time.Now,
	}
}

// ListQuery — параметры страницы истории. Before == nil означает первую страницу.
type ListQuery struct {
	Limit  int
	Before *time.Time
	TZ     string
}

func (s *Service) ListMessages(ctx context.Context, ownerUserID string, q ListQuery) (*ListMessagesResponse, error) {
	rows, nextCursorTime, err := s.chatStorage.ListMessages(ctx, ownerUserID, normalizeLimit(q.Limit), q.Before)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat messages: %w", err)
	}

	messages := make([]MessageDTO, 0, len(rows))
	for _, row := range rows {
		messages = append(messages, messageToDTO(row))
	}

	resp := &ListMessagesResponse{Messages: messages}
	if nextCursorTime != nil {
		cursor := nextCursorTime.UTC().Format(time.RFC3339Nano)
		resp.NextCursor = &cursor
	}

	if q.Before == nil {
		loc, err := s.requestLocation(q.TZ)
		if err != nil {
			return nil, err
		}
		chatCtx, err := s.loadContext(ctx, ownerUserID, loc, false)
		if err != nil {
			return nil, err
		}
		resp.Greeting = greeting(chatCtx)
		today := todayToDTO(chatCtx.snapshot, chatCtx.targetCalories())
		resp.Today = &today
	}

	return resp, nil
}

func (s *Service) SendMessage(ctx context.Context, ownerUserID string, req SendMessageRequest) (*SendMessageResponse, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, fmt.Errorf("%w: content is required", ErrInvalidRequest)
	}
	if len([]rune(content)) > maxContentLength {
		return nil, fmt.Errorf("%w: content must be at most %d characters", ErrInvalidRequest, maxContentLength)
	}

	loc, err := s.requestLocation(req.TZ)
	if err != nil {
		return nil, err
	}

	userMessage, err := s.chatStorage.InsertMessage(ctx, ownerUserID, "user", content)
	if err != nil {
		return nil, fmt.Errorf("failed to save user message: %w", err)
	}

	chatCtx, err := s.loadContext(ctx, ownerUserID, loc, true)
	if err != nil {
		return nil, err
	}

	aiMessages := make([]ai.ChatMessage, 0, len(chatCtx.history))
	for _, msg := range chatCtx.history {
		aiMessages = append(aiMessages, ai.ChatMessage{
			Role:      msg.Role,
			Content:   msg.Content,
			CreatedAt: msg.CreatedAt,
		})
	}

	reply, err := s.provider.Reply(ctx, ai.ReplyRequest{
		UserID:   ownerUserID,
		Messages: aiMessages,
		Profile:  chatCtx.profileSnapshot(),
		Snapshot: chatCtx.snapshot,
		TimeZone: chatCtx.loc.String(),
	})
	if err != nil {
		s.logger.Warn("chat reply failed", zap.String("owner", ownerUserID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrAIFailed, err)
	}

	assistantText := strings.TrimSpace(reply.AssistantText)
	if assistantText == "" {
		assistantText = "Я не смог сформировать ответ. Попробуйте переформулировать вопрос."
	}

	assistantMessage, err := s.chatStorage.InsertMessage(ctx, ownerUserID, "assistant", assistantText)
	if err != nil {
		return nil, fmt.Errorf("failed to save assistant message: %w", err)
	}

	return &SendMessageResponse{
		UserMessage:      messageToDTO(userMessage),
		AssistantMessage: messageToDTO(assistantMessage),
		Today:            todayToDTO(chatCtx.snapshot, chatCtx.targetCalories()),
	}, nil
}

// chatContext — то, что ассистент знает о пользователе на сегодня.
type chatContext struct {
	profile  *storage.UserProfile
	loc      *time.Location
	snapshot ai.DaySnapshot
	history  []storage.ChatMessage
}

func (c chatContext) profileSnapshot() ai.ProfileSnapshot {
	if c.profile == nil {
		return ai.ProfileSnapshot{}
	}
	return ai.ProfileSnapshot{
		WeightKg:       c.profile.WeightKg,
		GoalType:       c.profile.GoalType,
		TargetCalories: c.profile.TargetCalories,
	}
}

// requestLocation проверяет tz из запроса так же, как журнал: неизвестная зона — 400.
// nil означает зону из профиля.
func (s *Service) requestLocation(tz string) (*time.Location, error) {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return nil, nil
	}
	_, loc, err := ledger.ResolveDate(s.now(), "", tz, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown timezone %q", ErrInvalidRequest, tz)
	}
	return loc, nil
}

// loadContext reads the profile, the recent history (withHistory) and today's
// ledger day in parallel. Without an explicit loc the day key depends on the
// profile timezone, so the day read runs after the group.
func (s *Service) loadContext(ctx context.Context, ownerUserID string, loc *time.Location, withHistory bool) (chatContext, error) {
	var (
		profile *storage.UserProfile
		doc     *storage.DayDocument
		history []storage.ChatMessage
	)
	now := s.now()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := s.profiles.GetProfile(gctx, ownerUserID)
		if err != nil {
			return fmt.Errorf("failed to get profile: %w", err)
		}
		profile = p
		return nil
	})
	if withHistory {
		g.Go(func() error {
			rows, _, err := s.chatStorage.ListMessages(gctx, ownerUserID, s.historyLimit, nil)
			if err != nil {
				return fmt.Errorf("failed to load chat history: %w", err)
			}
			history = rows
			return nil
		})
	}
	if loc != nil {
		g.Go(func() error {
			d, err := s.days.Day(gctx, ownerUserID, now.In(loc).Format("2006-01-02"))
			if err != nil {
				return err
			}
			doc = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return chatContext{}, err
	}

	if loc == nil {
		loc = profileLocation(profile)
		d, err := s.days.Day(ctx, ownerUserID, now.In(loc).Format("2006-01-02"))
		if err != nil {
			return chatContext{}, err
		}
		doc = d
	}

	macroGoals, _ := goals.Resolve(profile)
	snapshot := ai.DaySnapshot{
		Date:  now.In(loc).Format("2006-01-02"),
		Goals: macroGoals,
	}
	if doc != nil {
		snapshot.Consumed = doc.Totals
	}

	return chatContext{profile: profile, loc: loc, snapshot: snapshot, history: history}, nil
}

// targetCalories — цель профиля, а без профиля цель по умолчанию.
func (c chatContext) targetCalories() int {
	if c.profile != nil && c.profile.TargetCalories > 0 {
		return c.profile.TargetCalories
	}
	return c.snapshot.Goals.Calories
}

func greeting(c chatContext) string {
	name := "друг"
	if c.profile != nil && strings.TrimSpace(c.profile.Name) != "" {
		name = strings.TrimSpace(c.profile.Name)
	}
	target := c.targetCalories()

	return fmt.Sprintf(
		"Привет, %s! Я ваш ИИ-нутрициолог. Вижу, что сегодня вы съели %.0f ккал. Как помочь вам выйти на цель %d ккал?",
		name,
		c.snapshot.Consumed.Calories,
		target,
	)
}

func loadLocation(tz string) (*time.Location, bool) {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return nil, false
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, false
	}
	return loc, true
}

func profileLocation(profile *storage.UserProfile) *time.Location {
	if profile != nil {
		if loc, ok := loadLocation(profile.TimeZone); ok {
			return loc
		}
	}
	return time.Local
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > 200 {
		return 200
	}
	return limit
}
