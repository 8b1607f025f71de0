package suggestion

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"suggest_server/core/domain"
	"suggest_server/core/port/out"
	"suggest_server/pkg/textutil"
)

const (
	DefaultMinCreatedTasks        = 10
	DefaultMinAcceptedSuggestions = 5
	DefaultHistoryMaxResults      = 4
	DefaultMinRecurrence          = 2
	DefaultHistoryScanLimit       = 200

	historySourceLabel = "Learned from previous tasks"

	historyTitleMaxLen  = 120
	historyDetailMaxLen = 280

	cadenceMinWeekdayCount = 3
	backlogMinOpenTasks    = 5
)

// HistorySuggestion is a pattern mined from the user's own tasks
type HistorySuggestion struct {
	Title           string
	Detail          string
	HistoryType     string
	RecurrenceCount int
}

// HistoryMinerConfig tunes eligibility thresholds and scan bounds
type HistoryMinerConfig struct {
	MinCreatedTasks        int
	MinAcceptedSuggestions int
	MaxResults             int
	MinRecurrence          int
	ScanLimit              int
}

func (c *HistoryMinerConfig) defaults() {
	if c.MinCreatedTasks <= 0 {
		c.MinCreatedTasks = DefaultMinCreatedTasks
	}
	if c.MinAcceptedSuggestions <= 0 {
		c.MinAcceptedSuggestions = DefaultMinAcceptedSuggestions
	}
	if c.MaxResults <= 0 {
		c.MaxResults = DefaultHistoryMaxResults
	}
	if c.MinRecurrence <= 0 {
		c.MinRecurrence = DefaultMinRecurrence
	}
	if c.ScanLimit <= 0 {
		c.ScanLimit = DefaultHistoryScanLimit
	}
}

// HistoryMiner derives suggestions from a user's task history
type HistoryMiner struct {
	todos       out.TodoRepository
	suggestions out.SuggestionRepository
	cfg         HistoryMinerConfig
}

func NewHistoryMiner(todos out.TodoRepository, suggestions out.SuggestionRepository, cfg HistoryMinerConfig) *HistoryMiner {
	cfg.defaults()
	return &HistoryMiner{
		todos:       todos,
		suggestions: suggestions,
		cfg:         cfg,
	}
}

// Eligible reports whether the user has enough history to mine. A user
// qualifies by total created tasks or by accepted suggestions.
func (m *HistoryMiner) Eligible(ctx context.Context, userID uuid.UUID) (bool, error) {
	created, err := m.todos.CountCreated(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("count created tasks: %w", err)
	}
	if created >= m.cfg.MinCreatedTasks {
		return true, nil
	}

	accepted, err := m.suggestions.CountAcceptedSince(ctx, userID, time.Time{})
	if err != nil {
		return false, fmt.Errorf("count accepted suggestions: %w", err)
	}
	return accepted >= m.cfg.MinAcceptedSuggestions, nil
}

// Mine scans recent tasks for recurring titles, weekday cadence, and
// backlog pressure. Accepted suggestions count toward the recurring
// class too, a user who keeps accepting the same chore has a pattern
// even if they never typed it themselves. Results are capped at
// MaxResults.
func (m *HistoryMiner) Mine(ctx context.Context, userID uuid.UUID) ([]HistorySuggestion, error) {
	tasks, err := m.todos.ListRecent(ctx, userID, m.cfg.ScanLimit)
	if err != nil {
		return nil, fmt.Errorf("list recent tasks: %w", err)
	}
	accepted, err := m.suggestions.ListByUser(ctx, userID, domain.SuggestionStatusAccepted, m.cfg.ScanLimit)
	if err != nil {
		return nil, fmt.Errorf("list accepted suggestions: %w", err)
	}
	if len(tasks) == 0 && len(accepted) == 0 {
		return nil, nil
	}

	results := m.recurringTitles(tasks, accepted)
	if cadence := m.weekdayCadence(tasks); cadence != nil {
		results = append(results, *cadence)
	}
	if backlog := m.backlogPressure(tasks); backlog != nil {
		results = append(results, *backlog)
	}

	if len(results) > m.cfg.MaxResults {
		results = results[:m.cfg.MaxResults]
	}
	return results, nil
}

type titleGroup struct {
	normalized string
	original   string
	count      int
	lastSeen   time.Time
}

func (m *HistoryMiner) recurringTitles(tasks []*domain.Todo, accepted []*domain.Suggestion) []HistorySuggestion {
	groups := make(map[string]*titleGroup)
	push := func(title string, seenAt time.Time) {
		key := NormalizeTitle(title)
		if key == "" {
			return
		}
		g, ok := groups[key]
		if !ok {
			g = &titleGroup{normalized: key}
			groups[key] = g
		}
		g.count++
		if seenAt.After(g.lastSeen) {
			g.lastSeen = seenAt
			g.original = title
		}
	}

	for _, task := range tasks {
		push(task.Title, task.CreatedAt)
	}
	for _, s := range accepted {
		push(s.Title, s.UpdatedAt)
	}

	recurring := make([]*titleGroup, 0)
	for _, g := range groups {
		if g.count >= m.cfg.MinRecurrence {
			recurring = append(recurring, g)
		}
	}

	sort.Slice(recurring, func(i, j int) bool {
		if recurring[i].count != recurring[j].count {
			return recurring[i].count > recurring[j].count
		}
		return recurring[i].lastSeen.After(recurring[j].lastSeen)
	})

	results := make([]HistorySuggestion, 0, len(recurring))
	for _, g := range recurring {
		results = append(results, HistorySuggestion{
			Title:           cleanTitle(g.original),
			Detail:          cleanDetail(fmt.Sprintf("You have repeated this %d times. Consider scheduling it proactively.", g.count)),
			HistoryType:     "recurring",
			RecurrenceCount: g.count,
		})
	}
	return results
}

func (m *HistoryMiner) weekdayCadence(tasks []*domain.Todo) *HistorySuggestion {
	counts := make(map[time.Weekday]int)
	for _, task := range tasks {
		if task.DueDate == nil {
			continue
		}
		counts[task.DueDate.Weekday()]++
	}

	var topDay time.Weekday
	topCount := 0
	for day, count := range counts {
		if count > topCount || (count == topCount && day < topDay) {
			topDay = day
			topCount = count
		}
	}

	if topCount < cadenceMinWeekdayCount {
		return nil
	}

	return &HistorySuggestion{
		Title:           cleanTitle(fmt.Sprintf("Plan your %s priorities", topDay)),
		Detail:          cleanDetail(fmt.Sprintf("You tend to schedule tasks for %ss. Set aside time to plan them ahead.", topDay)),
		HistoryType:     "cadence",
		RecurrenceCount: topCount,
	}
}

func (m *HistoryMiner) backlogPressure(tasks []*domain.Todo) *HistorySuggestion {
	open := 0
	for _, task := range tasks {
		if task.IsOpen() {
			open++
		}
	}
	if open < backlogMinOpenTasks {
		return nil
	}

	return &HistorySuggestion{
		Title:           "Review and triage pending tasks",
		Detail:          cleanDetail(fmt.Sprintf("You have %d unfinished tasks. A quick triage pass keeps the backlog honest.", open)),
		HistoryType:     "backlog",
		RecurrenceCount: open,
	}
}

var nonAlnumRe = regexp.MustCompile(`[^a-z0-9\s]`)
var whitespaceRe = regexp.MustCompile(`\s+`)

// NormalizeTitle lowercases, strips punctuation, and collapses
// whitespace. Used as the dedup key across email and history origins.
func NormalizeTitle(title string) string {
	s := strings.ToLower(title)
	s = nonAlnumRe.ReplaceAllString(s, " ")
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func cleanTitle(title string) string {
	return textutil.Truncate(strings.TrimSpace(title), historyTitleMaxLen)
}

func cleanDetail(detail string) string {
	return textutil.TruncateEllipsis(strings.TrimSpace(detail), historyDetailMaxLen)
}
