package service

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"report-portal/internal/model"
)

const (
	AuditSessionStarted   = "session.start"
	AuditSessionEnded     = "session.end"
	AuditReportDownloaded = "report.download"
	AuditReportSubmitted  = "report.submit"

	defaultActivityLimit = 50
	maxActivityLimit     = 200
)

// AuditStore persists activity entries.
type AuditStore interface {
	Log(ctx context.Context, entry model.AuditEntry) error
	ListByEmail(ctx context.Context, email string, limit int) ([]model.AuditEntry, error)
}

type AuditService struct {
	store AuditStore
}

func NewAuditService(store AuditStore) *AuditService {
	return &AuditService{store: store}
}

// Log records an action. Failures are logged and never surface to the caller.
func (s *AuditService) Log(ctx context.Context, action string, actor model.AuditActor, status string, resource string, details any, errText string) {
	if s == nil || s.store == nil {
		return
	}

	entry := model.AuditEntry{
		Action:     action,
		OccurredAt: time.Now().UTC().Format(time.RFC3339Nano),
		Actor:      actor,
		Status:     status,
		Resource:   resource,
		Details:    details,
		Error:      errText,
	}

	if err := s.store.Log(context.WithoutCancel(ctx), entry); err != nil {
		slog.Warn("failed to record activity", "action", action, "session_id", actor.SessionID, "error", err)
	}
}

// Recent returns the latest activity of one student, newest first.
func (s *AuditService) Recent(ctx context.Context, email string, limit int) ([]model.AuditEntry, error) {
	if s == nil || s.store == nil {
		return []model.AuditEntry{}, nil
	}
	return s.store.ListByEmail(ctx, email, clampActivityLimit(limit))
}

func clampActivityLimit(limit int) int {
	if limit <= 0 {
		return defaultActivityLimit
	}
	if limit > maxActivityLimit {
		return maxActivityLimit
	}
	return limit
}

// FileAuditStore appends entries to a JSON-lines file. Used when no
// database is configured.
type FileAuditStore struct {
	filePath string
	mu       sync.Mutex
}

func NewFileAuditStore(filePath string) (*FileAuditStore, error) {
	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return nil, fmt.Errorf("prepare audit directory: %w", err)
	}

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		if err := os.WriteFile(filePath, []byte{}, 0o644); err != nil {
			return nil, fmt.Errorf("initialize audit file: %w", err)
		}
	}

	return &FileAuditStore{filePath: filePath}, nil
}

func (s *FileAuditStore) Log(_ context.Context, entry model.AuditEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open audit file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write audit entry: %w", err)
	}
	return nil
}

func (s *FileAuditStore) ListByEmail(_ context.Context, email string, limit int) ([]model.AuditEntry, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	limit = clampActivityLimit(limit)

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.filePath)
	if err != nil {
		return nil, fmt.Errorf("open audit file: %w", err)
	}
	defer f.Close()

	items := make([]model.AuditEntry, 0, 64)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var entry model.AuditEntry
		if unmarshalErr := json.Unmarshal([]byte(line), &entry); unmarshalErr != nil {
			continue
		}
		if strings.ToLower(entry.Actor.Email) != email {
			continue
		}

		items = append(items, entry)
	}

	if scanErr := scanner.Err(); scanErr != nil {
		return nil, fmt.Errorf("scan audit file: %w", scanErr)
	}

	sort.SliceStable(items, func(i int, j int) bool {
		left, leftErr := parseAuditTime(items[i].OccurredAt)
		right, rightErr := parseAuditTime(items[j].OccurredAt)
		if leftErr != nil || rightErr != nil {
			return items[i].OccurredAt > items[j].OccurredAt
		}
		return left.After(right)
	})

	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func parseAuditTime(raw string) (time.Time, error) {
	if value, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return value.UTC(), nil
	}

	value, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, err
	}

	return value.UTC(), nil
}
