package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"report-portal/internal/model"
)

func TestFileAuditStoreRecentActivity(t *testing.T) {
	t.Parallel()

	store, err := NewFileAuditStore(filepath.Join(t.TempDir(), "audit", "activity.log"))
	require.NoError(t, err)
	ctx := context.Background()

	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	entries := []model.AuditEntry{
		{Action: AuditSessionStarted, OccurredAt: base.Format(time.RFC3339Nano), Actor: model.AuditActor{Email: "student@example.edu"}, Status: "success"},
		{Action: AuditReportSubmitted, OccurredAt: base.Add(time.Hour).Format(time.RFC3339Nano), Actor: model.AuditActor{Email: "Student@Example.edu"}, Status: "success"},
		{Action: AuditReportDownloaded, OccurredAt: base.Add(2 * time.Hour).Format(time.RFC3339Nano), Actor: model.AuditActor{Email: "other@example.edu"}, Status: "success"},
	}
	for _, entry := range entries {
		require.NoError(t, store.Log(ctx, entry))
	}

	items, err := store.ListByEmail(ctx, "student@example.edu", 10)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, AuditReportSubmitted, items[0].Action)
	require.Equal(t, AuditSessionStarted, items[1].Action)

	items, err = store.ListByEmail(ctx, "student@example.edu", 1)
	require.NoError(t, err)
	require.Len(t, items, 1)
}

func TestAuditServiceLogAndRecent(t *testing.T) {
	t.Parallel()

	store, err := NewFileAuditStore(filepath.Join(t.TempDir(), "activity.log"))
	require.NoError(t, err)
	svc := NewAuditService(store)
	ctx := context.Background()

	actor := model.AuditActor{SessionID: "s-1", Email: "student@example.edu", IP: "127.0.0.1"}
	svc.Log(ctx, AuditReportDownloaded, actor, "success", "r1", map[string]any{"filename": "report-r1.pdf"}, "")

	items, err := svc.Recent(ctx, "student@example.edu", 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "r1", items[0].Resource)
	require.Equal(t, actor, items[0].Actor)
}

func TestNilAuditServiceIsNoop(t *testing.T) {
	t.Parallel()

	var svc *AuditService
	svc.Log(context.Background(), AuditSessionEnded, model.AuditActor{}, "success", "", nil, "")

	items, err := svc.Recent(context.Background(), "student@example.edu", 10)
	require.NoError(t, err)
	require.Empty(t, items)
}
