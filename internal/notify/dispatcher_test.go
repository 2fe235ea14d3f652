package notify

import (
	"context"
	"errors"
	"testing"
)

type fakeStore struct {
	notifications []Notification
	audits        []AuditLog
	err           error
}

func (f *fakeStore) CreateNotification(_ context.Context, n *Notification) error {
	if f.err != nil {
		return f.err
	}
	f.notifications = append(f.notifications, *n)
	return nil
}

func (f *fakeStore) CreateAuditLog(_ context.Context, a *AuditLog) error {
	if f.err != nil {
		return f.err
	}
	f.audits = append(f.audits, *a)
	return nil
}

func TestDispatcherNotify(t *testing.T) {
	fs := &fakeStore{}
	d := newDispatcherWithStore(fs, nil)

	d.Notify(context.Background(), User("u-1"), "定金已到账", "deposit received", SeveritySuccess, "/requests/r-1")
	d.Notify(context.Background(), RoleGroup("admin"), "待核验", "verification needed", SeverityInfo, "")

	if len(fs.notifications) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(fs.notifications))
	}
	if fs.notifications[0].RecipientKind != "user" || fs.notifications[0].RecipientID != "u-1" {
		t.Fatalf("recipient mismatch: %+v", fs.notifications[0])
	}
	if fs.notifications[1].RecipientKind != "role" || fs.notifications[1].RecipientID != "admin" {
		t.Fatalf("role recipient mismatch: %+v", fs.notifications[1])
	}
	if fs.notifications[0].ID == "" {
		t.Fatalf("expected generated id")
	}

	// 空接收方 / 空标题直接丢弃
	d.Notify(context.Background(), User(""), "t", "m", "", "")
	d.Notify(context.Background(), User("u-1"), "", "m", "", "")
	if len(fs.notifications) != 2 {
		t.Fatalf("expected invalid notifications to be dropped")
	}
}

func TestDispatcherSwallowsErrors(t *testing.T) {
	fs := &fakeStore{err: errors.New("db down")}
	d := newDispatcherWithStore(fs, nil)

	// 写入失败不允许向外抛（panic 或返回值都不行），这里只要不崩即通过
	d.Notify(context.Background(), User("u-1"), "title", "msg", "", "")
	d.Audit(context.Background(), "a-1", "APPROVE_VEHICLE", "vehicle", "v-1", map[string]any{"k": "v"})
}

func TestDispatcherAudit(t *testing.T) {
	fs := &fakeStore{}
	d := newDispatcherWithStore(fs, nil)

	d.Audit(context.Background(), "a-1", "REJECT_VEHICLE", "vehicle", "v-1", map[string]any{"reason": "Photos unclear"})

	if len(fs.audits) != 1 {
		t.Fatalf("expected 1 audit row, got %d", len(fs.audits))
	}
	got := fs.audits[0]
	if got.Action != "REJECT_VEHICLE" || got.EntityType != "vehicle" || got.EntityID != "v-1" {
		t.Fatalf("audit row mismatch: %+v", got)
	}
	if got.Detail == "" {
		t.Fatalf("expected detail json")
	}
}
