package notify

import (
	"context"
	"errors"
	"growthwatch/internal/snapshot"
	"growthwatch/internal/telemetry"
	"growthwatch/lib/extract"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/jordan-wright/email"
	"github.com/stretchr/testify/require"
)

var sampleChanges = snapshot.Changes{
	Added:   []extract.Record{{Name: "Sol Dahl", Growth: 0}},
	Removed: []extract.Record{{Name: "Kai Berg", Growth: -3}},
	Changed: []snapshot.Change{{Name: "Liv Holm", From: 12, To: 15}},
	Renamed: []snapshot.Rename{{
		From:       extract.Record{Name: "Zoë Saldaña", Growth: 4},
		To:         extract.Record{Name: "Zoe Saldana", Growth: 4},
		Similarity: 1,
	}},
}

var sampleReport = Report{
	RunID:   7,
	Time:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	Changes: sampleChanges,
}

func TestRender(t *testing.T) {
	rendered := RenderChanges(sampleChanges)
	for _, expected := range []string{
		"added", "Sol Dahl",
		"removed", "Kai Berg",
		"changed", "12 -> 15 (+3)",
		"renamed", "Zoë Saldaña -> Zoe Saldana",
	} {
		require.Contains(t, rendered, expected)
	}
	require.Less(t, strings.Index(rendered, "added"), strings.Index(rendered, "renamed"))

	records := RenderRecords([]extract.Record{{Name: "Liv Holm", Growth: 12}, {Name: "Kai Berg", Growth: -3}})
	require.Contains(t, records, "Liv Holm")
	require.Contains(t, records, "-3")
	require.Equal(t, "-2", signed(-2))
	require.Equal(t, "0", signed(0))
}

func TestReportSummary(t *testing.T) {
	require.Equal(t, "run 7: 1 added, 1 removed, 1 changed, 1 renamed", sampleReport.Summary())
}

func TestLog(t *testing.T) {
	rec := &telemetry.Recorder{}
	require.NoError(t, NewLog(rec).Notify(context.Background(), sampleReport))
	require.Len(t, rec.Find("debug", "run 7"), 1)

	counts := rec.Find("count", "changes.changed")
	require.Len(t, counts, 1)
	require.EqualValues(t, 1, counts[0].Count)
}

type notifierFunc func(ctx context.Context, report Report) error

func (f notifierFunc) Notify(ctx context.Context, report Report) error {
	return f(ctx, report)
}

func TestMulti(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	count := notifierFunc(func(context.Context, Report) error {
		calls++
		return nil
	})
	fail := notifierFunc(func(context.Context, Report) error {
		return boom
	})

	err := Multi{count, fail, count}.Notify(context.Background(), sampleReport)
	require.ErrorIs(t, err, boom)
	require.Equal(t, 2, calls)

	require.NoError(t, Multi{}.Notify(context.Background(), sampleReport))
}

func TestNewEmail(t *testing.T) {
	_, err := NewEmail(EmailConfig{})
	require.Error(t, err)
	_, err = NewEmail(EmailConfig{Server: "smtp.example.com", EmailAddress: "bot@example.com"})
	require.Error(t, err)

	e, err := NewEmail(EmailConfig{Server: "smtp.example.com", EmailAddress: "bot@example.com", To: []string{"a@example.com"}})
	require.NoError(t, err)
	require.Equal(t, 587, e.config.Port)
	require.Equal(t, "Growth changes", e.config.Subject)
}

func TestEmailNotify(t *testing.T) {
	e, err := NewEmail(EmailConfig{
		Server:       "smtp.example.com",
		Port:         2525,
		EmailAddress: "bot@example.com",
		Password:     "secret",
		To:           []string{"team@example.com"},
	})
	require.NoError(t, err)

	var addrs []string
	var auths []smtp.Auth
	var sent *email.Email
	e.send = func(mail *email.Email, addr string, auth smtp.Auth) error {
		addrs = append(addrs, addr)
		auths = append(auths, auth)
		sent = mail
		if auth != nil {
			return errors.New("smtp: server doesn't support AUTH")
		}
		return nil
	}

	require.NoError(t, e.Notify(context.Background(), sampleReport))
	require.Equal(t, []string{"smtp.example.com:2525", "smtp.example.com:2525"}, addrs)
	require.NotNil(t, auths[0])
	require.Nil(t, auths[1])
	require.Equal(t, []string{"team@example.com"}, sent.To)
	require.Equal(t, "Growth changes (run 7)", sent.Subject)
	require.Contains(t, string(sent.Text), "12 -> 15 (+3)")

	e.send = func(*email.Email, string, smtp.Auth) error {
		return errors.New("connection refused")
	}
	require.ErrorContains(t, e.Notify(context.Background(), sampleReport), "connection refused")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, e.Notify(ctx, sampleReport), context.Canceled)
}
