package store

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkedz/outreach/internal/lead"
)

// setupTestDB creates a migrated lead database in a temp directory.
func setupTestDB(t *testing.T) *Leads {
	t.Helper()

	db, err := Open(filepath.Join(t.TempDir(), "leads.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return NewLeads(db.DB)
}

func TestCreateIfAbsent(t *testing.T) {
	leads := setupTestDB(t)

	inserted, err := leads.CreateIfAbsent("a@x.com", "Ann")
	require.NoError(t, err)
	assert.True(t, inserted)

	// duplicate insert is a no-op and never overwrites
	require.NoError(t, leads.SetStatus("a@x.com", lead.StatusYellow))
	inserted, err = leads.CreateIfAbsent("a@x.com", "Other")
	require.NoError(t, err)
	assert.False(t, inserted)

	l, err := leads.GetByEmail("a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "Ann", l.FirstName)
	assert.Equal(t, lead.StatusYellow, l.Status)
	assert.Equal(t, lead.Token("a@x.com"), l.Token)
	assert.False(t, l.EmailSent)
	assert.Zero(t, l.InteractCount)
}

func TestGetByToken(t *testing.T) {
	leads := setupTestDB(t)

	_, err := leads.CreateIfAbsent("a@x.com", "")
	require.NoError(t, err)

	l, err := leads.GetByToken(lead.Token("a@x.com"))
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", l.Email)

	_, err = leads.GetByToken("deadbeef")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = leads.GetByEmail("missing@x.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateSendOutcome(t *testing.T) {
	leads := setupTestDB(t)
	_, err := leads.CreateIfAbsent("a@x.com", "")
	require.NoError(t, err)

	require.NoError(t, leads.UpdateSendOutcome("a@x.com", true, "email-PL1.html"))
	l, err := leads.GetByEmail("a@x.com")
	require.NoError(t, err)
	assert.True(t, l.EmailSent)
	assert.Equal(t, "email-PL1.html", l.SentTemplate)
	assert.Equal(t, lead.StatusGray, l.Status, "a successful send does not change status")
	assert.Zero(t, l.InteractCount, "a send is not an interaction")

	require.NoError(t, leads.UpdateSendOutcome("a@x.com", false, ""))
	l, err = leads.GetByEmail("a@x.com")
	require.NoError(t, err)
	assert.False(t, l.EmailSent)
	assert.Equal(t, "email-PL1.html", l.SentTemplate, "failure leaves the last template untouched")
}

func TestApplyTrackingEventOpens(t *testing.T) {
	leads := setupTestDB(t)
	_, err := leads.CreateIfAbsent("a@x.com", "")
	require.NoError(t, err)
	token := lead.Token("a@x.com")
	ctx := context.Background()

	l, out, err := leads.ApplyTrackingEvent(ctx, token, lead.Event{Kind: lead.EventOpen})
	require.NoError(t, err)
	assert.Equal(t, lead.StatusYellow, l.Status)
	assert.Equal(t, 1, l.InteractCount)
	require.NotNil(t, l.OpenedAt)
	assert.True(t, out.FirstOpen)
	firstOpened := *l.OpenedAt

	l, out, err = leads.ApplyTrackingEvent(ctx, token, lead.Event{Kind: lead.EventOpen})
	require.NoError(t, err)
	assert.Equal(t, lead.StatusYellow, l.Status)
	assert.Equal(t, 2, l.InteractCount)
	assert.False(t, out.FirstOpen)
	require.NotNil(t, l.OpenedAt)
	assert.Equal(t, firstOpened, *l.OpenedAt, "opened_at is set exactly once")
	require.NotNil(t, l.LastInteractAt)
}

func TestApplyTrackingEventMarkerClick(t *testing.T) {
	leads := setupTestDB(t)
	_, err := leads.CreateIfAbsent("a@x.com", "")
	require.NoError(t, err)
	token := lead.Token("a@x.com")
	ctx := context.Background()

	l, out, err := leads.ApplyTrackingEvent(ctx, token, lead.Event{Kind: lead.EventClick, Marker: lead.StatusGreen})
	require.NoError(t, err)
	assert.Equal(t, lead.StatusGreen, l.Status)
	assert.Equal(t, 1, l.InteractCount)
	assert.True(t, out.Changed)

	// repeat marker click still counts but is not a status change
	l, out, err = leads.ApplyTrackingEvent(ctx, token, lead.Event{Kind: lead.EventClick, Marker: lead.StatusGreen})
	require.NoError(t, err)
	assert.Equal(t, lead.StatusGreen, l.Status)
	assert.Equal(t, 2, l.InteractCount)
	assert.False(t, out.Changed)
}

func TestApplyTrackingEventRedSticky(t *testing.T) {
	leads := setupTestDB(t)
	_, err := leads.CreateIfAbsent("a@x.com", "")
	require.NoError(t, err)
	require.NoError(t, leads.SetStatus("a@x.com", lead.StatusRed))
	token := lead.Token("a@x.com")

	l, out, err := leads.ApplyTrackingEvent(context.Background(), token, lead.Event{Kind: lead.EventClick})
	require.NoError(t, err)
	assert.Equal(t, lead.StatusRed, l.Status, "generic clicks never demote red")
	assert.Equal(t, 1, l.InteractCount, "the counter still increments")
	assert.False(t, out.Changed)
}

func TestApplyTrackingEventUnknownToken(t *testing.T) {
	leads := setupTestDB(t)
	_, err := leads.CreateIfAbsent("a@x.com", "")
	require.NoError(t, err)

	_, _, err = leads.ApplyTrackingEvent(context.Background(), "deadbeef", lead.Event{Kind: lead.EventOpen})
	assert.ErrorIs(t, err, ErrNotFound)

	l, err := leads.GetByEmail("a@x.com")
	require.NoError(t, err)
	assert.Zero(t, l.InteractCount, "no row is modified for an unknown token")
}

func TestApplyTrackingEventConcurrent(t *testing.T) {
	leads := setupTestDB(t)
	_, err := leads.CreateIfAbsent("a@x.com", "")
	require.NoError(t, err)
	token := lead.Token("a@x.com")

	const events = 20
	var wg sync.WaitGroup
	for i := 0; i < events; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ev := lead.Event{Kind: lead.EventOpen}
			if i%2 == 0 {
				ev = lead.Event{Kind: lead.EventClick}
			}
			_, _, err := leads.ApplyTrackingEvent(context.Background(), token, ev)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	l, err := leads.GetByEmail("a@x.com")
	require.NoError(t, err)
	assert.Equal(t, events, l.InteractCount, "no increment may be lost under concurrent events")
	assert.Equal(t, lead.StatusYellow, l.Status)
}

func TestSetStatusAndNotes(t *testing.T) {
	leads := setupTestDB(t)
	_, err := leads.CreateIfAbsent("a@x.com", "")
	require.NoError(t, err)

	require.NoError(t, leads.SetStatus("a@x.com", lead.StatusBlue))
	require.NoError(t, leads.SetNotes("a@x.com", "called on Tuesday"))

	l, err := leads.GetByEmail("a@x.com")
	require.NoError(t, err)
	assert.Equal(t, lead.StatusBlue, l.Status)
	assert.Equal(t, "called on Tuesday", l.Notes)

	assert.Error(t, leads.SetStatus("a@x.com", "purple"))
	assert.ErrorIs(t, leads.SetStatus("missing@x.com", lead.StatusRed), ErrNotFound)
	assert.ErrorIs(t, leads.SetNotes("missing@x.com", "x"), ErrNotFound)
}

func TestDeleteRemovesDetails(t *testing.T) {
	leads := setupTestDB(t)
	_, err := leads.CreateIfAbsent("a@x.com", "")
	require.NoError(t, err)
	require.NoError(t, leads.AddDetail(&lead.Detail{Email: "a@x.com", Name: "Ann", Phone: "123"}))

	details, err := leads.DetailsFor("a@x.com")
	require.NoError(t, err)
	require.Len(t, details, 1)

	require.NoError(t, leads.Delete("a@x.com"))

	_, err = leads.GetByEmail("a@x.com")
	assert.ErrorIs(t, err, ErrNotFound)
	details, err = leads.DetailsFor("a@x.com")
	require.NoError(t, err)
	assert.Empty(t, details)

	assert.ErrorIs(t, leads.Delete("a@x.com"), ErrNotFound)
}

func TestListByStatus(t *testing.T) {
	leads := setupTestDB(t)
	for _, e := range []string{"a@x.com", "b@x.com", "c@x.com"} {
		_, err := leads.CreateIfAbsent(e, "")
		require.NoError(t, err)
	}
	require.NoError(t, leads.SetStatus("b@x.com", lead.StatusYellow))
	require.NoError(t, leads.SetNotes("c@x.com", "warm intro"))

	gray, err := leads.ListByStatus(lead.StatusGray, ListFilter{})
	require.NoError(t, err)
	assert.Len(t, gray, 2)

	found, err := leads.ListByStatus(lead.StatusGray, ListFilter{Search: "warm"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "c@x.com", found[0].Email)

	counts, err := leads.CountByStatus()
	require.NoError(t, err)
	assert.Equal(t, 2, counts[lead.StatusGray])
	assert.Equal(t, 1, counts[lead.StatusYellow])
}

func TestListEligible(t *testing.T) {
	leads := setupTestDB(t)
	for _, e := range []string{"gray1@x.com", "gray2@x.com", "sent@x.com", "green@x.com", "blue@x.com", "red@x.com"} {
		_, err := leads.CreateIfAbsent(e, "")
		require.NoError(t, err)
	}
	require.NoError(t, leads.UpdateSendOutcome("sent@x.com", true, "t.html"))
	require.NoError(t, leads.SetStatus("green@x.com", lead.StatusGreen))
	require.NoError(t, leads.SetStatus("blue@x.com", lead.StatusBlue))
	require.NoError(t, leads.SetStatus("red@x.com", lead.StatusRed))

	eligible, err := leads.ListEligible()
	require.NoError(t, err)
	emails := []string{}
	for _, l := range eligible {
		emails = append(emails, l.Email)
	}
	assert.ElementsMatch(t, []string{"gray1@x.com", "gray2@x.com"}, emails,
		"sent, green, blue and red leads are excluded from batch dispatch")
}

func TestImportCSV(t *testing.T) {
	leads := setupTestDB(t)

	data := "email,first_name\na@x.com,Ann\nnot-an-email,Bob\nb@x.com,Bea\n"
	result, err := leads.ImportCSV(strings.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 2, result.Imported)
	assert.Equal(t, 1, result.Invalid)

	// importing the same file again never creates or overwrites rows
	require.NoError(t, leads.SetStatus("a@x.com", lead.StatusGreen))
	result, err = leads.ImportCSV(strings.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 0, result.Imported)
	assert.Equal(t, 2, result.Skipped)

	l, err := leads.GetByEmail("a@x.com")
	require.NoError(t, err)
	assert.Equal(t, lead.StatusGreen, l.Status)
}

func TestExportCSV(t *testing.T) {
	leads := setupTestDB(t)
	_, err := leads.CreateIfAbsent("a@x.com", "Ann")
	require.NoError(t, err)
	_, err = leads.CreateIfAbsent("b@x.com", "Bea")
	require.NoError(t, err)
	require.NoError(t, leads.SetStatus("b@x.com", lead.StatusGreen))

	var buf bytes.Buffer
	require.NoError(t, leads.ExportCSV(&buf, lead.StatusGreen))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "email,first_name,interact_count", lines[0])
	assert.Equal(t, "b@x.com,Bea,0", lines[1])
}

func TestPruneRemovesOrphanedDetails(t *testing.T) {
	leads := setupTestDB(t)
	_, err := leads.CreateIfAbsent("a@x.com", "Ann")
	require.NoError(t, err)
	require.NoError(t, leads.AddDetail(&lead.Detail{Email: "a@x.com", Name: "Ann"}))
	require.NoError(t, leads.AddDetail(&lead.Detail{Email: "gone@x.com", Name: "Ghost"}))

	pruned, err := leads.Prune()
	require.NoError(t, err)
	assert.Equal(t, 1, pruned)

	details, err := leads.DetailsFor("a@x.com")
	require.NoError(t, err)
	assert.Len(t, details, 1)
}
