package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/jobradar/seek-crawler/internal/scraper"
)

func TestAppendInsertsRows(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewRecordStoreWithPool(mock, "listings")
	require.NoError(t, err)

	now := time.Unix(1700000000, 0).UTC()
	l := scraper.Listing{
		Title:          "HR Advisor",
		Company:        "Acme Pty Ltd",
		Location:       "Sydney NSW",
		Classification: "Human Resources & Recruitment",
		Subcategory:    "Consulting & Generalist HR",
		URL:            "https://www.seek.com.au/job/101",
		PostedDate:     "2d ago",
		Salary:         "$100k",
		ScrapedAt:      now,
	}

	mock.ExpectExec("INSERT INTO listings").
		WithArgs(
			l.Title,
			l.Company,
			l.Location,
			l.Classification,
			l.Subcategory,
			l.URL,
			l.PostedDate,
			l.Salary,
			l.JobType,
			l.Description,
			l.ScrapedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.Append(context.Background(), []scraper.Listing{l}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadAllScansRows(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewRecordStoreWithPool(mock, "listings")
	require.NoError(t, err)

	now := time.Unix(1700000000, 0).UTC()
	rows := pgxmock.NewRows([]string{
		"title", "company", "location", "classification", "subcategory",
		"job_url", "posted_date", "salary", "job_type", "description", "scraped_at",
	}).AddRow(
		"HR Advisor", "Acme", "Sydney NSW", "Human Resources & Recruitment",
		"Consulting & Generalist HR", "https://www.seek.com.au/job/101",
		"2d ago", "", "", "", now,
	)
	mock.ExpectQuery("SELECT title, company").WillReturnRows(rows)

	listings, err := store.LoadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, listings, 1)
	require.Equal(t, "HR Advisor", listings[0].Title)
	require.Equal(t, now, listings[0].ScrapedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPruneOlderThanReportsRemoved(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewRecordStoreWithPool(mock, "listings")
	require.NoError(t, err)

	cutoff := time.Unix(1700000000, 0).UTC()
	mock.ExpectExec("DELETE FROM listings").
		WithArgs(cutoff).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	removed, err := store.PruneOlderThan(context.Background(), cutoff)
	require.NoError(t, err)
	require.Equal(t, 3, removed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewRecordStoreWithPool_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewRecordStoreWithPool(nil, "listings")
	require.Error(t, err)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewRecordStoreWithPool(mock, "bad;table")
	require.Error(t, err)
}
