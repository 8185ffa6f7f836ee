package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsOnly(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 8000, cfg.Server.Port)
	require.Equal(t, "https://www.seek.com.au", cfg.Scraper.BaseURL)
	require.Equal(t, 20, cfg.Scraper.MaxPages)
	require.Equal(t, "json", cfg.Storage.Provider)
	require.Equal(t, 30, cfg.Storage.RetentionDays)
	require.Equal(t, "headless", cfg.Scraper.Fetcher)
	require.Contains(t, cfg.Scraper.ExcludedSubcategories, "Recruitment - Agency")
}

func TestLoad_FromFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
server:
  port: 9001
scraper:
  max_pages: 5
  fetcher: static
  excluded_companies:
    - Hays
    - Randstad
storage:
  provider: memory
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9001, cfg.Server.Port)
	require.Equal(t, 5, cfg.Scraper.MaxPages)
	require.Equal(t, "static", cfg.Scraper.Fetcher)
	require.Equal(t, []string{"Hays", "Randstad"}, cfg.Scraper.ExcludedCompanies)
	require.Equal(t, "memory", cfg.Storage.Provider)
}

func TestValidate_Failures(t *testing.T) {
	t.Parallel()

	base := func() Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	cfg := base()
	cfg.Scraper.Fetcher = "carrier-pigeon"
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.Storage.Provider = "postgres"
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.Archive.Provider = "gcs"
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.Auth.Enabled = true
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.PubSub.Enabled = true
	require.Error(t, cfg.Validate())
}

func TestScraperConfig_SearchURL(t *testing.T) {
	t.Parallel()

	sc := ScraperConfig{
		BaseURL:            "https://www.seek.com.au",
		ClassificationSlug: "jobs-in-human-resources-recruitment",
	}
	require.Equal(t,
		"https://www.seek.com.au/jobs-in-human-resources-recruitment",
		sc.SearchURL())

	sc.DateRangeDays = 3
	sc.SubclassificationIDs = "6323,6322,6321"
	require.Equal(t,
		"https://www.seek.com.au/jobs-in-human-resources-recruitment?daterange=3&subclassification=6323%2C6322%2C6321",
		sc.SearchURL())
}
