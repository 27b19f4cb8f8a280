package testsupport

import (
	"context"
	"strings"
	"testing"

	"needle/internal/config"
	"needle/internal/library"
)

// CatalogJSON mirrors NewCatalog as a seed document.
const CatalogJSON = `{
  "artists": [{
    "name": "Pink Floyd",
    "qualityProfileId": 1,
    "albums": [
      {
        "title": "The Wall",
        "releaseDate": "1979-11-30",
        "releases": [{
          "title": "The Wall",
          "monitored": true,
          "tracks": [
            {"medium": 1, "number": 1, "title": "In the Flesh?", "durationSeconds": 300},
            {"medium": 1, "number": 2, "title": "The Thin Ice", "durationSeconds": 300},
            {"medium": 2, "number": 1, "title": "Hey You", "durationSeconds": 300},
            {"medium": 2, "number": 2, "title": "Is There Anybody Out There?", "durationSeconds": 300}
          ]
        }]
      },
      {
        "title": "Animals",
        "releaseDate": "1977-01-23",
        "tracks": [
          {"number": 1, "title": "Pigs on the Wing 1", "durationSeconds": 300},
          {"number": 2, "title": "Dogs", "durationSeconds": 300},
          {"number": 3, "title": "Pigs (Three Different Ones)", "durationSeconds": 300}
        ]
      }
    ]
  }]
}`

// MustOpenStore opens a library.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *library.Store {
	t.Helper()

	store, err := library.Open(cfg)
	if err != nil {
		t.Fatalf("library.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustSeedStore opens a store holding the CatalogJSON catalog.
func MustSeedStore(t testing.TB, cfg *config.Config) *library.Store {
	t.Helper()

	store := MustOpenStore(t, cfg)
	if _, err := store.SeedCatalog(context.Background(), strings.NewReader(CatalogJSON)); err != nil {
		t.Fatalf("store.SeedCatalog: %v", err)
	}
	return store
}
