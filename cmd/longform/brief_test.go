package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/longform/internal/models"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadBrief_Formats(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"yaml", "brief.yaml", `
user_id: user-1
topic: Tides
duration_seconds: 2100
model_tier: premium
content_points:
  - title: Gravity
  - title: Coastlines
sponsor:
  name: Acme
  message: Acme makes maps
  after_point: 1
sources:
  - title: NOAA
    url: https://example.com/tides
    verification: verified
    starred: true
`},
		{"toml", "brief.toml", `
user_id = "user-1"
topic = "Tides"
duration_seconds = 2100
model_tier = "premium"

[[content_points]]
title = "Gravity"

[[content_points]]
title = "Coastlines"

[sponsor]
name = "Acme"
message = "Acme makes maps"
after_point = 1

[[sources]]
title = "NOAA"
url = "https://example.com/tides"
verification = "verified"
starred = true
`},
		{"json", "brief.json", `{
  "user_id": "user-1",
  "topic": "Tides",
  "duration_seconds": 2100,
  "model_tier": "premium",
  "content_points": [{"title": "Gravity"}, {"title": "Coastlines"}],
  "sponsor": {"name": "Acme", "message": "Acme makes maps", "after_point": 1},
  "sources": [{"title": "NOAA", "url": "https://example.com/tides", "verification": "verified", "starred": true}]
}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			brief, err := loadBrief(writeFile(t, tt.file, tt.content))
			require.NoError(t, err)

			assert.Equal(t, "user-1", brief.UserID)
			assert.Equal(t, 2100, brief.DurationSeconds)
			assert.Equal(t, models.TierPremium, brief.ModelTier)
			require.Len(t, brief.ContentPoints, 2)
			assert.Equal(t, "Coastlines", brief.ContentPoints[1].Title)
			require.NotNil(t, brief.Sponsor)
			assert.Equal(t, 1, brief.Sponsor.AfterPoint)
			require.Len(t, brief.Sources, 1)
			assert.Equal(t, models.VerificationVerified, brief.Sources[0].Verification)
			assert.True(t, brief.Sources[0].Starred)
		})
	}
}

func TestLoadBrief_Errors(t *testing.T) {
	_, err := loadBrief(writeFile(t, "brief.txt", "topic: x"))
	assert.Error(t, err)

	_, err = loadBrief(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = loadBrief(writeFile(t, "brief.json", "{not json"))
	assert.Error(t, err)
}
