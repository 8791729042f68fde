package drive

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/leanfinance/onboarding-service/internal/config"
	"github.com/leanfinance/onboarding-service/pkg/logger"
)

func init() {
	// Initialize logger for tests
	logger.Log = zaptest.NewLogger(nil).Named("test")
}

func testClient(serverURL string) *Client {
	return NewClient(config.DriveConfig{
		BaseURL: serverURL,
		Token:   "drive-token",
		Timeout: 5 * time.Second,
	})
}

func TestFindFolder(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer drive-token", r.Header.Get("Authorization"))
		assert.Equal(t, "true", r.URL.Query().Get("includeItemsFromAllDrives"))
		assert.Equal(t, "allDrives", r.URL.Query().Get("corpora"))
		gotQuery = r.URL.Query().Get("q")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"files": []map[string]string{{"id": "folder-1", "name": "ACME SL"}},
		})
	}))
	defer server.Close()

	client := testClient(server.URL)
	ctx := logger.WithLogger(context.Background(), zaptest.NewLogger(t))

	id, err := client.FindFolder(ctx, "ACME SL", "parent-1")

	require.NoError(t, err)
	assert.Equal(t, "folder-1", id)
	assert.Contains(t, gotQuery, "name = 'ACME SL'")
	assert.Contains(t, gotQuery, "'parent-1' in parents")
	assert.Contains(t, gotQuery, "trashed = false")
}

func TestFindFolder_EscapesQuotes(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"files": []interface{}{}})
	}))
	defer server.Close()

	client := testClient(server.URL)
	ctx := logger.WithLogger(context.Background(), zaptest.NewLogger(t))

	id, err := client.FindFolder(ctx, "O'Brien SL", "parent-1")

	require.NoError(t, err)
	assert.Empty(t, id)
	assert.Contains(t, gotQuery, `O\'Brien SL`)
}

func TestCreateFolder(t *testing.T) {
	var gotMetadata map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "true", r.URL.Query().Get("supportsAllDrives"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotMetadata))
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "new-folder"})
	}))
	defer server.Close()

	client := testClient(server.URL)
	ctx := logger.WithLogger(context.Background(), zaptest.NewLogger(t))

	id, err := client.CreateFolder(ctx, "ACME SL", "parent-1")

	require.NoError(t, err)
	assert.Equal(t, "new-folder", id)
	assert.Equal(t, "ACME SL", gotMetadata["name"])
	assert.Equal(t, folderMimeType, gotMetadata["mimeType"])
	assert.Equal(t, []interface{}{"parent-1"}, gotMetadata["parents"])
}

func TestFindOrCreateFolder(t *testing.T) {
	t.Run("reuses existing", func(t *testing.T) {
		var createCalled bool
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost {
				createCalled = true
			}
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"files": []map[string]string{{"id": "existing"}},
			})
		}))
		defer server.Close()

		client := testClient(server.URL)
		ctx := logger.WithLogger(context.Background(), zaptest.NewLogger(t))

		id, err := client.FindOrCreateFolder(ctx, "ACME SL", "parent-1")
		require.NoError(t, err)
		assert.Equal(t, "existing", id)
		assert.False(t, createCalled)
	})

	t.Run("creates when absent", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost {
				_ = json.NewEncoder(w).Encode(map[string]string{"id": "created"})
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"files": []interface{}{}})
		}))
		defer server.Close()

		client := testClient(server.URL)
		ctx := logger.WithLogger(context.Background(), zaptest.NewLogger(t))

		id, err := client.FindOrCreateFolder(ctx, "ACME SL", "parent-1")
		require.NoError(t, err)
		assert.Equal(t, "created", id)
	})
}

func TestFolderURL(t *testing.T) {
	assert.Equal(t, "https://drive.google.com/drive/folders/f-1", FolderURL("f-1"))
}
