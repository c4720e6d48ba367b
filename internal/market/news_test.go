package market

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"onchain-trade-agent/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHeadlines(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		// Arrange
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Apikey secret", r.Header.Get("Authorization"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"Data":[
				{"source":"coindesk","title":"ETH rallies","url":"https://x/1","published_on":1700000000},
				{"title":"No source"},
				{"source":"a","title":"3"},
				{"source":"b","title":"4"},
				{"source":"c","title":"5"},
				{"source":"d","title":"6"}
			]}`))
		}))
		defer server.Close()
		c := NewNewsClient(&config.News{URL: server.URL, ApiKey: "secret"}, zap.NewNop())

		// Act
		got, err := c.Headlines(context.Background())

		// Assert
		require.NoError(t, err)
		require.Len(t, got, 5)
		assert.Equal(t, "coindesk", got[0].Source)
		assert.Equal(t, int64(1700000000), got[0].PublishedAt.Unix())
		assert.Equal(t, "unknown", got[1].Source)
		assert.False(t, got[1].PublishedAt.IsZero())
	})

	t.Run("ClientErrorNotRetried", func(t *testing.T) {
		calls := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer server.Close()
		c := NewNewsClient(&config.News{URL: server.URL}, zap.NewNop())

		_, err := c.Headlines(context.Background())

		assert.ErrorContains(t, err, "status 401")
		assert.Equal(t, 1, calls)
	})
}
