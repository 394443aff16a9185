package cli

import (
	"bytes"
	"context"
	"elmah/config"
	"elmah/handlers"
	"elmah/service"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f, err := service.NewFactory([]config.StoreConfig{
		{Type: config.StoreMemory, ApplicationName: "Shop"},
		{Type: config.StoreMemory, ApplicationName: "Blog"},
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })

	h := handlers.NewHandler(service.NewErrorService(f, nil), "", nil)
	srv := httptest.NewServer(handlers.NewRouter(h, config.ServerConfig{}))
	t.Cleanup(srv.Close)
	return srv
}

const sampleDoc = `<error type="NullReference" message="Object reference not set" statusCode="500" time="2024-05-01T08:00:00.0000000Z"></error>`

func TestClient_RoundTrip(t *testing.T) {
	ctx := context.Background()
	srv := newTestServer(t)
	client := NewClient(srv.URL + "/")

	require.NoError(t, client.HealthCheck(ctx))

	apps, err := client.Applications(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Shop", "Blog"}, apps)

	id, err := client.LogXML(ctx, "Blog", strings.NewReader(sampleDoc))
	require.NoError(t, err)

	page, err := client.ListErrors(ctx, "Blog", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
	require.Len(t, page.Entries, 1)
	assert.Equal(t, id, page.Entries[0].ID)

	detail, err := client.GetError(ctx, "Blog", id)
	require.NoError(t, err)
	assert.Equal(t, "Object reference not set", detail.Message)
	assert.Equal(t, 500, detail.StatusCode)

	doc, err := client.GetErrorXML(ctx, "Blog", id)
	require.NoError(t, err)
	assert.Contains(t, doc, `application="Blog"`)

	var csv bytes.Buffer
	require.NoError(t, client.Download(ctx, "Blog", &csv))
	assert.Contains(t, csv.String(), srv.URL+"/api/errors/"+id)

	page, err = client.ListErrors(ctx, "", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, page.Total, "default application is Shop")
}

func TestClient_Errors(t *testing.T) {
	ctx := context.Background()
	client := NewClient(newTestServer(t).URL)

	_, err := client.GetError(ctx, "Shop", "bogus")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 400")

	_, err = client.GetError(ctx, "Shop", "7c9e6679-7425-40de-944b-e07fc1f90ae7")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 404")

	_, err = client.ListErrors(ctx, "Nope", 0, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Unknown application")

	_, err = client.LogXML(ctx, "", strings.NewReader("not xml"))
	require.Error(t, err)
}

func TestConsole_Commands(t *testing.T) {
	ctx := context.Background()
	srv := newTestServer(t)

	var out bytes.Buffer
	c := &Console{running: true, client: NewClient(srv.URL), out: &out}

	id, err := c.client.LogXML(ctx, "", strings.NewReader(sampleDoc))
	require.NoError(t, err)

	c.handleCommand("list")
	assert.Contains(t, out.String(), "Total: 1")
	assert.Contains(t, out.String(), id)

	out.Reset()
	c.handleCommand("show " + id)
	assert.Contains(t, out.String(), "Object reference not set")

	out.Reset()
	c.handleCommand("xml " + id)
	assert.Contains(t, out.String(), "<error ")

	out.Reset()
	c.handleCommand("use Blog")
	c.handleCommand("list")
	assert.Contains(t, out.String(), "No errors logged.")

	out.Reset()
	c.handleCommand("apps")
	assert.Contains(t, out.String(), "* Blog")

	c.handleCommand("frobnicate")
	assert.Contains(t, out.String(), "Unknown command: frobnicate")

	c.handleCommand("quit")
	assert.False(t, c.running)
}

func TestBanner(t *testing.T) {
	var out bytes.Buffer
	PrintBannerWidth(&out, "Errors", 12)

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "║  Errors  ║", lines[1])
	assert.Equal(t, "╔══════════╗", lines[0])
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "héllo w...", truncate("héllo wörld!", 10))
}
