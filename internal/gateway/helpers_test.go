package gateway

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/flemzord/utsuwa/internal/companion"
	"github.com/flemzord/utsuwa/internal/core"
	"github.com/flemzord/utsuwa/internal/cron"
	"github.com/flemzord/utsuwa/internal/cron/crontest"
	"github.com/flemzord/utsuwa/internal/embedding"
	"github.com/flemzord/utsuwa/internal/embedding/embeddingtest"
	"github.com/flemzord/utsuwa/internal/memory"
	"github.com/flemzord/utsuwa/internal/savefile"
	"github.com/flemzord/utsuwa/internal/store"
	"github.com/flemzord/utsuwa/internal/telemetry"
	"gopkg.in/yaml.v3"
)

const testToken = "test-token"

var fixedNow = time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)

// fixture is a gateway wired to in-memory services behind an httptest
// server.
type fixture struct {
	g     *Gateway
	store *store.InMemoryStore
	live  *companion.Live
	job   *crontest.MockJob
	srv   *httptest.Server
}

// newFixture registers a full set of services, lets setup replace or drop
// some, and serves the resulting router.
func newFixture(t *testing.T, cfg Config, setup func(ctx *core.AppContext)) *fixture {
	t.Helper()

	appCtx := core.NewAppContext(discard, t.TempDir())
	clock := func() time.Time { return fixedNow }

	s := store.NewInMemoryStore()
	live := companion.NewLive(s.Characters(), companion.WithClock(clock))
	model := &embeddingtest.Model{Vectors: map[string][]float32{"tea": {1, 0}}}
	svc := embeddingtest.ReadyService(t.Context(), model)
	metrics := telemetry.NewMetrics()
	opts := savefile.Options{AppVersion: "test", Clock: clock, Metrics: metrics}

	job := &crontest.MockJob{NameVal: "sweep", ScheduleVal: "@every 1h"}
	sched := cron.NewScheduler(discard, metrics)
	if err := sched.RegisterJob(job); err != nil {
		t.Fatal(err)
	}

	appCtx.RegisterService(store.ServiceName, store.Store(s))
	appCtx.RegisterService(companion.LiveService, live)
	appCtx.RegisterService(embedding.ServiceName, svc)
	appCtx.RegisterService(telemetry.ServiceName, metrics)
	appCtx.RegisterService(savefile.CodecService, savefile.NewCodec(s, live, opts))
	appCtx.RegisterService(savefile.MigratorService, savefile.NewMigrator(s, live, opts))
	appCtx.RegisterService(memory.RecallerService, memory.NewRecaller(svc, s.Facts(), memory.DefaultRankOptions(), discard))
	appCtx.RegisterService(cron.SchedulerService, sched)
	if setup != nil {
		setup(appCtx)
	}

	g := &Gateway{config: cfg}
	if err := g.Provision(appCtx); err != nil {
		t.Fatal(err)
	}
	g.now = clock
	g.bind()
	g.startedAt = fixedNow.Add(-90 * time.Second)

	srv := httptest.NewServer(g.buildRouter())
	t.Cleanup(srv.Close)
	return &fixture{g: g, store: s, live: live, job: job, srv: srv}
}

func authed() Config {
	return Config{Auth: AuthConfig{BearerToken: testToken}}
}

// do sends a request with the test bearer token unless token is empty.
func (f *fixture) do(t *testing.T, method, path, token, body string) *http.Response {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(t.Context(), method, f.srv.URL+path, r)
	if err != nil {
		t.Fatal(err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := f.srv.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

// mustYAMLNode parses YAML text into a *yaml.Node for Configure calls.
func mustYAMLNode(t *testing.T, text string) *yaml.Node {
	t.Helper()
	var node yaml.Node
	if err := yaml.Unmarshal([]byte(text), &node); err != nil {
		t.Fatalf("YAML parse: %v", err)
	}
	if len(node.Content) > 0 {
		return node.Content[0]
	}
	return &node
}
