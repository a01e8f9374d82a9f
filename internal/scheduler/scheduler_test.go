package scheduler

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vidcms/backend/internal/feed"
	"github.com/vidcms/backend/internal/logging"
	"github.com/vidcms/backend/internal/models"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAddValidation(t *testing.T) {
	s := New(quietLogger())
	if err := s.Add(Job{Name: "nil", Spec: "@hourly"}); err == nil {
		t.Fatal("expected error for job without func")
	}
	noop := func(context.Context) error { return nil }
	if err := s.Add(Job{Name: "bad", Spec: "not a spec", Run: noop}); err == nil {
		t.Fatal("expected error for invalid spec")
	}
	if err := s.Add(Job{Name: "ok", Spec: "@hourly", Run: noop}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.Add(Job{Name: "ok", Spec: "@daily", Run: noop}); err == nil {
		t.Fatal("expected duplicate error")
	}
	if err := s.Add(Job{Name: "disabled", Run: noop}); err != nil {
		t.Fatalf("disabled job should be accepted: %v", err)
	}
	if err := s.RunNow("disabled"); err == nil {
		t.Fatal("disabled jobs are not registered")
	}
}

func TestRunNowRecoversPanics(t *testing.T) {
	s := New(quietLogger())
	_ = s.Add(Job{Name: "panics", Spec: "@hourly", Run: func(context.Context) error { panic("kaboom") }})
	_ = s.Add(Job{Name: "fails", Spec: "@hourly", Run: func(context.Context) error { return errors.New("boom") }})

	if err := s.RunNow("panics"); err == nil || !strings.Contains(err.Error(), "kaboom") {
		t.Fatalf("expected recovered panic got %v", err)
	}
	if err := s.RunNow("fails"); err == nil {
		t.Fatal("expected job error")
	}
	if err := s.RunNow("missing"); err == nil {
		t.Fatal("expected unknown job error")
	}
}

func TestRunTracesJobs(t *testing.T) {
	var buf bytes.Buffer
	s := New(slog.New(slog.NewJSONHandler(&buf, nil)))
	_ = s.Add(Job{Name: "fails", Spec: "@hourly", Run: func(ctx context.Context) error {
		logging.FromContext(ctx).Info("working")
		return errors.New("boom")
	}})

	if err := s.RunNow("fails"); err == nil {
		t.Fatal("expected job error")
	}
	out := buf.String()
	for _, want := range []string{`"msg":"working"`, `"msg":"span failed"`, `"span_name":"scheduler.fails"`, `"trace_id":`, `"job":"fails"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in log output:\n%s", want, out)
		}
	}
}

func TestScheduledExecution(t *testing.T) {
	s := New(quietLogger())
	ran := make(chan struct{}, 1)
	_ = s.Add(Job{Name: "tick", Spec: "@every 1s", Run: func(context.Context) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	}})

	s.Start()
	defer s.Stop(context.Background())

	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not fire")
	}
}

func TestStopCancelsRunningJobs(t *testing.T) {
	s := New(quietLogger())
	started := make(chan struct{})
	_ = s.Add(Job{Name: "block", Spec: "@every 1s", Run: func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}})
	s.Start()

	select {
	case <-started:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not start")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

type refresherStub struct {
	calls int
	err   error
}

func (r *refresherStub) RefreshTrending(context.Context) (feed.Trending, error) {
	r.calls++
	return feed.Trending{Source: feed.SourceCounters}, r.err
}

type purgerStub struct{ n int64 }

func (p *purgerStub) PurgeExpired(context.Context) (int64, error) { return p.n, nil }

type adSourceStub struct {
	settings []models.AdSetting
	err      error
}

func (a adSourceStub) ListActive(context.Context) ([]models.AdSetting, error) {
	return a.settings, a.err
}

func TestMaintenanceJobs(t *testing.T) {
	s := New(quietLogger())
	refresher := &refresherStub{}
	if err := s.Add(TrendingRefreshJob("@every 5m", refresher, quietLogger())); err != nil {
		t.Fatalf("add trending: %v", err)
	}
	if err := s.Add(SessionPurgeJob("@hourly", &purgerStub{n: 3}, quietLogger())); err != nil {
		t.Fatalf("add purge: %v", err)
	}

	if err := s.RunNow(JobTrendingRefresh); err != nil || refresher.calls != 1 {
		t.Fatalf("trending job: %v (calls %d)", err, refresher.calls)
	}
	if err := s.RunNow(JobSessionPurge); err != nil {
		t.Fatalf("purge job: %v", err)
	}

	refresher.err = errors.New("db down")
	if err := s.RunNow(JobTrendingRefresh); err == nil {
		t.Fatal("expected refresh error to surface")
	}
}

func TestAdsTxtJob(t *testing.T) {
	path := filepath.Join(t.TempDir(), "public", "ads.txt")
	source := adSourceStub{settings: []models.AdSetting{
		{Type: models.AdTypeAdSense, Status: models.StatusActive, PublisherID: "pub-1234567890123456"},
	}}

	job := AdsTxtJob("@every 15m", path, source, []string{"example.com, 42, RESELLER"})
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "google.com, pub-1234567890123456, DIRECT, f08c47fec0942fa0") || !strings.Contains(content, "example.com, 42, RESELLER") {
		t.Fatalf("unexpected ads.txt:\n%s", content)
	}

	failing := AdsTxtJob("@every 15m", path, adSourceStub{err: errors.New("boom")}, nil)
	if err := failing.Run(context.Background()); err == nil {
		t.Fatal("expected source error")
	}
	if again, _ := os.ReadFile(path); string(again) != content {
		t.Fatal("failed run must leave the previous file intact")
	}
}
