package resolver_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"cardsync/internal/assignments"
	"cardsync/internal/resolver"
	"cardsync/internal/scanqueue"
	"cardsync/internal/services/cardserver"
	"cardsync/internal/testsupport"
)

func TestResolverAgainstCardServer(t *testing.T) {
	server := testsupport.NewCardServer(t)
	server.AddCard("04A1B2", `{"type":"command","mode":5}`)
	server.AddCard("04C3D4", `{"type":"audiotracks","mode":1,"name":"Bedtime","tracks":[
		{"name":"Moon","path":"/files/moon.mp3"},
		{"name":"Stars","path":"/files/stars.mp3"}]}`)
	server.AddFile("/files/moon.mp3", []byte("moon-bytes"))
	server.AddFile("/files/stars.mp3", []byte("stars-bytes"))

	cfg := testsupport.NewConfig(t, testsupport.WithCardServer(server.URL))
	store := testsupport.MustOpenStore(t, cfg)
	client, err := cardserver.NewFromConfig(cfg)
	if err != nil {
		t.Fatalf("cardserver.NewFromConfig: %v", err)
	}
	queue := scanqueue.New(4)
	for _, tag := range []string{"04A1B2", "04C3D4"} {
		if err := queue.Push(tag); err != nil {
			t.Fatalf("push %s: %v", tag, err)
		}
	}

	r, err := resolver.New(resolver.SettingsFromConfig(cfg), resolver.Dependencies{
		Transport: client,
		Tags:      queue,
		Store:     store,
	})
	if err != nil {
		t.Fatalf("resolver.New: %v", err)
	}

	ctx := context.Background()
	steps := 0
	for queue.Len() > 0 || r.State() != resolver.StateIdle {
		r.Step(ctx)
		steps++
		if steps > 50 {
			t.Fatalf("resolution did not finish, state %s", r.State())
		}
	}
	// command: pull, login, check, gather. tracks adds two downloads, completion, and assignment.
	if steps != 4+8 {
		t.Fatalf("expected 12 steps, took %d", steps)
	}

	command, ok, err := store.Get(ctx, "04A1B2")
	if err != nil || !ok {
		t.Fatalf("command assignment missing: ok=%v err=%v", ok, err)
	}
	if command.Value != "##0#5#0" {
		t.Fatalf("command value = %q", command.Value)
	}

	tracks, ok, err := store.Get(ctx, "04C3D4")
	if err != nil || !ok {
		t.Fatalf("tracks assignment missing: ok=%v err=%v", ok, err)
	}
	record, err := tracks.Record()
	if err != nil {
		t.Fatalf("decode record: %v", err)
	}
	want := assignments.PathRecord(filepath.Join(cfg.Paths.StagingDir, "Bedtime_04C3D4"), 1)
	if record != want {
		t.Fatalf("record = %+v, want %+v", record, want)
	}
	data, err := os.ReadFile(filepath.Join(record.Path, "002-Stars.mp3"))
	if err != nil || string(data) != "stars-bytes" {
		t.Fatalf("track content = %q, err=%v", data, err)
	}
}

func TestResolverRejectsBadCredentials(t *testing.T) {
	server := testsupport.NewCardServer(t)
	server.Password = "other"
	server.AddCard("04A1B2", `{"type":"command","mode":5}`)

	cfg := testsupport.NewConfig(t, testsupport.WithCardServer(server.URL))
	store := testsupport.MustOpenStore(t, cfg)
	client, err := cardserver.NewFromConfig(cfg)
	if err != nil {
		t.Fatal(err)
	}
	queue := scanqueue.New(1)
	_ = queue.Push("04A1B2")
	r, err := resolver.New(resolver.SettingsFromConfig(cfg), resolver.Dependencies{Transport: client, Tags: queue, Store: store})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	r.Step(ctx)
	if got := r.Step(ctx); got != resolver.StateIdle {
		t.Fatalf("expected idle after failed login, got %s", got)
	}
	list, err := store.List(ctx)
	if err != nil || len(list) != 0 {
		t.Fatalf("expected empty store, got %v err=%v", list, err)
	}
	if status := r.Status(); status.LastOutcome != "login_failed" {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestResolverAbandonsStalledTrack(t *testing.T) {
	server := testsupport.NewCardServer(t)
	server.AddCard("04E5F6", `{"type":"audiotracks","mode":2,"name":"Lullaby","tracks":[
		{"name":"Hang","path":"/files/hang.mp3"}]}`)
	server.AddStallingFile("/files/hang.mp3")

	cfg := testsupport.NewConfig(t, testsupport.WithCardServer(server.URL))
	cfg.CardServer.RequestTimeout = 1
	store := testsupport.MustOpenStore(t, cfg)
	client, err := cardserver.NewFromConfig(cfg)
	if err != nil {
		t.Fatal(err)
	}
	queue := scanqueue.New(1)
	_ = queue.Push("04E5F6")
	r, err := resolver.New(resolver.SettingsFromConfig(cfg), resolver.Dependencies{Transport: client, Tags: queue, Store: store})
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	for i := 0; i < 4; i++ {
		r.Step(ctx)
	}
	if r.State() != resolver.StateDownloadFiles {
		t.Fatalf("expected downloading state, got %s", r.State())
	}

	done := make(chan resolver.State, 1)
	go func() { done <- r.Step(ctx) }()
	select {
	case got := <-done:
		if got != resolver.StateIdle {
			t.Fatalf("expected idle after stalled track, got %s", got)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Step blocked on a stalled track body")
	}

	if status := r.Status(); status.LastOutcome != "download_failed" {
		t.Fatalf("unexpected status %+v", status)
	}
	if _, ok, _ := store.Get(ctx, "04E5F6"); ok {
		t.Fatal("stalled card must not be assigned")
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.StagingDir, "Lullaby_04E5F6.partial")); !os.IsNotExist(err) {
		t.Fatalf("expected staging removed, stat err = %v", err)
	}
}
