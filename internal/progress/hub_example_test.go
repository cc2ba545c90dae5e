package progress

import (
	"context"
	"fmt"
	"time"
)

// ExampleHub_Emit tallies a crawl's page outcomes as the hub delivers them.
func ExampleHub_Emit() {
	outcomes := map[string]int{}
	tally := sinkFunc(func(_ context.Context, batch []Event) error {
		for _, evt := range batch {
			if evt.Stage == StagePage {
				outcomes[evt.Status]++
			}
		}
		return nil
	})
	hub := NewHub(Config{MaxBatchEvents: 2, MaxBatchWait: time.Second}, tally)

	ts := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	for _, page := range []struct {
		url    string
		status string
	}{
		{"https://nitjsr.ac.in/", StatusOK},
		{"https://nitjsr.ac.in/Academic/Notices", StatusOK},
		{"https://nitjsr.ac.in/Home", StatusDuplicate},
		{"https://nitjsr.ac.in/broken", StatusFailed},
	} {
		hub.Emit(Event{RunID: "run-1", Kind: KindCrawl, TS: ts, Stage: StagePage, URL: page.url, Status: page.status})
	}
	if err := hub.Close(context.Background()); err != nil {
		panic(err)
	}

	fmt.Printf("ok=%d duplicate=%d failed=%d\n", outcomes[StatusOK], outcomes[StatusDuplicate], outcomes[StatusFailed])
	// Output:
	// ok=2 duplicate=1 failed=1
}

// ExampleReport shows a component reporting through the run in its context.
func ExampleReport() {
	var stored int
	capture := sinkFunc(func(_ context.Context, batch []Event) error {
		for _, evt := range batch {
			if evt.Stage == StageBatch && evt.Status == StatusOK {
				stored += evt.Count
			}
		}
		return nil
	})
	hub := NewHub(Config{MaxBatchWait: time.Second}, capture)

	ctx := WithRun(WithEmitter(context.Background(), hub), "run-2", KindIndex)
	Report(ctx, Event{Stage: StageBatch, Status: StatusOK, Count: 5})
	Report(ctx, Event{Stage: StageBatch, Status: StatusOK, Count: 3})
	if err := hub.Close(context.Background()); err != nil {
		panic(err)
	}

	fmt.Printf("chunks stored: %d\n", stored)
	// Output:
	// chunks stored: 8
}

type sinkFunc func(context.Context, []Event) error

func (f sinkFunc) Consume(ctx context.Context, batch []Event) error {
	return f(ctx, batch)
}

func (sinkFunc) Close(context.Context) error {
	return nil
}
