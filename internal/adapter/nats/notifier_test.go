package nats

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/attestia/gatekeep/internal/port/notifier"
)

// testConnect connects to NATS or skips the test if NATS_URL is not set.
func testConnect(t *testing.T) *Notifier {
	t.Helper()

	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("requires NATS_URL")
	}

	n, err := Connect(context.Background(), url)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() {
		if err := n.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return n
}

func TestNotifier_Notify(t *testing.T) {
	n := testConnect(t)

	err := n.Notify(context.Background(), notifier.Event{
		Kind:     notifier.KindReviewRequested,
		ReviewID: "rev_test_" + t.Name(),
		AgentID:  "junior-strategist",
		Reason:   "Human review required for: decision.create",
		At:       time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}
}
