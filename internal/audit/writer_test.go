package audit

import (
	"log/slog"
	"os"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestLogDoesNotBlockWhenBufferFull(t *testing.T) {
	w := NewWriter(nil, testLogger())

	for i := 0; i < bufferSize+10; i++ {
		w.Log(Entry{Action: "add_item"})
	}

	if len(w.entries) != bufferSize {
		t.Errorf("expected the channel to be full at %d, got %d", bufferSize, len(w.entries))
	}
}
