package vision

import (
	"testing"
	"time"

	"proctorcam/internal/model"
)

func TestObjectLabel(t *testing.T) {
	tests := []struct {
		confidence float64
		want       string
	}{
		{0.91, "cell phone (91%)"},
		{0.859, "cell phone (85%)"},
		{1, "cell phone (100%)"},
	}

	for _, tt := range tests {
		got := ObjectLabel(model.Prediction{Class: "cell phone", Confidence: tt.confidence})
		if got != tt.want {
			t.Errorf("Expected '%s', got '%s'", tt.want, got)
		}
	}
}

func TestStatusLine(t *testing.T) {
	ts := time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)

	got := StatusLine(model.Overlay{
		Faces:     []model.Face{{}, {}},
		Message:   "🚨 Intruder Detected",
		Timestamp: ts,
	})
	want := "2024-05-01 10:30:00 | Faces: 2 | Intruder Detected"
	if got != want {
		t.Errorf("Expected '%s', got '%s'", want, got)
	}

	quiet := StatusLine(model.Overlay{Timestamp: ts})
	if quiet != "2024-05-01 10:30:00 | Faces: 0" {
		t.Errorf("Unexpected quiet line: '%s'", quiet)
	}
}

func TestAsciiOnly_StripsEmojiAndVariationSelectors(t *testing.T) {
	if got := asciiOnly("⚠️ No Person Detected"); got != "No Person Detected" {
		t.Errorf("Expected 'No Person Detected', got '%s'", got)
	}
}
