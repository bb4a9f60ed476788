package oracle

import (
	"strings"
	"testing"

	"proctorcam/internal/alert"
)

func TestDecode_KeepsFractionalArea(t *testing.T) {
	body := `{"predictions":[{"class":"cell phone","confidence":0.9,"x":300,"y":300,"width":70.9,"height":70.9}]}`

	predictions, skipped, err := Decode(strings.NewReader(body))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if skipped != 0 || len(predictions) != 1 {
		t.Fatalf("Expected 1 prediction, got %d (%d skipped)", len(predictions), skipped)
	}

	p := predictions[0]
	if p.Width != 70 || p.Height != 70 {
		t.Errorf("Expected 70x70 pixel box, got %dx%d", p.Width, p.Height)
	}
	if area := p.Area(); area < 5026 || area > 5027 {
		t.Errorf("Expected area 5026.81, got %.2f", area)
	}

	if _, ok := alert.FindSuspicious(predictions, alert.DefaultObjectMinConfidence, alert.DefaultObjectMinArea); !ok {
		t.Error("Expected a 70.9x70.9 box to pass the 5000 area floor")
	}
}

func TestDecode_SkipsOutOfRangeValues(t *testing.T) {
	tests := []struct {
		name   string
		record string
	}{
		{"huge width", `{"class":"book","confidence":0.9,"x":10,"y":10,"width":1e30,"height":4}`},
		{"huge height", `{"class":"book","confidence":0.9,"x":10,"y":10,"width":4,"height":1e30}`},
		{"huge center", `{"class":"book","confidence":0.9,"x":-1e19,"y":10,"width":4,"height":4}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			predictions, skipped, err := Decode(strings.NewReader(`{"predictions":[` + tt.record + `]}`))
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if skipped != 1 || len(predictions) != 0 {
				t.Errorf("Expected record to be skipped, got %d predictions, %d skipped", len(predictions), skipped)
			}
		})
	}
}
