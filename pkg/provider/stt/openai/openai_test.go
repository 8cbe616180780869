package openai

import "testing"

func TestNewRequiresAPIKey(t *testing.T) {
	if _, err := New("", ""); err == nil {
		t.Fatal("New with empty API key succeeded, want error")
	}
}

func TestNewDefaultsModel(t *testing.T) {
	p, err := New("sk-test", "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.model != DefaultModel {
		t.Errorf("model = %q, want %q", p.model, DefaultModel)
	}
}

func TestFileName(t *testing.T) {
	tests := []struct {
		mime string
		want string
	}{
		{"audio/wav", "audio.wav"},
		{"audio/webm", "audio.webm"},
		{"audio/webm;codecs=opus", "audio.webm"},
		{"audio/mpeg", "audio.mp3"},
		{"audio/ogg", "audio.ogg"},
		{"", "audio.wav"},
	}
	for _, tt := range tests {
		if got := fileName(tt.mime); got != tt.want {
			t.Errorf("fileName(%q) = %q, want %q", tt.mime, got, tt.want)
		}
	}
}
