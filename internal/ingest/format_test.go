package ingest

import "testing"

func TestCheckFormat(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		want    string
		wantErr bool
	}{
		{"wav", "call.wav", ".wav", false},
		{"mp3", "recording.mp3", ".mp3", false},
		{"m4a", "voicemail.m4a", ".m4a", false},
		{"webm", "meeting.webm", ".webm", false},
		{"ogg", "intake.ogg", ".ogg", false},
		{"uppercase extension", "CALL.WAV", ".wav", false},
		{"mixed case", "Call.Mp3", ".mp3", false},
		{"unsupported", "call.xyz", "", true},
		{"video", "call.mp4", "", true},
		{"no extension", "call", "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CheckFormat(tt.file)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CheckFormat(%q) error = %v, wantErr %v", tt.file, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("CheckFormat(%q) = %q, want %q", tt.file, got, tt.want)
			}
		})
	}
}

func TestCheckFormatErrorType(t *testing.T) {
	_, err := CheckFormat("call.xyz")
	if err == nil {
		t.Fatal("expected error")
	}
	if _, ok := err.(*ValidationError); !ok {
		t.Errorf("CheckFormat error = %T, want *ValidationError", err)
	}
}

func TestIsAudioContentType(t *testing.T) {
	tests := []struct {
		ct   string
		want bool
	}{
		{"audio/mpeg", true},
		{"audio/wav; charset=binary", true},
		{"AUDIO/OGG", true},
		{" audio/mp4", true},
		{"text/html", false},
		{"application/json", false},
		{"video/mp4", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsAudioContentType(tt.ct); got != tt.want {
			t.Errorf("IsAudioContentType(%q) = %v, want %v", tt.ct, got, tt.want)
		}
	}
}

func TestFileNameFromURL(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://example.com/audio/call.wav", "call.wav"},
		{"https://example.com/audio/call.wav?token=abc", "call.wav"},
		{"https://example.com/a%20call.mp3", "a call.mp3"},
		{"https://example.com/", "audio"},
		{"https://example.com", "audio"},
	}
	for _, tt := range tests {
		if got := fileNameFromURL(tt.url); got != tt.want {
			t.Errorf("fileNameFromURL(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestHasAudioExtension(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://example.com/call.mp3", true},
		{"https://example.com/call.MP3?sig=x", true},
		{"https://example.com/call.mp3#t=30", true},
		{"https://example.com/call.pdf", false},
		{"https://example.com/mp3", false},
	}
	for _, tt := range tests {
		if got := hasAudioExtension(tt.url); got != tt.want {
			t.Errorf("hasAudioExtension(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}
