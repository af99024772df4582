package ffprobe

import "testing"

func TestParseSelectsAudioStreams(t *testing.T) {
	output := []byte(`{
		"streams": [
			{"index": 0, "codec_type": "video", "codec_name": "h264"},
			{"index": 1, "codec_type": "audio", "codec_name": "aac", "sample_rate": "48000", "channels": 2},
			{"index": 2, "codec_type": "audio", "codec_name": "opus", "channels": 1}
		],
		"format": {"duration": "123.45", "format_name": "matroska,webm"}
	}`)
	result, err := Parse(output)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	audio := result.AudioStreams()
	if len(audio) != 2 {
		t.Fatalf("expected 2 audio streams, got %d", len(audio))
	}
	if audio[0].CodecName != "aac" || audio[0].Index != 1 {
		t.Fatalf("unexpected first audio stream %+v", audio[0])
	}
	if result.DurationSeconds() != 123.45 {
		t.Fatalf("unexpected duration: %v", result.DurationSeconds())
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	if _, err := Parse([]byte("not json")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestDurationSecondsIgnoresInvalidValues(t *testing.T) {
	for _, value := range []string{"", "N/A", "-3"} {
		if got := (Result{Format: Format{Duration: value}}).DurationSeconds(); got != 0 {
			t.Fatalf("DurationSeconds(%q) = %v, want 0", value, got)
		}
	}
}

func TestArgsEndWithPath(t *testing.T) {
	args := Args("/tmp/input")
	if args[len(args)-1] != "/tmp/input" || args[len(args)-2] != "--" {
		t.Fatalf("unexpected args: %v", args)
	}
}
