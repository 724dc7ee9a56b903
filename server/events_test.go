package server

import (
	"encoding/base64"
	"errors"
	"testing"
)

func TestParseCommand_ValidFrames(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want CommandType
	}{
		{"start", `{"type":"start_inference"}`, CmdStartInference},
		{"stop", `{"type":"stop_inference"}`, CmdStopInference},
		{"defragment", `{"type":"defragment_memory"}`, CmdDefragmentMem},
		{"frequency", `{"type":"adjust_frequency","mode":"high"}`, CmdAdjustFrequency},
		{"inference", `{"type":"run_inference","imageData":"aGk="}`, CmdRunInference},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cmd, err := ParseCommand([]byte(tc.raw))
			if err != nil {
				t.Fatalf("ParseCommand: %v", err)
			}
			if cmd.Type != tc.want {
				t.Errorf("type: got %q, want %q", cmd.Type, tc.want)
			}
		})
	}
}

func TestParseCommand_UnknownTag(t *testing.T) {
	// GIVEN a frame with an unrecognized type tag
	_, err := ParseCommand([]byte(`{"type":"reboot_device"}`))

	// THEN it is classified as unknown, not malformed
	if !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("got %v, want ErrUnknownCommand", err)
	}
}

func TestParseCommand_Malformed(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"not json", `{{{`},
		{"bad frequency mode", `{"type":"adjust_frequency","mode":"turbo"}`},
		{"inference without payload", `{"type":"run_inference"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseCommand([]byte(tc.raw))
			if !errors.Is(err, ErrMalformedCommand) {
				t.Errorf("got %v, want ErrMalformedCommand", err)
			}
		})
	}
}

func TestDecodeImageData(t *testing.T) {
	raw := []byte{0x89, 0x50, 0x4e, 0x47}
	encoded := base64.StdEncoding.EncodeToString(raw)

	t.Run("plain base64", func(t *testing.T) {
		got, err := DecodeImageData(encoded)
		if err != nil {
			t.Fatalf("DecodeImageData: %v", err)
		}
		if string(got) != string(raw) {
			t.Error("roundtrip mismatch")
		}
	})

	t.Run("data URL prefix stripped", func(t *testing.T) {
		got, err := DecodeImageData("data:image/png;base64," + encoded)
		if err != nil {
			t.Fatalf("DecodeImageData: %v", err)
		}
		if string(got) != string(raw) {
			t.Error("roundtrip mismatch")
		}
	})

	t.Run("data URL without payload", func(t *testing.T) {
		if _, err := DecodeImageData("data:image/png;base64"); !errors.Is(err, ErrMalformedCommand) {
			t.Errorf("got %v, want ErrMalformedCommand", err)
		}
	})

	t.Run("invalid base64", func(t *testing.T) {
		if _, err := DecodeImageData("!!not-base64!!"); !errors.Is(err, ErrMalformedCommand) {
			t.Errorf("got %v, want ErrMalformedCommand", err)
		}
	})
}
