package client

import (
	"strings"
	"testing"
)

func TestReadSSEFrames(t *testing.T) {
	body := "retry: 3000\n\n" +
		"event: task-update\nid: 1\ndata: {\"sequence\":1}\n\n" +
		": ping\n\n" +
		"event: stream-gap\ndata: {\"dropped\":4}\n\n"

	var frames []sseFrame
	err := readSSE(strings.NewReader(body), func(f sseFrame) (bool, error) {
		frames = append(frames, f)
		return true, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(frames) != 3 {
		t.Fatalf("got %d frames: %+v", len(frames), frames)
	}
	if frames[0].Event != "task-update" || frames[0].ID != "1" || frames[0].Data != `{"sequence":1}` {
		t.Fatalf("frame 0: %+v", frames[0])
	}
	if frames[1].Comment != "ping" {
		t.Fatalf("frame 1: %+v", frames[1])
	}
	if frames[2].Event != "stream-gap" || frames[2].Data != `{"dropped":4}` {
		t.Fatalf("frame 2: %+v", frames[2])
	}
}

func TestReadSSEStopEarly(t *testing.T) {
	body := "data: one\n\ndata: two\n\ndata: three\n\n"
	var got []string
	err := readSSE(strings.NewReader(body), func(f sseFrame) (bool, error) {
		got = append(got, f.Data)
		return len(got) < 2, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[1] != "two" {
		t.Fatalf("got %v", got)
	}
}

func TestReadSSEMultilineData(t *testing.T) {
	body := "data: line1\ndata: line2\n\n"
	var got string
	err := readSSE(strings.NewReader(body), func(f sseFrame) (bool, error) {
		got = f.Data
		return true, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if got != "line1\nline2" {
		t.Fatalf("got %q", got)
	}
}

func TestReadSSEUnterminatedFinalFrame(t *testing.T) {
	body := "data: tail"
	var got []string
	err := readSSE(strings.NewReader(body), func(f sseFrame) (bool, error) {
		got = append(got, f.Data)
		return true, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != "tail" {
		t.Fatalf("got %v", got)
	}
}
