package verdict

import (
	"errors"
	"fmt"
	"io"
	"testing"
)

func TestKindOfThroughWrapping(t *testing.T) {
	base := E(InvalidInput, "Unable to read video file.", io.ErrUnexpectedEOF)
	wrapped := fmt.Errorf("analyze: %w", base)

	if got := KindOf(wrapped); got != InvalidInput {
		t.Fatalf("expected invalid_input, got %s", got)
	}
	if !errors.Is(wrapped, io.ErrUnexpectedEOF) {
		t.Fatalf("expected cause to be reachable through wrapping")
	}
	if got := Message(wrapped, "fallback"); got != "Unable to read video file." {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestKindOfUnknownError(t *testing.T) {
	if got := KindOf(errors.New("boom")); got != Unexpected {
		t.Fatalf("expected unexpected, got %s", got)
	}
	if got := Message(errors.New("boom"), "fallback"); got != "fallback" {
		t.Fatalf("expected fallback message, got %q", got)
	}
}

func TestLabels(t *testing.T) {
	cases := []struct {
		isAI      bool
		wantImage string
		wantVideo string
	}{
		{true, LabelAIImage, LabelAIVideo},
		{false, LabelRealImage, LabelRealVideo},
	}
	for _, tc := range cases {
		if got := ImageLabel(tc.isAI); got != tc.wantImage {
			t.Fatalf("ImageLabel(%v) = %q, want %q", tc.isAI, got, tc.wantImage)
		}
		if got := VideoLabel(tc.isAI); got != tc.wantVideo {
			t.Fatalf("VideoLabel(%v) = %q, want %q", tc.isAI, got, tc.wantVideo)
		}
	}
}

func TestRound2(t *testing.T) {
	cases := map[float64]float64{
		3.336: 3.34,
		3.334: 3.33,
		0:     0,
		12.5:  12.5,
	}
	for in, want := range cases {
		if got := Round2(in); got != want {
			t.Fatalf("Round2(%v) = %v, want %v", in, got, want)
		}
	}
}

func TestComplementary(t *testing.T) {
	if !Complementary(0.3, 0.7) {
		t.Fatalf("expected 0.3+0.7 to be complementary")
	}
	if Complementary(0.3, 0.6) {
		t.Fatalf("expected 0.3+0.6 not to be complementary")
	}
}
