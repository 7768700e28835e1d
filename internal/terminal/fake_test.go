package terminal

import (
	"context"
	"errors"
	"testing"
)

func TestFakeSendKeysRecordsCommand(t *testing.T) {
	f := NewFake()
	f.Sessions["pane-1"] = true

	if err := f.SendKeys(context.Background(), "pane-1", "echo hi", true); err != nil {
		t.Fatalf("SendKeys: %v", err)
	}
	if len(f.Sent) != 1 {
		t.Fatalf("Sent = %+v, want one recorded command", f.Sent)
	}
	got := f.Sent[0]
	if got.TerminalName != "pane-1" || got.Text != "echo hi" || !got.PressEnter {
		t.Errorf("Sent[0] = %+v, want {pane-1 echo hi true}", got)
	}
}

func TestFakeSendKeysHonorsFailWith(t *testing.T) {
	f := NewFake()
	f.FailWith = errors.New("boom")

	err := f.SendKeys(context.Background(), "pane-1", "echo hi", true)
	if !errors.Is(err, f.FailWith) {
		t.Fatalf("SendKeys error = %v, want %v", err, f.FailWith)
	}
	if len(f.Sent) != 0 {
		t.Errorf("Sent = %+v, want no recording when FailWith is set", f.Sent)
	}
}

func TestFakeSessionExistsReflectsSeed(t *testing.T) {
	f := NewFake()
	f.Sessions["known-pane"] = true

	exists, err := f.SessionExists(context.Background(), "known-pane")
	if err != nil || !exists {
		t.Errorf("SessionExists(known-pane) = (%v, %v), want (true, nil)", exists, err)
	}
	exists, err = f.SessionExists(context.Background(), "missing-pane")
	if err != nil || exists {
		t.Errorf("SessionExists(missing-pane) = (%v, %v), want (false, nil)", exists, err)
	}
}

func TestFakeCapturePaneConcatenatesSentText(t *testing.T) {
	f := NewFake()
	f.Sessions["pane-1"] = true
	f.Sessions["pane-2"] = true

	if err := f.SendKeys(context.Background(), "pane-1", "echo one", true); err != nil {
		t.Fatalf("SendKeys: %v", err)
	}
	if err := f.SendKeys(context.Background(), "pane-2", "echo two", true); err != nil {
		t.Fatalf("SendKeys: %v", err)
	}
	if err := f.SendKeys(context.Background(), "pane-1", "echo three", true); err != nil {
		t.Fatalf("SendKeys: %v", err)
	}

	out, err := f.CapturePane(context.Background(), "pane-1", 0)
	if err != nil {
		t.Fatalf("CapturePane: %v", err)
	}
	if out != "echo oneecho three" {
		t.Errorf("CapturePane(pane-1) = %q, want %q", out, "echo oneecho three")
	}
}
