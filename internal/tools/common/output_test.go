package common

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"testing"
)

func captureStdout(t *testing.T, fn func()) []byte {
	t.Helper()
	orig := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stdout = w
	fn()
	_ = w.Close()
	os.Stdout = orig

	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, r); err != nil {
		t.Fatalf("read output: %v", err)
	}
	_ = r.Close()
	return buf.Bytes()
}

func TestPrintCIResultJSONOutput(t *testing.T) {
	out := captureStdout(t, func() {
		PrintCIResult(false, "flagctl set", []string{"x", "y"}, errors.New("boom"))
	})

	var got CIResult
	if err := json.Unmarshal(out, &got); err != nil {
		t.Fatalf("unmarshal output: %v; raw=%q", err, string(out))
	}
	if got.OK || got.Title != "flagctl set" || got.Error != "boom" || len(got.Details) != 2 {
		t.Fatalf("unexpected ci result: %+v", got)
	}
}

func TestPrintCIResultOmitsEmptyError(t *testing.T) {
	out := captureStdout(t, func() {
		PrintCIResult(true, "flagctl list", nil, nil)
	})
	if bytes.Contains(out, []byte(`"error"`)) {
		t.Fatalf("expected no error field, got %q", string(out))
	}
}
