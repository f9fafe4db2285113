package asset

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestLocalResource(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "transforms.json")
	if err := os.WriteFile(file, []byte(`{}`), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := NewResource(file, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer res.Close()

	if payload, _ := io.ReadAll(res); string(payload) != `{}` {
		t.Fatalf("expected resource payload '{}'; got %q", payload)
	}
}

func TestRelativeLocalResource(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "transforms.json"), []byte(`{}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "train"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "train", "r_0.png"), []byte("png"), 0o644); err != nil {
		t.Fatal(err)
	}

	parent, err := NewResource(filepath.Join(dir, "transforms.json"), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer parent.Close()

	// Frame paths resolve relative to the descriptor that declared them.
	frame, err := NewResource("train/r_0.png", parent)
	if err != nil {
		t.Fatal(err)
	}
	defer frame.Close()

	if payload, _ := io.ReadAll(frame); string(payload) != "png" {
		t.Fatalf("expected frame payload 'png'; got %q", payload)
	}
}

func TestHttpResource(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/data/transforms.json" {
			w.Write([]byte("OK"))
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	res, err := NewResource(server.URL+"/data/transforms.json", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer res.Close()

	if !res.IsRemote() {
		t.Fatal("expected http resource to report as remote")
	}

	fetchUrl := server.URL + "/data/missing.json"
	expError := fmt.Sprintf("resource: could not fetch '%s': status %d", fetchUrl, 404)
	_, err = NewResource(fetchUrl, nil)
	if err == nil || err.Error() != expError {
		t.Fatalf("expected to get: %s; got %v", expError, err)
	}
}

func TestUnsupportedResourceScheme(t *testing.T) {
	expError := "resource: unsupported scheme 'gopher'"
	_, err := NewResource("gopher://digging.go", nil)
	if err == nil || err.Error() != expError {
		t.Fatalf("expected to get: %s; got %v", expError, err)
	}
}
