package artifacts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gqlregistry/registry-core/internal/pkg/logger"
)

func TestStoreEmulatorPutGetDeleteLifecycle(t *testing.T) {
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("REGISTRY_RUN_GCS_EMULATOR_INTEGRATION")), "true") {
		t.Skip("set REGISTRY_RUN_GCS_EMULATOR_INTEGRATION=true to run emulator integration tests")
	}

	emulatorHost := strings.TrimSpace(os.Getenv("REGISTRY_GCS_EMULATOR_HOST"))
	if emulatorHost == "" {
		emulatorHost = strings.TrimSpace(os.Getenv("STORAGE_EMULATOR_HOST"))
	}
	if emulatorHost == "" {
		emulatorHost = "http://127.0.0.1:4443"
	}
	emulatorHost = strings.TrimRight(emulatorHost, "/")

	if !isEmulatorReachable(emulatorHost) {
		t.Skipf("storage emulator not reachable at %s", emulatorHost)
	}

	suffix := time.Now().UnixNano()
	bucket := fmt.Sprintf("registry-it-artifacts-%d", suffix)
	createBucketIfMissing(t, emulatorHost, bucket)

	t.Setenv("ARTIFACT_GCS_BUCKET_NAME", bucket)
	t.Setenv("STORAGE_EMULATOR_HOST", emulatorHost)
	t.Setenv("OBJECT_STORAGE_PUBLIC_BASE_URL", emulatorHost)

	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	defer log.Sync()

	ctx := context.Background()
	client, cfg, err := NewStorageClient(ctx)
	if err != nil {
		t.Fatalf("NewStorageClient: %v", err)
	}
	store, err := NewStore(client, cfg, log)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	targetID := fmt.Sprintf("target-%d", suffix)
	key := Key(targetID, "", TypeSDL)

	if err := store.Put(ctx, key, TypeSDL, []byte("type Query { id: ID }")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	rc, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	body, err := io.ReadAll(rc)
	_ = rc.Close()
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(body) != "type Query { id: ID }" {
		t.Fatalf("body: want=%q got=%q", "type Query { id: ID }", string(body))
	}

	attrs, err := store.Attrs(ctx, key)
	if err != nil {
		t.Fatalf("Attrs: %v", err)
	}
	if attrs.ContentType == "" {
		t.Fatalf("expected a content type to be recorded")
	}

	contractKey := Key(targetID, "public", TypeSupergraph)
	if err := store.Put(ctx, contractKey, TypeSupergraph, []byte("type Query { id: ID }")); err != nil {
		t.Fatalf("Put(contract scoped): %v", err)
	}

	if err := store.DeletePrefix(ctx, fmt.Sprintf("artifact/%s", targetID)); err != nil {
		t.Fatalf("DeletePrefix: %v", err)
	}
	if _, err := store.Get(ctx, key); err == nil {
		t.Fatalf("expected Get to fail after DeletePrefix")
	}
}

func isEmulatorReachable(emulatorHost string) bool {
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(emulatorHost + "/storage/v1/b?project=local-dev")
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 500
}

func createBucketIfMissing(t *testing.T, emulatorHost string, bucket string) {
	t.Helper()
	payload, err := json.Marshal(map[string]string{"name": bucket})
	if err != nil {
		t.Fatalf("json.Marshal(bucket): %v", err)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	req, err := http.NewRequest(http.MethodPost, emulatorHost+"/storage/v1/b?project=local-dev", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("http.NewRequest(create bucket): %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("create bucket %q: %v", bucket, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated || resp.StatusCode == http.StatusConflict {
		return
	}
	b, _ := io.ReadAll(resp.Body)
	t.Fatalf("create bucket %q failed: status=%d body=%s", bucket, resp.StatusCode, strings.TrimSpace(string(b)))
}

func TestKey_ScopesUnderContractsWhenContractNameSet(t *testing.T) {
	got := Key("t1", "", TypeSDL)
	want := "artifact/t1/sdl"
	if got != want {
		t.Fatalf("Key() = %q, want %q", got, want)
	}

	got = Key("t1", "public", TypeServices)
	want = "artifact/t1/contracts/public/services"
	if got != want {
		t.Fatalf("Key() = %q, want %q", got, want)
	}
}
