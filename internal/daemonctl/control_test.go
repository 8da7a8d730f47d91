package daemonctl_test

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"quill/internal/api"
	"quill/internal/content"
	"quill/internal/daemonctl"
	"quill/internal/testsupport"
)

func unreachableClient(t *testing.T) *api.Client {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := listener.Addr().String()
	_ = listener.Close()
	return api.NewClient("http://"+addr, api.WithHTTPClient(&http.Client{Timeout: time.Second}))
}

func fakeDaemon(t *testing.T, status api.DaemonStatus) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/health":
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
		case "/api/status":
			_ = json.NewEncoder(w).Encode(status)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestEnsureStartedDetectsRunningDaemon(t *testing.T) {
	srv := fakeDaemon(t, api.DaemonStatus{Running: true, PID: 42})
	client := api.NewClient(srv.URL)

	result, err := daemonctl.EnsureStarted(context.Background(), client, "/nonexistent/quill", daemonctl.LaunchOptions{}, time.Second)
	if err != nil {
		t.Fatalf("EnsureStarted: %v", err)
	}
	if result.State != daemonctl.StartStateAlreadyRunning || result.Launched {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestEnsureStartedReportsLaunchFailure(t *testing.T) {
	client := unreachableClient(t)
	_, err := daemonctl.EnsureStarted(context.Background(), client, "", daemonctl.LaunchOptions{}, time.Second)
	if err == nil {
		t.Fatal("expected launch error for empty executable path")
	}
}

func TestWaitForHealthyTimesOut(t *testing.T) {
	client := unreachableClient(t)
	start := time.Now()
	if err := daemonctl.WaitForHealthy(context.Background(), client, 300*time.Millisecond); err == nil {
		t.Fatal("expected timeout error")
	}
	if time.Since(start) > 5*time.Second {
		t.Fatal("WaitForHealthy ignored its timeout")
	}
}

func TestWaitForShutdownReturnsWhenUnreachable(t *testing.T) {
	if err := daemonctl.WaitForShutdown(context.Background(), unreachableClient(t), time.Second); err != nil {
		t.Fatalf("WaitForShutdown: %v", err)
	}
}

func TestProcessInfo(t *testing.T) {
	srv := fakeDaemon(t, api.DaemonStatus{Running: true, PID: 4242})
	alive, pid, err := daemonctl.ProcessInfo(context.Background(), api.NewClient(srv.URL))
	if err != nil || !alive || pid != 4242 {
		t.Fatalf("ProcessInfo = %v, %d, %v", alive, pid, err)
	}

	alive, pid, err = daemonctl.ProcessInfo(context.Background(), unreachableClient(t))
	if err != nil || alive || pid != 0 {
		t.Fatalf("ProcessInfo offline = %v, %d, %v", alive, pid, err)
	}
}

func TestStopAndTerminateWhenNotRunning(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	_, err := daemonctl.StopAndTerminate(context.Background(), unreachableClient(t), cfg, time.Second)
	if !errors.Is(err, daemonctl.ErrDaemonNotRunning) {
		t.Fatalf("expected ErrDaemonNotRunning, got %v", err)
	}
}

func TestForceKillProcessRefusesSelf(t *testing.T) {
	dir := t.TempDir()
	pidPath := filepath.Join(dir, "quilld.pid")
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := daemonctl.ForceKillProcess(pidPath, filepath.Join(dir, "quilld.lock"), 0); err == nil {
		t.Fatal("expected refusal to kill the current process")
	}
	if _, err := daemonctl.ForceKillProcess(filepath.Join(dir, "missing.pid"), filepath.Join(dir, "quilld.lock"), 0); err == nil {
		t.Fatal("expected error without a pid")
	}
}

func TestBuildStatusSnapshotOffline(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	wf, err := content.New("Offline topic", "")
	if err != nil {
		t.Fatalf("content.New: %v", err)
	}
	if err := st.Create(context.Background(), wf); err != nil {
		t.Fatalf("Create: %v", err)
	}

	status, err := daemonctl.BuildStatusSnapshot(context.Background(), unreachableClient(t), cfg)
	if err != nil {
		t.Fatalf("BuildStatusSnapshot: %v", err)
	}
	if status.Running {
		t.Fatal("offline snapshot should not report running")
	}
	if status.StateCounts[string(content.StateIdle)] != 1 {
		t.Fatalf("expected one idle workflow, got %v", status.StateCounts)
	}
	if status.DatabasePath != cfg.DatabasePath() || len(status.Checks) == 0 {
		t.Fatalf("unexpected offline snapshot: %+v", status)
	}
}

func TestBuildStatusSnapshotOnline(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	srv := fakeDaemon(t, api.DaemonStatus{Running: true, PID: 7, DatabasePath: "/remote/quill.db"})

	status, err := daemonctl.BuildStatusSnapshot(context.Background(), api.NewClient(srv.URL), cfg)
	if err != nil {
		t.Fatalf("BuildStatusSnapshot: %v", err)
	}
	if !status.Running || status.DatabasePath != "/remote/quill.db" {
		t.Fatalf("expected daemon-reported status, got %+v", status)
	}
}
