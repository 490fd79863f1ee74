package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	ps "github.com/mitchellh/go-ps"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianstephens/doselit/internal/constants"
	"github.com/julianstephens/doselit/internal/reminders"
)

type mockProcess struct {
	pid        int
	executable string
}

func (m *mockProcess) Pid() int           { return m.pid }
func (m *mockProcess) PPid() int          { return 0 }
func (m *mockProcess) Executable() string { return m.executable }

func stubConfigDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	old := userConfigDirFunc
	t.Cleanup(func() { userConfigDirFunc = old })
	userConfigDirFunc = func() (string, error) { return dir, nil }
	return dir
}

func stubProcess(t *testing.T, executable string) {
	t.Helper()
	old := findProcessFunc
	t.Cleanup(func() { findProcessFunc = old })
	findProcessFunc = func(pid int) (ps.Process, error) {
		if executable == "" {
			return nil, nil
		}
		return &mockProcess{pid: pid, executable: executable}, nil
	}
}

func TestGetTrayAppConfigDir(t *testing.T) {
	dir := stubConfigDir(t)
	trayDir := filepath.Join(dir, constants.TrayAppIdentifier)

	got, err := GetTrayAppConfigDir()
	require.NoError(t, err)
	assert.Equal(t, trayDir, got)

	require.NoError(t, os.MkdirAll(trayDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(trayDir, "settings.json"),
		[]byte(`{"settings": {"lockfile_dir": "/custom/doselit/dir"}}`), 0644))
	got, err = GetTrayAppConfigDir()
	require.NoError(t, err)
	assert.Equal(t, "/custom/doselit/dir", got)
}

func TestFindAndValidateTrayProcess(t *testing.T) {
	lockfile := filepath.Join(t.TempDir(), constants.NotifierLockfileName)

	_, _, err := findAndValidateTrayProcess(lockfile)
	assert.ErrorIs(t, err, ErrTrayNotRunning)

	bad := map[string]string{
		"two parts":    "8080|12345",
		"garbage":      "invalid",
		"empty secret": "8080|12345|",
		"empty port":   "|12345|secret",
		"port range":   "99999|12345|secret",
		"bad pid":      "8080|abc|secret",
	}
	for name, content := range bad {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, os.WriteFile(lockfile, []byte(content), 0644))
			_, _, err := findAndValidateTrayProcess(lockfile)
			assert.Error(t, err)
		})
	}

	require.NoError(t, os.WriteFile(lockfile, []byte("8080|12345|s3cret\n"), 0644))

	stubProcess(t, "")
	_, _, err = findAndValidateTrayProcess(lockfile)
	assert.ErrorIs(t, err, ErrTrayNotRunning)

	stubProcess(t, "other-app")
	_, _, err = findAndValidateTrayProcess(lockfile)
	assert.ErrorContains(t, err, "is not doselit-tray")

	stubProcess(t, "doselit-tray")
	port, secret, err := findAndValidateTrayProcess(lockfile)
	require.NoError(t, err)
	assert.Equal(t, "8080", port)
	assert.Equal(t, "s3cret", secret)
}

func trayServer(t *testing.T, got *[]WebhookPayload) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(constants.TraySecretHeader) != "test-secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte("Unauthorized"))
			return
		}
		var p WebhookPayload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if p.Text == "fail" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		*got = append(*got, p)
	}))
	t.Cleanup(srv.Close)
	parts := strings.Split(srv.URL, ":")
	return parts[len(parts)-1]
}

func TestPost(t *testing.T) {
	var got []WebhookPayload
	port := trayServer(t, &got)
	n := New()
	ctx := context.Background()

	require.NoError(t, n.post(ctx, port, "test-secret", WebhookPayload{Text: "hello"}))
	assert.ErrorContains(t, n.post(ctx, port, "", WebhookPayload{Text: "hello"}), "401")
	assert.ErrorContains(t, n.post(ctx, port, "wrong", WebhookPayload{Text: "hello"}), "Unauthorized")
	assert.ErrorContains(t, n.post(ctx, port, "test-secret", WebhookPayload{Text: "fail"}), "500")
	assert.Len(t, got, 1)
}

func TestSendReminder(t *testing.T) {
	var got []WebhookPayload
	port := trayServer(t, &got)

	dir := stubConfigDir(t)
	trayDir := filepath.Join(dir, constants.TrayAppIdentifier)
	require.NoError(t, os.MkdirAll(trayDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(trayDir, constants.NotifierLockfileName),
		[]byte(port+"|4242|test-secret"), 0644))
	stubProcess(t, "doselit-tray")

	err := New().Send(context.Background(), reminders.Reminder{
		Kind:  reminders.KindReminder,
		Title: "Metformin",
		Body:  "Time to take Metformin (1 tablet)",
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Metformin", got[0].Title)
	assert.Equal(t, "reminder", got[0].Kind)
	assert.Equal(t, uint32(constants.NotificationDurationMs), got[0].DurationMs)
}
