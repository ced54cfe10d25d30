package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/term"

	"github.com/JeffCSZ/vms/internal/config"
	"github.com/JeffCSZ/vms/internal/service"
	"github.com/JeffCSZ/vms/internal/store"
)

// dataDir holds the --data-dir persistent flag value (set on root command).
var dataDir string

// resolveDataDir returns the data directory from the --data-dir flag,
// VMS_DATA_DIR env var, or ~/.vms as fallback.
func resolveDataDir() string {
	if dataDir != "" {
		return dataDir
	}
	if envDir := os.Getenv("VMS_DATA_DIR"); envDir != "" {
		return envDir
	}
	home, _ := os.UserHomeDir()
	return home + "/.vms"
}

// openStore opens the store using the effective database configuration.
func openStore(cfg config.Config) (*store.Store, error) {
	return store.Open(cfg.Database.Driver, cfg.Database.DSN, resolveDataDir())
}

// newAuthService builds the auth service from the effective configuration.
func newAuthService(st *store.Store, cfg config.Config) *service.AuthService {
	authCfg := service.DefaultConfig()
	authCfg.Secret = cfg.Auth.JWTSecret
	authCfg.TokenExpiry = cfg.Auth.TokenExpiry()
	authCfg.MaxFailedLogins = cfg.Auth.MaxFailedLogins
	authCfg.LockoutDuration = cfg.Auth.LockoutDuration()
	if authCfg.Secret == "" {
		authCfg.Secret = "vms-dev-secret-change-me"
	}
	return service.NewAuthService(st, authCfg)
}

// promptPassword reads a password from the terminal twice and verifies both
// entries match.
func promptPassword() (string, error) {
	fmt.Print("Password: ")
	pwBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	fmt.Println()

	fmt.Print("Confirm password: ")
	confirmBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return "", fmt.Errorf("failed to read confirmation: %w", err)
	}
	fmt.Println()

	if string(pwBytes) != string(confirmBytes) {
		return "", fmt.Errorf("passwords do not match")
	}
	return string(pwBytes), nil
}

// --- PID file management ---

func pidFilePath() string {
	return filepath.Join(resolveDataDir(), "vms.pid")
}

func writePID(pid int) error {
	dir := resolveDataDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(pidFilePath(), []byte(strconv.Itoa(pid)), 0644)
}

func readPID() (int, error) {
	data, err := os.ReadFile(pidFilePath())
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePID() {
	os.Remove(pidFilePath())
}

func logFilePath() string {
	return filepath.Join(resolveDataDir(), "vms.log")
}

func scanHistoryPath() string {
	return filepath.Join(resolveDataDir(), "scans.json")
}

// versionString returns a display version string.
func versionString() string {
	if appVersion == "" || appVersion == "dev" {
		return "dev"
	}
	if strings.HasPrefix(appVersion, "v") {
		return appVersion
	}
	return "v" + appVersion
}
